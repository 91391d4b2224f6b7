package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/cases"

	"Hollowmere/internal/game"
	"Hollowmere/internal/worker"
)

// Group decides who sees a command in help and who may run it.
type Group int

const (
	GroupGeneral Group = iota
	GroupAdmin
)

// Definition describes a single command's metadata.
type Definition struct {
	Name        string
	Aliases     []string
	Usage       string
	Description string
	Group       Group
}

// Handler executes a command. The result tells the worker whether to keep
// reading commands, log out, or disconnect.
type Handler func(*Context) (worker.Result, error)

// Command couples metadata with the executable handler.
type Command struct {
	Definition
	Handler Handler
}

// Context provides the runtime data available to a command handler.
type Context struct {
	Ctx     context.Context
	Session *worker.Session
	Raw     string
	Arg     string
	Input   string
	Command *Command
}

// Print writes msg to the session's terminal.
func (c *Context) Print(msg string) {
	c.Session.Print(msg)
}

// Warn writes msg as a highlighted notice.
func (c *Context) Warn(msg string) {
	c.Session.Print(game.Notice(msg))
}

// Usage prints the command's usage line.
func (c *Context) Usage() {
	c.Warn("Usage: " + c.Command.Usage)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]*Command)
	ordered    []*Command
)

// fold maps a keyword to its lookup key. A Caser keeps state, so each call
// gets its own.
func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// Define registers a new command using the provided definition and handler.
// It panics when metadata is incomplete or duplicates an existing command.
func Define(def Definition, handler Handler) *Command {
	if handler == nil {
		panic("commands: handler must not be nil")
	}
	if strings.TrimSpace(def.Name) == "" {
		panic("commands: command must have a name")
	}

	cmd := &Command{Definition: def, Handler: handler}

	registryMu.Lock()
	defer registryMu.Unlock()

	registerName := func(name string) {
		key := fold(name)
		if _, exists := registry[key]; exists {
			panic(fmt.Sprintf("commands: duplicate registration for %q", name))
		}
		registry[key] = cmd
	}

	registerName(def.Name)
	for _, alias := range def.Aliases {
		if strings.TrimSpace(alias) == "" {
			continue
		}
		registerName(alias)
	}

	ordered = append(ordered, cmd)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Name < ordered[j].Name
	})

	return cmd
}

// All returns the registered commands sorted by primary name.
func All() []*Command {
	registryMu.RLock()
	defer registryMu.RUnlock()

	out := make([]*Command, len(ordered))
	copy(out, ordered)
	return out
}

// Find looks a command up by name or alias, ignoring case.
func Find(name string) (*Command, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	cmd, ok := registry[fold(name)]
	return cmd, ok
}

// Dispatch parses the input line, looks up the command, and executes it. It
// satisfies worker.Dispatcher.
func Dispatch(ctx context.Context, s *worker.Session, line string) (worker.Result, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return worker.Continue, nil
	}
	cmd, ok := Find(parts[0])
	if !ok || (cmd.Group == GroupAdmin && !s.Admin()) {
		s.Print(game.Notice("Unknown command. Type 'help'."))
		return worker.Continue, nil
	}

	arg := strings.TrimSpace(strings.TrimPrefix(line, parts[0]))
	return cmd.Handler(&Context{
		Ctx:     ctx,
		Session: s,
		Raw:     line,
		Arg:     arg,
		Input:   parts[0],
		Command: cmd,
	})
}
