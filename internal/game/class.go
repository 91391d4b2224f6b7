package game

import (
	"fmt"
	"strings"
	"sync"
)

// Object class names understood by the world loader.
const (
	ClassItem      = "item"
	ClassScenery   = "scenery"
	ClassContainer = "container"
)

// Class is the behaviour shared by every object of one kind.
type Class interface {
	// Describe renders the object for a room listing. An empty string keeps
	// the object out of the listing.
	Describe(w *World, o *Object) string
}

var (
	classMu sync.RWMutex
	classes = map[string]Class{
		ClassItem:      itemClass{},
		ClassScenery:   sceneryClass{},
		ClassContainer: containerClass{},
	}
)

// RegisterClass adds a class under name. It panics on duplicates.
func RegisterClass(name string, c Class) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || c == nil {
		panic("game: class must have a name and an implementation")
	}
	classMu.Lock()
	defer classMu.Unlock()
	if _, exists := classes[key]; exists {
		panic(fmt.Sprintf("game: duplicate class %q", name))
	}
	classes[key] = c
}

// LookupClass resolves a class name. An empty name means ClassItem.
func LookupClass(name string) (Class, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = ClassItem
	}
	classMu.RLock()
	defer classMu.RUnlock()
	c, ok := classes[key]
	return c, ok
}

type itemClass struct{}

func (itemClass) Describe(_ *World, o *Object) string {
	return o.Name
}

// Scenery is part of the room prose and never listed on its own.
type sceneryClass struct{}

func (sceneryClass) Describe(*World, *Object) string {
	return ""
}

type containerClass struct{}

func (containerClass) Describe(w *World, o *Object) string {
	if len(o.Contents) == 0 {
		return o.Name + " (empty)"
	}
	names := make([]string, 0, len(o.Contents))
	for _, id := range o.Contents {
		if inner, ok := w.objects[id]; ok {
			names = append(names, inner.Name)
		}
	}
	return fmt.Sprintf("%s (holding %s)", o.Name, strings.Join(names, ", "))
}
