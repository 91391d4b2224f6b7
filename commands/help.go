package commands

import (
	"fmt"
	"strings"

	"Hollowmere/internal/game"
	"Hollowmere/internal/worker"
)

var Help = Define(Definition{
	Name:        "help",
	Aliases:     []string{"?"},
	Usage:       "help",
	Description: "show this message",
}, func(ctx *Context) (worker.Result, error) {
	message := helpMessage("Commands:", commandsForGroup(GroupGeneral))
	if ctx.Session.Admin() {
		message += helpMessage("Admin commands:", commandsForGroup(GroupAdmin))
	}
	ctx.Print(message)
	return worker.Continue, nil
})

func helpMessage(title string, commands []*Command) string {
	var builder strings.Builder
	builder.WriteString(game.Style("\r\n"+title+"\r\n", game.AnsiBold, game.AnsiUnderline))
	for _, cmd := range commands {
		usage := cmd.Usage
		if strings.TrimSpace(usage) == "" {
			usage = cmd.Name
		}
		builder.WriteString(fmt.Sprintf("  %-28s - %s\r\n", usage, cmd.Description))
	}
	return builder.String()
}

func commandsForGroup(group Group) []*Command {
	all := All()
	filtered := make([]*Command, 0, len(all))
	for _, cmd := range all {
		if cmd.Group == group {
			filtered = append(filtered, cmd)
		}
	}
	return filtered
}
