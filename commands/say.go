package commands

import (
	"fmt"

	"Hollowmere/internal/game"
	"Hollowmere/internal/proto"
	"Hollowmere/internal/worker"
)

var Say = Define(Definition{
	Name:        "say",
	Usage:       "say <message>",
	Description: "speak to everyone online",
}, func(ctx *Context) (worker.Result, error) {
	msg := ctx.Arg
	if msg == "" {
		ctx.Warn("Say what?")
		return worker.Continue, nil
	}
	line := game.Terminated(fmt.Sprintf("%s says: %s", game.HighlightName(ctx.Session.Username()), msg))
	if _, err := ctx.Session.Call(ctx.Ctx, proto.CodeBroadcast, []byte(line)); err != nil {
		return worker.Continue, err
	}
	ctx.Print(fmt.Sprintf("\r\n%s %s", game.Style("You say:", game.AnsiBold, game.AnsiYellow), msg))
	return worker.Continue, nil
})
