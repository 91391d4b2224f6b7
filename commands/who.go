package commands

import (
	"strings"

	"Hollowmere/internal/game"
	"Hollowmere/internal/proto"
	"Hollowmere/internal/worker"
)

var Who = Define(Definition{
	Name:        "who",
	Usage:       "who",
	Description: "list connected players",
}, func(ctx *Context) (worker.Result, error) {
	reply, err := ctx.Session.Call(ctx.Ctx, proto.CodeListSessions, nil)
	if err != nil {
		return worker.Continue, err
	}
	infos, err := proto.DecodeRecords[proto.SessionInfo](reply.Frames)
	if err != nil {
		return worker.Continue, err
	}
	var others []string
	for _, info := range infos {
		if info.Self || !info.State.LoggedIn() {
			continue
		}
		others = append(others, info.User)
	}
	if len(others) == 0 {
		ctx.Print("\r\nYou are the only adventurer online.")
		return worker.Continue, nil
	}
	ctx.Print("\r\nOther adventurers online: " + strings.Join(game.HighlightNames(others), ", "))
	return worker.Continue, nil
})
