package commands

import (
	"strings"

	"Hollowmere/internal/game"
	"Hollowmere/internal/proto"
	"Hollowmere/internal/worker"
)

var Move = Define(Definition{
	Name:        "go",
	Aliases:     game.DirectionShorthands(),
	Usage:       "go <direction>",
	Description: "move (n/ne/e/se/s/sw/w/nw/u/d/in/out)",
}, func(ctx *Context) (worker.Result, error) {
	dir := ctx.Input
	if strings.EqualFold(ctx.Input, "go") {
		dir = ctx.Arg
	}
	if dir == "" {
		ctx.Usage()
		return worker.Continue, nil
	}
	st, msg, err := request(ctx, proto.CodeMove, []byte(dir))
	if err != nil {
		return worker.Continue, err
	}
	if st != proto.StatusOK {
		ctx.Warn(msg)
		return worker.Continue, nil
	}
	return describeRoom(ctx)
})
