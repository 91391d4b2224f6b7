package commands

import (
	"strings"

	"Hollowmere/internal/proto"
	"Hollowmere/internal/worker"
)

var Goto = Define(Definition{
	Name:        "goto",
	Usage:       "goto <room>",
	Description: "teleport to a room by id",
	Group:       GroupAdmin,
}, func(ctx *Context) (worker.Result, error) {
	target := strings.TrimSpace(ctx.Arg)
	if target == "" {
		ctx.Usage()
		return worker.Continue, nil
	}
	st, msg, err := request(ctx, proto.CodeSetRoom, []byte(target))
	if err != nil {
		return worker.Continue, err
	}
	if st != proto.StatusOK {
		ctx.Warn(msg)
		return worker.Continue, nil
	}
	return describeRoom(ctx)
})
