package commands

import (
	"fmt"

	"Hollowmere/internal/proto"
	"Hollowmere/internal/worker"
)

var Wait = Define(Definition{
	Name:        "wait",
	Usage:       "wait",
	Description: "ping everyone online and wait for them to answer",
}, func(ctx *Context) (worker.Result, error) {
	reply, err := ctx.Session.Call(ctx.Ctx, proto.CodeWait, nil)
	if err != nil {
		return worker.Continue, err
	}
	acked, expected, ok := proto.Uint32Pair(reply.Payload)
	if !ok {
		ctx.Warn("Nobody answered.")
		return worker.Continue, nil
	}
	if expected == 0 {
		ctx.Print("\r\nThere is nobody else to wait for.")
		return worker.Continue, nil
	}
	ctx.Print(fmt.Sprintf("\r\n%d of %d adventurers answered.", acked, expected))
	return worker.Continue, nil
})
