package commands

import (
	"fmt"
	"strings"

	"Hollowmere/internal/game"
	"Hollowmere/internal/proto"
	"Hollowmere/internal/worker"
)

// request sends one request and splits the status reply.
func request(ctx *Context, code proto.Code, payload []byte) (proto.Status, string, error) {
	reply, err := ctx.Session.Call(ctx.Ctx, code, payload)
	if err != nil {
		return proto.StatusFailed, "", err
	}
	st, msg := reply.Status()
	return st, msg, nil
}

// describeRoom prints the current room's name and description.
func describeRoom(ctx *Context) (worker.Result, error) {
	st, name, err := request(ctx, proto.CodeRoomName, nil)
	if err != nil {
		return worker.Continue, err
	}
	if st != proto.StatusOK {
		ctx.Warn("You see only void.")
		return worker.Continue, nil
	}
	st, desc, err := request(ctx, proto.CodeRoomDescription, nil)
	if err != nil {
		return worker.Continue, err
	}
	if st != proto.StatusOK {
		desc = ""
	}
	title := game.Style(name, game.AnsiBold, game.AnsiCyan)
	body := game.WrapText(desc, ctx.Session.Width())
	ctx.Print(fmt.Sprintf("\r\n%s\r\n%s", title, strings.ReplaceAll(body, "\n", "\r\n")))
	return worker.Continue, nil
}

// reportStatus prints msg for success or the coordinator's detail otherwise.
func reportStatus(ctx *Context, st proto.Status, detail, msg string) {
	if st == proto.StatusOK {
		ctx.Print("\r\n" + game.Style(msg, game.AnsiGreen))
		return
	}
	if detail == "" {
		detail = "That did not work (" + st.String() + ")."
	}
	ctx.Warn(detail)
}
