package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"Hollowmere/internal/game"
	"Hollowmere/internal/proto"
	"Hollowmere/internal/worker"
)

var Client = Define(Definition{
	Name:        "client",
	Usage:       "client list|kick <id>|kick all",
	Description: "list or disconnect connected clients",
	Group:       GroupAdmin,
}, func(ctx *Context) (worker.Result, error) {
	args := strings.Fields(ctx.Arg)
	switch {
	case len(args) == 1 && fold(args[0]) == "list":
		return clientList(ctx)
	case len(args) == 2 && fold(args[0]) == "kick" && fold(args[1]) == "all":
		st, detail, err := request(ctx, proto.CodeKickAllButSender, nil)
		if err != nil {
			return worker.Continue, err
		}
		reportStatus(ctx, st, detail, "Disconnected "+detail+" client(s).")
		return worker.Continue, nil
	case len(args) >= 2 && fold(args[0]) == "kick":
		id, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			ctx.Warn("Client ids are numbers; see 'client list'.")
			return worker.Continue, nil
		}
		msg := strings.TrimSpace(strings.Join(args[2:], " "))
		st, detail, err := request(ctx, proto.CodeKick, proto.PutSessionID(proto.SessionID(id), []byte(msg)))
		if err != nil {
			return worker.Continue, err
		}
		reportStatus(ctx, st, detail, fmt.Sprintf("Client %d disconnected.", id))
		return worker.Continue, nil
	}
	ctx.Usage()
	return worker.Continue, nil
})

func clientList(ctx *Context) (worker.Result, error) {
	reply, err := ctx.Session.Call(ctx.Ctx, proto.CodeListSessions, nil)
	if err != nil {
		return worker.Continue, err
	}
	var b strings.Builder
	b.WriteString(game.Style("\r\nClients:\r\n", game.AnsiBold, game.AnsiUnderline))
	fmt.Fprintf(&b, "  %-6s %-16s %-16s %-12s %-9s %s\r\n", "ID", "STATE", "USER", "ROOM", "ONLINE", "PEER")
	infos, err := proto.DecodeRecords[proto.SessionInfo](reply.Frames)
	if err != nil {
		ctx.Warn("Part of the client list could not be read.")
	}
	now := time.Now()
	for _, info := range infos {
		id := info.ID.String()
		if info.Self {
			id += "*"
		}
		user := info.User
		if user == "" {
			user = "-"
		}
		room := info.Room
		if room == "" {
			room = "-"
		}
		online := now.Sub(info.Since).Truncate(time.Second).String()
		fmt.Fprintf(&b, "  %-6s %-16s %-16s %-12s %-9s %s\r\n", id, info.State, user, room, online, info.Peer)
	}
	ctx.Print(b.String())
	return worker.Continue, nil
}
