package commands

import (
	"fmt"
	"strings"

	"Hollowmere/internal/game"
	"Hollowmere/internal/proto"
	"Hollowmere/internal/worker"
)

const userUsage = "user add|modify <name> <password> [admin] | user del <name> | user list"

var User = Define(Definition{
	Name:        "user",
	Usage:       "user add|modify|del|list",
	Description: "manage accounts",
	Group:       GroupAdmin,
}, func(ctx *Context) (worker.Result, error) {
	args := strings.Fields(ctx.Arg)
	if len(args) == 0 {
		ctx.Warn("Usage: " + userUsage)
		return worker.Continue, nil
	}
	switch fold(args[0]) {
	case "add":
		return userSave(ctx, proto.CodeAddAccount, args[1:])
	case "modify", "mod":
		return userSave(ctx, proto.CodeModifyAccount, args[1:])
	case "del", "delete":
		if len(args) != 2 {
			ctx.Warn("Usage: user del <name>")
			return worker.Continue, nil
		}
		st, detail, err := request(ctx, proto.CodeDeleteAccount, []byte(args[1]))
		if err != nil {
			return worker.Continue, err
		}
		reportStatus(ctx, st, detail, "Deleted "+args[1]+".")
		return worker.Continue, nil
	case "list":
		return userList(ctx)
	}
	ctx.Warn("Usage: " + userUsage)
	return worker.Continue, nil
})

// userSave hashes the password here so the coordinator never sees it in
// plain text. For modify, a password of "-" keeps the current one.
func userSave(ctx *Context, code proto.Code, args []string) (worker.Result, error) {
	if len(args) < 2 || len(args) > 3 || (len(args) == 3 && fold(args[2]) != "admin") {
		ctx.Warn("Usage: " + userUsage)
		return worker.Continue, nil
	}
	acct := proto.Account{Username: args[0], Admin: len(args) == 3}
	if err := game.ValidateUsername(acct.Username); err != nil {
		ctx.Warn(err.Error())
		return worker.Continue, nil
	}
	if !(code == proto.CodeModifyAccount && args[1] == "-") {
		if err := game.ValidatePassword(args[1]); err != nil {
			ctx.Warn(err.Error())
			return worker.Continue, nil
		}
		hash, err := game.HashPassword(args[1])
		if err != nil {
			return worker.Continue, err
		}
		acct.Password = hash
	}
	payload, err := proto.Marshal(acct)
	if err != nil {
		return worker.Continue, err
	}
	st, detail, err := request(ctx, code, payload)
	if err != nil {
		return worker.Continue, err
	}
	verb := "Added"
	if code == proto.CodeModifyAccount {
		verb = "Updated"
	}
	reportStatus(ctx, st, detail, fmt.Sprintf("%s %s.", verb, acct.Username))
	return worker.Continue, nil
}

func userList(ctx *Context) (worker.Result, error) {
	reply, err := ctx.Session.Call(ctx.Ctx, proto.CodeListAccounts, nil)
	if err != nil {
		return worker.Continue, err
	}
	if st, detail := reply.Status(); st != proto.StatusOK {
		reportStatus(ctx, st, detail, "")
		return worker.Continue, nil
	}
	var b strings.Builder
	b.WriteString(game.Style("\r\nAccounts:\r\n", game.AnsiBold, game.AnsiUnderline))
	accts, err := proto.DecodeRecords[proto.Account](reply.Frames)
	if err != nil {
		ctx.Warn("Part of the account list could not be read.")
	}
	for _, acct := range accts {
		role := "user"
		if acct.Admin {
			role = game.Style("admin", game.AnsiMagenta)
		}
		last := "never"
		if !acct.LastLogin.IsZero() {
			last = acct.LastLogin.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(&b, "  %-24s %-6s last login %s\r\n", acct.Username, role, last)
	}
	ctx.Print(b.String())
	return worker.Continue, nil
}
