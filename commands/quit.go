package commands

import "Hollowmere/internal/worker"

var Quit = Define(Definition{
	Name:        "quit",
	Aliases:     []string{"exit", "q"},
	Usage:       "quit",
	Description: "disconnect",
}, func(ctx *Context) (worker.Result, error) {
	return worker.Quit, nil
})

var Logout = Define(Definition{
	Name:        "logout",
	Usage:       "logout",
	Description: "log out and return to the login prompt",
}, func(ctx *Context) (worker.Result, error) {
	return worker.Logout, nil
})
