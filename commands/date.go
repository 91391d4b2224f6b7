package commands

import (
	"time"

	"Hollowmere/internal/worker"
)

// now is replaced in tests.
var now = time.Now

var Date = Define(Definition{
	Name:        "date",
	Aliases:     []string{"time"},
	Usage:       "date",
	Description: "show the server's date and time",
}, func(ctx *Context) (worker.Result, error) {
	ctx.Print("\r\n" + now().Format(time.RFC1123))
	return worker.Continue, nil
})
