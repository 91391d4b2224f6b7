package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"Hollowmere/internal/game"
)

const bootstrapAttempts = 3

var errBootstrapAborted = errors.New("administrator bootstrap aborted")

// prompter reads the answers to the first-run questions.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
	// secret reads a line without echoing it.
	secret func() (string, error)
}

func newTerminalPrompter() *prompter {
	in := bufio.NewReader(os.Stdin)
	p := &prompter{in: in, out: os.Stderr}
	fd := int(os.Stdin.Fd())
	p.secret = func() (string, error) {
		if !term.IsTerminal(fd) {
			return p.line()
		}
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(p.out)
		return strings.TrimSpace(string(b)), err
	}
	return p
}

func (p *prompter) line() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// bootstrapAdmin creates the first administrator account. It runs only when
// the account store has never been written.
func bootstrapAdmin(ctx context.Context, accounts *game.Accounts, p *prompter) (string, error) {
	fmt.Fprintln(p.out, "No account store found. Create the administrator account.")

	var name string
	for i := 0; ; i++ {
		if i == bootstrapAttempts {
			return "", errBootstrapAborted
		}
		fmt.Fprint(p.out, "Administrator name: ")
		line, err := p.line()
		if err != nil {
			return "", fmt.Errorf("read name: %w", err)
		}
		if err := game.ValidateUsername(line); err != nil {
			fmt.Fprintln(p.out, err)
			continue
		}
		name = line
		break
	}

	for i := 0; ; i++ {
		if i == bootstrapAttempts {
			return "", errBootstrapAborted
		}
		fmt.Fprint(p.out, "Password: ")
		pass, err := p.secret()
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		if err := game.ValidatePassword(pass); err != nil {
			fmt.Fprintln(p.out, err)
			continue
		}
		fmt.Fprint(p.out, "Repeat password: ")
		again, err := p.secret()
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		if again != pass {
			fmt.Fprintln(p.out, "Passwords do not match.")
			continue
		}

		hash, err := game.HashPassword(pass)
		if err != nil {
			return "", err
		}
		if err := accounts.Add(ctx, name, game.Account{Password: hash, Admin: true}); err != nil {
			return "", fmt.Errorf("create administrator: %w", err)
		}
		return name, nil
	}
}
