package main

import (
	"bufio"
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"Hollowmere/internal/game"
)

func scripted(input string, secrets ...string) (*prompter, *bytes.Buffer) {
	var out bytes.Buffer
	p := &prompter{in: bufio.NewReader(strings.NewReader(input)), out: &out}
	p.secret = func() (string, error) {
		if len(secrets) == 0 {
			return "", nil
		}
		s := secrets[0]
		secrets = secrets[1:]
		return s, nil
	}
	return p, &out
}

func emptyAccounts(t *testing.T) (*game.Accounts, string) {
	t.Helper()
	game.PasswordCost = bcrypt.MinCost
	t.Cleanup(func() { game.PasswordCost = bcrypt.DefaultCost })
	path := filepath.Join(t.TempDir(), "accounts.json")
	accounts, err := game.OpenAccounts(context.Background(), game.NewFileAccountStore(path))
	require.ErrorIs(t, err, game.ErrNoAccounts)
	return accounts, path
}

func TestBootstrapCreatesAdmin(t *testing.T) {
	accounts, path := emptyAccounts(t)
	p, out := scripted("\nwarden\n", "lantern-key", "lantern-typo", "lantern-key", "lantern-key")

	name, err := bootstrapAdmin(context.Background(), accounts, p)
	require.NoError(t, err)
	assert.Equal(t, "warden", name)
	assert.Contains(t, out.String(), "Passwords do not match.")
	assert.NotContains(t, out.String(), "lantern-key")

	reopened, err := game.OpenAccounts(context.Background(), game.NewFileAccountStore(path))
	require.NoError(t, err)
	acct, ok := reopened.Get("warden")
	require.True(t, ok)
	assert.True(t, acct.Admin)
	assert.True(t, game.CheckPassword(acct.Password, "lantern-key"))
}

func TestBootstrapGivesUp(t *testing.T) {
	accounts, _ := emptyAccounts(t)
	p, _ := scripted("warden\n", "short", "", "tiny")

	_, err := bootstrapAdmin(context.Background(), accounts, p)
	assert.ErrorIs(t, err, errBootstrapAborted)
	assert.Zero(t, accounts.Len())
}
