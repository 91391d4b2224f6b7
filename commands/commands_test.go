package commands

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"Hollowmere/internal/coordinator"
	"Hollowmere/internal/game"
	"Hollowmere/internal/worker"
)

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

type scriptedTerm struct {
	in     chan string
	closed chan struct{}
	once   sync.Once
	mu     sync.Mutex
	out    strings.Builder
}

func newScriptedTerm() *scriptedTerm {
	return &scriptedTerm{in: make(chan string, 64), closed: make(chan struct{})}
}

func (s *scriptedTerm) ReadLine() (string, error) {
	select {
	case line := <-s.in:
		return line, nil
	case <-s.closed:
		return "", io.EOF
	}
}

func (s *scriptedTerm) WriteString(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out.WriteString(msg)
	return nil
}

func (s *scriptedTerm) EchoOff() error { return nil }

func (s *scriptedTerm) EchoOn() error { return nil }

func (s *scriptedTerm) Size() (int, int) { return 0, 0 }

func (s *scriptedTerm) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *scriptedTerm) send(lines ...string) {
	for _, l := range lines {
		s.in <- l
	}
}

// text returns everything written so far with colour codes removed.
func (s *scriptedTerm) text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ansiPattern.ReplaceAllString(s.out.String(), "")
}

func (s *scriptedTerm) waitFor(t *testing.T, substr string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return strings.Contains(s.text(), substr)
	}, 3*time.Second, 5*time.Millisecond, "waiting for %q in:\n%s", substr, s.text())
}

func (s *scriptedTerm) countOf(substr string) int {
	return strings.Count(s.text(), substr)
}

type player struct {
	term    *scriptedTerm
	session *worker.Session
	done    chan error
}

type server struct {
	c *coordinator.Coordinator
}

func newServer(t *testing.T) *server {
	t.Helper()
	game.PasswordCost = bcrypt.MinCost
	t.Cleanup(func() { game.PasswordCost = bcrypt.DefaultCost })

	ctx := context.Background()
	dir := t.TempDir()
	accounts, _ := game.OpenAccounts(ctx, game.NewFileAccountStore(filepath.Join(dir, "accounts.json")))
	for name, admin := range map[string]bool{"alice": true, "bob": false, "carol": false} {
		hash, err := game.HashPassword(name + "-secret")
		require.NoError(t, err)
		require.NoError(t, accounts.Add(ctx, name, game.Account{Password: hash, Admin: admin}))
	}
	world, err := game.LoadWorld(filepath.Join(dir, "world.json"))
	require.NoError(t, err)

	c := coordinator.New(zerolog.Nop(), world, accounts, coordinator.Options{WaitTimeout: 200 * time.Millisecond})
	runCtx, cancel := context.WithCancel(ctx)
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = c.Run(runCtx)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	return &server{c: c}
}

// connect attaches a worker running the real command set and logs it in.
func (s *server) connect(t *testing.T, name string) *player {
	t.Helper()
	ep, err := s.c.Attach(context.Background(), "198.51.100.7:4000")
	require.NoError(t, err)
	p := &player{term: newScriptedTerm(), done: make(chan error, 1)}
	p.session = worker.New(p.term, ep, Dispatch, worker.Options{RateLimit: 100})
	go func() {
		p.done <- p.session.Run(context.Background())
		s.c.Detach(ep.ID())
		p.term.Close()
	}()
	p.term.send(name, name+"-secret")
	p.term.waitFor(t, "Exits:")
	t.Cleanup(func() { p.term.Close() })
	return p
}

func (p *player) quit(t *testing.T) {
	t.Helper()
	p.term.send("quit")
	select {
	case err := <-p.done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("session did not quit")
	}
}

func TestLookShowsNameThenDescription(t *testing.T) {
	srv := newServer(t)
	bob := srv.connect(t, "bob")
	alice := srv.connect(t, "alice")

	alice.term.send("say hello there")
	bob.term.waitFor(t, "alice says: hello there")
	bob.term.send("look")
	require.Eventually(t, func() bool { return bob.term.countOf("Exits:") == 2 }, 3*time.Second, 5*time.Millisecond)

	out := bob.term.text()
	last := out[strings.LastIndex(out, "Village Square"):]
	assert.True(t, strings.HasPrefix(last, "Village Square\r\nCobblestones"), last)
	desc := last[:strings.Index(last, "Exits:")]
	assert.NotContains(t, desc, "hello")
	assert.Contains(t, last, "Also here: alice.")

	bob.quit(t)
	alice.quit(t)
}

func TestSayReachesOthersNotSender(t *testing.T) {
	srv := newServer(t)
	alice := srv.connect(t, "alice")
	bob := srv.connect(t, "bob")

	alice.term.send("say hello")
	alice.term.waitFor(t, "You say: hello")
	bob.term.waitFor(t, "alice says: hello")
	assert.NotContains(t, alice.term.text(), "alice says: hello")

	alice.term.send("say")
	alice.term.waitFor(t, "Say what?")

	alice.quit(t)
	bob.quit(t)
}

func TestGoWithoutExitKeepsRoom(t *testing.T) {
	srv := newServer(t)
	bob := srv.connect(t, "bob")

	bob.term.send("go south")
	bob.term.waitFor(t, "You can't go that way.")
	bob.term.send("look")
	require.Eventually(t, func() bool { return bob.term.countOf("Village Square") == 2 }, 3*time.Second, 5*time.Millisecond)

	bob.term.send("N")
	bob.term.waitFor(t, "Moot Hall")
	bob.term.send("GO Down")
	require.Eventually(t, func() bool { return bob.term.countOf("You can't go that way.") == 2 }, 3*time.Second, 5*time.Millisecond)
	bob.term.send("go")
	bob.term.waitFor(t, "Usage: go <direction>")
	bob.quit(t)
}

func TestMovementIsAnnounced(t *testing.T) {
	srv := newServer(t)
	alice := srv.connect(t, "alice")
	bob := srv.connect(t, "bob")

	bob.term.send("east")
	bob.term.waitFor(t, "Market Row")
	alice.term.waitFor(t, "bob leaves east.")

	alice.term.send("goto market")
	alice.term.waitFor(t, "Market Row")
	bob.term.waitFor(t, "alice appears.")

	alice.quit(t)
	bob.quit(t)
}

func TestClientKickSelfIsRefused(t *testing.T) {
	srv := newServer(t)
	alice := srv.connect(t, "alice")

	alice.term.send(fmt.Sprintf("client kick %d", alice.session.ID()))
	alice.term.waitFor(t, "You cannot kick yourself.")
	alice.term.send("look")
	require.Eventually(t, func() bool { return alice.term.countOf("Exits:") == 2 }, 3*time.Second, 5*time.Millisecond)
	alice.quit(t)
}

func TestClientListAndKick(t *testing.T) {
	srv := newServer(t)
	alice := srv.connect(t, "alice")
	bob := srv.connect(t, "bob")

	alice.term.send("client list")
	alice.term.waitFor(t, "LOGGED_IN_USER")
	out := alice.term.text()
	assert.Contains(t, out, fmt.Sprintf("%d*", alice.session.ID()))
	assert.Contains(t, out, "198.51.100.7:4000")

	alice.term.send(fmt.Sprintf("client kick %d Time for bed.", bob.session.ID()))
	alice.term.waitFor(t, "disconnected.")
	select {
	case err := <-bob.done:
		assert.ErrorIs(t, err, worker.ErrKicked)
	case <-time.After(3 * time.Second):
		t.Fatal("kicked session kept running")
	}
	assert.Contains(t, bob.term.text(), "Time for bed.")

	alice.term.send("client kick 4242")
	alice.term.waitFor(t, "No such client.")
	alice.term.send("client kick all")
	alice.term.waitFor(t, "Disconnected 0 client(s).")
	alice.quit(t)
}

func TestAdminCommandsHiddenFromUsers(t *testing.T) {
	srv := newServer(t)
	bob := srv.connect(t, "bob")

	bob.term.send("help")
	bob.term.waitFor(t, "Commands:")
	assert.NotContains(t, bob.term.text(), "Admin commands:")
	assert.NotContains(t, bob.term.text(), "client list")

	bob.term.send("user list")
	bob.term.waitFor(t, "Unknown command. Type 'help'.")
	bob.term.send("dance")
	require.Eventually(t, func() bool { return bob.term.countOf("Unknown command") == 2 }, 3*time.Second, 5*time.Millisecond)
	bob.quit(t)
}

func TestUserAdministration(t *testing.T) {
	srv := newServer(t)
	alice := srv.connect(t, "alice")

	alice.term.send("help")
	alice.term.waitFor(t, "Admin commands:")

	alice.term.send("USER add dora dora-secret")
	alice.term.waitFor(t, "Added dora.")
	alice.term.send("user add dora dora-secret")
	alice.term.waitFor(t, "User already exists.")
	alice.term.send("user add eve short")
	alice.term.waitFor(t, "password must be at least 6 characters")

	alice.term.send("user modify dora - admin")
	alice.term.waitFor(t, "Updated dora.")
	alice.term.send("user list")
	alice.term.waitFor(t, "Accounts:")
	require.Eventually(t, func() bool {
		return regexp.MustCompile(`dora\s+admin`).MatchString(alice.term.text())
	}, 3*time.Second, 5*time.Millisecond)

	dora := srv.connect(t, "dora")
	dora.term.send("help")
	dora.term.waitFor(t, "Admin commands:")
	dora.quit(t)

	alice.term.send("user del alice")
	alice.term.waitFor(t, "You cannot delete your own account.")
	alice.term.send("user del carol")
	alice.term.waitFor(t, "Deleted carol.")
	alice.term.send("user del carol")
	alice.term.waitFor(t, "No such user.")
	alice.quit(t)
}

func TestDateWaitAndWho(t *testing.T) {
	now = func() time.Time { return time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC) }
	t.Cleanup(func() { now = time.Now })

	srv := newServer(t)
	bob := srv.connect(t, "bob")

	bob.term.send("date")
	bob.term.waitFor(t, "Sat, 14 Mar 2026 15:09:26 UTC")
	bob.term.send("wait")
	bob.term.waitFor(t, "There is nobody else to wait for.")
	bob.term.send("who")
	bob.term.waitFor(t, "You are the only adventurer online.")

	carol := srv.connect(t, "carol")
	bob.term.send("wait")
	bob.term.waitFor(t, "1 of 1 adventurers answered.")
	bob.term.send("who")
	bob.term.waitFor(t, "Other adventurers online: carol")

	carol.quit(t)
	bob.quit(t)
}

func TestLogoutReturnsToLogin(t *testing.T) {
	srv := newServer(t)
	bob := srv.connect(t, "bob")

	bob.term.send("logout")
	bob.term.waitFor(t, "You have logged out.")
	bob.term.send("carol", "carol-secret")
	bob.term.waitFor(t, "Welcome, carol!")
	bob.quit(t)
}

func TestFindIsCaseInsensitive(t *testing.T) {
	for _, name := range []string{"LOOK", "Look", "l", "Quit", "EXIT", "ne", "In"} {
		_, ok := Find(name)
		assert.True(t, ok, name)
	}
	_, ok := Find("xyzzy")
	assert.False(t, ok)
	assert.Panics(t, func() {
		Define(Definition{Name: "LOOK"}, func(*Context) (worker.Result, error) { return worker.Continue, nil })
	})
}
