package worker

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
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
	"Hollowmere/internal/proto"
)

type fakeTerm struct {
	in     chan string
	closed chan struct{}
	once   sync.Once

	mu      sync.Mutex
	out     strings.Builder
	echoOff bool
}

func newFakeTerm() *fakeTerm {
	return &fakeTerm{in: make(chan string, 64), closed: make(chan struct{})}
}

func (f *fakeTerm) ReadLine() (string, error) {
	select {
	case line := <-f.in:
		return line, nil
	case <-f.closed:
		return "", io.EOF
	}
}

func (f *fakeTerm) WriteString(s string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out.WriteString(s)
	return nil
}

func (f *fakeTerm) EchoOff() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.echoOff = true
	return nil
}

func (f *fakeTerm) EchoOn() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.echoOff = false
	return nil
}

func (f *fakeTerm) Size() (int, int) { return 80, 24 }

func (f *fakeTerm) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTerm) send(lines ...string) {
	for _, l := range lines {
		f.in <- l
	}
}

func (f *fakeTerm) output() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.out.String()
}

func (f *fakeTerm) waitFor(t *testing.T, substr string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return strings.Contains(f.output(), substr)
	}, 3*time.Second, 5*time.Millisecond, "waiting for %q in:\n%s", substr, f.output())
}

type env struct {
	c      *coordinator.Coordinator
	cancel context.CancelFunc
}

func newEnv(t *testing.T) *env {
	t.Helper()
	game.PasswordCost = bcrypt.MinCost
	t.Cleanup(func() { game.PasswordCost = bcrypt.DefaultCost })

	ctx := context.Background()
	dir := t.TempDir()
	accounts, _ := game.OpenAccounts(ctx, game.NewFileAccountStore(filepath.Join(dir, "accounts.json")))
	for name, admin := range map[string]bool{"alice": true, "bob": false} {
		hash, err := game.HashPassword(name + "-secret")
		require.NoError(t, err)
		require.NoError(t, accounts.Add(ctx, name, game.Account{Password: hash, Admin: admin}))
	}
	world, err := game.LoadWorld(filepath.Join(dir, "world.json"))
	require.NoError(t, err)

	c := coordinator.New(zerolog.Nop(), world, accounts, coordinator.Options{WaitTimeout: 200 * time.Millisecond})
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(runCtx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return &env{c: c, cancel: cancel}
}

// start runs a worker for term and returns a channel carrying its exit error.
func (e *env) start(t *testing.T, term *fakeTerm, dispatch Dispatcher, opts Options) (*Session, <-chan error) {
	t.Helper()
	ep, err := e.c.Attach(context.Background(), "test")
	require.NoError(t, err)
	s := New(term, ep, dispatch, opts)
	errc := make(chan error, 1)
	go func() {
		errc <- s.Run(context.Background())
		e.c.Detach(ep.ID())
		term.Close()
	}()
	return s, errc
}

func waitErr(t *testing.T, errc <-chan error) error {
	t.Helper()
	select {
	case err := <-errc:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not exit")
	}
	return nil
}

// echoDispatcher understands just enough verbs to drive the session.
func echoDispatcher(ctx context.Context, s *Session, line string) (Result, error) {
	switch line {
	case "look":
		reply, err := s.Call(ctx, proto.CodeRoomName, nil)
		if err != nil {
			return Continue, err
		}
		_, name := reply.Status()
		s.Print("\r\n" + name)
	case "logout":
		return Logout, nil
	case "quit":
		return Quit, nil
	case "shout":
		if _, err := s.Call(ctx, proto.CodeBroadcast, []byte(s.Username()+" shouts")); err != nil {
			return Continue, err
		}
	}
	return Continue, nil
}

func TestLoginAndQuit(t *testing.T) {
	e := newEnv(t)
	term := newFakeTerm()
	_, errc := e.start(t, term, echoDispatcher, Options{})

	term.waitFor(t, "HOLLOWMERE")
	term.send("bob", "bob-secret")
	term.waitFor(t, "Village Square")
	term.send("quit")

	require.NoError(t, waitErr(t, errc))
	out := term.output()
	assert.Contains(t, out, "Welcome, ")
	assert.Contains(t, out, "Until next time")
	assert.NotContains(t, out, "bob-secret")
}

func TestThreeFailuresDisconnect(t *testing.T) {
	e := newEnv(t)
	term := newFakeTerm()
	_, errc := e.start(t, term, echoDispatcher, Options{MaxAttempts: 3})

	term.send("bob", "wrong", "nobody", "whatever", "bob", "again")
	err := waitErr(t, errc)
	assert.ErrorIs(t, err, ErrTooManyAttempts)
	assert.Equal(t, 3, strings.Count(term.output(), "Access Denied"))
	assert.Contains(t, term.output(), "Too many failed attempts")
}

func TestSuccessClearsFailureCount(t *testing.T) {
	e := newEnv(t)
	term := newFakeTerm()
	_, errc := e.start(t, term, echoDispatcher, Options{MaxAttempts: 3})

	term.send("bob", "wrong", "bob", "wrong", "bob", "bob-secret")
	term.waitFor(t, "Village Square")
	term.send("logout")
	term.waitFor(t, "You have logged out.")
	term.send("bob", "wrong", "bob", "wrong", "bob", "bob-secret")
	require.Eventually(t, func() bool {
		return strings.Count(term.output(), "Village Square") == 2
	}, 3*time.Second, 5*time.Millisecond)
	term.send("quit")

	require.NoError(t, waitErr(t, errc))
	assert.Equal(t, 4, strings.Count(term.output(), "Access Denied"))
}

func TestPasswordPromptDisablesEcho(t *testing.T) {
	e := newEnv(t)
	term := newFakeTerm()
	_, errc := e.start(t, term, echoDispatcher, Options{})

	term.send("bob")
	term.waitFor(t, "Password: ")
	term.mu.Lock()
	off := term.echoOff
	term.mu.Unlock()
	assert.True(t, off)

	term.send("bob-secret")
	term.waitFor(t, "Village Square")
	term.mu.Lock()
	off = term.echoOff
	term.mu.Unlock()
	assert.False(t, off)
	term.send("quit")
	require.NoError(t, waitErr(t, errc))
}

func TestBroadcastArrivesWhileIdle(t *testing.T) {
	e := newEnv(t)
	idle := newFakeTerm()
	talker := newFakeTerm()
	_, idleErr := e.start(t, idle, echoDispatcher, Options{})
	_, talkErr := e.start(t, talker, echoDispatcher, Options{})

	idle.send("bob", "bob-secret")
	idle.waitFor(t, "Village Square")
	talker.send("alice", "alice-secret")
	talker.waitFor(t, "Village Square")
	talker.send("shout")
	idle.waitFor(t, "alice shouts")
	assert.NotContains(t, talker.output(), "alice shouts")

	idle.send("quit")
	talker.send("quit")
	require.NoError(t, waitErr(t, idleErr))
	require.NoError(t, waitErr(t, talkErr))
}

func TestKickTerminatesWorker(t *testing.T) {
	e := newEnv(t)
	term := newFakeTerm()
	victim, errc := e.start(t, term, echoDispatcher, Options{})
	term.send("bob", "bob-secret")
	term.waitFor(t, "Village Square")

	admin := newFakeTerm()
	kicker := func(ctx context.Context, s *Session, line string) (Result, error) {
		if line != "kick" {
			return echoDispatcher(ctx, s, line)
		}
		reply, err := s.Call(ctx, proto.CodeKick, proto.PutSessionID(victim.ID(), []byte("Be gone.")))
		if err != nil {
			return Continue, err
		}
		st, _ := reply.Status()
		s.Print("\r\nkick " + st.String())
		return Continue, nil
	}
	_, adminErr := e.start(t, admin, kicker, Options{})
	admin.send("alice", "alice-secret")
	admin.waitFor(t, "Village Square")
	admin.send("kick")
	admin.waitFor(t, "kick ok")

	assert.ErrorIs(t, waitErr(t, errc), ErrKicked)
	assert.Contains(t, term.output(), "Be gone.")

	admin.send("quit")
	require.NoError(t, waitErr(t, adminErr))
}

func TestWaitPingIsAcknowledged(t *testing.T) {
	e := newEnv(t)
	term := newFakeTerm()
	_, errc := e.start(t, term, echoDispatcher, Options{})
	term.send("bob", "bob-secret")
	term.waitFor(t, "Village Square")

	waiter := newFakeTerm()
	waitVerb := func(ctx context.Context, s *Session, line string) (Result, error) {
		if line != "wait" {
			return echoDispatcher(ctx, s, line)
		}
		reply, err := s.Call(ctx, proto.CodeWait, nil)
		if err != nil {
			return Continue, err
		}
		acked, expected, _ := proto.Uint32Pair(reply.Payload)
		s.Print(fmt.Sprintf("\r\nacked %d/%d", acked, expected))
		return Continue, nil
	}
	_, waitErrc := e.start(t, waiter, waitVerb, Options{})
	waiter.send("alice", "alice-secret")
	waiter.waitFor(t, "Village Square")
	waiter.send("wait")
	waiter.waitFor(t, "acked 1/1")

	term.send("quit")
	waiter.send("quit")
	require.NoError(t, waitErr(t, errc))
	require.NoError(t, waitErr(t, waitErrc))
}

func TestShutdownDuringLoginDelayEndsAtOnce(t *testing.T) {
	e := newEnv(t)
	term := newFakeTerm()
	_, errc := e.start(t, term, echoDispatcher, Options{AuthDelay: time.Minute})
	term.send("bob", "wrong")
	term.waitFor(t, "Password: ")
	time.Sleep(100 * time.Millisecond)

	e.cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrKicked)
	case <-time.After(2 * time.Second):
		t.Fatal("kick was held back by the login delay")
	}
	assert.Contains(t, term.output(), "shutting down")
	assert.NotContains(t, term.output(), "Access Denied")
}
