// Package worker runs one connected client: the login state machine, the
// command loop, and the client stub through which every command reaches the
// coordinator.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"Hollowmere/internal/game"
	"Hollowmere/internal/proto"
)

var (
	// ErrKicked reports that the coordinator forced the session off.
	ErrKicked = errors.New("kicked")
	// ErrTooManyAttempts reports that the login attempt ceiling was reached.
	ErrTooManyAttempts = errors.New("too many failed login attempts")
	// ErrRateLimited is returned by Call when the session exceeded its
	// per-second budget. No frame was sent.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrInterrupted reports a telnet interrupt from the peer.
	ErrInterrupted = game.ErrInterrupted
)

// Terminal is the line-oriented connection a worker talks to.
type Terminal interface {
	ReadLine() (string, error)
	WriteString(string) error
	EchoOff() error
	EchoOn() error
	Size() (int, int)
	Close() error
}

// Result tells the command loop what to do after a command.
type Result int

const (
	Continue Result = iota
	Logout
	Quit
)

// Dispatcher executes one input line for a logged-in session.
type Dispatcher func(ctx context.Context, s *Session, line string) (Result, error)

// Options tunes authentication and flow control.
type Options struct {
	MaxAttempts int
	AuthDelay   time.Duration
	RateLimit   int
	Logger      zerolog.Logger
	// Now is the clock used by the rate limiter.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.AuthDelay < 0 {
		o.AuthDelay = 0
	}
	if o.RateLimit <= 0 {
		o.RateLimit = 10
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type lineResult struct {
	line string
	err  error
}

// Session is the worker side of one client. It holds its own cached state
// and the transport endpoint; nothing the coordinator owns is reachable
// from here.
type Session struct {
	log      zerolog.Logger
	term     Terminal
	ep       *proto.Endpoint
	opts     Options
	dispatch Dispatcher
	limiter  *RateLimiter

	state    proto.State
	username string

	lines chan lineResult
	quit  chan struct{}
}

// New binds a terminal to its coordinator endpoint.
func New(term Terminal, ep *proto.Endpoint, dispatch Dispatcher, opts Options) *Session {
	opts = opts.withDefaults()
	return &Session{
		log:      opts.Logger.With().Str("component", "worker").Stringer("session", ep.ID()).Logger(),
		term:     term,
		ep:       ep,
		opts:     opts,
		dispatch: dispatch,
		limiter:  NewRateLimiter(opts.RateLimit),
		state:    proto.StateInit,
		lines:    make(chan lineResult),
		quit:     make(chan struct{}),
	}
}

func (s *Session) ID() proto.SessionID { return s.ep.ID() }

func (s *Session) State() proto.State { return s.state }

func (s *Session) Username() string { return s.username }

// Admin reports whether the session is logged in as an administrator.
func (s *Session) Admin() bool { return s.state == proto.StateLoggedInAdmin }

// Width is the client's terminal width, or zero when unknown.
func (s *Session) Width() int {
	w, _ := s.term.Size()
	return w
}

// Print writes msg to the terminal. Write errors surface on the next read.
func (s *Session) Print(msg string) {
	_ = s.term.WriteString(game.Terminated(msg))
}

// Run drives the session until the client quits, is kicked, or the
// transport closes. It never closes the terminal.
func (s *Session) Run(ctx context.Context) error {
	go s.readLines()
	defer close(s.quit)

	s.Print(game.Style(game.LoginBanner, game.AnsiMagenta, game.AnsiBold) + "\r\n")
	s.Print(game.Style(game.LoginTagline, game.AnsiItalic, game.AnsiDim) + "\r\n")
	if err := s.setState(ctx, proto.StateAuth); err != nil {
		return err
	}

	for {
		if err := s.authenticate(ctx); err != nil {
			if errors.Is(err, ErrTooManyAttempts) {
				s.Print(game.Notice("Too many failed attempts. Goodbye.") + "\r\n")
			}
			return err
		}
		s.Print("\r\nWelcome, " + game.HighlightName(s.username) + "!\r\n")
		res, err := s.commandLoop(ctx)
		if err != nil {
			return err
		}
		if res == Quit {
			s.Print("\r\nUntil next time, " + game.HighlightName(s.username) + ".\r\n")
			s.log.Info().Str("user", s.username).Msg("quit")
			return nil
		}
		s.log.Info().Str("user", s.username).Msg("logged out")
		if err := s.setState(ctx, proto.StateAuth); err != nil {
			return err
		}
		s.username = ""
		s.Print("\r\nYou have logged out.\r\n")
	}
}

func (s *Session) readLines() {
	for {
		line, err := s.term.ReadLine()
		select {
		case s.lines <- lineResult{line: line, err: err}:
		case <-s.quit:
			return
		}
		if err != nil {
			return
		}
	}
}

// readLine waits for the next input line, handling pushes from the
// coordinator while idle.
func (s *Session) readLine(ctx context.Context) (string, error) {
	for {
		select {
		case res := <-s.lines:
			return res.line, res.err
		case raw, ok := <-s.ep.Frames():
			f, err := s.receive(raw, ok)
			if err != nil {
				return "", err
			}
			if s.state.LoggedIn() && f.Code == proto.CodeBroadcast {
				s.Print(game.Prompt())
			}
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// receive acts on one frame taken from the mailbox outside a call. Only
// pushes are expected there; anything else is dropped.
func (s *Session) receive(raw []byte, ok bool) (proto.Frame, error) {
	if !ok {
		return proto.Frame{}, proto.ErrTransportClosed
	}
	f, err := proto.Decode(raw)
	if err != nil {
		return f, err
	}
	if !f.Code.Push() {
		s.log.Debug().Stringer("code", f.Code).Msg("dropping stray frame")
		return f, nil
	}
	return f, s.handlePush(f)
}

func (s *Session) handlePush(f proto.Frame) error {
	switch f.Code {
	case proto.CodeBroadcast:
		s.Print("\r\n" + string(f.Payload))
	case proto.CodeNewline:
		s.Print("\r\n")
	case proto.CodeWait:
		s.ep.Ack(f.Payload)
	case proto.CodeKick:
		s.Print(game.Notice(string(f.Payload)) + "\r\n")
		s.log.Info().Str("user", s.username).Str("message", string(f.Payload)).Msg("kicked")
		return ErrKicked
	}
	return nil
}

func (s *Session) commandLoop(ctx context.Context) (Result, error) {
	if _, err := s.dispatch(ctx, s, "look"); err != nil && !errors.Is(err, ErrRateLimited) {
		return Quit, err
	}
	for {
		s.Print(game.Prompt())
		line, err := s.readLine(ctx)
		if err != nil {
			return Quit, err
		}
		line = game.Trim(line)
		if line == "" {
			continue
		}
		res, err := s.dispatch(ctx, s, line)
		switch {
		case errors.Is(err, ErrRateLimited):
			continue
		case err != nil:
			return Quit, err
		}
		if res != Continue {
			return res, nil
		}
	}
}

// setState records a state change with the coordinator, which owns the
// authoritative copy.
func (s *Session) setState(ctx context.Context, st proto.State) error {
	reply, err := s.request(ctx, proto.CodeChangeState, []byte{byte(st)})
	if err != nil {
		return err
	}
	if status, msg := reply.Status(); status != proto.StatusOK {
		return fmt.Errorf("change state to %s: %s: %s", st, status, msg)
	}
	s.state = st
	return nil
}
