// Package server accepts telnet connections and runs one worker per
// connection against a shared coordinator.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/charmap"

	"Hollowmere/internal/coordinator"
	"Hollowmere/internal/game"
	"Hollowmere/internal/proto"
	"Hollowmere/internal/worker"
)

const lockedOutMessage = "Too many failed login attempts from your address. Try again later."

// Options configures connection handling.
type Options struct {
	// Charset translates terminal traffic. Nil means UTF-8.
	Charset *charmap.Charmap
	// Lockout is how long a host is refused after one of its connections
	// exhausted its login attempts. Zero disables lockouts.
	Lockout time.Duration
	// WriteTimeout disconnects a client that accepts no output for that
	// long. Zero disables it.
	WriteTimeout time.Duration
	// DrainTimeout is how long a worker may keep its connection after the
	// coordinator dropped its session. Defaults to two seconds.
	DrainTimeout time.Duration
	Worker       worker.Options
	Logger       zerolog.Logger
}

// Server owns the listener side of the process.
type Server struct {
	log      zerolog.Logger
	coord    *coordinator.Coordinator
	dispatch worker.Dispatcher
	opts     Options
	lockouts *cache.Cache
	workers  sync.WaitGroup
}

// New prepares a server for coord. dispatch runs the commands of logged-in
// sessions.
func New(coord *coordinator.Coordinator, dispatch worker.Dispatcher, opts Options) *Server {
	cleanup := opts.Lockout
	if cleanup <= 0 {
		cleanup = time.Minute
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = 2 * time.Second
	}
	opts.Worker.Logger = opts.Logger
	return &Server{
		log:      opts.Logger.With().Str("component", "server").Logger(),
		coord:    coord,
		dispatch: dispatch,
		opts:     opts,
		lockouts: cache.New(opts.Lockout, cleanup),
	}
}

// Serve runs the coordinator and the accept loop until ctx is cancelled or
// the listener fails, then waits for every worker to finish. ln is closed on
// return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.dispatch == nil {
		return fmt.Errorf("dispatcher must not be nil")
	}
	g, gctx := errgroup.WithContext(ctx)
	// Workers outlive cancellation: the coordinator kicks every session on
	// shutdown and each worker exits on that frame.
	workerCtx := context.WithoutCancel(gctx)

	g.Go(func() error {
		return s.coord.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		_ = ln.Close()
		return nil
	})
	g.Go(func() error {
		s.log.Info().Stringer("addr", ln.Addr()).Msg("listening (telnet + ANSI ready)")
		err := acceptConnections(s.log, ln, func(conn net.Conn) {
			s.workers.Add(1)
			go s.handle(workerCtx, conn)
		})
		if gctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("accept: %w", err)
	})

	err := g.Wait()
	s.workers.Wait()
	return err
}

// Locked reports whether host is currently refused.
func (s *Server) Locked(host string) bool {
	_, found := s.lockouts.Get(host)
	return found
}

func (s *Server) lock(host string) {
	if s.opts.Lockout <= 0 {
		return
	}
	s.lockouts.Set(host, struct{}{}, cache.DefaultExpiration)
	s.log.Warn().Str("host", host).Dur("for", s.opts.Lockout).Msg("address locked out")
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer s.workers.Done()

	peer := conn.RemoteAddr().String()
	host := hostOf(peer)
	log := s.log.With().Str("peer", peer).Logger()

	if s.Locked(host) {
		log.Info().Msg("refusing locked out address")
		_, _ = conn.Write([]byte(game.Notice(lockedOutMessage) + "\r\n"))
		_ = conn.Close()
		return
	}

	term := game.NewTelnetSession(conn,
		game.WithCharset(s.opts.Charset),
		game.WithWriteTimeout(s.opts.WriteTimeout))
	defer term.Close()

	ep, err := s.coord.Attach(ctx, peer)
	if err != nil {
		log.Warn().Err(err).Msg("cannot attach session")
		return
	}
	defer s.coord.Detach(ep.ID())

	finished := make(chan struct{})
	defer close(finished)
	go s.reclaim(term, ep, finished)

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Stringer("session", ep.ID()).Msg("worker crashed")
		}
	}()

	err = worker.New(term, ep, s.dispatch, s.opts.Worker).Run(ctx)
	switch {
	case err == nil:
	case errors.Is(err, worker.ErrTooManyAttempts):
		s.lock(host)
	case errors.Is(err, worker.ErrKicked),
		errors.Is(err, worker.ErrInterrupted),
		errors.Is(err, proto.ErrTransportClosed),
		errors.Is(err, context.Canceled):
		log.Debug().Err(err).Stringer("session", ep.ID()).Msg("session ended")
	default:
		log.Info().Err(err).Stringer("session", ep.ID()).Str("terminal", term.Terminal()).Msg("session ended")
	}
}

// reclaim closes term once the coordinator has dropped the session and the
// worker has not finished within DrainTimeout, unblocking a worker stuck
// writing to a client that stopped reading.
func (s *Server) reclaim(term *game.TelnetSession, ep *proto.Endpoint, finished <-chan struct{}) {
	select {
	case <-finished:
		return
	case <-ep.Gone():
	}
	t := time.NewTimer(s.opts.DrainTimeout)
	defer t.Stop()
	select {
	case <-finished:
	case <-t.C:
		s.log.Info().Stringer("session", ep.ID()).Msg("closing connection of a dropped session")
		_ = term.Close()
	}
}

func hostOf(peer string) string {
	host, _, err := net.SplitHostPort(peer)
	if err != nil {
		return peer
	}
	return host
}
