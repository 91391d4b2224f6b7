// Package coordinator owns every piece of shared mutable state: the world,
// the account table and the session table. Workers reach it only by sending
// frames; one goroutine processes those frames one at a time, so no lock
// guards world or account state.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"Hollowmere/internal/game"
	"Hollowmere/internal/proto"
)

// ErrStopped is returned by Attach once the coordinator has shut down.
var ErrStopped = errors.New("coordinator stopped")

// Options tunes queue sizes and timeouts.
type Options struct {
	// MailboxSize bounds the frames queued for one worker. A worker that
	// falls this far behind is reaped.
	MailboxSize int
	// InboxSize bounds requests queued from all workers.
	InboxSize int
	// WaitTimeout bounds how long a wait request collects acknowledgements.
	WaitTimeout time.Duration
	// ShutdownMessage is pushed to every session on shutdown.
	ShutdownMessage string
}

func (o Options) withDefaults() Options {
	if o.MailboxSize <= 0 {
		o.MailboxSize = 256
	}
	if o.InboxSize <= 0 {
		o.InboxSize = 1024
	}
	if o.WaitTimeout <= 0 {
		o.WaitTimeout = 2 * time.Second
	}
	if o.ShutdownMessage == "" {
		o.ShutdownMessage = "The server is shutting down. Farewell."
	}
	return o
}

type attachRequest struct {
	peer  string
	reply chan attachResult
}

type attachResult struct {
	id proto.SessionID
	ep *proto.Endpoint
}

type Coordinator struct {
	log      zerolog.Logger
	opts     Options
	world    *game.World
	accounts *game.Accounts

	descriptors map[proto.Code]Descriptor
	sessions    map[proto.SessionID]*Session
	rooms       map[game.RoomID]map[proto.SessionID]*Session
	nextID      uint32
	waitSeq     uint32

	inbox   chan []byte
	acks    chan []byte
	attachC chan attachRequest
	detachC chan proto.SessionID
	stopped chan struct{}

	runOnce      sync.Once
	shutdownOnce sync.Once
	shutdownErr  error
}

// New builds a coordinator that takes ownership of world and accounts. The
// caller must not touch either afterwards.
func New(log zerolog.Logger, world *game.World, accounts *game.Accounts, opts Options) *Coordinator {
	opts = opts.withDefaults()
	return &Coordinator{
		log:         log.With().Str("component", "coordinator").Logger(),
		opts:        opts,
		world:       world,
		accounts:    accounts,
		descriptors: defaultDescriptors(),
		sessions:    make(map[proto.SessionID]*Session),
		rooms:       make(map[game.RoomID]map[proto.SessionID]*Session),
		inbox:       make(chan []byte, opts.InboxSize),
		acks:        make(chan []byte, opts.MailboxSize),
		attachC:     make(chan attachRequest),
		detachC:     make(chan proto.SessionID, 64),
		stopped:     make(chan struct{}),
	}
}

// Register overrides or adds the descriptor for code. It must be called
// before Run.
func (c *Coordinator) Register(code proto.Code, d Descriptor) {
	c.descriptors[code] = d
}

// Done is closed once shutdown has completed.
func (c *Coordinator) Done() <-chan struct{} {
	return c.stopped
}

// Attach creates a session in state INIT for a newly accepted peer and
// returns the worker's end of its link.
func (c *Coordinator) Attach(ctx context.Context, peer string) (*proto.Endpoint, error) {
	req := attachRequest{peer: peer, reply: make(chan attachResult, 1)}
	select {
	case c.attachC <- req:
	case <-c.stopped:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-req.reply:
		return res.ep, nil
	case <-c.stopped:
		return nil, ErrStopped
	}
}

// Detach reports that the worker for id has terminated.
func (c *Coordinator) Detach(id proto.SessionID) {
	select {
	case c.detachC <- id:
	case <-c.stopped:
	}
}

// Run processes attach, detach and request events until ctx is cancelled,
// then shuts down. It must be called exactly once.
func (c *Coordinator) Run(ctx context.Context) error {
	started := false
	c.runOnce.Do(func() { started = true })
	if !started {
		return fmt.Errorf("coordinator already running")
	}
	c.log.Info().Msg("coordinator started")
	for {
		select {
		case <-ctx.Done():
			return c.shutdown()
		case req := <-c.attachC:
			s, ep := c.addSession(req.peer)
			req.reply <- attachResult{id: s.ID, ep: ep}
			c.log.Info().Stringer("session", s.ID).Str("peer", req.peer).Int("live", len(c.sessions)).Msg("session attached")
		case id := <-c.detachC:
			if s, ok := c.sessions[id]; ok {
				c.reap(ctx, s, "worker exited")
			}
		case raw := <-c.inbox:
			c.handleFrame(ctx, raw)
		}
	}
}

func (c *Coordinator) handleFrame(ctx context.Context, raw []byte) {
	f, err := proto.Decode(raw)
	if err != nil {
		c.log.Warn().Err(err).Int("bytes", len(raw)).Msg("dropping undecodable frame")
		return
	}
	sender, ok := c.sessions[f.Sender]
	if !ok {
		c.log.Debug().Stringer("session", f.Sender).Stringer("code", f.Code).Msg("request from reaped session")
		return
	}
	c.Submit(ctx, sender, f.Code, f.Payload)
}

// Submit runs one request to completion. Whatever happens, the sender
// receives exactly one completion frame.
func (c *Coordinator) Submit(ctx context.Context, sender *Session, code proto.Code, payload []byte) {
	req := &Request{Sender: sender, Code: code, Payload: payload}
	defer c.complete(req)

	d, ok := c.descriptors[code]
	switch {
	case !ok:
		c.log.Debug().Stringer("session", sender.ID).Stringer("code", code).Msg("unknown command code")
		return
	case d.NeedsPayload && len(payload) == 0:
		c.log.Debug().Stringer("session", sender.ID).Stringer("code", code).Msg("missing payload")
		return
	case !d.Access.permits(sender):
		c.log.Debug().Stringer("session", sender.ID).Stringer("code", code).Stringer("state", sender.State).Msg("request denied")
		req.Reply = proto.StatusReply(proto.StatusDenied, "permission denied")
		return
	}

	if d.Handle != nil {
		for _, target := range c.targets(d.Addressing, sender) {
			t, live := c.sessions[target]
			if !live {
				continue
			}
			c.invoke(code, t.ID, func() error { return d.Handle(ctx, c, req, t) })
		}
	}
	if d.Finalize != nil {
		c.invoke(code, sender.ID, func() error { return d.Finalize(ctx, c, req) })
	}
}

func (c *Coordinator) targets(a Addressing, sender *Session) []proto.SessionID {
	switch a {
	case AddressSenderOnly:
		return []proto.SessionID{sender.ID}
	case AddressAll:
		return c.liveIDs()
	case AddressAllButSender:
		ids := c.liveIDs()
		out := ids[:0]
		for _, id := range ids {
			if id != sender.ID {
				out = append(out, id)
			}
		}
		return out
	}
	return nil
}

// invoke isolates one handler call: an error or panic is logged and the
// fan-out carries on.
func (c *Coordinator) invoke(code proto.Code, target proto.SessionID, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().
				Stringer("code", code).
				Stringer("target", target).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("handler panicked")
		}
	}()
	if err := fn(); err != nil {
		c.log.Debug().Err(err).Stringer("code", code).Stringer("target", target).Msg("handler failed")
	}
}

func (c *Coordinator) complete(req *Request) {
	if _, live := c.sessions[req.Sender.ID]; !live {
		return
	}
	reply := req.Reply
	if len(reply) > proto.MaxPayload {
		reply = reply[:proto.MaxPayload]
	}
	c.send(req.Sender, proto.CodeComplete, reply)
}

// send queues a frame for s without blocking. A session whose mailbox is
// full or closed is reaped and the frame dropped.
func (c *Coordinator) send(s *Session, code proto.Code, payload []byte) bool {
	return c.deliver(s, code, payload, 0)
}

// deliver is send with patience: a full mailbox gets that long to drain
// before the session is reaped.
func (c *Coordinator) deliver(s *Session, code proto.Code, payload []byte, patience time.Duration) bool {
	frame, err := proto.Encode(proto.Coordinator, code, payload)
	if err != nil {
		c.log.Warn().Err(err).Stringer("session", s.ID).Stringer("code", code).Msg("cannot encode frame")
		return false
	}
	var ok bool
	if patience > 0 {
		ok = s.port.DeliverWait(frame, patience)
	} else {
		ok = s.port.Deliver(frame)
	}
	if ok {
		return true
	}
	if _, live := c.sessions[s.ID]; live {
		c.reap(context.Background(), s, "mailbox full")
	}
	return false
}

// shutdown tells every worker to leave, closes their mailboxes and flushes
// world and account state. It runs at most once.
func (c *Coordinator) shutdown() error {
	c.shutdownOnce.Do(func() {
		ctx := context.Background()
		msg := []byte(c.opts.ShutdownMessage)
		for _, id := range c.liveIDs() {
			s := c.sessions[id]
			c.send(s, proto.CodeKick, msg)
			c.reap(ctx, s, "shutdown")
		}
		var errs []error
		if err := c.accounts.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush accounts: %w", err))
		}
		if err := c.world.Save(); err != nil {
			errs = append(errs, fmt.Errorf("save world: %w", err))
		}
		c.shutdownErr = errors.Join(errs...)
		close(c.stopped)
		if c.shutdownErr != nil {
			c.log.Error().Err(c.shutdownErr).Msg("coordinator stopped with errors")
		} else {
			c.log.Info().Msg("coordinator stopped; state flushed")
		}
	})
	return c.shutdownErr
}
