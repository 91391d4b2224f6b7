package proto

import (
	"context"
	"sync"
	"time"
)

// Port is the coordinator's handle on one worker's mailbox. The coordinator
// is the only sender on the mailbox, so it alone may close it.
type Port struct {
	id      SessionID
	mu      sync.Mutex
	mailbox chan []byte
	gone    chan struct{}
	closed  bool
}

// Endpoint is the worker's side of a link. It holds nothing but channels:
// no coordinator state is reachable through it.
type Endpoint struct {
	id      SessionID
	inbox   chan<- []byte
	acks    chan<- []byte
	mailbox <-chan []byte
	gone    <-chan struct{}
	done    <-chan struct{}
}

// NewLink creates a bounded mailbox for session id. Requests from the
// endpoint go to inbox, wait acknowledgements to acks; done is closed when
// the coordinator stops.
func NewLink(id SessionID, inbox, acks chan<- []byte, done <-chan struct{}, size int) (*Port, *Endpoint) {
	if size <= 0 {
		size = 1
	}
	mailbox := make(chan []byte, size)
	gone := make(chan struct{})
	port := &Port{id: id, mailbox: mailbox, gone: gone}
	ep := &Endpoint{id: id, inbox: inbox, acks: acks, mailbox: mailbox, gone: gone, done: done}
	return port, ep
}

// ID returns the session the port delivers to.
func (p *Port) ID() SessionID {
	return p.id
}

// Deliver queues one frame without blocking. It returns false when the
// mailbox is full or already closed.
func (p *Port) Deliver(frame []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.mailbox <- frame:
		return true
	default:
		return false
	}
}

// DeliverWait queues one frame, waiting up to timeout for room in the
// mailbox. Only use it for a receiver known to be draining.
func (p *Port) DeliverWait(frame []byte, timeout time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.mailbox <- frame:
		return true
	default:
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case p.mailbox <- frame:
		return true
	case <-t.C:
		return false
	}
}

// Close closes the mailbox. Safe to call more than once.
func (p *Port) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.mailbox)
	close(p.gone)
}

// ID returns the session identity stamped on every outgoing frame.
func (e *Endpoint) ID() SessionID {
	return e.id
}

// Send submits one request frame to the coordinator.
func (e *Endpoint) Send(ctx context.Context, code Code, payload []byte) error {
	frame, err := Encode(e.id, code, payload)
	if err != nil {
		return err
	}
	select {
	case <-e.done:
		return ErrTransportClosed
	default:
	}
	select {
	case e.inbox <- frame:
		return nil
	case <-e.done:
		return ErrTransportClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ack answers a wait ping. Acknowledgements are best effort and never block.
func (e *Endpoint) Ack(payload []byte) {
	frame, err := Encode(e.id, CodeWait, payload)
	if err != nil {
		return
	}
	select {
	case e.acks <- frame:
	default:
	}
}

// Gone is closed once the coordinator has dropped the session, even while
// frames are still queued in the mailbox.
func (e *Endpoint) Gone() <-chan struct{} {
	return e.gone
}

// Frames exposes the raw mailbox for callers that need to select on it.
func (e *Endpoint) Frames() <-chan []byte {
	return e.mailbox
}

// Recv blocks for the next frame from the coordinator.
func (e *Endpoint) Recv(ctx context.Context) (Frame, error) {
	select {
	case raw, ok := <-e.mailbox:
		if !ok {
			return Frame{}, ErrTransportClosed
		}
		return Decode(raw)
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}
