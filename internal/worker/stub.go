package worker

import (
	"context"

	"Hollowmere/internal/game"
	"Hollowmere/internal/proto"
)

// Reply is everything the coordinator returned for one request: data frames
// tagged with the request's code, then the completion payload.
type Reply struct {
	Frames  []proto.Frame
	Payload []byte
}

// Status parses the completion payload as a status reply.
func (r *Reply) Status() (proto.Status, string) {
	return proto.ParseStatus(r.Payload)
}

// Call sends one request on behalf of a command and blocks until the
// coordinator completes it. Unsolicited frames that arrive meanwhile are
// handled in arrival order; a kick ends the call with ErrKicked. Sessions
// other than administrators are held to the per-second budget, which counts
// coordinator calls rather than typed lines.
func (s *Session) Call(ctx context.Context, code proto.Code, payload []byte) (*Reply, error) {
	if !s.Admin() && !s.limiter.Allow(s.opts.Now()) {
		s.Print(game.Notice("You are sending commands too quickly. Please wait.") + "\r\n")
		return nil, ErrRateLimited
	}
	return s.request(ctx, code, payload)
}

// request is Call without the rate limit, used by the login state machine.
func (s *Session) request(ctx context.Context, code proto.Code, payload []byte) (*Reply, error) {
	if err := s.ep.Send(ctx, code, payload); err != nil {
		return nil, err
	}
	reply := &Reply{}
	for {
		f, err := s.ep.Recv(ctx)
		if err != nil {
			return nil, err
		}
		switch {
		case f.Code == proto.CodeComplete:
			reply.Payload = f.Payload
			return reply, nil
		case f.Code.Push():
			if err := s.handlePush(f); err != nil {
				return nil, err
			}
		default:
			reply.Frames = append(reply.Frames, f)
		}
	}
}
