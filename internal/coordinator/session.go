package coordinator

import (
	"context"
	"sort"
	"time"

	"Hollowmere/internal/game"
	"Hollowmere/internal/proto"
)

// Session is the coordinator's record of one connected worker. Only the
// coordinator goroutine reads or writes it.
type Session struct {
	ID          proto.SessionID
	State       proto.State
	Room        game.RoomID
	Username    string
	Peer        string
	ConnectedAt time.Time

	port *proto.Port
}

// Admin reports whether the session is logged in with administrator rights.
func (s *Session) Admin() bool {
	return s.State == proto.StateLoggedInAdmin
}

func (s *Session) info(self bool) proto.SessionInfo {
	return proto.SessionInfo{
		ID:    s.ID,
		State: s.State,
		User:  s.Username,
		Room:  string(s.Room),
		Peer:  s.Peer,
		Self:  self,
		Since: s.ConnectedAt,
	}
}

func (c *Coordinator) addSession(peer string) (*Session, *proto.Endpoint) {
	c.nextID++
	if c.nextID == uint32(proto.Coordinator) {
		c.nextID++
	}
	id := proto.SessionID(c.nextID)
	port, ep := proto.NewLink(id, c.inbox, c.acks, c.stopped, c.opts.MailboxSize)
	s := &Session{
		ID:          id,
		State:       proto.StateInit,
		Peer:        peer,
		ConnectedAt: time.Now(),
		port:        port,
	}
	c.sessions[id] = s
	return s, ep
}

// liveIDs snapshots the table in a stable order for fan-out.
func (c *Coordinator) liveIDs() []proto.SessionID {
	ids := make([]proto.SessionID, 0, len(c.sessions))
	for id := range c.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (c *Coordinator) enterRoom(s *Session, room game.RoomID) {
	c.leaveRoom(s)
	s.Room = room
	members, ok := c.rooms[room]
	if !ok {
		members = make(map[proto.SessionID]*Session)
		c.rooms[room] = members
	}
	members[s.ID] = s
}

func (c *Coordinator) leaveRoom(s *Session) {
	if s.Room == "" {
		return
	}
	if members, ok := c.rooms[s.Room]; ok {
		delete(members, s.ID)
		if len(members) == 0 {
			delete(c.rooms, s.Room)
		}
	}
	s.Room = ""
}

// occupants lists the logged-in sessions in room other than except.
func (c *Coordinator) occupants(room game.RoomID, except *Session) []*Session {
	members := c.rooms[room]
	out := make([]*Session, 0, len(members))
	for _, s := range members {
		if s != except && s.State.LoggedIn() {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// logout returns a logged-in session to an anonymous one, remembering its
// room on the account.
func (c *Coordinator) logout(ctx context.Context, s *Session) {
	if !s.State.LoggedIn() {
		return
	}
	c.saveRoom(ctx, s)
	c.leaveRoom(s)
	s.Username = ""
	s.State = proto.StateAuth
}

func (c *Coordinator) saveRoom(ctx context.Context, s *Session) {
	if s.Username == "" || s.Room == "" {
		return
	}
	room := s.Room
	err := c.accounts.Update(ctx, s.Username, func(a *game.Account) { a.Room = room })
	if err != nil {
		c.log.Warn().Err(err).Str("user", s.Username).Msg("could not save last room")
	}
}

// reap removes a session from the table, releases its room and closes its
// mailbox. It runs on the coordinator goroutine, so no request observes a
// half-removed session.
func (c *Coordinator) reap(ctx context.Context, s *Session, reason string) {
	if cur, ok := c.sessions[s.ID]; !ok || cur != s {
		return
	}
	if s.State.LoggedIn() {
		c.saveRoom(ctx, s)
	}
	c.leaveRoom(s)
	delete(c.sessions, s.ID)
	s.port.Close()
	c.log.Info().
		Stringer("session", s.ID).
		Str("user", s.Username).
		Str("reason", reason).
		Int("live", len(c.sessions)).
		Msg("session reaped")
}
