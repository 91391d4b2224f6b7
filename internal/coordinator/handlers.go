package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"Hollowmere/internal/game"
	"Hollowmere/internal/proto"
)

func handleBroadcast(_ context.Context, c *Coordinator, req *Request, target *Session) error {
	if !target.State.LoggedIn() {
		return nil
	}
	c.send(target, proto.CodeBroadcast, req.Payload)
	return nil
}

func handleNewline(_ context.Context, c *Coordinator, _ *Request, target *Session) error {
	if target.State.LoggedIn() {
		c.send(target, proto.CodeNewline, nil)
	}
	return nil
}

func handleListSession(_ context.Context, c *Coordinator, req *Request, target *Session) error {
	info := target.info(target == req.Sender)
	if !req.Sender.Admin() && !info.Self {
		info.Peer = ""
	}
	return c.addRecord(req, info)
}

// finalizeCount replies with how many targets the handler acted on.
func finalizeCount(_ context.Context, _ *Coordinator, req *Request) error {
	req.Reply = proto.StatusReply(proto.StatusOK, strconv.Itoa(req.matched))
	return nil
}

// finalizeListing sends the last partial listing frame, then replies with
// the number of records.
func finalizeListing(ctx context.Context, c *Coordinator, req *Request) error {
	if err := c.flushRecords(req); err != nil {
		return err
	}
	return finalizeCount(ctx, c, req)
}

// addRecord appends one record to the sender's listing. A data frame is
// sent whenever the next record would not fit in it.
func (c *Coordinator) addRecord(req *Request, v any) error {
	data, err := proto.Marshal(v)
	if err != nil {
		return err
	}
	if len(data) >= proto.MaxPayload {
		return proto.ErrFrameTooLarge
	}
	if len(req.batch)+len(data)+1 > proto.MaxPayload {
		if err := c.flushRecords(req); err != nil {
			return err
		}
	}
	req.batch = proto.AppendRecord(req.batch, data)
	req.matched++
	return nil
}

// flushRecords sends the pending listing frame to the sender. The sender is
// blocked in its call and draining, so a full mailbox is given time.
func (c *Coordinator) flushRecords(req *Request) error {
	if len(req.batch) == 0 {
		return nil
	}
	batch := req.batch
	req.batch = nil
	if !c.deliver(req.Sender, req.Code, batch, c.opts.WaitTimeout) {
		return proto.ErrTransportClosed
	}
	return nil
}

func handleChangeState(ctx context.Context, c *Coordinator, req *Request, target *Session) error {
	next := proto.State(req.Payload[0])
	switch {
	case !next.Valid():
		req.Reply = proto.StatusReply(proto.StatusFailed, "unknown state")
		return fmt.Errorf("invalid state %d", req.Payload[0])
	case next.LoggedIn():
		// Logged-in states are only reachable through change-user.
		req.Reply = proto.StatusReply(proto.StatusDenied, "use change-user to log in")
		return nil
	case next == proto.StateInit:
		req.Reply = proto.StatusReply(proto.StatusDenied, "INIT does not recur")
		return nil
	}
	if target.State.LoggedIn() {
		if next != proto.StateAuth {
			req.Reply = proto.StatusReply(proto.StatusDenied, "log out first")
			return nil
		}
		user := target.Username
		c.logout(ctx, target)
		c.log.Info().Stringer("session", target.ID).Str("user", user).Msg("logged out")
	}
	target.State = next
	req.Reply = proto.StatusReply(proto.StatusOK, next.String())
	return nil
}

func handleChangeUser(ctx context.Context, c *Coordinator, req *Request, target *Session) error {
	var login proto.Login
	if err := proto.Unmarshal(req.Payload, &login); err != nil {
		req.Reply = proto.StatusReply(proto.StatusFailed, "malformed login")
		return err
	}
	if target.State != proto.StateChecking {
		req.Reply = proto.StatusReply(proto.StatusDenied, "credentials were not checked")
		return nil
	}
	acct, ok := c.accounts.Get(login.Username)
	if !ok {
		req.Reply = proto.StatusReply(proto.StatusNotFound, "no such account")
		return nil
	}

	room := acct.Room
	if _, known := c.world.Room(room); !known {
		room = c.world.Start()
	}
	target.Username = login.Username
	target.State = proto.StateLoggedInUser
	if acct.Admin {
		target.State = proto.StateLoggedInAdmin
	}
	c.enterRoom(target, room)
	c.notifyRoom(room, target, fmt.Sprintf("%s appears.", target.Username))

	now := time.Now().UTC()
	if err := c.accounts.Update(ctx, login.Username, func(a *game.Account) { a.LastLogin = now }); err != nil {
		c.log.Warn().Err(err).Str("user", login.Username).Msg("could not record login time")
	}
	c.log.Info().
		Stringer("session", target.ID).
		Str("user", target.Username).
		Stringer("state", target.State).
		Str("room", string(room)).
		Msg("logged in")
	req.Reply = proto.StatusReply(proto.StatusOK, string([]byte{byte(target.State)}))
	return nil
}

func handleKick(_ context.Context, c *Coordinator, req *Request, target *Session) error {
	id, msg, ok := proto.SplitSessionID(req.Payload)
	if !ok {
		return errors.New("kick payload too short")
	}
	if target.ID != id {
		return nil
	}
	if target == req.Sender {
		req.refused = true
		return nil
	}
	if len(msg) == 0 {
		msg = []byte("You have been disconnected by an administrator.")
	}
	c.send(target, proto.CodeKick, msg)
	c.reap(context.Background(), target, "kicked by "+req.Sender.Username)
	req.matched++
	return nil
}

func finalizeKick(_ context.Context, _ *Coordinator, req *Request) error {
	switch {
	case req.refused:
		req.Reply = proto.StatusReply(proto.StatusRefused, "You cannot kick yourself.")
	case req.matched == 0:
		req.Reply = proto.StatusReply(proto.StatusNotFound, "No such client.")
	default:
		req.Reply = proto.StatusReply(proto.StatusOK, "")
	}
	return nil
}

func handleKickOther(_ context.Context, c *Coordinator, req *Request, target *Session) error {
	c.send(target, proto.CodeKick, []byte("You have been disconnected by an administrator."))
	c.reap(context.Background(), target, "kicked by "+req.Sender.Username)
	req.matched++
	return nil
}

// handleWaitPing pushes a numbered ping to every logged-in target; the
// finalizer then collects acknowledgements for that number.
func handleWaitPing(_ context.Context, c *Coordinator, req *Request, target *Session) error {
	if !target.State.LoggedIn() {
		return nil
	}
	if req.waiting == nil {
		c.waitSeq++
		req.seq = c.waitSeq
		req.waiting = make(map[proto.SessionID]struct{})
	}
	if c.send(target, proto.CodeWait, proto.PutUint32Pair(req.seq, uint32(req.Sender.ID))) {
		req.waiting[target.ID] = struct{}{}
	}
	return nil
}

func finalizeWait(ctx context.Context, c *Coordinator, req *Request) error {
	expected := uint32(len(req.waiting))
	var acked uint32
	if expected > 0 {
		timer := time.NewTimer(c.opts.WaitTimeout)
		defer timer.Stop()
	collect:
		for len(req.waiting) > 0 {
			select {
			case raw := <-c.acks:
				f, err := proto.Decode(raw)
				if err != nil {
					continue
				}
				seq, _, ok := proto.Uint32Pair(f.Payload)
				if !ok || seq != req.seq {
					continue
				}
				if _, pending := req.waiting[f.Sender]; pending {
					delete(req.waiting, f.Sender)
					acked++
				}
			case <-timer.C:
				break collect
			case <-ctx.Done():
				break collect
			}
		}
	}
	if acked < expected {
		c.log.Debug().Uint32("acked", acked).Uint32("expected", expected).Msg("wait timed out")
	}
	req.Reply = proto.PutUint32Pair(acked, expected)
	return nil
}

func handleRoomName(_ context.Context, c *Coordinator, req *Request, target *Session) error {
	room, ok := c.world.Room(target.Room)
	if !ok {
		req.Reply = proto.StatusReply(proto.StatusNotFound, "You are nowhere.")
		return game.ErrRoomNotFound
	}
	req.Reply = proto.StatusReply(proto.StatusOK, room.Name)
	return nil
}

func handleRoomDescription(_ context.Context, c *Coordinator, req *Request, target *Session) error {
	desc, err := c.world.Describe(target.Room)
	if err != nil {
		req.Reply = proto.StatusReply(proto.StatusNotFound, "You are nowhere.")
		return err
	}
	if others := c.occupants(target.Room, target); len(others) > 0 {
		names := make([]string, len(others))
		for i, s := range others {
			names[i] = s.Username
		}
		desc += "\nAlso here: " + strings.Join(names, ", ") + "."
	}
	req.Reply = proto.StatusReply(proto.StatusOK, desc)
	return nil
}

func handleSetRoom(_ context.Context, c *Coordinator, req *Request, target *Session) error {
	dest := game.RoomID(req.Payload)
	room, ok := c.world.Room(dest)
	if !ok {
		req.Reply = proto.StatusReply(proto.StatusNotFound, "No such room.")
		return nil
	}
	c.relocate(target, dest, "vanishes.", "appears.")
	req.Reply = proto.StatusReply(proto.StatusOK, room.Name)
	return nil
}

func handleMove(_ context.Context, c *Coordinator, req *Request, target *Session) error {
	dir, ok := game.ParseDirection(string(req.Payload))
	if !ok {
		req.Reply = proto.StatusReply(proto.StatusFailed, "That is not a direction.")
		return nil
	}
	dest, err := c.world.Exit(target.Room, dir)
	if err != nil {
		req.Reply = proto.StatusReply(proto.StatusFailed, "You can't go that way.")
		return nil
	}
	room, _ := c.world.Room(dest)
	c.relocate(target, dest, "leaves "+string(dir)+".", "arrives.")
	req.Reply = proto.StatusReply(proto.StatusOK, room.Name)
	return nil
}

// relocate moves s to dest and tells the occupants of both rooms.
func (c *Coordinator) relocate(s *Session, dest game.RoomID, leaving, arriving string) {
	from := s.Room
	c.notifyRoom(from, s, s.Username+" "+leaving)
	c.enterRoom(s, dest)
	c.notifyRoom(dest, s, s.Username+" "+arriving)
	c.log.Debug().Stringer("session", s.ID).Str("from", string(from)).Str("to", string(dest)).Msg("moved")
}

func (c *Coordinator) notifyRoom(room game.RoomID, except *Session, msg string) {
	if room == "" {
		return
	}
	for _, s := range c.occupants(room, except) {
		c.send(s, proto.CodeBroadcast, []byte(msg))
	}
}

func finalizeGetAccount(_ context.Context, c *Coordinator, req *Request) error {
	name := string(req.Payload)
	s := req.Sender
	if s.State != proto.StateChecking && !s.Admin() && s.Username != name {
		req.Reply = proto.StatusReply(proto.StatusDenied, "permission denied")
		return nil
	}
	acct, ok := c.accounts.Get(name)
	if !ok {
		req.Reply = proto.StatusReply(proto.StatusNotFound, "")
		return nil
	}
	data, err := proto.Marshal(toWire(name, acct))
	if err != nil {
		req.Reply = proto.StatusReply(proto.StatusFailed, "account record too large")
		return err
	}
	req.Reply = append([]byte{byte(proto.StatusOK)}, data...)
	return nil
}

func finalizeAddAccount(ctx context.Context, c *Coordinator, req *Request) error {
	var in proto.Account
	if err := proto.Unmarshal(req.Payload, &in); err != nil {
		req.Reply = proto.StatusReply(proto.StatusFailed, "malformed account")
		return err
	}
	if err := game.ValidateUsername(in.Username); err != nil {
		req.Reply = proto.StatusReply(proto.StatusFailed, err.Error())
		return nil
	}
	if in.Password == "" {
		req.Reply = proto.StatusReply(proto.StatusFailed, "password hash required")
		return nil
	}
	err := c.accounts.Add(ctx, in.Username, game.Account{Password: in.Password, Admin: in.Admin})
	switch {
	case errors.Is(err, game.ErrAccountExists):
		req.Reply = proto.StatusReply(proto.StatusExists, "User already exists.")
		return nil
	case err != nil:
		req.Reply = proto.StatusReply(proto.StatusFailed, "could not save accounts")
		return err
	}
	c.log.Info().Str("user", in.Username).Bool("admin", in.Admin).Str("by", req.Sender.Username).Msg("account added")
	req.Reply = proto.StatusReply(proto.StatusOK, "")
	return nil
}

func finalizeModifyAccount(ctx context.Context, c *Coordinator, req *Request) error {
	var in proto.Account
	if err := proto.Unmarshal(req.Payload, &in); err != nil {
		req.Reply = proto.StatusReply(proto.StatusFailed, "malformed account")
		return err
	}
	if in.Username == req.Sender.Username && !in.Admin {
		req.Reply = proto.StatusReply(proto.StatusRefused, "You cannot revoke your own admin rights.")
		return nil
	}
	err := c.accounts.Update(ctx, in.Username, func(a *game.Account) {
		if in.Password != "" {
			a.Password = in.Password
		}
		a.Admin = in.Admin
	})
	switch {
	case errors.Is(err, game.ErrAccountNotFound):
		req.Reply = proto.StatusReply(proto.StatusNotFound, "No such user.")
		return nil
	case err != nil:
		req.Reply = proto.StatusReply(proto.StatusFailed, "could not save accounts")
		return err
	}
	// Sessions already logged in as this user pick up the new rights.
	for _, id := range c.liveIDs() {
		s := c.sessions[id]
		if s.Username != in.Username || !s.State.LoggedIn() {
			continue
		}
		s.State = proto.StateLoggedInUser
		if in.Admin {
			s.State = proto.StateLoggedInAdmin
		}
	}
	c.log.Info().Str("user", in.Username).Bool("admin", in.Admin).Str("by", req.Sender.Username).Msg("account modified")
	req.Reply = proto.StatusReply(proto.StatusOK, "")
	return nil
}

func finalizeDeleteAccount(ctx context.Context, c *Coordinator, req *Request) error {
	name := string(req.Payload)
	if name == req.Sender.Username {
		req.Reply = proto.StatusReply(proto.StatusRefused, "You cannot delete your own account.")
		return nil
	}
	err := c.accounts.Delete(ctx, name)
	switch {
	case errors.Is(err, game.ErrAccountNotFound):
		req.Reply = proto.StatusReply(proto.StatusNotFound, "No such user.")
		return nil
	case err != nil:
		req.Reply = proto.StatusReply(proto.StatusFailed, "could not save accounts")
		return err
	}
	for _, id := range c.liveIDs() {
		s := c.sessions[id]
		if s.Username != name {
			continue
		}
		c.send(s, proto.CodeKick, []byte("Your account has been removed."))
		s.Username = ""
		s.State = proto.StateAuth
		c.reap(ctx, s, "account deleted")
	}
	c.log.Info().Str("user", name).Str("by", req.Sender.Username).Msg("account deleted")
	req.Reply = proto.StatusReply(proto.StatusOK, "")
	return nil
}

func finalizeListAccounts(ctx context.Context, c *Coordinator, req *Request) error {
	for _, name := range c.accounts.Names() {
		acct, _ := c.accounts.Get(name)
		wire := toWire(name, acct)
		wire.Password = ""
		err := c.addRecord(req, wire)
		switch {
		case errors.Is(err, proto.ErrTransportClosed):
			return err
		case err != nil:
			c.log.Warn().Err(err).Str("user", name).Msg("account left out of listing")
		}
	}
	return finalizeListing(ctx, c, req)
}

func toWire(name string, a game.Account) proto.Account {
	return proto.Account{
		Username:  name,
		Password:  a.Password,
		Admin:     a.Admin,
		Room:      string(a.Room),
		Inventory: append([]string(nil), a.Inventory...),
		CreatedAt: a.CreatedAt,
		LastLogin: a.LastLogin,
	}
}
