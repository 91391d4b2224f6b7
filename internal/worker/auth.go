package worker

import (
	"context"
	"errors"
	"time"

	"Hollowmere/internal/game"
	"Hollowmere/internal/proto"
)

// authenticate runs login attempts until one succeeds or the ceiling is
// reached. The failure count starts over on every call.
func (s *Session) authenticate(ctx context.Context) error {
	failures := 0
	for {
		ok, err := s.attempt(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		failures++
		if err := s.pause(ctx, s.opts.AuthDelay); err != nil {
			return err
		}
		if err := s.setState(ctx, proto.StateAuthFailed); err != nil {
			return err
		}
		s.Print(game.Style("\r\nAccess Denied\r\n", game.AnsiRed, game.AnsiBold))
		if failures >= s.opts.MaxAttempts {
			s.log.Warn().Int("attempts", failures).Msg("login attempt ceiling reached")
			return ErrTooManyAttempts
		}
		if err := s.setState(ctx, proto.StateAuth); err != nil {
			return err
		}
	}
}

// attempt reads one username and password pair and tries to log in with it.
func (s *Session) attempt(ctx context.Context) (bool, error) {
	var name string
	for name == "" {
		s.Print("\r\nUsername: ")
		line, err := s.readLine(ctx)
		if err != nil {
			return false, err
		}
		name = game.Trim(line)
	}

	if err := s.term.EchoOff(); err != nil {
		return false, err
	}
	s.Print("Password: ")
	pass, err := s.readLine(ctx)
	_ = s.term.EchoOn()
	s.Print("\r\n")
	if err != nil {
		return false, err
	}

	if err := s.setState(ctx, proto.StateChecking); err != nil {
		return false, err
	}
	acct, err := s.fetchAccount(ctx, name)
	if err != nil {
		return false, err
	}
	if acct == nil || !game.CheckPassword(acct.Password, pass) {
		s.log.Info().Str("user", name).Msg("login failed")
		return false, nil
	}

	payload, err := proto.Marshal(proto.Login{Username: name, Admin: acct.Admin})
	if err != nil {
		return false, err
	}
	reply, err := s.request(ctx, proto.CodeChangeUser, payload)
	if err != nil {
		return false, err
	}
	status, detail := reply.Status()
	if status != proto.StatusOK || len(detail) != 1 {
		s.log.Warn().Str("user", name).Stringer("status", status).Msg("coordinator rejected login")
		return false, nil
	}
	s.username = name
	s.state = proto.State(detail[0])
	s.log.Info().Str("user", name).Stringer("state", s.state).Msg("logged in")
	return true, nil
}

// fetchAccount returns nil when the account does not exist.
func (s *Session) fetchAccount(ctx context.Context, name string) (*proto.Account, error) {
	reply, err := s.request(ctx, proto.CodeGetAccount, []byte(name))
	if err != nil {
		return nil, err
	}
	status, body := reply.Status()
	switch status {
	case proto.StatusOK:
	case proto.StatusNotFound:
		return nil, nil
	default:
		return nil, errors.New("account lookup " + status.String())
	}
	var acct proto.Account
	if err := proto.Unmarshal([]byte(body), &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

// pause waits out the failed-login delay. Pushes are still acted on, so a
// kick ends the session without waiting for the delay.
func (s *Session) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			return nil
		case raw, ok := <-s.ep.Frames():
			if _, err := s.receive(raw, ok); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
