package server

import (
	"errors"
	"net"
	"os"
	"time"

	"github.com/rs/zerolog"
)

const (
	acceptBackoffStart = 50 * time.Millisecond
	acceptBackoffMax   = time.Second
)

var acceptSleep = time.Sleep

// acceptConnections hands every accepted connection to handle. Temporary
// accept errors are retried with a doubling backoff; any other error ends
// the loop and is returned.
func acceptConnections(log zerolog.Logger, ln net.Listener, handle func(net.Conn)) error {
	backoff := acceptBackoffStart
	for {
		conn, err := ln.Accept()
		if err != nil {
			if isTemporaryAcceptError(err) {
				log.Warn().Err(err).Dur("retry_in", backoff).Msg("temporary accept error")
				acceptSleep(backoff)
				backoff *= 2
				if backoff > acceptBackoffMax {
					backoff = acceptBackoffMax
				}
				continue
			}
			return err
		}
		backoff = acceptBackoffStart
		handle(conn)
	}
}

func isTemporaryAcceptError(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) {
		//nolint:staticcheck // Temporary is still what the listener reports for EMFILE and friends.
		if ne.Timeout() || ne.Temporary() {
			return true
		}
	}
	return errors.Is(err, os.ErrDeadlineExceeded)
}
