// Package proto defines the frames exchanged between session workers and the
// coordinator, and the in-process transport that carries them.
package proto

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// MaxFrameSize bounds a single encoded frame. A frame is always handed to the
// transport as one contiguous slice, so frames from concurrent senders can
// never interleave.
const MaxFrameSize = 4096

const headerSize = 4 + 1 + 2

// MaxPayload is the largest payload that fits in one frame.
const MaxPayload = MaxFrameSize - headerSize

var (
	// ErrTransportClosed reports that the peer is gone: the transfer was
	// empty or truncated, or the channel was closed.
	ErrTransportClosed = errors.New("transport closed")
	// ErrFrameTooLarge reports a payload that would exceed MaxFrameSize.
	ErrFrameTooLarge = errors.New("frame too large")
)

// SessionID identifies a worker for its whole lifetime. Zero is reserved for
// the coordinator.
type SessionID uint32

// Coordinator is the sender id stamped on coordinator to worker frames.
const Coordinator SessionID = 0

func (id SessionID) String() string {
	return fmt.Sprintf("%d", uint32(id))
}

// Frame is one decoded request or reply.
type Frame struct {
	Sender  SessionID
	Code    Code
	Payload []byte
}

// Encode packs a frame into a single byte slice.
func Encode(sender SessionID, code Code, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("%w: %d byte payload for %s", ErrFrameTooLarge, len(payload), code)
	}
	buf := make([]byte, headerSize+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(sender))
	buf[4] = byte(code)
	binary.BigEndian.PutUint16(buf[5:7], uint16(len(payload)))
	copy(buf[headerSize:], payload)
	return buf, nil
}

// Decode is the inverse of Encode. Empty or truncated input yields
// ErrTransportClosed.
func Decode(data []byte) (Frame, error) {
	if len(data) < headerSize {
		return Frame{}, ErrTransportClosed
	}
	n := int(binary.BigEndian.Uint16(data[5:7]))
	if len(data) != headerSize+n {
		return Frame{}, ErrTransportClosed
	}
	f := Frame{
		Sender: SessionID(binary.BigEndian.Uint32(data[0:4])),
		Code:   Code(data[4]),
	}
	if n > 0 {
		f.Payload = make([]byte, n)
		copy(f.Payload, data[headerSize:])
	}
	return f, nil
}
