package proto

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"
)

// Status is the first byte of an application-level reply.
type Status uint8

const (
	StatusOK Status = iota
	StatusFailed
	StatusDenied
	StatusNotFound
	StatusRefused
	StatusExists
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusFailed:
		return "failed"
	case StatusDenied:
		return "denied"
	case StatusNotFound:
		return "not found"
	case StatusRefused:
		return "refused"
	case StatusExists:
		return "exists"
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// StatusReply builds a reply payload carrying a status and optional detail.
func StatusReply(st Status, detail string) []byte {
	return append([]byte{byte(st)}, detail...)
}

// ParseStatus splits a reply produced by StatusReply. An empty payload is a
// failure.
func ParseStatus(p []byte) (Status, string) {
	if len(p) == 0 {
		return StatusFailed, ""
	}
	return Status(p[0]), string(p[1:])
}

// PutSessionID prefixes rest with id.
func PutSessionID(id SessionID, rest []byte) []byte {
	buf := make([]byte, 4, 4+len(rest))
	binary.BigEndian.PutUint32(buf, uint32(id))
	return append(buf, rest...)
}

// SplitSessionID reverses PutSessionID.
func SplitSessionID(p []byte) (SessionID, []byte, bool) {
	if len(p) < 4 {
		return 0, nil, false
	}
	return SessionID(binary.BigEndian.Uint32(p[:4])), p[4:], true
}

// PutUint32Pair encodes two counters.
func PutUint32Pair(a, b uint32) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:4], a)
	binary.BigEndian.PutUint32(buf[4:8], b)
	return buf
}

// Uint32Pair decodes PutUint32Pair.
func Uint32Pair(p []byte) (uint32, uint32, bool) {
	if len(p) != 8 {
		return 0, 0, false
	}
	return binary.BigEndian.Uint32(p[0:4]), binary.BigEndian.Uint32(p[4:8]), true
}

// Login is the change-user payload.
type Login struct {
	Username string `json:"username"`
	Admin    bool   `json:"admin"`
}

// Account is the wire form of an account record. The password field holds a
// hash, never plain text.
type Account struct {
	Username  string    `json:"username"`
	Password  string    `json:"password"`
	Admin     bool      `json:"admin,omitempty"`
	Room      string    `json:"room,omitempty"`
	Inventory []string  `json:"inventory,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	LastLogin time.Time `json:"last_login,omitempty"`
}

// SessionInfo describes one live session in a listing.
type SessionInfo struct {
	ID    SessionID `json:"id"`
	State State     `json:"state"`
	User  string    `json:"user,omitempty"`
	Room  string    `json:"room,omitempty"`
	Peer  string    `json:"peer,omitempty"`
	Self  bool      `json:"self,omitempty"`
	// Since is when the connection was accepted.
	Since time.Time `json:"since"`
}

// Marshal encodes v as a payload, refusing anything that would not fit in a
// single frame.
func Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(data) > MaxPayload {
		return nil, ErrFrameTooLarge
	}
	return data, nil
}

// AppendRecord adds one encoded record to a listing payload. Records are
// newline separated so one data frame can carry many of them.
func AppendRecord(batch, record []byte) []byte {
	batch = append(batch, record...)
	return append(batch, '\n')
}

// DecodeRecords decodes every record carried by a listing's data frames.
func DecodeRecords[T any](frames []Frame) ([]T, error) {
	var out []T
	for _, f := range frames {
		for _, line := range bytes.Split(f.Payload, []byte{'\n'}) {
			if len(line) == 0 {
				continue
			}
			var v T
			if err := Unmarshal(line, &v); err != nil {
				return out, err
			}
			out = append(out, v)
		}
	}
	return out, nil
}

// Unmarshal decodes a payload produced by Marshal.
func Unmarshal(p []byte, v any) error {
	if err := json.Unmarshal(p, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
