package game

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Telnet command bytes (RFC 854).
const (
	iacSE   byte = 240
	iacNOP  byte = 241
	iacIP   byte = 244
	iacSB   byte = 250
	iacWILL byte = 251
	iacWONT byte = 252
	iacDO   byte = 253
	iacDONT byte = 254
	iacIAC  byte = 255
)

// Telnet options the server knows about.
const (
	optEcho         byte = 1
	optSuppressGA   byte = 3
	optTerminalType byte = 24
	optWindowSize   byte = 31
	optLineMode     byte = 34
)

const (
	ttypeIS   byte = 0
	ttypeSEND byte = 1
)

const (
	// maxLineLength caps a single input line; the rest is discarded.
	maxLineLength = 512
	// maxSubnegotiation caps the payload kept from one SB ... SE block.
	maxSubnegotiation = 64
)

// ErrInterrupted is returned by ReadLine when the peer sends an interrupt.
var ErrInterrupted = errors.New("telnet interrupt")

// optionPolicy says which side may enable an option: local options are the
// server's (answered to DO), remote options the client's (answered to WILL).
var optionPolicy = map[byte]struct{ local, remote bool }{
	optEcho:         {local: true},
	optSuppressGA:   {local: true},
	optTerminalType: {remote: true},
	optWindowSize:   {remote: true},
}

// TelnetSession is a line-oriented terminal over a telnet connection.
type TelnetSession struct {
	conn    net.Conn
	reader  *bufio.Reader
	charset *charmap.Charmap

	wmu          sync.Mutex
	writeTimeout time.Duration

	mu     sync.Mutex
	width  int
	height int
	term   string
}

// TelnetOption customises a TelnetSession.
type TelnetOption func(*TelnetSession)

// WithCharset translates output to, and input from, the given single-byte
// charset. A nil charmap means UTF-8.
func WithCharset(cm *charmap.Charmap) TelnetOption {
	return func(s *TelnetSession) {
		s.charset = cm
	}
}

// WithWriteTimeout bounds every write. A client that accepts nothing for
// that long is disconnected.
func WithWriteTimeout(d time.Duration) TelnetOption {
	return func(s *TelnetSession) {
		s.writeTimeout = d
	}
}

// NewTelnetSession wraps conn and opens option negotiation.
func NewTelnetSession(conn net.Conn, opts ...TelnetOption) *TelnetSession {
	s := &TelnetSession{
		conn:   conn,
		reader: bufio.NewReader(conn),
		width:  80,
		height: 24,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	_ = s.writeRaw([]byte{
		iacIAC, iacWILL, optSuppressGA,
		iacIAC, iacWONT, optEcho,
		iacIAC, iacDONT, optLineMode,
		iacIAC, iacDO, optTerminalType,
		iacIAC, iacDO, optWindowSize,
	})
	return s
}

// ParseCharset maps a configured charset name to a charmap. UTF-8 maps to nil.
func ParseCharset(name string) (*charmap.Charmap, error) {
	switch normalizeToken(name) {
	case "", "UTF8":
		return nil, nil
	case "CP437", "IBM437":
		return charmap.CodePage437, nil
	case "LATIN1", "ISO88591":
		return charmap.ISO8859_1, nil
	case "CP1252", "WINDOWS1252":
		return charmap.Windows1252, nil
	}
	return nil, fmt.Errorf("unsupported charset %q", name)
}

func normalizeToken(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.NewReplacer("-", "", "_", "", " ", "").Replace(s)
}

func (s *TelnetSession) command(cmd, opt byte) error {
	return s.writeRaw([]byte{iacIAC, cmd, opt})
}

func (s *TelnetSession) writeRaw(payload []byte) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if s.writeTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return err
		}
	}
	_, err := s.conn.Write(payload)
	if errors.Is(err, os.ErrDeadlineExceeded) {
		_ = s.conn.Close()
	}
	return err
}

// EchoOff asks the client to stop echoing input, for password entry.
func (s *TelnetSession) EchoOff() error {
	return s.command(iacWILL, optEcho)
}

// EchoOn returns echoing to the client.
func (s *TelnetSession) EchoOn() error {
	return s.command(iacWONT, optEcho)
}

// WriteString sends msg in the session charset with telnet line endings.
func (s *TelnetSession) WriteString(msg string) error {
	return s.writeRaw(translateForTelnet(encodeWithCharmap(s.charset, []byte(msg))))
}

// translateForTelnet turns bare LF into CRLF and escapes data bytes that
// would read as IAC.
func translateForTelnet(msg []byte) []byte {
	out := make([]byte, 0, len(msg)+8)
	for i, b := range msg {
		switch {
		case b == '\n' && (i == 0 || msg[i-1] != '\r'):
			out = append(out, '\r', '\n')
		case b == iacIAC:
			out = append(out, iacIAC, iacIAC)
		default:
			out = append(out, b)
		}
	}
	return out
}

func encodeWithCharmap(cm *charmap.Charmap, data []byte) []byte {
	if cm == nil {
		return data
	}
	out := make([]byte, 0, len(data))
	for _, r := range string(data) {
		if r < utf8.RuneSelf {
			out = append(out, byte(r))
		} else if b, ok := cm.EncodeRune(r); ok {
			out = append(out, b)
		} else {
			out = append(out, '?')
		}
	}
	return out
}

func decodeWithCharmap(cm *charmap.Charmap, data []byte) string {
	if cm == nil {
		return string(data)
	}
	runes := make([]rune, len(data))
	for i, c := range data {
		runes[i] = cm.DecodeByte(c)
	}
	return string(runes)
}

// ReadLine returns the next line of user input with telnet commands,
// control characters and unprintable runes removed. Backspace erases one
// character, not one byte.
func (s *TelnetSession) ReadLine() (string, error) {
	line := make([]byte, 0, 64)
	for {
		b, err := s.reader.ReadByte()
		if err != nil {
			return "", err
		}
		switch b {
		case '\r':
			if next, err := s.reader.Peek(1); err == nil && (next[0] == '\n' || next[0] == 0) {
				_, _ = s.reader.ReadByte()
			}
			return s.finishLine(line), nil
		case '\n':
			return s.finishLine(line), nil
		case 0x08, 0x7f:
			line = s.erase(line)
		case 0:
		case iacIAC:
			literal, err := s.readCommand()
			if err != nil {
				return "", err
			}
			if literal && len(line) < maxLineLength {
				line = append(line, iacIAC)
			}
		default:
			if len(line) < maxLineLength {
				line = append(line, b)
			}
		}
	}
}

func (s *TelnetSession) erase(line []byte) []byte {
	if len(line) == 0 {
		return line
	}
	if s.charset != nil {
		return line[:len(line)-1]
	}
	_, size := utf8.DecodeLastRune(line)
	return line[:len(line)-size]
}

func (s *TelnetSession) finishLine(raw []byte) string {
	return sanitizeInput(decodeWithCharmap(s.charset, raw))
}

// readCommand consumes the telnet command following an IAC byte. It reports
// true when the pair was an escaped literal 0xFF.
func (s *TelnetSession) readCommand() (bool, error) {
	cmd, err := s.reader.ReadByte()
	if err != nil {
		return false, err
	}
	switch cmd {
	case iacIAC:
		return true, nil
	case iacIP:
		return false, ErrInterrupted
	case iacSB:
		return false, s.subnegotiate()
	case iacDO, iacDONT, iacWILL, iacWONT:
		opt, err := s.reader.ReadByte()
		if err != nil {
			return false, err
		}
		s.negotiate(cmd, opt)
	}
	// NOP, GA, AYT and the rest carry nothing for a line reader.
	return false, nil
}

// negotiate answers one option request according to optionPolicy. The
// options we accept were all offered in the opening handshake, so an
// agreeing reply is an acknowledgement and gets no answer; answering it
// again would start a negotiation loop. WONT and DONT need no answer either.
func (s *TelnetSession) negotiate(cmd, opt byte) {
	policy := optionPolicy[opt]
	switch {
	case cmd == iacDO && !policy.local:
		_ = s.command(iacWONT, opt)
	case cmd == iacWILL && !policy.remote:
		_ = s.command(iacDONT, opt)
	case cmd == iacWILL && opt == optTerminalType:
		_ = s.writeRaw([]byte{iacIAC, iacSB, optTerminalType, ttypeSEND, iacIAC, iacSE})
	}
}

// subnegotiate reads an SB block up to IAC SE and applies what it reports.
func (s *TelnetSession) subnegotiate() error {
	opt, err := s.reader.ReadByte()
	if err != nil {
		return err
	}
	var payload []byte
	for {
		b, err := s.reader.ReadByte()
		if err != nil {
			return err
		}
		if b == iacIAC {
			if b, err = s.reader.ReadByte(); err != nil {
				return err
			}
			if b == iacSE {
				break
			}
			if b != iacIAC {
				continue
			}
		}
		if len(payload) < maxSubnegotiation {
			payload = append(payload, b)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch opt {
	case optTerminalType:
		if len(payload) > 1 && payload[0] == ttypeIS {
			s.term = strings.ToUpper(sanitizeInput(string(payload[1:])))
		}
	case optWindowSize:
		if len(payload) >= 4 {
			w := int(payload[0])<<8 | int(payload[1])
			h := int(payload[2])<<8 | int(payload[3])
			// Zero means the client does not know; keep the last size.
			if w > 0 {
				s.width = w
			}
			if h > 0 {
				s.height = h
			}
		}
	}
	return nil
}

// Close closes the connection without waiting for a blocked writer.
func (s *TelnetSession) Close() error {
	return s.conn.Close()
}

// Size is the last window size the client reported, 80x24 until then.
func (s *TelnetSession) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// Terminal is the client's reported terminal type, or empty.
func (s *TelnetSession) Terminal() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.term
}
