package proto

import "fmt"

// Code is the command code carried by every frame.
type Code uint8

const (
	CodeNoop Code = iota
	CodeBroadcast
	CodeListSessions
	CodeChangeState
	CodeChangeUser
	CodeKick
	CodeWait
	CodeRoomDescription
	CodeRoomName
	CodeSetRoom
	CodeMove
	CodeGetAccount
	CodeDeleteAccount
	CodeAddAccount
	CodeNewline
	CodeComplete
	CodeKickAllButSender
	CodeListAccounts
	CodeModifyAccount
)

var codeNames = map[Code]string{
	CodeNoop:             "noop",
	CodeBroadcast:        "broadcast-text",
	CodeListSessions:     "list-sessions",
	CodeChangeState:      "change-state",
	CodeChangeUser:       "change-user",
	CodeKick:             "kick",
	CodeWait:             "wait",
	CodeRoomDescription:  "get-room-description",
	CodeRoomName:         "get-room-name",
	CodeSetRoom:          "set-room",
	CodeMove:             "move",
	CodeGetAccount:       "get-account-data",
	CodeDeleteAccount:    "delete-account-data",
	CodeAddAccount:       "add-account-data",
	CodeNewline:          "print-newline",
	CodeComplete:         "request-complete",
	CodeKickAllButSender: "kick-all-but-sender",
	CodeListAccounts:     "list-accounts",
	CodeModifyAccount:    "modify-account",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code(%d)", uint8(c))
}

// Push reports whether frames with this code are always unsolicited when they
// travel from the coordinator to a worker.
func (c Code) Push() bool {
	switch c {
	case CodeBroadcast, CodeKick, CodeWait, CodeNewline:
		return true
	}
	return false
}

// State is the coarse lifecycle state of a session.
type State uint8

const (
	StateInit State = iota
	StateAuth
	StateChecking
	StateLoggedInUser
	StateLoggedInAdmin
	StateAuthFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateAuth:
		return "AUTH"
	case StateChecking:
		return "CHECKING"
	case StateLoggedInUser:
		return "LOGGED_IN_USER"
	case StateLoggedInAdmin:
		return "LOGGED_IN_ADMIN"
	case StateAuthFailed:
		return "AUTH_FAILED"
	}
	return fmt.Sprintf("STATE(%d)", uint8(s))
}

// LoggedIn reports whether the state belongs to an authenticated session.
func (s State) LoggedIn() bool {
	return s == StateLoggedInUser || s == StateLoggedInAdmin
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	return s <= StateAuthFailed
}
