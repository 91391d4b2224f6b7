package coordinator

import (
	"context"

	"Hollowmere/internal/proto"
)

// Addressing decides which sessions a request's handler runs against.
type Addressing uint8

const (
	AddressNone Addressing = iota
	AddressSenderOnly
	AddressAll
	AddressAllButSender
)

func (a Addressing) String() string {
	switch a {
	case AddressNone:
		return "NONE"
	case AddressSenderOnly:
		return "SENDER_ONLY"
	case AddressAll:
		return "ALL"
	case AddressAllButSender:
		return "ALL_BUT_SENDER"
	}
	return "UNKNOWN"
}

// Access is the minimum sender state a request needs.
type Access uint8

const (
	AccessAny Access = iota
	AccessLoggedIn
	AccessAdmin
)

func (a Access) permits(s *Session) bool {
	switch a {
	case AccessLoggedIn:
		return s.State.LoggedIn()
	case AccessAdmin:
		return s.Admin()
	}
	return true
}

// Request is one submitted frame being processed. Handlers record their
// outcome on it; Reply becomes the payload of the sender's completion frame.
type Request struct {
	Sender  *Session
	Code    proto.Code
	Payload []byte
	Reply   []byte

	matched int
	batch   []byte
	refused bool
	waiting map[proto.SessionID]struct{}
	seq     uint32
}

// Handler runs once per addressed session.
type Handler func(ctx context.Context, c *Coordinator, req *Request, target *Session) error

// Finalizer runs once after fan-out.
type Finalizer func(ctx context.Context, c *Coordinator, req *Request) error

// Descriptor is the static registration of one command code.
type Descriptor struct {
	NeedsPayload bool
	Addressing   Addressing
	Access       Access
	Handle       Handler
	Finalize     Finalizer
}

func defaultDescriptors() map[proto.Code]Descriptor {
	return map[proto.Code]Descriptor{
		proto.CodeNoop: {
			Addressing: AddressNone,
		},
		proto.CodeBroadcast: {
			NeedsPayload: true,
			Addressing:   AddressAllButSender,
			Access:       AccessLoggedIn,
			Handle:       handleBroadcast,
		},
		proto.CodeListSessions: {
			Addressing: AddressAll,
			Access:     AccessLoggedIn,
			Handle:     handleListSession,
			Finalize:   finalizeListing,
		},
		proto.CodeChangeState: {
			NeedsPayload: true,
			Addressing:   AddressSenderOnly,
			Handle:       handleChangeState,
		},
		proto.CodeChangeUser: {
			NeedsPayload: true,
			Addressing:   AddressSenderOnly,
			Handle:       handleChangeUser,
		},
		proto.CodeKick: {
			NeedsPayload: true,
			Addressing:   AddressAll,
			Access:       AccessAdmin,
			Handle:       handleKick,
			Finalize:     finalizeKick,
		},
		proto.CodeKickAllButSender: {
			Addressing: AddressAllButSender,
			Access:     AccessAdmin,
			Handle:     handleKickOther,
			Finalize:   finalizeCount,
		},
		proto.CodeWait: {
			Addressing: AddressAllButSender,
			Access:     AccessLoggedIn,
			Handle:     handleWaitPing,
			Finalize:   finalizeWait,
		},
		proto.CodeRoomName: {
			Addressing: AddressSenderOnly,
			Access:     AccessLoggedIn,
			Handle:     handleRoomName,
		},
		proto.CodeRoomDescription: {
			Addressing: AddressSenderOnly,
			Access:     AccessLoggedIn,
			Handle:     handleRoomDescription,
		},
		proto.CodeSetRoom: {
			NeedsPayload: true,
			Addressing:   AddressSenderOnly,
			Access:       AccessAdmin,
			Handle:       handleSetRoom,
		},
		proto.CodeMove: {
			NeedsPayload: true,
			Addressing:   AddressSenderOnly,
			Access:       AccessLoggedIn,
			Handle:       handleMove,
		},
		proto.CodeGetAccount: {
			NeedsPayload: true,
			Addressing:   AddressNone,
			Finalize:     finalizeGetAccount,
		},
		proto.CodeAddAccount: {
			NeedsPayload: true,
			Addressing:   AddressNone,
			Access:       AccessAdmin,
			Finalize:     finalizeAddAccount,
		},
		proto.CodeModifyAccount: {
			NeedsPayload: true,
			Addressing:   AddressNone,
			Access:       AccessAdmin,
			Finalize:     finalizeModifyAccount,
		},
		proto.CodeDeleteAccount: {
			NeedsPayload: true,
			Addressing:   AddressNone,
			Access:       AccessAdmin,
			Finalize:     finalizeDeleteAccount,
		},
		proto.CodeListAccounts: {
			Addressing: AddressNone,
			Access:     AccessAdmin,
			Finalize:   finalizeListAccounts,
		},
		proto.CodeNewline: {
			Addressing: AddressAllButSender,
			Access:     AccessLoggedIn,
			Handle:     handleNewline,
		},
	}
}
