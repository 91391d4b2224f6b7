package proto

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeInverse(t *testing.T) {
	frame, err := Encode(42, CodeBroadcast, []byte("hello"))
	require.NoError(t, err)
	assert.LessOrEqual(t, len(frame), MaxFrameSize)

	got, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, SessionID(42), got.Sender)
	assert.Equal(t, CodeBroadcast, got.Code)
	assert.Equal(t, []byte("hello"), got.Payload)
}

func TestEncodeEmptyPayload(t *testing.T) {
	frame, err := Encode(Coordinator, CodeComplete, nil)
	require.NoError(t, err)

	got, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, Coordinator, got.Sender)
	assert.Equal(t, CodeComplete, got.Code)
	assert.Empty(t, got.Payload)
}

func TestEncodeRejectsOversizedPayload(t *testing.T) {
	_, err := Encode(1, CodeBroadcast, bytes.Repeat([]byte{'x'}, MaxPayload+1))
	assert.ErrorIs(t, err, ErrFrameTooLarge)

	frame, err := Encode(1, CodeBroadcast, bytes.Repeat([]byte{'x'}, MaxPayload))
	require.NoError(t, err)
	assert.Len(t, frame, MaxFrameSize)
}

func TestDecodeTruncatedIsTransportClosed(t *testing.T) {
	frame, err := Encode(7, CodeMove, []byte("north"))
	require.NoError(t, err)

	for _, data := range [][]byte{nil, {}, frame[:3], frame[:len(frame)-1]} {
		_, err := Decode(data)
		assert.ErrorIs(t, err, ErrTransportClosed)
	}
}

func TestCodeStringAndPush(t *testing.T) {
	assert.Equal(t, "request-complete", CodeComplete.String())
	assert.Equal(t, "code(200)", Code(200).String())
	assert.True(t, CodeKick.Push())
	assert.True(t, CodeBroadcast.Push())
	assert.False(t, CodeListSessions.Push())
	assert.False(t, CodeComplete.Push())
}

func TestStatusRoundTrip(t *testing.T) {
	st, detail := ParseStatus(StatusReply(StatusRefused, "not yourself"))
	assert.Equal(t, StatusRefused, st)
	assert.Equal(t, "not yourself", detail)

	st, _ = ParseStatus(nil)
	assert.Equal(t, StatusFailed, st)
}

func TestSessionIDPrefix(t *testing.T) {
	id, rest, ok := SplitSessionID(PutSessionID(9, []byte("bye")))
	require.True(t, ok)
	assert.Equal(t, SessionID(9), id)
	assert.Equal(t, "bye", string(rest))

	_, _, ok = SplitSessionID([]byte{1, 2})
	assert.False(t, ok)
}

func TestLinkDeliverAndClose(t *testing.T) {
	inbox := make(chan []byte, 1)
	acks := make(chan []byte, 1)
	done := make(chan struct{})
	port, ep := NewLink(3, inbox, acks, done, 1)

	frame, err := Encode(Coordinator, CodeNewline, nil)
	require.NoError(t, err)
	assert.True(t, port.Deliver(frame))
	assert.False(t, port.Deliver(frame), "mailbox of one must reject a second frame")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := ep.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, CodeNewline, got.Code)

	select {
	case <-ep.Gone():
		t.Fatal("gone before close")
	default:
	}
	port.Close()
	port.Close()
	<-ep.Gone()
	assert.False(t, port.Deliver(frame))
	_, err = ep.Recv(ctx)
	assert.ErrorIs(t, err, ErrTransportClosed)
}

func TestDeliverWaitGivesTheReceiverTime(t *testing.T) {
	port, ep := NewLink(4, nil, nil, make(chan struct{}), 1)
	frame, err := Encode(Coordinator, CodeListSessions, []byte("{}\n"))
	require.NoError(t, err)
	require.True(t, port.Deliver(frame))

	assert.False(t, port.DeliverWait(frame, 10*time.Millisecond), "nobody drains")

	go func() {
		time.Sleep(20 * time.Millisecond)
		<-ep.Frames()
	}()
	assert.True(t, port.DeliverWait(frame, time.Second))

	port.Close()
	assert.False(t, port.DeliverWait(frame, time.Second))
}

func TestRecordsRoundTrip(t *testing.T) {
	var batch []byte
	for _, name := range []string{"ann", "ben"} {
		data, err := Marshal(SessionInfo{User: name})
		require.NoError(t, err)
		batch = AppendRecord(batch, data)
	}
	tail, err := Marshal(SessionInfo{User: "cy"})
	require.NoError(t, err)
	frames := []Frame{{Payload: batch}, {Payload: AppendRecord(nil, tail)}}

	infos, err := DecodeRecords[SessionInfo](frames)
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, "ann", infos[0].User)
	assert.Equal(t, "cy", infos[2].User)

	_, err = DecodeRecords[SessionInfo]([]Frame{{Payload: []byte("{oops\n")}})
	assert.Error(t, err)
}

func TestEndpointSendStampsIdentity(t *testing.T) {
	inbox := make(chan []byte, 1)
	done := make(chan struct{})
	_, ep := NewLink(11, inbox, nil, done, 1)

	require.NoError(t, ep.Send(context.Background(), CodeRoomName, nil))
	got, err := Decode(<-inbox)
	require.NoError(t, err)
	assert.Equal(t, SessionID(11), got.Sender)
	assert.Equal(t, CodeRoomName, got.Code)

	close(done)
	inbox <- []byte{}
	assert.ErrorIs(t, ep.Send(context.Background(), CodeNoop, nil), ErrTransportClosed)
}
