package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/openforum/backend/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEnvelope(room Room) *Envelope {
	return NewEnvelope(&PersistedMessage{
		ID:        "msg-1",
		Room:      room,
		SenderID:  "user-1",
		Content:   "hello",
		CreatedAt: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
	}, &auth.Identity{UserID: "user-1", DisplayName: "Ada", AvatarURL: "https://cdn.test/ada.png"})
}

func TestBroadcastDeliversIdenticalBytes(t *testing.T) {
	reg := NewRegistry()
	room := ChatRoom("c1")

	transports := []*fakeTransport{newFakeTransport(), newFakeTransport(), newFakeTransport()}
	for _, ft := range transports {
		reg.Join(room, newConn(ft, room, "tok", ""))
	}

	report, err := NewBroadcaster(reg).Broadcast(context.Background(), room, testEnvelope(room))
	require.NoError(t, err)
	assert.Len(t, report.Delivered, 3)
	assert.Empty(t, report.Failed)

	first := transports[0].sentFrames()
	require.Len(t, first, 1)
	for _, ft := range transports[1:] {
		frames := ft.sentFrames()
		require.Len(t, frames, 1)
		assert.Equal(t, first[0], frames[0])
	}

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(first[0], &decoded))
	assert.Equal(t, "message", decoded["type"])
	assert.Equal(t, "chat:c1", decoded["room_id"])
	assert.Equal(t, "Ada", decoded["sender_display_name"])
	assert.Equal(t, "2026-03-14T09:26:53Z", decoded["created_at"])
}

func TestBroadcastIsolatesFailedRecipient(t *testing.T) {
	reg := NewRegistry()
	room := ChatRoom("c1")

	healthy1 := newFakeTransport()
	broken := newFakeTransport()
	broken.setFailSend(true)
	healthy2 := newFakeTransport()

	a := newConn(healthy1, room, "tok", "")
	b := newConn(broken, room, "tok", "")
	c := newConn(healthy2, room, "tok", "")
	reg.Join(room, a)
	reg.Join(room, b)
	reg.Join(room, c)

	report, err := NewBroadcaster(reg).Broadcast(context.Background(), room, testEnvelope(room))
	require.NoError(t, err)

	assert.Equal(t, []*Conn{a, c}, report.Delivered)
	assert.Equal(t, []*Conn{b}, report.Failed)

	// The dead connection is evicted without waiting for its own
	// disconnect handler
	assert.Equal(t, 2, reg.Count(room))
	assert.NotContains(t, reg.Members(room), b)

	closed, code := broken.closeStatus()
	assert.True(t, closed)
	assert.Equal(t, websocket.StatusAbnormalClosure, code)

	assert.Len(t, healthy1.sentFrames(), 1)
	assert.Len(t, healthy2.sentFrames(), 1)
}

func TestBroadcastEmptyRoomDeliversNothing(t *testing.T) {
	reg := NewRegistry()
	room := ChatRoom("nobody-here")

	report, err := NewBroadcaster(reg).Broadcast(context.Background(), room, testEnvelope(room))
	require.NoError(t, err)
	assert.Empty(t, report.Delivered)
	assert.Empty(t, report.Failed)
}
