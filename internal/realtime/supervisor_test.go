package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/openforum/backend/internal/auth"
	apierrors "github.com/openforum/backend/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type supervisorFixture struct {
	registry *Registry
	gate     *fakeGate
	store    *memStore
	sup      *Supervisor
}

func newSupervisorFixture() *supervisorFixture {
	reg := NewRegistry()
	gate := newFakeGate()
	store := newMemStore()
	sup := NewSupervisor(reg, gate, NewIngestor(store, newMemBlob()), NewBroadcaster(reg))
	return &supervisorFixture{registry: reg, gate: gate, store: store, sup: sup}
}

func (f *supervisorFixture) serve(conn *Conn) chan error {
	done := make(chan error, 1)
	go func() { done <- f.sup.Serve(context.Background(), conn) }()
	return done
}

func waitFrames(t *testing.T, ft *fakeTransport, n int) [][]byte {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(ft.sentFrames()) >= n
	}, time.Second, 5*time.Millisecond)
	return ft.sentFrames()
}

func waitDone(t *testing.T, done chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(time.Second):
		t.Fatal("supervisor did not exit")
		return nil
	}
}

func frameType(t *testing.T, data []byte) string {
	t.Helper()
	var decoded struct {
		Type string `json:"type"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	return decoded.Type
}

func TestServeRejectsMissingToken(t *testing.T) {
	f := newSupervisorFixture()
	ft := newFakeTransport()
	conn := newConn(ft, ChatRoom("c1"), "", "")

	err := waitDone(t, f.serve(conn))
	require.ErrorIs(t, err, auth.ErrTokenMissing)

	closed, code := ft.closeStatus()
	assert.True(t, closed)
	assert.Equal(t, websocket.StatusPolicyViolation, code)
	assert.Equal(t, 0, f.registry.RoomCount())

	frames := ft.sentFrames()
	require.Len(t, frames, 1)
	var errFrame struct {
		Type string `json:"type"`
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(frames[0], &errFrame))
	assert.Equal(t, "error", errFrame.Type)
	assert.Equal(t, "unauthenticated_missing", errFrame.Code)
}

func TestServeRejectsInvalidToken(t *testing.T) {
	f := newSupervisorFixture()
	ft := newFakeTransport()
	conn := newConn(ft, ChatRoom("c1"), "garbage", "")

	err := waitDone(t, f.serve(conn))
	require.ErrorIs(t, err, auth.ErrTokenInvalid)
	assert.Equal(t, 0, f.gate.refreshCount())
}

func TestServeExpiredBearerRefreshesExactlyOnce(t *testing.T) {
	f := newSupervisorFixture()
	f.gate.expired["old-tok"] = true
	f.gate.identities["new-tok"] = &auth.Identity{UserID: "user-1", DisplayName: "Ada"}
	f.gate.refreshPair = &auth.TokenPair{AccessToken: "new-tok", RefreshToken: "new-refresh", ExpiresAt: time.Now().Add(15 * time.Minute)}

	ft := newFakeTransport()
	conn := newConn(ft, ChatRoom("c1"), "old-tok", "refresh-tok")
	done := f.serve(conn)

	frames := waitFrames(t, ft, 2)
	assert.Equal(t, "token", frameType(t, frames[0]))
	assert.Equal(t, "system", frameType(t, frames[1]))
	assert.Equal(t, 1, f.gate.refreshCount())
	assert.Equal(t, 1, f.registry.Count(ChatRoom("c1")))

	// A message cycle on the refreshed bearer needs no further refresh
	ft.inbound <- []byte(`{"content":"hi"}`)
	waitFrames(t, ft, 3)
	assert.Equal(t, 1, f.gate.refreshCount())

	close(ft.inbound)
	require.NoError(t, waitDone(t, done))
}

func TestServeRefreshRejectionIsFatal(t *testing.T) {
	f := newSupervisorFixture()
	f.gate.expired["old-tok"] = true
	f.gate.refreshErr = auth.ErrRefreshRejected

	ft := newFakeTransport()
	conn := newConn(ft, ChatRoom("c1"), "old-tok", "refresh-tok")

	err := waitDone(t, f.serve(conn))
	require.ErrorIs(t, err, auth.ErrRefreshRejected)
	assert.Equal(t, 1, f.gate.refreshCount())

	closed, code := ft.closeStatus()
	assert.True(t, closed)
	assert.Equal(t, websocket.StatusPolicyViolation, code)
	assert.Equal(t, 0, f.registry.RoomCount())
}

func TestServeExpiredWithoutRefreshTokenIsFatal(t *testing.T) {
	f := newSupervisorFixture()
	f.gate.expired["old-tok"] = true

	ft := newFakeTransport()
	conn := newConn(ft, ChatRoom("c1"), "old-tok", "")

	err := waitDone(t, f.serve(conn))
	require.ErrorIs(t, err, auth.ErrRefreshRejected)
	assert.Equal(t, 0, f.gate.refreshCount())
}

func TestServeMidStreamExpiryRefreshesAndContinues(t *testing.T) {
	f := newSupervisorFixture()
	f.gate.identities["tok"] = &auth.Identity{UserID: "user-1", DisplayName: "Ada"}
	f.gate.identities["tok-2"] = &auth.Identity{UserID: "user-1", DisplayName: "Ada"}
	f.gate.refreshPair = &auth.TokenPair{AccessToken: "tok-2", RefreshToken: "refresh-2", ExpiresAt: time.Now().Add(15 * time.Minute)}

	ft := newFakeTransport()
	conn := newConn(ft, ChatRoom("c1"), "tok", "refresh-tok")
	done := f.serve(conn)

	ft.inbound <- []byte(`{"content":"before expiry"}`)
	frames := waitFrames(t, ft, 2)
	assert.Equal(t, "message", frameType(t, frames[1]))
	assert.Equal(t, 0, f.gate.refreshCount())

	// The bearer expires between two sends; the next cycle refreshes
	// once and the message still goes out
	f.gate.setExpired("tok", true)
	ft.inbound <- []byte(`{"content":"after expiry"}`)
	frames = waitFrames(t, ft, 4)
	assert.Equal(t, "token", frameType(t, frames[2]))
	assert.Equal(t, "message", frameType(t, frames[3]))
	assert.Equal(t, 1, f.gate.refreshCount())
	assert.Equal(t, 1, f.registry.Count(ChatRoom("c1")))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(frames[3], &decoded))
	assert.Equal(t, "msg-2", decoded["id"])
	assert.Equal(t, "after expiry", decoded["content"])

	close(ft.inbound)
	require.NoError(t, waitDone(t, done))
}

func TestServeMidStreamRefreshFailureLeavesRoom(t *testing.T) {
	f := newSupervisorFixture()
	f.gate.identities["tok"] = &auth.Identity{UserID: "user-1"}
	f.gate.refreshErr = auth.ErrRefreshRejected

	ft := newFakeTransport()
	conn := newConn(ft, ChatRoom("c1"), "tok", "refresh-tok")
	done := f.serve(conn)

	ft.inbound <- []byte(`{"content":"still valid"}`)
	waitFrames(t, ft, 2)
	assert.Equal(t, 1, f.registry.Count(ChatRoom("c1")))

	f.gate.setExpired("tok", true)
	ft.inbound <- []byte(`{"content":"never lands"}`)

	err := waitDone(t, done)
	require.ErrorIs(t, err, auth.ErrRefreshRejected)
	assert.Equal(t, 1, f.gate.refreshCount())
	assert.Equal(t, 1, f.store.messageCount())

	closed, code := ft.closeStatus()
	assert.True(t, closed)
	assert.Equal(t, websocket.StatusPolicyViolation, code)
	// The joined member is removed on the fatal exit path
	assert.Equal(t, 0, f.registry.RoomCount())

	frames := ft.sentFrames()
	var errFrame struct {
		Type string `json:"type"`
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(frames[len(frames)-1], &errFrame))
	assert.Equal(t, "error", errFrame.Type)
	assert.Equal(t, "refresh_rejected", errFrame.Code)
}

func TestServeAuthorizationFailureCloses(t *testing.T) {
	f := newSupervisorFixture()
	f.gate.identities["tok"] = &auth.Identity{UserID: "user-1"}
	f.sup.SetAuthorize(func(context.Context, Room, *auth.Identity) error {
		return apierrors.Forbidden("not a member of this conversation")
	})

	ft := newFakeTransport()
	conn := newConn(ft, ChatRoom("c1"), "tok", "")

	err := waitDone(t, f.serve(conn))
	require.Error(t, err)

	closed, code := ft.closeStatus()
	assert.True(t, closed)
	assert.Equal(t, websocket.StatusPolicyViolation, code)
	assert.Equal(t, 0, f.registry.RoomCount())
}

func TestServeBroadcastsToAllRoomMembers(t *testing.T) {
	f := newSupervisorFixture()
	room := ChatRoom("c1")
	f.gate.identities["tok-a"] = &auth.Identity{UserID: "user-a", DisplayName: "Ada"}

	senderT := newFakeTransport()
	sender := newConn(senderT, room, "tok-a", "")

	listenerT := newFakeTransport()
	listener := newConn(listenerT, room, "tok-b", "")
	f.registry.Join(room, listener)

	done := f.serve(sender)
	waitFrames(t, senderT, 1) // connected

	senderT.inbound <- []byte(`{"content":"hello room"}`)

	senderFrames := waitFrames(t, senderT, 2)
	listenerFrames := waitFrames(t, listenerT, 1)

	// Sender and listener receive byte-identical envelopes
	assert.Equal(t, senderFrames[1], listenerFrames[0])

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(listenerFrames[0], &decoded))
	assert.Equal(t, "message", decoded["type"])
	assert.Equal(t, "msg-1", decoded["id"])
	assert.Equal(t, "user-a", decoded["sender_id"])
	assert.Equal(t, "hello room", decoded["content"])

	close(senderT.inbound)
	require.NoError(t, waitDone(t, done))
}

func TestServeValidationErrorKeepsConnectionActive(t *testing.T) {
	f := newSupervisorFixture()
	room := ChatRoom("c1")
	f.gate.identities["tok"] = &auth.Identity{UserID: "user-1"}

	ft := newFakeTransport()
	conn := newConn(ft, room, "tok", "")
	done := f.serve(conn)
	waitFrames(t, ft, 1)

	ft.inbound <- []byte(`{"content":"   "}`)
	frames := waitFrames(t, ft, 2)
	assert.Equal(t, "error", frameType(t, frames[1]))
	assert.Equal(t, 1, f.registry.Count(room))

	// The connection keeps working after the rejected payload
	ft.inbound <- []byte(`{"content":"this one is fine"}`)
	frames = waitFrames(t, ft, 3)
	assert.Equal(t, "message", frameType(t, frames[2]))

	close(ft.inbound)
	require.NoError(t, waitDone(t, done))
}

func TestServeStorageErrorKeepsConnectionActive(t *testing.T) {
	f := newSupervisorFixture()
	room := ChatRoom("c1")
	f.gate.identities["tok"] = &auth.Identity{UserID: "user-1"}
	f.store.failSave = true

	ft := newFakeTransport()
	conn := newConn(ft, room, "tok", "")
	done := f.serve(conn)
	waitFrames(t, ft, 1)

	ft.inbound <- []byte(`{"content":"doomed"}`)
	frames := waitFrames(t, ft, 2)

	var errFrame struct {
		Type string `json:"type"`
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(frames[1], &errFrame))
	assert.Equal(t, "error", errFrame.Type)
	assert.Equal(t, "storage_error", errFrame.Code)
	assert.Equal(t, 1, f.registry.Count(room))

	close(ft.inbound)
	require.NoError(t, waitDone(t, done))
}

func TestServeRefreshOnlyFrameIsAcked(t *testing.T) {
	f := newSupervisorFixture()
	f.gate.identities["tok"] = &auth.Identity{UserID: "user-1"}

	ft := newFakeTransport()
	conn := newConn(ft, ChatRoom("c1"), "tok", "old-refresh")
	done := f.serve(conn)
	waitFrames(t, ft, 1)

	ft.inbound <- []byte(`{"refresh_token":"new-refresh"}`)
	frames := waitFrames(t, ft, 2)
	assert.Equal(t, "system", frameType(t, frames[1]))

	// A credential update is not a message
	assert.Equal(t, 0, f.store.messageCount())

	close(ft.inbound)
	require.NoError(t, waitDone(t, done))
}

func TestServeLeavesRoomOnDisconnect(t *testing.T) {
	f := newSupervisorFixture()
	room := ChatRoom("c1")
	f.gate.identities["tok"] = &auth.Identity{UserID: "user-1"}

	ft := newFakeTransport()
	conn := newConn(ft, room, "tok", "")
	done := f.serve(conn)
	waitFrames(t, ft, 1)
	assert.Equal(t, 1, f.registry.Count(room))

	close(ft.inbound)
	require.NoError(t, waitDone(t, done))
	assert.Equal(t, 0, f.registry.RoomCount())
	assert.Equal(t, StateClosed, conn.State())
}
