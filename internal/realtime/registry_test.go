package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryJoinIsIdempotent(t *testing.T) {
	reg := NewRegistry()
	room := ChatRoom("c1")
	conn := newConn(newFakeTransport(), room, "tok", "")

	reg.Join(room, conn)
	reg.Join(room, conn)

	assert.Equal(t, 1, reg.Count(room))
	assert.Equal(t, 1, reg.RoomCount())
}

func TestRegistryLeaveRemovesEmptyRoom(t *testing.T) {
	reg := NewRegistry()
	room := ChatRoom("c1")
	a := newConn(newFakeTransport(), room, "tok", "")
	b := newConn(newFakeTransport(), room, "tok", "")

	reg.Join(room, a)
	reg.Join(room, b)
	assert.Equal(t, 2, reg.Count(room))

	reg.Leave(room, a)
	assert.Equal(t, 1, reg.Count(room))
	assert.Equal(t, 1, reg.RoomCount())

	reg.Leave(room, b)
	assert.Equal(t, 0, reg.Count(room))
	assert.Equal(t, 0, reg.RoomCount())
}

func TestRegistryLeaveIsIdempotent(t *testing.T) {
	reg := NewRegistry()
	room := PostRoom("p1")
	conn := newConn(newFakeTransport(), room, "tok", "")

	reg.Join(room, conn)
	reg.Leave(room, conn)
	// Disconnect cleanup and broadcast self-healing may both remove
	// the same connection
	reg.Leave(room, conn)

	assert.Equal(t, 0, reg.Count(room))
	assert.Nil(t, reg.Members(room))
}

func TestRegistryMembersReturnsSnapshot(t *testing.T) {
	reg := NewRegistry()
	room := ChatRoom("c1")
	a := newConn(newFakeTransport(), room, "tok", "")
	b := newConn(newFakeTransport(), room, "tok", "")

	reg.Join(room, a)
	reg.Join(room, b)

	snapshot := reg.Members(room)
	reg.Leave(room, a)

	assert.Len(t, snapshot, 2)
	assert.Equal(t, 1, reg.Count(room))
}

func TestRegistryRoomsAreScopedByKind(t *testing.T) {
	reg := NewRegistry()
	chat := ChatRoom("42")
	post := PostRoom("42")
	conn := newConn(newFakeTransport(), chat, "tok", "")

	reg.Join(chat, conn)

	assert.Equal(t, 1, reg.Count(chat))
	assert.Equal(t, 0, reg.Count(post))
}
