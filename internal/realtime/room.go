// Package realtime implements the fan-out messaging core: room
// membership, authenticated ingestion, persistence-then-broadcast
// sequencing, and per-connection lifecycle supervision.
package realtime

// RoomKind distinguishes the two fan-out scopes
type RoomKind string

const (
	// RoomChat is a direct-message conversation scope
	RoomChat RoomKind = "chat"
	// RoomPost is a post comment-thread scope
	RoomPost RoomKind = "post"
)

// Room names a fan-out scope. It exists implicitly once a connection or
// message references it; there is no separate lifecycle.
type Room struct {
	Kind RoomKind
	Ref  string
}

// ChatRoom returns the room for a direct conversation
func ChatRoom(conversationID string) Room {
	return Room{Kind: RoomChat, Ref: conversationID}
}

// PostRoom returns the room for a post's comment thread
func PostRoom(postID string) Room {
	return Room{Kind: RoomPost, Ref: postID}
}

// String renders the room id used in envelopes, e.g. "chat:42"
func (r Room) String() string {
	return string(r.Kind) + ":" + r.Ref
}

// AllowsAttachments reports whether payloads in this room may carry
// attachments. Comment threads are text only.
func (r Room) AllowsAttachments() bool {
	return r.Kind == RoomChat
}
