package realtime

import (
	"encoding/json"
	"time"

	"github.com/openforum/backend/internal/auth"
)

// Attachment is a client-declared file riding on an inbound frame.
// Data arrives base64-encoded in the JSON frame.
type Attachment struct {
	Name      string `json:"name"`
	MediaType string `json:"media_type,omitempty"`
	Data      []byte `json:"data"`
}

// InboundFrame is one client-submitted payload. A frame carrying only a
// refresh_token updates the connection's credentials without producing
// a message.
type InboundFrame struct {
	Content      string       `json:"content,omitempty"`
	Attachments  []Attachment `json:"attachments,omitempty"`
	RefreshToken string       `json:"refresh_token,omitempty"`
}

// Empty reports whether the frame carries no message payload at all
func (f *InboundFrame) Empty() bool {
	return f.Content == "" && len(f.Attachments) == 0
}

// PersistedMessage is the durable record produced by ingestion, ready
// for envelope construction.
type PersistedMessage struct {
	ID                 string
	Room               Room
	SenderID           string
	Content            string
	CreatedAt          time.Time
	AttachmentLocators []string
}

// Envelope is the canonical outbound representation broadcast to every
// room member. The field names are part of the wire contract; clients
// depend on them.
type Envelope struct {
	ID                 string    `json:"id"`
	RoomID             string    `json:"room_id"`
	SenderID           string    `json:"sender_id"`
	SenderDisplayName  string    `json:"sender_display_name"`
	SenderAvatar       string    `json:"sender_avatar"`
	Content            string    `json:"content"`
	AttachmentLocators []string  `json:"attachment_locators"`
	CreatedAt          time.Time `json:"created_at"`
}

// NewEnvelope derives the canonical envelope from a persisted message
// and the sender's display attributes. CreatedAt is normalized to UTC.
func NewEnvelope(msg *PersistedMessage, sender *auth.Identity) *Envelope {
	locators := msg.AttachmentLocators
	if locators == nil {
		locators = []string{}
	}
	return &Envelope{
		ID:                 msg.ID,
		RoomID:             msg.Room.String(),
		SenderID:           msg.SenderID,
		SenderDisplayName:  sender.DisplayName,
		SenderAvatar:       sender.AvatarURL,
		Content:            msg.Content,
		AttachmentLocators: locators,
		CreatedAt:          msg.CreatedAt.UTC(),
	}
}

// Server frame types
const (
	frameTypeMessage = "message"
	frameTypeError   = "error"
	frameTypeToken   = "token"
	frameTypeSystem  = "system"
)

// messageFrame wraps an envelope with its type discriminator; the
// envelope fields flatten to the top level of the JSON frame.
type messageFrame struct {
	Type string `json:"type"`
	*Envelope
}

// errorFrame reports a failure back to the offending sender only
type errorFrame struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// tokenFrame delivers a freshly issued credential pair after a
// mid-connection refresh.
type tokenFrame struct {
	Type         string    `json:"type"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// systemFrame carries connection lifecycle events
type systemFrame struct {
	Type  string `json:"type"`
	Event string `json:"event"`
}

// encodeMessageFrame marshals the envelope exactly once so every
// recipient receives byte-identical frames.
func encodeMessageFrame(env *Envelope) ([]byte, error) {
	return json.Marshal(messageFrame{Type: frameTypeMessage, Envelope: env})
}

func encodeErrorFrame(code, message string) []byte {
	data, _ := json.Marshal(errorFrame{Type: frameTypeError, Code: code, Message: message})
	return data
}

func encodeTokenFrame(pair *auth.TokenPair) []byte {
	data, _ := json.Marshal(tokenFrame{
		Type:         frameTypeToken,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
	})
	return data
}

func encodeSystemFrame(event string) []byte {
	data, _ := json.Marshal(systemFrame{Type: frameTypeSystem, Event: event})
	return data
}
