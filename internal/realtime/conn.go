package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/openforum/backend/internal/auth"
)

const (
	// Time allowed to write a frame to the peer
	writeWait = 10 * time.Second

	// Maximum frame size allowed from peer (attachments are base64 inline)
	maxMessageSize = 512 * 1024 // 512KB
)

// ConnState tracks the lifecycle of one connection
type ConnState int32

const (
	StateConnecting ConnState = iota
	StateAuthenticating
	StateActive
	StateClosing
	StateClosed
)

// String implements Stringer for ConnState
func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// transport is the duplex frame pipe behind a Conn. Production uses
// coder/websocket; tests substitute in-memory fakes.
type transport interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// wsTransport adapts a coder/websocket connection to the transport interface
type wsTransport struct {
	conn *websocket.Conn
}

func (t *wsTransport) Read(ctx context.Context) ([]byte, error) {
	_, data, err := t.conn.Read(ctx)
	return data, err
}

func (t *wsTransport) Write(ctx context.Context, data []byte) error {
	return t.conn.Write(ctx, websocket.MessageText, data)
}

func (t *wsTransport) Close(code websocket.StatusCode, reason string) error {
	return t.conn.Close(code, reason)
}

// Conn represents one live client connection. It is owned by the
// Supervisor goroutine serving it; the Registry only references it.
type Conn struct {
	t    transport
	room Room

	// Credentials presented by the client; refreshed in place
	bearer  string
	refresh string

	mu       sync.Mutex
	identity *auth.Identity
	state    ConnState
	closed   bool

	RemoteAddr string
}

// NewConn wraps an accepted websocket connection
func NewConn(ws *websocket.Conn, room Room, bearer, refreshToken string) *Conn {
	return &Conn{
		t:       &wsTransport{conn: ws},
		room:    room,
		bearer:  bearer,
		refresh: refreshToken,
		state:   StateConnecting,
	}
}

// newConn builds a connection on an arbitrary transport, for tests
func newConn(t transport, room Room, bearer, refreshToken string) *Conn {
	return &Conn{
		t:       t,
		room:    room,
		bearer:  bearer,
		refresh: refreshToken,
		state:   StateConnecting,
	}
}

// Room returns the fan-out scope this connection subscribed to
func (c *Conn) Room() Room {
	return c.room
}

// State returns the connection's lifecycle state
func (c *Conn) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Conn) setState(s ConnState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Identity returns the resolved user, or nil before authentication
func (c *Conn) Identity() *auth.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

func (c *Conn) setIdentity(id *auth.Identity) {
	c.mu.Lock()
	c.identity = id
	c.mu.Unlock()
}

// read blocks until the next inbound frame arrives
func (c *Conn) read(ctx context.Context) ([]byte, error) {
	return c.t.Read(ctx)
}

// Send delivers one frame to this connection with a bounded write wait.
// Writes are serialized; concurrent broadcasters never interleave frames.
func (c *Conn) Send(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("connection closed")
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	return c.t.Write(writeCtx, data)
}

// close shuts the transport down once; later calls are no-ops
func (c *Conn) close(code websocket.StatusCode, reason string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.state = StateClosed
	c.mu.Unlock()

	_ = c.t.Close(code, reason)
}
