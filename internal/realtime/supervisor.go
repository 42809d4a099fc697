package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/coder/websocket"
	"github.com/openforum/backend/internal/auth"
	apierrors "github.com/openforum/backend/internal/errors"
	"github.com/openforum/backend/internal/logger"
	"github.com/openforum/backend/internal/metrics"
	"go.uber.org/zap"
)

// Gate verifies bearer credentials and exchanges refresh credentials.
// Satisfied by *auth.Service.
type Gate interface {
	VerifyAccess(token string) (*auth.Identity, error)
	Refresh(refreshToken string) (*auth.TokenPair, error)
}

// AuthorizeFunc decides whether an authenticated identity may subscribe
// to a room (conversation membership, post existence).
type AuthorizeFunc func(ctx context.Context, room Room, identity *auth.Identity) error

// Presence is notified when users gain or lose live connections.
// Optional; failures are logged and never fatal.
type Presence interface {
	Online(ctx context.Context, userID string) error
	Offline(ctx context.Context, userID string) error
}

// Supervisor drives the per-connection loop: authenticate, join,
// repeatedly ingest and broadcast, and deregister on disconnect or
// fatal auth failure. One Serve call runs per connection goroutine.
type Supervisor struct {
	registry    *Registry
	gate        Gate
	ingestor    *Ingestor
	broadcaster *Broadcaster
	authorize   AuthorizeFunc
	presence    Presence
}

// NewSupervisor wires the core components together
func NewSupervisor(registry *Registry, gate Gate, ingestor *Ingestor, broadcaster *Broadcaster) *Supervisor {
	return &Supervisor{
		registry:    registry,
		gate:        gate,
		ingestor:    ingestor,
		broadcaster: broadcaster,
	}
}

// SetAuthorize installs a room authorization check
func (s *Supervisor) SetAuthorize(fn AuthorizeFunc) {
	s.authorize = fn
}

// SetPresence installs an optional presence tracker
func (s *Supervisor) SetPresence(p Presence) {
	s.presence = p
}

// Serve runs the connection's lifecycle to completion. Registry leave
// is guaranteed exactly once on every exit path.
func (s *Supervisor) Serve(ctx context.Context, conn *Conn) error {
	m := metrics.Get()
	room := conn.Room()

	conn.setState(StateAuthenticating)
	identity, err := s.authenticate(ctx, conn)
	if err != nil {
		s.rejectConn(ctx, conn, err)
		return err
	}
	conn.setIdentity(identity)

	if s.authorize != nil {
		if err := s.authorize(ctx, room, identity); err != nil {
			s.rejectConn(ctx, conn, err)
			return err
		}
	}

	s.registry.Join(room, conn)
	m.WSActiveConnections.WithLabelValues(string(room.Kind)).Inc()
	m.WSActiveRooms.Set(float64(s.registry.RoomCount()))

	defer func() {
		if conn.State() != StateClosed {
			conn.setState(StateClosing)
		}
		s.registry.Leave(room, conn)
		m.WSActiveConnections.WithLabelValues(string(room.Kind)).Dec()
		m.WSActiveRooms.Set(float64(s.registry.RoomCount()))
		if s.presence != nil {
			if err := s.presence.Offline(context.WithoutCancel(ctx), identity.UserID); err != nil {
				logger.WarnWithFields("presence offline update failed", err)
			}
		}
		conn.close(websocket.StatusNormalClosure, "closing")
	}()

	if s.presence != nil {
		if err := s.presence.Online(ctx, identity.UserID); err != nil {
			logger.WarnWithFields("presence online update failed", err)
		}
	}

	conn.setState(StateActive)
	_ = conn.Send(ctx, encodeSystemFrame("connected"))

	logger.Log.Info("realtime connection active",
		logger.WithUserID(identity.UserID),
		logger.WithRoomID(room.String()),
	)

	return s.activeLoop(ctx, conn)
}

// activeLoop serializes the connection's message cycle: receive,
// re-authenticate if needed, ingest, broadcast. Payload N's broadcast
// strictly precedes reading payload N+1.
func (s *Supervisor) activeLoop(ctx context.Context, conn *Conn) error {
	m := metrics.Get()
	room := conn.Room()

	for {
		data, err := conn.read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				websocket.CloseStatus(err) == websocket.StatusGoingAway {
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("transport read failed",
				logger.WithRoomID(room.String()),
				zap.Error(err),
			)
			return nil
		}

		var frame InboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			_ = conn.Send(ctx, encodeErrorFrame("invalid_json", "failed to parse frame"))
			continue
		}

		if frame.RefreshToken != "" {
			conn.refresh = frame.RefreshToken
			if frame.Empty() {
				_ = conn.Send(ctx, encodeSystemFrame("refresh_token_accepted"))
				continue
			}
		}

		m.WSMessagesIn.WithLabelValues(string(room.Kind)).Inc()

		// Re-authenticate at the top of each message cycle; an expired
		// bearer gets exactly one refresh attempt.
		identity, err := s.authenticate(ctx, conn)
		if err != nil {
			s.rejectConn(ctx, conn, err)
			return err
		}
		conn.setIdentity(identity)

		persisted, err := s.ingestor.Ingest(ctx, room, identity.UserID, &frame)
		if err != nil {
			// Validation and storage failures are reported to the
			// sender only; the connection stays active.
			s.reportIngestError(ctx, conn, err)
			continue
		}

		envelope := NewEnvelope(persisted, identity)
		if _, err := s.broadcaster.Broadcast(ctx, room, envelope); err != nil {
			logger.Error("broadcast failed",
				logger.WithRoomID(room.String()),
				zap.String("message_id", persisted.ID),
				zap.Error(err),
			)
		}
	}
}

// authenticate verifies the connection's bearer credential. An expired
// bearer triggers at most one refresh before the connection is
// rejected; every other failure is immediately fatal.
func (s *Supervisor) authenticate(ctx context.Context, conn *Conn) (*auth.Identity, error) {
	identity, err := s.gate.VerifyAccess(conn.bearer)
	if err == nil {
		return identity, nil
	}
	// Fatal codes end the connection; of the rest, only an expired
	// bearer is recoverable here.
	if code := authErrorCode(err); code.Fatal() || code != apierrors.ErrTokenExpired {
		return nil, err
	}
	if conn.refresh == "" {
		return nil, auth.ErrRefreshRejected
	}

	pair, err := s.gate.Refresh(conn.refresh)
	if err != nil {
		return nil, err
	}
	conn.bearer = pair.AccessToken
	conn.refresh = pair.RefreshToken
	_ = conn.Send(ctx, encodeTokenFrame(pair))

	// A bearer that is expired again right after refresh is rejected;
	// no retry loop.
	identity, err = s.gate.VerifyAccess(conn.bearer)
	if err != nil {
		return nil, auth.ErrRefreshRejected
	}
	return identity, nil
}

// rejectConn reports a fatal failure to the client and closes with a
// policy-violation status. Registry cleanup is handled by Serve's defer
// when the connection had already joined.
func (s *Supervisor) rejectConn(ctx context.Context, conn *Conn, cause error) {
	code := strings.ToLower(string(authErrorCode(cause)))
	metrics.Get().WSAuthFailures.WithLabelValues(code).Inc()

	_ = conn.Send(ctx, encodeErrorFrame(code, cause.Error()))
	conn.setState(StateClosing)
	conn.close(websocket.StatusPolicyViolation, code)

	logger.Warn("realtime connection rejected",
		logger.WithRoomID(conn.Room().String()),
		zap.String("code", code),
	)
}

// reportIngestError sends an error frame for a recoverable ingestion
// failure without disturbing other room members.
func (s *Supervisor) reportIngestError(ctx context.Context, conn *Conn, err error) {
	var storageErr *StorageError
	if errors.As(err, &storageErr) {
		_ = conn.Send(ctx, encodeErrorFrame("storage_error", "message could not be fully stored"))
		return
	}
	if code, ok := apierrors.CodeOf(err); ok {
		_ = conn.Send(ctx, encodeErrorFrame(strings.ToLower(string(code)), err.Error()))
		return
	}
	_ = conn.Send(ctx, encodeErrorFrame("internal_error", "failed to process message"))
}

// authErrorCode resolves the taxonomy code behind a rejection. The auth
// sentinels and the authorizer's errors all carry one.
func authErrorCode(err error) apierrors.ErrorCode {
	if code, ok := apierrors.CodeOf(err); ok {
		return code
	}
	return apierrors.ErrForbidden
}
