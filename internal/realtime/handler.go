package realtime

import (
	"context"
	"strings"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/openforum/backend/internal/auth"
	apierrors "github.com/openforum/backend/internal/errors"
	"github.com/openforum/backend/internal/logger"
	"go.uber.org/zap"
)

// Handler upgrades HTTP requests to room-scoped websocket connections.
// Credentials travel in query params (?token=...&refresh=...) or the
// Authorization header; verification happens inside the supervisor so
// rejections reach the client as a close frame rather than an HTTP status.
type Handler struct {
	supervisor *Supervisor
}

// NewHandler creates a websocket upgrade handler
func NewHandler(supervisor *Supervisor) *Handler {
	return &Handler{supervisor: supervisor}
}

// HandleChat subscribes the caller to a conversation room.
// GET /api/ws/chats/:id
func (h *Handler) HandleChat(c *gin.Context) {
	h.upgrade(c, ChatRoom(c.Param("id")))
}

// HandlePost subscribes the caller to a post's comment room.
// GET /api/ws/posts/:id
func (h *Handler) HandlePost(c *gin.Context) {
	h.upgrade(c, PostRoom(c.Param("id")))
}

func (h *Handler) upgrade(c *gin.Context, room Room) {
	bearer := bearerFromRequest(c)
	refresh := c.Query("refresh")

	ws, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		// In production, set specific origins
		InsecureSkipVerify: true, // TODO: Configure allowed origins for production
		CompressionMode:    websocket.CompressionContextTakeover,
	})
	if err != nil {
		logger.Warn("websocket upgrade failed",
			logger.WithRoomID(room.String()),
			zap.Error(err),
		)
		return
	}
	ws.SetReadLimit(maxMessageSize)

	conn := NewConn(ws, room, bearer, refresh)
	conn.RemoteAddr = c.ClientIP()

	// The supervisor owns the connection from here. Serve blocks until
	// the connection is closed, so the request context stays alive for
	// the lifetime of the socket.
	if err := h.supervisor.Serve(c.Request.Context(), conn); err != nil {
		logger.Warn("realtime session ended with error",
			logger.WithRoomID(room.String()),
			zap.Error(err),
		)
	}
}

// bearerFromRequest extracts the access token from the query string or
// the Authorization header, preferring the query param since browser
// websocket clients cannot set headers.
func bearerFromRequest(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	header := c.GetHeader("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return after
	}
	return ""
}

// RepositoryAuthorizer builds the room authorization policy: chat
// rooms require conversation membership, post rooms require the post
// to exist.
func RepositoryAuthorizer(repo roomAuthorizer) AuthorizeFunc {
	return func(ctx context.Context, room Room, identity *auth.Identity) error {
		switch room.Kind {
		case RoomChat:
			member, err := repo.IsConversationMember(ctx, room.Ref, identity.UserID)
			if err != nil {
				return err
			}
			if !member {
				return apierrors.Forbidden("not a member of this conversation")
			}
			return nil
		case RoomPost:
			exists, err := repo.PostExists(ctx, room.Ref)
			if err != nil {
				return err
			}
			if !exists {
				return apierrors.NotFound("post")
			}
			return nil
		default:
			return apierrors.Forbidden("unknown room kind")
		}
	}
}

type roomAuthorizer interface {
	IsConversationMember(ctx context.Context, conversationID, userID string) (bool, error)
	PostExists(ctx context.Context, postID string) (bool, error)
}
