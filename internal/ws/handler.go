package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"mobile-chat/server/internal/autherr"
)

// wsConn is the subset of *websocket.Conn the handler needs; narrowed so
// tests can substitute a fake connection.
type wsConn interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// Socket is the per-connection state attached after a successful handshake.
type Socket struct {
	ID       string
	Identity Identity
	conn     wsConn
}

// event is the envelope for every message pushed to the client.
type event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type authOKData struct {
	SocketID string `json:"socketId"`
	UserID   string `json:"userId"`
}

const writeTimeout = 5 * time.Second

// Handler upgrades and authenticates WebSocket connections.
type Handler struct {
	strategy *Strategy
	hub      *Hub
	log      *zap.Logger
}

// NewHandler returns a Handler using the given strategy and hub.
func NewHandler(strategy *Strategy, hub *Hub, log *zap.Logger) *Handler {
	return &Handler{strategy: strategy, hub: hub, log: log}
}

// Serve upgrades the request and authenticates the connection once. On
// failure the structured auth:error event is written before the close so the
// client can tell "refresh and reconnect" from "give up".
func (h *Handler) Serve(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket accept failed", zap.Error(err))
		return
	}
	socketID := uuid.New().String()

	identity, authErr := h.strategy.Authenticate(c.Request)
	if authErr != nil {
		h.rejectSocket(c.Request.Context(), conn, socketID, authErr)
		return
	}

	sock := &Socket{ID: socketID, Identity: *identity, conn: conn}
	if err := writeEvent(c.Request.Context(), conn, event{
		Event: "auth:ok",
		Data:  authOKData{SocketID: socketID, UserID: identity.UserID},
	}); err != nil {
		conn.Close(websocket.StatusInternalError, "write failed")
		return
	}

	h.hub.Register(sock)
	defer h.hub.Unregister(socketID)
	h.log.Info("websocket connected",
		zap.String("socket_id", socketID),
		zap.String("user_id", identity.UserID),
	)

	h.readLoop(c.Request.Context(), sock)
}

// rejectSocket emits the auth:error event and then closes. The write must
// complete before the close or the client misses the diagnostic.
func (h *Handler) rejectSocket(ctx context.Context, conn wsConn, socketID string, authErr *autherr.Error) {
	ev := autherr.NewSocketEvent(authErr, socketID)
	if err := writeEvent(ctx, conn, event{Event: "auth:error", Data: ev}); err != nil {
		h.log.Warn("auth:error write failed", zap.Error(err), zap.String("socket_id", socketID))
	}
	conn.Close(websocket.StatusPolicyViolation, string(authErr.Type))
	h.log.Info("websocket rejected",
		zap.String("socket_id", socketID),
		zap.String("error_type", string(authErr.Type)),
	)
}

// readLoop drains the connection until it closes. Message semantics beyond
// authentication (chat traffic) belong to the messaging layer; aged tokens
// do not terminate an established connection.
func (h *Handler) readLoop(ctx context.Context, sock *Socket) {
	for {
		if _, _, err := sock.conn.Read(ctx); err != nil {
			sock.conn.Close(websocket.StatusNormalClosure, "bye")
			return
		}
	}
}

func writeEvent(ctx context.Context, conn wsConn, ev event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, payload)
}
