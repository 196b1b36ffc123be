package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mobile-chat/server/internal/autherr"
)

func newTestServer(t *testing.T, accessTTL time.Duration) (*httptest.Server, *Strategy, *Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	strategy, _ := newStrategy(accessTTL)
	hub := NewHub()
	h := NewHandler(strategy, hub, zap.NewNop())

	r := gin.New()
	r.GET("/ws", h.Serve)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, strategy, hub
}

func wsURL(srv *httptest.Server, query string) string {
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	if query != "" {
		u += "?" + query
	}
	return u
}

func readEvent(t *testing.T, conn *websocket.Conn) (string, json.RawMessage) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, payload, err := conn.Read(ctx)
	require.NoError(t, err)

	var ev struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(payload, &ev))
	return ev.Event, ev.Data
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, nil) //nolint:bodyclose // websocket.Dial closes the response body internally
	require.NoError(t, err)
	return conn
}

func TestServe_ValidToken(t *testing.T) {
	srv, strategy, hub := newTestServer(t, 15*time.Minute)
	token, _, err := strategy.Tokens.IssueAccess("user-1")
	require.NoError(t, err)

	conn := dial(t, wsURL(srv, "auth="+token))
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	name, data := readEvent(t, conn)
	require.Equal(t, "auth:ok", name)

	var ok authOKData
	require.NoError(t, json.Unmarshal(data, &ok))
	require.Equal(t, "user-1", ok.UserID)
	require.NotEmpty(t, ok.SocketID)

	// Registered in the hub until the connection drops.
	require.Eventually(t, func() bool {
		return len(hub.SocketsForUser("user-1")) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServe_MissingToken(t *testing.T) {
	srv, _, hub := newTestServer(t, 15*time.Minute)

	conn := dial(t, wsURL(srv, ""))
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	name, data := readEvent(t, conn)
	require.Equal(t, "auth:error", name)

	var ev autherr.SocketEvent
	require.NoError(t, json.Unmarshal(data, &ev))
	require.Equal(t, autherr.TokenMissing, ev.Code)
	require.False(t, ev.ShouldReconnect)
	require.NotEmpty(t, ev.SocketID)
	require.Equal(t, 0, hub.Len())

	// The server closes after the event; the next read fails.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	require.Error(t, err)
}

func TestServe_ExpiredToken_Reconnectable(t *testing.T) {
	srv, strategy, _ := newTestServer(t, -time.Minute)
	token, _, err := strategy.Tokens.IssueAccess("user-1")
	require.NoError(t, err)

	conn := dial(t, wsURL(srv, "token="+token))
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	name, data := readEvent(t, conn)
	require.Equal(t, "auth:error", name)

	var ev autherr.SocketEvent
	require.NoError(t, json.Unmarshal(data, &ev))
	require.Equal(t, autherr.TokenExpired, ev.Code)
	require.True(t, ev.ShouldReconnect, "expiry is recoverable after an HTTP refresh")
}

func TestServe_MalformedToken_Terminal(t *testing.T) {
	srv, _, _ := newTestServer(t, 15*time.Minute)

	conn := dial(t, wsURL(srv, "auth=not-a-jwt"))
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	name, data := readEvent(t, conn)
	require.Equal(t, "auth:error", name)

	var ev autherr.SocketEvent
	require.NoError(t, json.Unmarshal(data, &ev))
	require.Equal(t, autherr.TokenMalformed, ev.Code)
	require.False(t, ev.ShouldReconnect)
}
