// Package ws authenticates and tracks persistent WebSocket connections.
// Authentication happens once at the handshake; message handlers read the
// per-socket state instead of re-verifying tokens.
package ws

import (
	"net/http"
	"strings"
	"time"

	"mobile-chat/server/internal/autherr"
	"mobile-chat/server/internal/security"
	"mobile-chat/server/internal/server/middleware"
)

// Identity is the resolved authentication result pinned to a socket for the
// lifetime of the connection.
type Identity struct {
	UserID          string
	RemoteAddr      string
	AuthenticatedAt time.Time
}

// Strategy verifies access tokens at WebSocket handshake time. It reuses the
// access-token codec: WS connections never refresh in-band, the client
// reconnects with a fresh token obtained over HTTP.
type Strategy struct {
	Tokens *security.TokenProvider
}

// ExtractToken pulls the access token from the handshake request. Precedence:
// Authorization header (Bearer), then the auth query parameter, then the
// token query parameter; the first present value wins.
func (s *Strategy) ExtractToken(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1], true
		}
		return header, true
	}
	q := r.URL.Query()
	if token := q.Get("auth"); token != "" {
		return token, true
	}
	if token := q.Get("token"); token != "" {
		return token, true
	}
	return "", false
}

// Authenticate runs the handshake check: extract, verify, resolve. Failures
// come back as a classified *autherr.Error for the caller to emit.
func (s *Strategy) Authenticate(r *http.Request) (*Identity, *autherr.Error) {
	token, ok := s.ExtractToken(r)
	if !ok {
		return nil, autherr.New(autherr.TokenMissing)
	}
	claims, err := s.Tokens.ParseAccess(token)
	if err != nil {
		return nil, autherr.New(middleware.ClassifyAccessParse(err))
	}
	return &Identity{
		UserID:          claims.Subject,
		RemoteAddr:      r.RemoteAddr,
		AuthenticatedAt: time.Now().UTC(),
	}, nil
}
