// Package autherr defines the authentication error taxonomy shared by the
// HTTP guards, the refresh path, and the WebSocket strategy. Each leaf
// carries a fixed user-presentable message and a relogin/reconnect hint so
// clients never parse error text.
package autherr

import (
	"fmt"
	"net/http"
	"time"
)

// Type identifies one leaf of the auth error taxonomy.
type Type string

// Access-token path.
const (
	TokenExpired   Type = "token_expired"
	TokenInvalid   Type = "token_invalid"
	TokenMissing   Type = "token_missing"
	TokenMalformed Type = "token_malformed"
	SessionInvalid Type = "session_invalid"
	Unauthorized   Type = "unauthorized"
)

// Refresh-token path.
const (
	RefreshTokenExpired   Type = "refresh_token_expired"
	RefreshTokenInvalid   Type = "refresh_token_invalid"
	RefreshTokenMissing   Type = "refresh_token_missing"
	RefreshTokenMalformed Type = "refresh_token_malformed"
	DeviceMismatch        Type = "device_mismatch"
	SessionRevoked        Type = "session_revoked"
	RefreshUnauthorized   Type = "refresh_unauthorized"
)

// messages maps every taxonomy leaf to its fixed user-presentable message.
var messages = map[Type]string{
	TokenExpired:   "Access token has expired",
	TokenInvalid:   "Access token is invalid",
	TokenMissing:   "Access token is required",
	TokenMalformed: "Access token is malformed",
	SessionInvalid: "Session is no longer valid",
	Unauthorized:   "Authentication failed",

	RefreshTokenExpired:   "Refresh token has expired, please sign in again",
	RefreshTokenInvalid:   "Refresh token is invalid, please sign in again",
	RefreshTokenMissing:   "Refresh token is required",
	RefreshTokenMalformed: "Refresh token is malformed, please sign in again",
	DeviceMismatch:        "Refresh token does not belong to this device, please sign in again",
	SessionRevoked:        "Session has been revoked, please sign in again",
	RefreshUnauthorized:   "Could not refresh session, please sign in again",
}

// shouldRelogin marks the leaves that are never locally recoverable: the
// client must clear its session state and route to login. Access-token
// expiry is absent because the client recovers via the refresh flow.
var shouldRelogin = map[Type]bool{
	SessionInvalid:        true,
	RefreshTokenExpired:   true,
	RefreshTokenInvalid:   true,
	RefreshTokenMissing:   true,
	RefreshTokenMalformed: true,
	DeviceMismatch:        true,
	SessionRevoked:        true,
	RefreshUnauthorized:   true,
}

// Error is one classified authentication failure. It is the tagged union
// dispatched by handlers and guards; never match on message text.
type Error struct {
	Type          Type
	Message       string
	ShouldRelogin bool
}

// New returns the Error for the given taxonomy leaf with its fixed message
// and relogin hint.
func New(t Type) *Error {
	msg, ok := messages[t]
	if !ok {
		t = Unauthorized
		msg = messages[Unauthorized]
	}
	return &Error{Type: t, Message: msg, ShouldRelogin: shouldRelogin[t]}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Is lets errors.Is match two taxonomy errors by Type.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Type == e.Type
}

// Response is the structured body returned on every auth-guard rejection.
type Response struct {
	StatusCode    int       `json:"statusCode"`
	ErrorType     Type      `json:"errorType"`
	Message       string    `json:"message"`
	Path          string    `json:"path"`
	Timestamp     time.Time `json:"timestamp"`
	RequestID     string    `json:"requestId,omitempty"`
	ShouldRelogin bool      `json:"shouldRelogin,omitempty"`
}

// NewResponse builds the 401 response body for e on the given request path.
func NewResponse(e *Error, path, requestID string) Response {
	return Response{
		StatusCode:    http.StatusUnauthorized,
		ErrorType:     e.Type,
		Message:       e.Message,
		Path:          path,
		Timestamp:     time.Now().UTC(),
		RequestID:     requestID,
		ShouldRelogin: e.ShouldRelogin,
	}
}

// SocketEvent is the structured auth:error payload emitted to a WebSocket
// before the connection is closed.
type SocketEvent struct {
	Message         string    `json:"message"`
	Code            Type      `json:"code"`
	Timestamp       time.Time `json:"timestamp"`
	SocketID        string    `json:"socketId"`
	ShouldReconnect bool      `json:"shouldReconnect"`
}

// NewSocketEvent builds the auth:error event for e. Only expiry is worth a
// reconnect (the client refreshes over HTTP first); everything else is
// terminal for the presented token.
func NewSocketEvent(e *Error, socketID string) SocketEvent {
	return SocketEvent{
		Message:         e.Message,
		Code:            e.Type,
		Timestamp:       time.Now().UTC(),
		SocketID:        socketID,
		ShouldReconnect: e.Type == TokenExpired,
	}
}
