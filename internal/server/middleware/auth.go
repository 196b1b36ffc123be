package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"mobile-chat/server/internal/autherr"
	"mobile-chat/server/internal/security"
)

const (
	userIDKey      = "authUserID"
	accessTokenKey = "authAccessToken"
)

// Auth is the access-token guard for protected routes. It verifies the
// bearer token statelessly; the session store is never consulted on this
// path.
type Auth struct {
	Tokens *security.TokenProvider
}

// RequireAuth rejects the request with a classified 401 unless a valid
// bearer access token is present, and attaches the resolved user id to the
// request context.
func (m *Auth) RequireAuth(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		AbortWithAuthError(c, autherr.New(autherr.TokenMissing))
		return
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		AbortWithAuthError(c, autherr.New(autherr.TokenMalformed))
		return
	}
	claims, err := m.Tokens.ParseAccess(parts[1])
	if err != nil {
		AbortWithAuthError(c, autherr.New(ClassifyAccessParse(err)))
		return
	}
	c.Set(userIDKey, claims.Subject)
	c.Set(accessTokenKey, parts[1])
	c.Next()
}

// GetUserID returns the user id resolved by RequireAuth.
func GetUserID(c *gin.Context) (string, bool) {
	id := c.GetString(userIDKey)
	return id, id != ""
}

// ClassifyAccessParse maps a token parse failure onto the access-token
// taxonomy.
func ClassifyAccessParse(err error) autherr.Type {
	switch {
	case errors.Is(err, security.ErrTokenExpired):
		return autherr.TokenExpired
	case errors.Is(err, security.ErrTokenMalformed):
		return autherr.TokenMalformed
	default:
		return autherr.TokenInvalid
	}
}

// AbortWithAuthError stops the request with the structured 401 body.
func AbortWithAuthError(c *gin.Context, e *autherr.Error) {
	resp := autherr.NewResponse(e, c.Request.URL.Path, GetRequestID(c))
	c.AbortWithStatusJSON(http.StatusUnauthorized, resp)
}
