package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"mobile-chat/server/internal/autherr"
	"mobile-chat/server/internal/security"
)

func newGuardedRouter(accessTTL time.Duration) (*gin.Engine, *security.TokenProvider) {
	gin.SetMode(gin.TestMode)
	tokens := security.NewTokenProvider(
		[]byte("test-access-secret"), []byte("test-refresh-secret"),
		"chat-auth", "chat-api",
		accessTTL, 168*time.Hour,
	)
	guard := &Auth{Tokens: tokens}

	r := gin.New()
	r.Use(RequestID)
	r.GET("/protected", guard.RequireAuth, func(c *gin.Context) {
		userID, _ := GetUserID(c)
		c.JSON(http.StatusOK, gin.H{"userId": userID})
	})
	return r, tokens
}

func doRequest(t *testing.T, r *gin.Engine, authorization string) (*httptest.ResponseRecorder, autherr.Response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var body autherr.Response
	if w.Code != http.StatusOK {
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("unmarshal error body: %v: %s", err, w.Body.String())
		}
	}
	return w, body
}

func TestRequireAuth_ValidToken(t *testing.T) {
	r, tokens := newGuardedRouter(15 * time.Minute)
	token, _, err := tokens.IssueAccess("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	w, _ := doRequest(t, r, "Bearer "+token)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if got := w.Body.String(); got != `{"userId":"user-1"}` {
		t.Errorf("body = %s", got)
	}
}

func TestRequireAuth_MissingToken(t *testing.T) {
	r, _ := newGuardedRouter(15 * time.Minute)

	w, body := doRequest(t, r, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if body.ErrorType != autherr.TokenMissing {
		t.Errorf("errorType = %s, want token_missing", body.ErrorType)
	}
	if body.Path != "/protected" {
		t.Errorf("path = %q, want /protected", body.Path)
	}
	if body.RequestID == "" {
		t.Error("requestId should be propagated into the error body")
	}
}

func TestRequireAuth_ExpiredToken(t *testing.T) {
	r, tokens := newGuardedRouter(-time.Minute)
	token, _, err := tokens.IssueAccess("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	w, body := doRequest(t, r, "Bearer "+token)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if body.ErrorType != autherr.TokenExpired {
		t.Errorf("errorType = %s, want token_expired", body.ErrorType)
	}
	if body.ShouldRelogin {
		t.Error("token_expired is refresh-recoverable; shouldRelogin must be absent")
	}
}

func TestRequireAuth_MalformedHeader(t *testing.T) {
	r, _ := newGuardedRouter(15 * time.Minute)

	for _, header := range []string{"Bearer", "Basic dXNlcg==", "Bearer not.a.jwt"} {
		want := autherr.TokenMalformed
		w, body := doRequest(t, r, header)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%q: status = %d, want 401", header, w.Code)
		}
		if body.ErrorType != want {
			t.Errorf("%q: errorType = %s, want %s", header, body.ErrorType, want)
		}
	}
}

func TestRequireAuth_InvalidSignature(t *testing.T) {
	r, _ := newGuardedRouter(15 * time.Minute)
	other := security.NewTokenProvider(
		[]byte("other-access-secret"), []byte("other-refresh-secret"),
		"chat-auth", "chat-api", 15*time.Minute, time.Hour,
	)
	token, _, err := other.IssueAccess("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	w, body := doRequest(t, r, "Bearer "+token)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if body.ErrorType != autherr.TokenInvalid {
		t.Errorf("errorType = %s, want token_invalid", body.ErrorType)
	}
}
