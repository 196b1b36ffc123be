package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mobile-chat/server/internal/auth/service"
	"mobile-chat/server/internal/autherr"
	"mobile-chat/server/internal/security"
	"mobile-chat/server/internal/server/middleware"
	sessiondomain "mobile-chat/server/internal/session/domain"
	userdomain "mobile-chat/server/internal/user/domain"
)

type stubAuthService struct {
	signupUser  *userdomain.User
	signupErr   error
	signinRes   *service.AuthResult
	signinErr   error
	refreshRes  *service.AuthResult
	refreshErr  error
	logoutErr   error
	othersCount int64
	othersErr   error
	allCount    int64
	sessions    []*sessiondomain.Session

	gotLogoutSessionID string
	gotRefreshToken    string
	gotRefreshDevice   string
}

func (s *stubAuthService) Signup(_ context.Context, _, _, _, _ string) (*userdomain.User, error) {
	return s.signupUser, s.signupErr
}

func (s *stubAuthService) Signin(_ context.Context, _, _ string, _ sessiondomain.DeviceInfo) (*service.AuthResult, error) {
	return s.signinRes, s.signinErr
}

func (s *stubAuthService) Refresh(_ context.Context, refreshToken, deviceID string) (*service.AuthResult, error) {
	s.gotRefreshToken = refreshToken
	s.gotRefreshDevice = deviceID
	return s.refreshRes, s.refreshErr
}

func (s *stubAuthService) Logout(_ context.Context, _, sessionID string) error {
	s.gotLogoutSessionID = sessionID
	return s.logoutErr
}

func (s *stubAuthService) LogoutOthers(_ context.Context, _, _ string) (int64, error) {
	return s.othersCount, s.othersErr
}

func (s *stubAuthService) LogoutAll(_ context.Context, _ string) (int64, error) {
	return s.allCount, nil
}

func (s *stubAuthService) Sessions(_ context.Context, _ string) ([]*sessiondomain.Session, error) {
	return s.sessions, nil
}

func newHandlerRouter(svc AuthService) (*gin.Engine, *security.TokenProvider) {
	gin.SetMode(gin.TestMode)
	tokens := security.NewTokenProvider(
		[]byte("test-access-secret"), []byte("test-refresh-secret"),
		"chat-auth", "chat-api",
		15*time.Minute, 168*time.Hour,
	)
	guard := &middleware.Auth{Tokens: tokens}
	h := NewAuthHandler(svc, zap.NewNop())

	r := gin.New()
	r.Use(middleware.RequestID)
	auth := r.Group("/auth")
	auth.POST("/signup", h.Signup)
	auth.POST("/signin", h.Signin)
	auth.POST("/refresh", h.Refresh)
	auth.POST("/logout", guard.RequireAuth, h.Logout)
	auth.POST("/logout-others", guard.RequireAuth, h.LogoutOthers)
	auth.POST("/logout-all", guard.RequireAuth, h.LogoutAll)
	auth.GET("/sessions", guard.RequireAuth, h.Sessions)
	return r, tokens
}

func postJSON(t *testing.T, r *gin.Engine, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func testUser() *userdomain.User {
	return &userdomain.User{ID: "user-1", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"}
}

func TestSignup_Created(t *testing.T) {
	svc := &stubAuthService{signupUser: testUser()}
	r, _ := newHandlerRouter(svc)

	w := postJSON(t, r, "/auth/signup", "", gin.H{
		"firstName": "Ada", "lastName": "Lovelace",
		"email": "ada@example.com", "password": "correct-horse",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["id"] != "user-1" || resp["email"] != "ada@example.com" {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
	if _, ok := resp["accessToken"]; ok {
		t.Error("signup must not issue tokens")
	}
}

func TestSignup_DuplicateEmail(t *testing.T) {
	svc := &stubAuthService{signupErr: service.ErrEmailAlreadyRegistered}
	r, _ := newHandlerRouter(svc)

	w := postJSON(t, r, "/auth/signup", "", gin.H{
		"firstName": "Ada", "email": "ada@example.com", "password": "correct-horse",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
}

func TestSignup_ValidationError(t *testing.T) {
	svc := &stubAuthService{signupErr: &service.ValidationError{Reason: "invalid email format"}}
	r, _ := newHandlerRouter(svc)

	w := postJSON(t, r, "/auth/signup", "", gin.H{
		"firstName": "Ada", "email": "nope", "password": "correct-horse",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestSignin_ReturnsTokenPairAndSession(t *testing.T) {
	svc := &stubAuthService{signinRes: &service.AuthResult{
		User:         testUser(),
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		SessionID:    "session-1",
	}}
	r, _ := newHandlerRouter(svc)

	w := postJSON(t, r, "/auth/signin", "", gin.H{
		"email": "ada@example.com", "password": "correct-horse",
		"deviceInfo": gin.H{"deviceId": "device-1"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"id", "firstName", "lastName", "email", "accessToken", "refreshToken", "sessionId"} {
		if _, ok := resp[key]; !ok {
			t.Errorf("response missing %q: %s", key, w.Body.String())
		}
	}
}

func TestSignin_InvalidCredentials(t *testing.T) {
	svc := &stubAuthService{signinErr: service.ErrInvalidCredentials}
	r, _ := newHandlerRouter(svc)

	w := postJSON(t, r, "/auth/signin", "", gin.H{
		"email": "ada@example.com", "password": "wrong",
		"deviceInfo": gin.H{"deviceId": "device-1"},
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	var resp autherr.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.ErrorType != autherr.Unauthorized {
		t.Errorf("errorType = %s, want unauthorized", resp.ErrorType)
	}
}

func TestRefresh_PassesThroughTaxonomy(t *testing.T) {
	svc := &stubAuthService{refreshErr: autherr.New(autherr.DeviceMismatch)}
	r, _ := newHandlerRouter(svc)

	w := postJSON(t, r, "/auth/refresh", "", gin.H{"refreshToken": "tok", "deviceId": "device-2"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	var resp autherr.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.ErrorType != autherr.DeviceMismatch {
		t.Errorf("errorType = %s, want device_mismatch", resp.ErrorType)
	}
	if !resp.ShouldRelogin {
		t.Error("device_mismatch must set shouldRelogin")
	}
	if resp.Path != "/auth/refresh" {
		t.Errorf("path = %q", resp.Path)
	}
	if svc.gotRefreshDevice != "device-2" {
		t.Errorf("deviceId passed = %q", svc.gotRefreshDevice)
	}
}

func TestRefresh_StoreFailureFailsClosed(t *testing.T) {
	svc := &stubAuthService{refreshErr: context.DeadlineExceeded}
	r, _ := newHandlerRouter(svc)

	w := postJSON(t, r, "/auth/refresh", "", gin.H{"refreshToken": "tok", "deviceId": "device-1"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	var resp autherr.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.ErrorType != autherr.RefreshUnauthorized {
		t.Errorf("errorType = %s, want refresh_unauthorized", resp.ErrorType)
	}
}

func TestLogout_RequiresAuth(t *testing.T) {
	r, _ := newHandlerRouter(&stubAuthService{})

	w := postJSON(t, r, "/auth/logout", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	var resp autherr.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.ErrorType != autherr.TokenMissing {
		t.Errorf("errorType = %s, want token_missing", resp.ErrorType)
	}
}

func TestLogout_TargetedAndBulk(t *testing.T) {
	svc := &stubAuthService{}
	r, tokens := newHandlerRouter(svc)
	token, _, err := tokens.IssueAccess("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	w := postJSON(t, r, "/auth/logout", token, gin.H{"sessionId": "session-2"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if svc.gotLogoutSessionID != "session-2" {
		t.Errorf("sessionId passed = %q, want session-2", svc.gotLogoutSessionID)
	}

	// No body at all revokes everything.
	w = postJSON(t, r, "/auth/logout", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if svc.gotLogoutSessionID != "" {
		t.Errorf("sessionId passed = %q, want empty", svc.gotLogoutSessionID)
	}
}

func TestLogoutOthers_ReturnsCount(t *testing.T) {
	svc := &stubAuthService{othersCount: 2}
	r, tokens := newHandlerRouter(svc)
	token, _, err := tokens.IssueAccess("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	w := postJSON(t, r, "/auth/logout-others", token, gin.H{"currentSessionId": "session-1"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["revokedCount"] != float64(2) {
		t.Errorf("revokedCount = %v, want 2", resp["revokedCount"])
	}
}

func TestSessions_List(t *testing.T) {
	svc := &stubAuthService{sessions: []*sessiondomain.Session{
		{ID: "session-1", DeviceInfo: sessiondomain.DeviceInfo{DeviceID: "device-1"}},
	}}
	r, tokens := newHandlerRouter(svc)
	token, _, err := tokens.IssueAccess("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/auth/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Sessions []map[string]any `json:"sessions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Sessions) != 1 || resp.Sessions[0]["sessionId"] != "session-1" {
		t.Errorf("unexpected sessions: %s", w.Body.String())
	}
}
