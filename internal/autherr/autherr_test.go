package autherr

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestNew_KnownTypes(t *testing.T) {
	e := New(TokenExpired)
	if e.Type != TokenExpired {
		t.Errorf("type = %q, want %q", e.Type, TokenExpired)
	}
	if e.Message == "" {
		t.Error("message should be set")
	}
	if e.ShouldRelogin {
		t.Error("access-token expiry is recoverable via refresh; shouldRelogin must be false")
	}
}

func TestNew_RefreshPathAlwaysRelogin(t *testing.T) {
	for _, typ := range []Type{
		RefreshTokenExpired, RefreshTokenInvalid, RefreshTokenMissing,
		RefreshTokenMalformed, DeviceMismatch, SessionRevoked, RefreshUnauthorized,
	} {
		if e := New(typ); !e.ShouldRelogin {
			t.Errorf("%s: shouldRelogin = false, want true", typ)
		}
	}
}

func TestNew_UnknownTypeNormalizes(t *testing.T) {
	e := New(Type("something_unexpected"))
	if e.Type != Unauthorized {
		t.Errorf("type = %q, want %q", e.Type, Unauthorized)
	}
}

func TestError_Is(t *testing.T) {
	if !errors.Is(New(SessionRevoked), New(SessionRevoked)) {
		t.Error("errors.Is should match same taxonomy type")
	}
	if errors.Is(New(SessionRevoked), New(DeviceMismatch)) {
		t.Error("errors.Is should not match different taxonomy types")
	}
}

func TestNewResponse_Shape(t *testing.T) {
	resp := NewResponse(New(DeviceMismatch), "/auth/refresh", "req-1")

	b, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(b)
	for _, key := range []string{`"statusCode":401`, `"errorType":"device_mismatch"`, `"path":"/auth/refresh"`, `"requestId":"req-1"`, `"shouldRelogin":true`} {
		if !strings.Contains(body, key) {
			t.Errorf("response body missing %s: %s", key, body)
		}
	}
}

func TestNewResponse_OmitsReloginOnAccessExpiry(t *testing.T) {
	resp := NewResponse(New(TokenExpired), "/chats", "")

	b, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(b), "shouldRelogin") {
		t.Errorf("shouldRelogin should be omitted for token_expired: %s", b)
	}
	if strings.Contains(string(b), "requestId") {
		t.Errorf("requestId should be omitted when empty: %s", b)
	}
}

func TestNewSocketEvent_ReconnectOnlyOnExpiry(t *testing.T) {
	ev := NewSocketEvent(New(TokenExpired), "sock-1")
	if !ev.ShouldReconnect {
		t.Error("expired token: shouldReconnect = false, want true")
	}
	if ev.SocketID != "sock-1" {
		t.Errorf("socketId = %q, want %q", ev.SocketID, "sock-1")
	}

	for _, typ := range []Type{TokenMalformed, TokenInvalid, TokenMissing} {
		if ev := NewSocketEvent(New(typ), "sock-1"); ev.ShouldReconnect {
			t.Errorf("%s: shouldReconnect = true, want false", typ)
		}
	}
}
