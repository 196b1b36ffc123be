package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("JWT_ACCESS_SECRET", "access-secret")
	t.Setenv("JWT_REFRESH_SECRET", "refresh-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}
	if cfg.JWTIssuer != "chat-auth" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "chat-auth")
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
}

func TestLoad_MissingSecrets(t *testing.T) {
	t.Setenv("JWT_ACCESS_SECRET", "")
	t.Setenv("JWT_REFRESH_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when secrets are unset")
	}
}

func TestLoad_EqualSecretsRejected(t *testing.T) {
	t.Setenv("JWT_ACCESS_SECRET", "same")
	t.Setenv("JWT_REFRESH_SECRET", "same")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when access and refresh secrets are equal")
	}
}

func TestLoad_InvalidBcryptCost(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BCRYPT_COST", "99")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for out-of-range BCRYPT_COST")
	}
}

func TestAccessTTL_ParsesDuration(t *testing.T) {
	cfg := &Config{JWTAccessTTL: "30m"}
	if got := cfg.AccessTTL(); got != 30*time.Minute {
		t.Errorf("AccessTTL = %v, want 30m", got)
	}
}

func TestAccessTTL_FallsBackOnInvalid(t *testing.T) {
	cfg := &Config{JWTAccessTTL: "7d"} // not a Go duration
	if got := cfg.AccessTTL(); got != 15*time.Minute {
		t.Errorf("AccessTTL = %v, want 15m fallback", got)
	}
}

func TestRefreshTTL_ParsesDuration(t *testing.T) {
	cfg := &Config{JWTRefreshTTL: "720h"}
	if got := cfg.RefreshTTL(); got != 720*time.Hour {
		t.Errorf("RefreshTTL = %v, want 720h", got)
	}
}

func TestCleanupInterval_Default(t *testing.T) {
	cfg := &Config{}
	if got := cfg.CleanupInterval(); got != time.Hour {
		t.Errorf("CleanupInterval = %v, want 1h", got)
	}
}
