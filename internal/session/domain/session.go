package domain

import "time"

// RevokeReason records why a session was revoked.
type RevokeReason string

const (
	RevokeReasonUserLogout       RevokeReason = "user_logout"
	RevokeReasonUserLogoutOthers RevokeReason = "user_logout_others"
	RevokeReasonUserLogoutAll    RevokeReason = "user_logout_all"
	RevokeReasonTokenExpired     RevokeReason = "token_expired"
	RevokeReasonSuspicious       RevokeReason = "suspicious_activity"
)

// Valid reports whether r is a known revoke reason.
func (r RevokeReason) Valid() bool {
	switch r {
	case RevokeReasonUserLogout, RevokeReasonUserLogoutOthers, RevokeReasonUserLogoutAll,
		RevokeReasonTokenExpired, RevokeReasonSuspicious:
		return true
	}
	return false
}

// DeviceInfo describes the device a session belongs to. DeviceID is the
// stable key distinguishing sessions for the same user; everything else is
// metadata and never feeds authorization decisions.
type DeviceInfo struct {
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName,omitempty"`
	DeviceType string `json:"deviceType,omitempty"`
	OSName     string `json:"osName,omitempty"`
	OSVersion  string `json:"osVersion,omitempty"`
	AppVersion string `json:"appVersion,omitempty"`
	IPAddress  string `json:"ipAddress,omitempty"`
	UserAgent  string `json:"userAgent,omitempty"`
}

// Session is the durable record of one device's refresh credential. Only
// the hash of the refresh token is ever stored.
type Session struct {
	ID               string
	UserID           string
	RefreshTokenHash string
	DeviceInfo       DeviceInfo
	ExpiresAt        time.Time
	IsActive         bool
	LastActivityAt   time.Time
	RevokedAt        *time.Time   // nil when not revoked
	RevokedReason    RevokeReason // empty when not revoked
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Usable reports whether the session can still validate a refresh token:
// active and not past its absolute expiry.
func (s *Session) Usable(now time.Time) bool {
	return s.IsActive && s.ExpiresAt.After(now)
}
