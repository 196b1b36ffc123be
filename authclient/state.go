// Package authclient is the client-side half of the auth flow: it holds the
// token state for one device, coordinates single-flight refresh under
// concurrent requests, and retries requests that failed on an expired access
// token exactly once.
package authclient

import "sync"

// Profile is the cached user profile returned by signin.
type Profile struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// DeviceInfo describes this client installation. DeviceID must be stable
// across restarts: it is the key the server uses to keep one session per
// device.
type DeviceInfo struct {
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName,omitempty"`
	DeviceType string `json:"deviceType,omitempty"`
	OSName     string `json:"osName,omitempty"`
	OSVersion  string `json:"osVersion,omitempty"`
	AppVersion string `json:"appVersion,omitempty"`
}

// AuthState is the client's view of its authentication: rebuilt from the
// state store at process start, updated on signin/refresh/logout.
type AuthState struct {
	Authenticated bool       `json:"authenticated"`
	AccessToken   string     `json:"accessToken"`
	RefreshToken  string     `json:"refreshToken"`
	SessionID     string     `json:"sessionId"`
	Device        DeviceInfo `json:"device"`
	User          *Profile   `json:"user,omitempty"`
}

// StateStore persists AuthState. Save must be durable before it returns:
// the refresh coordinator releases queued requests only after the new token
// is stored.
type StateStore interface {
	Load() (AuthState, error)
	Save(AuthState) error
	Clear() error
}

// MemoryStore is an in-process StateStore for tests and ephemeral clients.
type MemoryStore struct {
	mu    sync.Mutex
	state AuthState
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load() (AuthState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, nil
}

func (m *MemoryStore) Save(s AuthState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = AuthState{}
	return nil
}
