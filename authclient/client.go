package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// APIError is a structured error response from the auth server.
type APIError struct {
	StatusCode    int    `json:"statusCode"`
	ErrorType     string `json:"errorType"`
	Message       string `json:"message"`
	ShouldRelogin bool   `json:"shouldRelogin"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.ErrorType, e.StatusCode, e.Message)
}

// SessionInfo is one entry from the sessions listing.
type SessionInfo struct {
	SessionID      string     `json:"sessionId"`
	DeviceInfo     DeviceInfo `json:"deviceInfo"`
	LastActivityAt time.Time  `json:"lastActivityAt"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// Client talks to the auth server on behalf of one device. Requests made
// through AuthedClient carry the current access token and recover from
// access-token expiry transparently via the refresh coordinator.
type Client struct {
	baseURL     string
	device      DeviceInfo
	store       StateStore
	emitter     *Emitter
	coordinator *Coordinator
	plain       *http.Client
	authed      *http.Client
}

// New returns a Client for the server at baseURL. The device descriptor is
// sent on signin and its DeviceID binds the refresh token server-side.
func New(baseURL string, device DeviceInfo, store StateStore) *Client {
	c := &Client{
		baseURL: baseURL,
		device:  device,
		store:   store,
		emitter: NewEmitter(),
		plain:   &http.Client{Timeout: 30 * time.Second},
	}
	c.coordinator = NewCoordinator(store, c.emitter, c.callRefresh)
	c.authed = &http.Client{
		Timeout:   30 * time.Second,
		Transport: &Transport{Store: store, Coordinator: c.coordinator},
	}
	return c
}

// Emitter exposes the auth event stream for in-process listeners.
func (c *Client) Emitter() *Emitter { return c.emitter }

// AuthedClient returns an http.Client that attaches the access token and
// retries once after a transparent refresh. Use it for all API calls beyond
// the auth endpoints themselves.
func (c *Client) AuthedClient() *http.Client { return c.authed }

// State returns the current auth state from the store.
func (c *Client) State() (AuthState, error) { return c.store.Load() }

// SignUp creates an account. No session is established; call SignIn next.
func (c *Client) SignUp(ctx context.Context, firstName, lastName, email, password string) (*Profile, error) {
	var profile Profile
	err := c.postJSON(ctx, c.plain, "/auth/signup", map[string]string{
		"firstName": firstName,
		"lastName":  lastName,
		"email":     email,
		"password":  password,
	}, &profile)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// SignIn authenticates and stores the resulting token pair and session
// handle durably before returning.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Profile, error) {
	var resp struct {
		Profile
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
		SessionID    string `json:"sessionId"`
	}
	err := c.postJSON(ctx, c.plain, "/auth/signin", map[string]any{
		"email":      email,
		"password":   password,
		"deviceInfo": c.device,
	}, &resp)
	if err != nil {
		return nil, err
	}

	state := AuthState{
		Authenticated: true,
		AccessToken:   resp.AccessToken,
		RefreshToken:  resp.RefreshToken,
		SessionID:     resp.SessionID,
		Device:        c.device,
		User:          &resp.Profile,
	}
	if err := c.store.Save(state); err != nil {
		return nil, err
	}
	c.emitter.Emit(Event{Type: EventSignedIn, State: state})
	return &resp.Profile, nil
}

// Refresh forces a token refresh through the coordinator.
func (c *Client) Refresh(ctx context.Context) error {
	_, err := c.coordinator.Refresh(ctx)
	return err
}

// Logout revokes this device's session server-side and clears local state.
// Local state is cleared even when the server call fails: the user asked to
// be logged out.
func (c *Client) Logout(ctx context.Context) error {
	state, err := c.store.Load()
	if err != nil {
		return err
	}
	var callErr error
	if state.Authenticated {
		callErr = c.postJSON(ctx, c.authed, "/auth/logout", map[string]string{"sessionId": state.SessionID}, nil)
	}
	if err := c.store.Clear(); err != nil {
		return err
	}
	c.emitter.Emit(Event{Type: EventLoggedOut, State: AuthState{}})
	return callErr
}

// LogoutOthers revokes every other session for this user; returns the count
// revoked. The current session stays valid.
func (c *Client) LogoutOthers(ctx context.Context) (int64, error) {
	state, err := c.store.Load()
	if err != nil {
		return 0, err
	}
	var resp struct {
		RevokedCount int64 `json:"revokedCount"`
	}
	err = c.postJSON(ctx, c.authed, "/auth/logout-others", map[string]string{"currentSessionId": state.SessionID}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.RevokedCount, nil
}

// LogoutAll revokes every session for this user, including this one, and
// clears local state.
func (c *Client) LogoutAll(ctx context.Context) (int64, error) {
	var resp struct {
		RevokedCount int64 `json:"revokedCount"`
	}
	if err := c.postJSON(ctx, c.authed, "/auth/logout-all", struct{}{}, &resp); err != nil {
		return 0, err
	}
	if err := c.store.Clear(); err != nil {
		return resp.RevokedCount, err
	}
	c.emitter.Emit(Event{Type: EventLoggedOut, State: AuthState{}})
	return resp.RevokedCount, nil
}

// Sessions lists this user's active sessions.
func (c *Client) Sessions(ctx context.Context) ([]SessionInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/sessions", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.authed.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}
	var body struct {
		Sessions []SessionInfo `json:"sessions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body.Sessions, nil
}

// callRefresh is the RefreshFunc wired into the coordinator.
func (c *Client) callRefresh(ctx context.Context, refreshToken, deviceID string) (*TokenPair, error) {
	var resp struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
		SessionID    string `json:"sessionId"`
	}
	err := c.postJSON(ctx, c.plain, "/auth/refresh", map[string]string{
		"refreshToken": refreshToken,
		"deviceId":     deviceID,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		SessionID:    resp.SessionID,
	}, nil
}

func (c *Client) postJSON(ctx context.Context, client *http.Client, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{StatusCode: resp.StatusCode}
	if json.Unmarshal(body, apiErr) == nil && apiErr.Message != "" {
		apiErr.StatusCode = resp.StatusCode
		return apiErr
	}
	apiErr.Message = string(body)
	return apiErr
}
