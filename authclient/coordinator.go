package authclient

import (
	"context"
	"errors"

	"golang.org/x/sync/singleflight"
)

// ErrLoggedOut is returned to requests that were waiting on a refresh that
// failed: the client has transitioned to logged-out and callers must route
// to sign-in.
var ErrLoggedOut = errors.New("authclient: logged out")

// TokenPair is a successful refresh result.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	SessionID    string
}

// RefreshFunc calls the server's refresh endpoint with the stored refresh
// token and device id.
type RefreshFunc func(ctx context.Context, refreshToken, deviceID string) (*TokenPair, error)

// Coordinator serializes token refresh for one client instance. However many
// requests hit an expired access token at once, exactly one refresh call
// goes to the server; the rest wait and reuse its result. A failed refresh
// logs the client out exactly once and fails every waiter together.
type Coordinator struct {
	store   StateStore
	emitter *Emitter
	refresh RefreshFunc

	group singleflight.Group
}

// NewCoordinator returns a Coordinator persisting through store and
// broadcasting transitions through emitter.
func NewCoordinator(store StateStore, emitter *Emitter, refresh RefreshFunc) *Coordinator {
	return &Coordinator{store: store, emitter: emitter, refresh: refresh}
}

// Refresh returns a fresh access token, performing at most one server call
// per concurrent burst. The new token is durably stored before any waiter is
// released, so no caller ever retries with a stale token.
func (c *Coordinator) Refresh(ctx context.Context) (string, error) {
	token, err, _ := c.group.Do("refresh", func() (any, error) {
		return c.doRefresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

// doRefresh runs once per burst under the single-flight lock.
func (c *Coordinator) doRefresh(ctx context.Context) (any, error) {
	state, err := c.store.Load()
	if err != nil {
		return nil, err
	}
	if !state.Authenticated || state.RefreshToken == "" {
		return nil, ErrLoggedOut
	}

	pair, err := c.refresh(ctx, state.RefreshToken, state.Device.DeviceID)
	if err != nil {
		// Refresh is never retried: one failure logs the whole burst out.
		c.forceLogout()
		return nil, err
	}

	state.AccessToken = pair.AccessToken
	state.RefreshToken = pair.RefreshToken
	state.SessionID = pair.SessionID
	if err := c.store.Save(state); err != nil {
		c.forceLogout()
		return nil, err
	}
	c.emitter.Emit(Event{Type: EventTokenRefreshed, State: state})
	return pair.AccessToken, nil
}

// forceLogout clears local state and announces the transition. Runs inside
// the single-flight call, so one burst produces one logout.
func (c *Coordinator) forceLogout() {
	_ = c.store.Clear()
	c.emitter.Emit(Event{Type: EventLoggedOut, State: AuthState{}})
}
