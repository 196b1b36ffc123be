package authclient

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
)

// errorBody is the server's structured auth error shape; only the fields the
// transport dispatches on are decoded.
type errorBody struct {
	StatusCode    int    `json:"statusCode"`
	ErrorType     string `json:"errorType"`
	Message       string `json:"message"`
	ShouldRelogin bool   `json:"shouldRelogin"`
}

const errorTypeTokenExpired = "token_expired"

// maxErrorBody bounds how much of a 401 body is buffered for classification.
const maxErrorBody = 64 << 10

// Transport attaches the current access token to every request and, when a
// response is the specific "access token expired" taxonomy value, refreshes
// through the coordinator and retries the request exactly once. Any other
// 401 is surfaced untouched.
type Transport struct {
	Base        http.RoundTripper
	Store       StateStore
	Coordinator *Coordinator
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	state, err := t.Store.Load()
	if err != nil {
		return nil, err
	}

	attempt := cloneRequest(req)
	if state.AccessToken != "" {
		attempt.Header.Set("Authorization", "Bearer "+state.AccessToken)
	}
	resp, err := t.base().RoundTrip(attempt)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	// Buffer the 401 body so it can be both classified and, when no refresh
	// applies, handed back intact.
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))
	if readErr != nil {
		return resp, nil
	}

	var authErr errorBody
	if json.Unmarshal(body, &authErr) != nil || authErr.ErrorType != errorTypeTokenExpired {
		return resp, nil
	}
	if req.Body != nil && req.GetBody == nil {
		// Cannot replay the body; surface the 401 as-is.
		return resp, nil
	}

	newToken, err := t.Coordinator.Refresh(req.Context())
	if err != nil {
		// The whole burst rejects together; no second refresh attempt.
		return nil, err
	}

	retry := cloneRequest(req)
	if req.GetBody != nil {
		retryBody, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = retryBody
	}
	retry.Header.Set("Authorization", "Bearer "+newToken)
	// One retry only: a second expiry-shaped 401 is returned to the caller.
	return t.base().RoundTrip(retry)
}

func cloneRequest(req *http.Request) *http.Request {
	return req.Clone(req.Context())
}
