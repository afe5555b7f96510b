package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"
)

// OpenSession starts a new long-polling session and returns its ID.
func (c *Client) OpenSession(ctx context.Context) (string, error) {
	var resp SessionResponse
	if err := c.call(ctx, http.MethodPost, "", nil, nil, &resp); err != nil {
		return "", err
	}
	if resp.SID == "" {
		return "", errors.New("session response missing sid")
	}
	return resp.SID, nil
}

// Poll waits up to wait for queued events on the session. An empty slice
// means the poll timed out with nothing to deliver.
func (c *Client) Poll(ctx context.Context, sid string, wait time.Duration) ([]json.RawMessage, error) {
	query := url.Values{}
	if wait > 0 {
		query.Set("wait", wait.String())
	}

	var resp PollResponse
	if err := c.call(ctx, http.MethodGet, "/"+url.PathEscape(sid), query, nil, &resp); err != nil {
		return nil, err
	}

	return resp.Events, nil
}

// Emit sends one JSON envelope on the session.
func (c *Client) Emit(ctx context.Context, sid string, envelope []byte) error {
	return c.call(ctx, http.MethodPost, "/"+url.PathEscape(sid), nil, envelope, nil)
}

// CloseSession tells the server to drop the session. A session the server
// has already forgotten is not an error.
func (c *Client) CloseSession(ctx context.Context, sid string) error {
	err := c.call(ctx, http.MethodDelete, "/"+url.PathEscape(sid), nil, nil, nil)
	if errors.Is(err, ErrSessionGone) {
		return nil
	}
	return err
}
