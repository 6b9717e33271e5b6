// Package client calls the round server over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"neurotrainer/internal/engine"
	"neurotrainer/internal/gamedata"
	"neurotrainer/internal/store"
)

var _ engine.RoundAPI = (*Client)(nil)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d %s: %s", e.Status, e.Code, e.Message)
}

type Client struct {
	base string
	http *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) GenerateRound(ctx context.Context, userID string) (gamedata.Manifest, error) {
	var m gamedata.Manifest
	err := c.do(ctx, http.MethodPost, "/api/rounds", gamedata.GenerateRequest{UserID: userID}, &m)
	return m, err
}

func (c *Client) SubmitRound(ctx context.Context, req gamedata.SubmitRequest) (gamedata.SubmitResult, error) {
	var res gamedata.SubmitResult
	err := c.do(ctx, http.MethodPost, "/api/rounds/submit", req, &res)
	return res, err
}

func (c *Client) SetPin(ctx context.Context, userID, pin string) error {
	body := map[string]string{"userId": userID, "pin": pin}
	return c.do(ctx, http.MethodPost, "/api/pin", body, nil)
}

func (c *Client) SyncProfile(ctx context.Context, userID string, p store.ProfileSync) error {
	body := struct {
		UserID  string            `json:"userId"`
		Profile store.ProfileSync `json:"profile"`
	}{userID, p}
	return c.do(ctx, http.MethodPost, "/api/profile/sync", body, nil)
}

func (c *Client) Leaderboard(ctx context.Context, mode gamedata.Mode, count int) ([]store.LeaderboardEntry, error) {
	q := url.Values{}
	q.Set("mode", string(mode))
	q.Set("count", strconv.Itoa(count))
	var out struct {
		Results []store.LeaderboardEntry `json:"results"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/leaderboard?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body *bytes.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
