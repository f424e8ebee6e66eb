// Package source fetches candidate records from a Notion database.
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultTimeout = 20 * time.Second
	// maxErrorBody bounds how much of an error response is kept for the error message.
	maxErrorBody = 4 << 10
)

// Client queries one database. It does not paginate or filter: the whole
// first result page is returned for the caller to filter.
type Client struct {
	cfg  Config
	http *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default HTTP client (tests, proxies).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func New(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("notion token is empty")
	}
	if strings.TrimSpace(cfg.DatabaseID) == "" {
		return nil, errors.New("notion database id is empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.notion.com"
	}
	c := &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type queryResponse struct {
	Results []json.RawMessage `json:"results"`
}

// Fetch issues one query. Any failure comes back wrapped in ErrUnavailable.
func (c *Client) Fetch(ctx context.Context) ([]Record, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := c.cfg.BaseURL + "/v1/databases/" + url.PathEscape(c.cfg.DatabaseID) + "/query"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader([]byte("{}")))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Content-Type", "application/json")
	if v := strings.TrimSpace(c.cfg.Version); v != "" {
		req.Header.Set("Notion-Version", v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, describeError(resp))
	}

	var out queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}

	recs := make([]Record, 0, len(out.Results))
	for _, raw := range out.Results {
		// raw already passed the outer decode; a nil tree just extracts as absent.
		var v any
		_ = json.Unmarshal(raw, &v)
		rec := Record{Data: v}
		if m, ok := v.(map[string]any); ok {
			rec.ID, _ = m["id"].(string)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// describeError renders a non-2xx response, preferring Notion's
// {"code","message"} error object when present.
func describeError(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var apiErr struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
		return fmt.Sprintf("http=%d code=%s: %s", resp.StatusCode, apiErr.Code, apiErr.Message)
	}
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > 200 {
		snippet = snippet[:200] + "..."
	}
	if snippet == "" {
		return fmt.Sprintf("http=%d", resp.StatusCode)
	}
	return fmt.Sprintf("http=%d: %s", resp.StatusCode, snippet)
}
