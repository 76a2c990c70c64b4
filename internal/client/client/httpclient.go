package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/promptvault/internal/client/models"
	"github.com/dmitrijs2005/promptvault/internal/common"
)

// maxSnapshotSize bounds how much of a response body is read.
const maxSnapshotSize = 64 << 20

type uploadRequest struct {
	Content  []models.Record `json:"content"`
	Filename string          `json:"filename,omitempty"`
}

type HTTPClient struct {
	baseURL string
	http    *http.Client

	mu          sync.RWMutex
	accessToken string
}

// NewHTTPClient returns a snapshot client for the service at baseURL.
// A zero timeout leaves requests bounded only by their context.
func NewHTTPClient(baseURL string, accessToken string, timeout time.Duration) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse remote url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("remote url must be http(s), got %q", baseURL)
	}

	return &HTTPClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		http:        &http.Client{Timeout: timeout},
		accessToken: accessToken,
	}, nil
}

func (c *HTTPClient) SetAccessToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = token
}

func (c *HTTPClient) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

func (c *HTTPClient) endpoint(route string, path string) string {
	if path == "" {
		return c.baseURL + route
	}
	return c.baseURL + route + "?path=" + url.QueryEscape(path)
}

func (c *HTTPClient) do(ctx context.Context, method, target string, body []byte) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if tok := c.token(); tok != "" {
		req.Header.Set(common.AuthorizationHeader, common.BearerPrefix+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return resp, nil
}

func (c *HTTPClient) Download(ctx context.Context, path string) ([]models.Record, error) {
	p, err := common.CleanPath(path)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, http.MethodGet, c.endpoint("/api/db", p), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := mapStatus(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrUnavailable, err)
	}

	return decodeSnapshot(body)
}

// decodeSnapshot parses a snapshot body. A body that is not a JSON array is
// ErrMalformedPayload; "null" is an empty snapshot. Elements that do not
// decode as records are skipped, and a non-empty array without a single
// valid record is ErrMalformedPayload.
func decodeSnapshot(body []byte) ([]models.Record, error) {
	trimmed := bytes.TrimSpace(body)
	if bytes.Equal(trimmed, []byte("null")) {
		return []models.Record{}, nil
	}
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: top-level value is not an array", ErrMalformedPayload)
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	records := make([]models.Record, 0, len(entries))
	var firstErr error
	for i, raw := range entries {
		var r models.Record
		if err := json.Unmarshal(raw, &r); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("element %d: %w", i, err)
			}
			continue
		}
		records = append(records, r)
	}

	if len(records) == 0 && firstErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, firstErr)
	}
	return records, nil
}

func (c *HTTPClient) Upload(ctx context.Context, path string, records []models.Record) error {
	p, err := common.CleanPath(path)
	if err != nil {
		return err
	}
	if records == nil {
		records = []models.Record{}
	}

	body, err := json.Marshal(uploadRequest{Content: records, Filename: p})
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, c.endpoint("/api/db", ""), body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return mapStatus(resp)
}

func (c *HTTPClient) Delete(ctx context.Context, path string) error {
	p, err := common.CleanPath(path)
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, http.MethodDelete, c.endpoint("/api/db", p), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return mapStatus(resp)
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, c.endpoint("/healthz", ""), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return mapStatus(resp)
}

// mapStatus turns an HTTP status into the package's sentinel errors.
func mapStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, serverMessage(resp))
	default:
		return fmt.Errorf("%w: %s", ErrUnavailable, serverMessage(resp))
	}
}

func serverMessage(resp *http.Response) string {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(b, &payload); err == nil && payload.Error != "" {
		return resp.Status + ": " + payload.Error
	}
	if msg := strings.TrimSpace(string(b)); msg != "" {
		return resp.Status + ": " + msg
	}
	return resp.Status
}

var _ Client = (*HTTPClient)(nil)
