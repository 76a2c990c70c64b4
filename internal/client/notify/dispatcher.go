// Package notify sends fire-and-forget alerts to the administrator channel
// when a non-privileged user writes a snapshot.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrijs2005/promptvault/internal/common"
	"github.com/dmitrijs2005/promptvault/internal/logging"
	"golang.org/x/time/rate"
)

// Notification identifies who wrote which file with how many records.
type Notification struct {
	User     string `json:"user"`
	Filename string `json:"filename"`
	Count    int    `json:"count"`
}

// Notifier is implemented by Dispatcher; callers never see delivery errors.
type Notifier interface {
	Dispatch(ctx context.Context, n Notification)
}

type Dispatcher struct {
	url     string
	tokenMu sync.RWMutex
	token   string
	http    *http.Client
	limiter *rate.Limiter
	logger  logging.Logger
	wg      sync.WaitGroup
}

// NewDispatcher posts notifications to url. At most one notification per
// every interval is sent (burst 1); extra ones are dropped and logged.
// An empty url disables delivery.
func NewDispatcher(url, token string, every time.Duration, logger logging.Logger) *Dispatcher {
	limit := rate.Inf
	if every > 0 {
		limit = rate.Every(every)
	}
	return &Dispatcher{
		url:     url,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// SetAccessToken replaces the bearer token used for later notifications.
func (d *Dispatcher) SetAccessToken(token string) {
	d.tokenMu.Lock()
	defer d.tokenMu.Unlock()
	d.token = token
}

func (d *Dispatcher) accessToken() string {
	d.tokenMu.RLock()
	defer d.tokenMu.RUnlock()
	return d.token
}

// Dispatch sends n in the background. It never blocks on the network and
// never reports failure to the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) {
	if d.url == "" {
		return
	}
	if !d.limiter.Allow() {
		d.logger.Debug(ctx, "notification throttled", "user", n.User, "filename", n.Filename)
		return
	}

	ctx = context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.send(ctx, n); err != nil {
			d.logger.Warn(ctx, "notification failed", "error", err, "user", n.User, "filename", n.Filename)
			return
		}
		d.logger.Debug(ctx, "notification sent", "user", n.User, "filename", n.Filename, "count", n.Count)
	}()
}

func (d *Dispatcher) send(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := d.accessToken(); token != "" {
		req.Header.Set(common.AuthorizationHeader, common.BearerPrefix+token)
	}

	resp, err := d.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify endpoint returned %s", resp.Status)
	}
	return nil
}

// Wait blocks until in-flight notifications finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
