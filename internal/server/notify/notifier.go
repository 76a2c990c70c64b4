// Package notify delivers admin alerts about snapshots written by
// non-privileged users.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/promptvault/internal/logging"
)

// ErrThrottled is returned when an alert was dropped by the rate limiter.
var ErrThrottled = errors.New("notification throttled")

// Event describes one suggestion write.
type Event struct {
	User     string `json:"user"`
	Filename string `json:"filename"`
	Count    int    `json:"count"`
}

// Notifier delivers an Event to administrators.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// Markdown renders e as the alert body.
func Markdown(e Event) string {
	return fmt.Sprintf("**New suggestion** from `%s`\n\nFile: `%s`\n\nPrompts: %d", e.User, e.Filename, e.Count)
}

// LogNotifier writes alerts to the service log. It is used when no alert
// channel is configured.
type LogNotifier struct {
	logger logging.Logger
}

func NewLogNotifier(logger logging.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, e Event) error {
	n.logger.Info(ctx, "suggestion received", "user", e.User, "filename", e.Filename, "count", e.Count)
	return nil
}
