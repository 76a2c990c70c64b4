package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/promptvault/internal/logging"
)

// Pinger checks whether the remote store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// WatchOnline pings the remote store every interval and switches the
// session between online and offline. onChange, if set, is called after
// each switch. It returns when ctx is done.
func WatchOnline(ctx context.Context, p Pinger, s *Session, interval time.Duration, logger logging.Logger, onChange func(online bool)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := p.Ping(pctx)
			cancel()

			online := err == nil
			if s.SetOnline(online) {
				if online {
					logger.Info(ctx, "remote store is reachable again")
				} else {
					logger.Warn(ctx, "remote store unreachable, working offline", "error", err)
				}
				if onChange != nil {
					onChange(online)
				}
			}

		case <-ctx.Done():
			return
		}
	}
}
