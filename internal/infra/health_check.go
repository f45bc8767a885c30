package infra

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

const storeCheckInterval = 30 * time.Second

type Pinger interface {
	Ping(ctx context.Context) error
}

// MonitorStore pings the store periodically and logs failures, so a dead
// backend shows up in the logs before a moderation decision trips over it.
// Blocks until the context is cancelled.
func MonitorStore(ctx context.Context, pinger Pinger) error {
	ticker := time.NewTicker(storeCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := pinger.Ping(pingCtx)
			cancel()
			if err != nil {
				log.WithField("error", err.Error()).Warn("store health check failed")
			}
		}
	}
}
