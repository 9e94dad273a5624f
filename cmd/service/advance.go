package main

import (
	"context"
	"time"

	"party-sync-service/internal/coordinator"
	"party-sync-service/internal/party"
)

type advancer interface {
	Status() coordinator.Status
	AdvanceTrack(skipped bool) (party.Track, bool)
}

type finisher interface {
	Finished() bool
}

// runAutoAdvance moves the host on to the next queued track whenever the
// local player reaches the end of the current one. It fires once per end of
// track: a last track that stays finished is recorded only once.
func runAutoAdvance(ctx context.Context, c advancer, p finisher, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	var wasFinished bool
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			finished := c.Status().Role == coordinator.RoleHost && p.Finished()
			fire := finished && !wasFinished
			wasFinished = finished
			if !fire {
				continue
			}
			if next, ok := c.AdvanceTrack(false); ok {
				log.Infow("advanced to next track", "track", next.ID)
			}
		}
	}
}
