package coordinator

import (
	"context"
	"time"

	"party-sync-service/internal/party"
)

// role is the tagged variant selecting which loop runs and how playback
// notifications are treated. Methods ending in a coordinator argument without
// a context are called with c.mu held.
type role interface {
	kind() RoleKind
	interval(cfg Config) time.Duration

	// tick runs one loop iteration. It takes c.mu itself.
	tick(ctx context.Context, c *Coordinator)

	onPlayback(c *Coordinator, st party.PlaybackState)
	subscribed(c *Coordinator)
	subscribeFailed(c *Coordinator, err error)
	resume(c *Coordinator)
}

// hostRole publishes the local player's position.
type hostRole struct {
	failures int
}

// participantRole follows the host's snapshots.
type participantRole struct {
	last      *party.PlaybackState
	lastFresh time.Time
	offset    time.Duration
	everRead  bool
}

var (
	_ role = (*hostRole)(nil)
	_ role = (*participantRole)(nil)
)
