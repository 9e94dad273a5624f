package coordinator

import (
	"context"
	"fmt"
	"time"

	"party-sync-service/internal/party"
)

func (h *hostRole) kind() RoleKind { return RoleHost }

func (h *hostRole) interval(cfg Config) time.Duration { return cfg.HeartbeatInterval }

func (h *hostRole) tick(ctx context.Context, c *Coordinator) {
	c.ensureSubscribed(ctx, h)
	c.publishPlayback(ctx, h)

	c.mu.Lock()
	if c.active(ctx, h) {
		c.expireReportsLocked()
	}
	c.mu.Unlock()
}

// onPlayback drops the host's own echoes. A snapshot from another writer
// means two clients think they host the session; it is logged and ignored.
func (h *hostRole) onPlayback(c *Coordinator, st party.PlaybackState) {
	if st.HostID != "" && st.HostID != c.cfg.ParticipantID {
		log.Debugw("ignoring playback from another host", "session", c.sessionID, "host", st.HostID)
	}
}

func (h *hostRole) subscribed(c *Coordinator) {}

func (h *hostRole) subscribeFailed(c *Coordinator, err error) {}

func (h *hostRole) resume(c *Coordinator) {
	c.startLoopLocked(h, true)
}

// publishPlayback samples the player and writes one snapshot. Nothing is
// written while no track is loaded.
func (c *Coordinator) publishPlayback(ctx context.Context, h *hostRole) {
	c.mu.Lock()
	if !c.active(ctx, h) {
		c.mu.Unlock()
		return
	}
	cur := c.player.CurrentTrack()
	if cur == nil {
		c.mu.Unlock()
		return
	}
	track := *cur
	st := party.PlaybackState{
		CurrentTrack:    &track,
		PositionSeconds: c.player.CurrentPositionSeconds(),
		IsPlaying:       c.player.IsPlaying(),
		HostID:          c.cfg.ParticipantID,
	}
	sid := c.sessionID
	c.mu.Unlock()

	wctx, cancel := context.WithTimeout(ctx, c.cfg.WriteTimeout)
	_, err := c.store.WritePlaybackState(wctx, sid, st)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active(ctx, h) {
		return
	}
	if err != nil {
		h.failures++
		log.Warnw("playback write failed", "session", sid, "failures", h.failures, "err", err)
		if h.failures >= c.cfg.MaxWriteFailures {
			c.fail(fmt.Sprintf("%d consecutive playback writes failed: %v", h.failures, err))
		}
		return
	}
	h.failures = 0
	c.lastSyncedAt = c.now()
	if c.conn.State == Error {
		c.setConnLocked(Connection{State: Connected})
	}
}
