package coordinator

import (
	"context"
	"fmt"
	"math"
	"time"

	"party-sync-service/internal/party"
	"party-sync-service/internal/replication"
)

func (p *participantRole) kind() RoleKind { return RoleParticipant }

func (p *participantRole) interval(cfg Config) time.Duration { return cfg.CorrectionInterval }

// tick opens the subscription if there is none; the initial read already
// reconciles, so correction waits for the following tick.
func (p *participantRole) tick(ctx context.Context, c *Coordinator) {
	c.mu.Lock()
	open := c.sub != nil
	c.mu.Unlock()
	if !open {
		c.measureOffset(ctx, p)
		c.ensureSubscribed(ctx, p)
		return
	}
	c.correct(ctx, p)
}

// onPlayback applies a host snapshot. Snapshots older than the last one
// applied are dropped, so a late delivery can never rewind the player.
func (p *participantRole) onPlayback(c *Coordinator, st party.PlaybackState) {
	if p.last != nil && st.WrittenAt.Before(p.last.WrittenAt) {
		log.Debugw("discarding out-of-order playback", "session", c.sessionID,
			"writtenAt", st.WrittenAt, "applied", p.last.WrittenAt)
		return
	}
	fresh := p.last == nil || st.WrittenAt.After(p.last.WrittenAt)
	p.last = &st
	if fresh {
		p.lastFresh = c.now()
		if c.conn.State == Error {
			c.setConnLocked(Connection{State: Connected})
		}
	}
	if c.suspended {
		return
	}
	c.reconcileLocked(p, st)
}

func (p *participantRole) subscribed(c *Coordinator) {
	if !p.everRead {
		p.everRead = true
		c.setConnLocked(Connection{State: Connected})
	}
}

func (p *participantRole) subscribeFailed(c *Coordinator, err error) {
	c.fail("subscribe: " + err.Error())
}

func (p *participantRole) resume(c *Coordinator) {
	if p.last != nil {
		c.reconcileLocked(p, *p.last)
	}
	c.startLoopLocked(p, c.sub == nil)
}

// measureOffset estimates how far the store clock runs ahead of ours.
func (c *Coordinator) measureOffset(ctx context.Context, p *participantRole) {
	octx, cancel := context.WithTimeout(ctx, c.cfg.WriteTimeout)
	offset, err := replication.EstimateOffset(octx, c.store, c.now)
	cancel()
	if err != nil {
		log.Debugw("clock offset unavailable", "err", err)
		return
	}

	c.mu.Lock()
	if c.active(ctx, p) {
		p.offset = offset
	}
	c.mu.Unlock()
}

// correct is the periodic pass: re-apply the last snapshot, publish this
// participant's drift, and re-subscribe when the host has gone quiet.
func (c *Coordinator) correct(ctx context.Context, p *participantRole) {
	c.mu.Lock()
	if !c.active(ctx, p) {
		c.mu.Unlock()
		return
	}
	now := c.now()
	stale := p.last != nil && p.last.CurrentTrack != nil && now.Sub(p.lastFresh) > c.cfg.StaleAfter

	var report *party.ParticipantReport
	if p.last != nil {
		c.reconcileLocked(p, *p.last)
		r := c.reportLocked(p, *p.last)
		report = &r
	}
	c.expireReportsLocked()
	if stale {
		c.fail(fmt.Sprintf("no playback update within %s", c.cfg.StaleAfter))
	}
	sid := c.sessionID
	c.mu.Unlock()

	if report != nil {
		wctx, cancel := context.WithTimeout(ctx, c.cfg.WriteTimeout)
		if err := c.store.WriteParticipantReport(wctx, sid, *report); err != nil {
			log.Warnw("report write failed", "session", sid, "err", err)
		}
		cancel()
	}
	if stale {
		c.resubscribe(ctx, p)
	}
}

// reconcileLocked aligns the player with st. It seeks only when the drift
// exceeds the correction threshold or the track had to be switched, and
// reports whether it did.
func (c *Coordinator) reconcileLocked(p *participantRole, st party.PlaybackState) bool {
	now := c.now()
	if st.CurrentTrack == nil {
		if c.player.IsPlaying() {
			c.player.Pause()
		}
		c.lastSyncedAt = now
		return false
	}

	target := st.CompensatedPosition(now.Add(p.offset))
	switched := false
	if !st.SameTrack(c.player.CurrentTrack()) {
		if loader, ok := c.player.(TrackLoader); ok {
			loader.Load(*st.CurrentTrack)
			switched = true
		}
	}

	local := c.player.CurrentPositionSeconds()
	if !switched && math.Abs(local-target) <= c.cfg.CorrectionThreshold {
		if st.IsPlaying != c.player.IsPlaying() {
			c.setPlaying(st.IsPlaying)
		}
		c.lastSyncedAt = now
		return false
	}

	syncing := c.conn.State == Connected
	if syncing {
		c.setConnLocked(Connection{State: Syncing})
	}
	c.player.Seek(target)
	c.setPlaying(st.IsPlaying)
	if syncing {
		c.setConnLocked(Connection{State: Connected})
	}
	c.lastSyncedAt = now
	log.Debugw("corrected drift", "session", c.sessionID, "local", local, "target", target, "switched", switched)
	return true
}

func (c *Coordinator) setPlaying(playing bool) {
	if playing {
		c.player.Play()
	} else {
		c.player.Pause()
	}
}

func (c *Coordinator) reportLocked(p *participantRole, st party.PlaybackState) party.ParticipantReport {
	now := c.now()
	local := c.player.CurrentPositionSeconds()
	var offset float64
	if st.CurrentTrack != nil {
		offset = local - st.CompensatedPosition(now.Add(p.offset))
	}
	r := party.ParticipantReport{
		ParticipantID:   c.cfg.ParticipantID,
		DisplayName:     c.cfg.DisplayName,
		PositionSeconds: local,
		DriftSeconds:    offset,
		Status:          c.cfg.Classifier.ClassifyDrift(offset),
		ReportedAt:      now,
	}
	c.applyReportLocked(r)
	return r
}
