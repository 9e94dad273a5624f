package coordinator

import (
	"context"

	"party-sync-service/internal/party"
)

// RecordPlay appends a play attributed to this client and writes the log
// through. The entry is also handed to the archive when one is installed.
func (c *Coordinator) RecordPlay(t party.Track, actualDuration *float64, wasSkipped bool) party.HistoryEntry {
	c.mu.Lock()
	e := c.history.Record(t, c.cfg.ParticipantID, c.cfg.DisplayName, actualDuration, wasSkipped)
	entries := c.history.Entries()
	sid := c.sessionID
	archive := c.archive
	c.mu.Unlock()

	c.writeHistory(sid, entries)
	c.archivePlay(archive, sid, e)
	return e
}

// RecentHistory returns up to limit entries, most recent first. A
// non-positive limit returns everything.
func (c *Coordinator) RecentHistory(limit int) []party.HistoryEntry {
	var out []party.HistoryEntry
	for e := range c.history.Recent() {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, e)
	}
	return out
}

func (c *Coordinator) MostPlayed(limit int) []party.TrackCount {
	return c.history.MostPlayed(limit)
}

func (c *Coordinator) MostActiveContributors(limit int) []party.ContributorCount {
	return c.history.MostActiveContributors(limit)
}

// ClearHistory empties the log for everyone in the session.
func (c *Coordinator) ClearHistory() {
	c.mu.Lock()
	c.history.Clear()
	sid := c.sessionID
	c.mu.Unlock()

	c.writeHistory(sid, nil)
}

func (c *Coordinator) writeHistory(sessionID string, entries []party.HistoryEntry) {
	if sessionID == "" {
		return
	}
	ctx, cancel := c.writeContext()
	defer cancel()
	if err := c.store.WriteHistory(ctx, sessionID, entries); err != nil {
		log.Warnw("history write failed", "session", sessionID, "err", err)
	}
}

func (c *Coordinator) archivePlay(a Archive, sessionID string, e party.HistoryEntry) {
	if a == nil || sessionID == "" {
		return
	}
	ctx, cancel := c.writeContext()
	defer cancel()
	if err := a.Append(ctx, sessionID, e); err != nil {
		log.Warnw("archive append failed", "session", sessionID, "entry", e.ID, "err", err)
	}
}

// AdvanceTrack finishes the current track and starts the head of the queue.
// Only the host advances; on a participant it does nothing. The finished
// track is recorded with its played duration; skipped marks an early
// advance. A skip with nothing queued is refused and leaves the current
// track playing and unrecorded.
func (c *Coordinator) AdvanceTrack(skipped bool) (party.Track, bool) {
	c.mu.Lock()
	h, ok := c.role.(*hostRole)
	if !ok || (skipped && c.queue.Len() == 0) {
		c.mu.Unlock()
		return party.Track{}, false
	}

	var finished *party.HistoryEntry
	if cur := c.player.CurrentTrack(); cur != nil {
		played := c.player.CurrentPositionSeconds()
		e := c.history.Record(*cur, c.cfg.ParticipantID, c.cfg.DisplayName, &played, skipped)
		finished = &e
	}

	next, hasNext := c.queue.PlayNext()
	if hasNext {
		if loader, ok := c.player.(TrackLoader); ok {
			loader.Load(next)
		}
		c.player.Seek(0)
		c.player.Play()
	} else {
		c.player.Pause()
	}

	queue := c.queue.Clone()
	entries := c.history.Entries()
	sid := c.sessionID
	archive := c.archive
	c.mu.Unlock()

	c.writeQueue(sid, queue)
	if finished != nil {
		c.writeHistory(sid, entries)
		c.archivePlay(archive, sid, *finished)
	}
	c.publishPlayback(context.Background(), h)
	return next, hasNext
}
