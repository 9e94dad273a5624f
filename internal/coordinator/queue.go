package coordinator

import (
	"party-sync-service/internal/party"
)

// Queue operations mutate the local copy and then write the whole queue
// through to the store. Concurrent edits from different clients are not
// merged: the write the store accepts last replaces the queue everywhere.

// AddToQueue appends t.
func (c *Coordinator) AddToQueue(t party.Track) {
	c.mutateQueue(func(q *party.Queue) bool {
		q.Add(t)
		return true
	})
}

// AddToQueueFront makes t the next track.
func (c *Coordinator) AddToQueueFront(t party.Track) {
	c.mutateQueue(func(q *party.Queue) bool {
		q.AddToFront(t)
		return true
	})
}

// RemoveFromQueue drops the track at index. Out-of-range indexes are a
// no-op and return false.
func (c *Coordinator) RemoveFromQueue(index int) (party.Track, bool) {
	var removed party.Track
	ok := c.mutateQueue(func(q *party.Queue) bool {
		var ok bool
		removed, ok = q.RemoveAt(index)
		return ok
	})
	return removed, ok
}

func (c *Coordinator) MoveInQueue(from, to int) bool {
	return c.mutateQueue(func(q *party.Queue) bool { return q.Move(from, to) })
}

func (c *Coordinator) ShuffleQueue() bool {
	return c.mutateQueue(func(q *party.Queue) bool { return q.Shuffle() })
}

func (c *Coordinator) UnshuffleQueue() bool {
	return c.mutateQueue(func(q *party.Queue) bool { return q.Unshuffle() })
}

// SetQueueMode regenerates the queue from a source playlist.
func (c *Coordinator) SetQueueMode(mode party.QueueMode, playlistID string, tracks []party.Track) bool {
	return c.mutateQueue(func(q *party.Queue) bool { return q.SetMode(mode, playlistID, tracks) })
}

// PlayNextInQueue pops the head of the queue.
func (c *Coordinator) PlayNextInQueue() (party.Track, bool) {
	var next party.Track
	ok := c.mutateQueue(func(q *party.Queue) bool {
		var ok bool
		next, ok = q.PlayNext()
		return ok
	})
	return next, ok
}

// Queue returns a copy of the local queue.
func (c *Coordinator) Queue() *party.Queue {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.Clone()
}

func (c *Coordinator) mutateQueue(fn func(q *party.Queue) bool) bool {
	c.mu.Lock()
	if !fn(c.queue) {
		c.mu.Unlock()
		return false
	}
	snapshot := c.queue.Clone()
	sid := c.sessionID
	c.mu.Unlock()

	c.writeQueue(sid, snapshot)
	return true
}

// writeQueue writes q when a session is active. Failures are logged; the
// next successful write or notification restores agreement.
func (c *Coordinator) writeQueue(sessionID string, q *party.Queue) {
	if sessionID == "" {
		return
	}
	ctx, cancel := c.writeContext()
	defer cancel()
	if err := c.store.WriteQueue(ctx, sessionID, q); err != nil {
		log.Warnw("queue write failed", "session", sessionID, "err", err)
	}
}

// applyQueueLocked replaces the local queue with a replicated snapshot.
func (c *Coordinator) applyQueueLocked(q party.Queue) {
	next := q.Clone()
	if !next.Mode.Valid() {
		next.Mode = party.ModeOrdered
	}
	next.SetShuffler(c.cfg.Shuffle)
	c.queue = next
}
