package party

import (
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultHistoryLimit is used when a non-positive limit is requested.
const DefaultHistoryLimit = 50

// HistoryEntry records one completed or skipped play.
type HistoryEntry struct {
	ID                        string    `json:"id"`
	Track                     Track     `json:"track"`
	PlayedAt                  time.Time `json:"playedAt"`
	PlayedByParticipantID     string    `json:"playedByParticipantId"`
	PlayedByDisplayName       string    `json:"playedByDisplayName"`
	ActualPlayDurationSeconds *float64  `json:"actualPlayDurationSeconds,omitempty"`
	WasSkipped                bool      `json:"wasSkipped"`
}

// TrackCount is one row of MostPlayed.
type TrackCount struct {
	Track Track `json:"track"`
	Count int   `json:"count"`
}

// ContributorCount is one row of MostActiveContributors.
type ContributorCount struct {
	ParticipantID string `json:"participantId"`
	DisplayName   string `json:"displayName"`
	Count         int    `json:"count"`
}

// History is a fixed-capacity, append-only play log. When full, recording a
// new entry evicts the oldest one. All methods are safe for concurrent use.
type History struct {
	mu    sync.RWMutex
	buf   []HistoryEntry
	head  int
	count int
	now   func() time.Time
}

// NewHistory creates a log holding at most limit entries.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{buf: make([]HistoryEntry, limit), now: time.Now}
}

// SetClock replaces the time source used to stamp PlayedAt.
func (h *History) SetClock(now func() time.Time) {
	h.mu.Lock()
	h.now = now
	h.mu.Unlock()
}

// Limit returns the capacity of the log.
func (h *History) Limit() int {
	return len(h.buf)
}

// Len returns the number of stored entries.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Record appends a play and returns the stored entry.
func (h *History) Record(track Track, playedBy, playedByName string, actualDuration *float64, wasSkipped bool) HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	e := HistoryEntry{
		ID:                    uuid.NewString(),
		Track:                 track,
		PlayedAt:              h.now(),
		PlayedByParticipantID: playedBy,
		PlayedByDisplayName:   playedByName,
		WasSkipped:            wasSkipped,
	}
	if actualDuration != nil {
		d := *actualDuration
		e.ActualPlayDurationSeconds = &d
	}
	h.push(e)
	return e
}

func (h *History) push(e HistoryEntry) {
	idx := (h.head + h.count) % len(h.buf)
	h.buf[idx] = e
	if h.count == len(h.buf) {
		h.head = (h.head + 1) % len(h.buf)
	} else {
		h.count++
	}
}

// Entries returns a copy of the log, oldest first.
func (h *History) Entries() []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snapshot()
}

func (h *History) snapshot() []HistoryEntry {
	out := make([]HistoryEntry, h.count)
	for i := 0; i < h.count; i++ {
		out[i] = h.buf[(h.head+i)%len(h.buf)]
	}
	return out
}

// Replace overwrites the log with entries (oldest first), keeping only the
// newest Limit() of them. Used when a replicated copy arrives.
func (h *History) Replace(entries []HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reset()
	if over := len(entries) - len(h.buf); over > 0 {
		entries = entries[over:]
	}
	for _, e := range entries {
		h.push(e)
	}
}

// Recent yields entries most recent first. The sequence is a snapshot taken
// when Recent is called and can be ranged over any number of times.
func (h *History) Recent() iter.Seq[HistoryEntry] {
	entries := h.Entries()
	return func(yield func(HistoryEntry) bool) {
		for i := len(entries) - 1; i >= 0; i-- {
			if !yield(entries[i]) {
				return
			}
		}
	}
}

// MostPlayed returns up to limit tracks by play count, highest first. Ties
// keep the order in which tracks were first seen.
func (h *History) MostPlayed(limit int) []TrackCount {
	var out []TrackCount
	index := map[string]int{}
	for _, e := range h.Entries() {
		if i, ok := index[e.Track.ID]; ok {
			out[i].Count++
			continue
		}
		index[e.Track.ID] = len(out)
		out = append(out, TrackCount{Track: e.Track, Count: 1})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return truncate(out, limit)
}

// MostActiveContributors returns up to limit participants by number of plays
// attributed to them, highest first, ties in first-seen order.
func (h *History) MostActiveContributors(limit int) []ContributorCount {
	var out []ContributorCount
	index := map[string]int{}
	for _, e := range h.Entries() {
		if i, ok := index[e.PlayedByParticipantID]; ok {
			out[i].Count++
			continue
		}
		index[e.PlayedByParticipantID] = len(out)
		out = append(out, ContributorCount{
			ParticipantID: e.PlayedByParticipantID,
			DisplayName:   e.PlayedByDisplayName,
			Count:         1,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return truncate(out, limit)
}

// Clear empties the log.
func (h *History) Clear() {
	h.mu.Lock()
	h.reset()
	h.mu.Unlock()
}

func (h *History) reset() {
	clear(h.buf)
	h.head = 0
	h.count = 0
}

func truncate[T any](rows []T, limit int) []T {
	if limit < 0 {
		limit = 0
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}
