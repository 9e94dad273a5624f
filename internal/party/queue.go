package party

import "math/rand/v2"

// QueueMode selects how the queue is regenerated from a source playlist.
type QueueMode string

const (
	ModeOrdered QueueMode = "ordered"
	ModeRandom  QueueMode = "random"
)

// Valid reports whether m is a known mode.
func (m QueueMode) Valid() bool {
	return m == ModeOrdered || m == ModeRandom
}

// Queue is the shared, collectively edited play order. Entries[0] is the next
// track to play. OriginalOrder holds the same tracks in their unshuffled order
// and equals Entries whenever IsShuffled is false.
//
// Queue is a plain value: it performs no locking. The coordinator owns the
// session's queue and serializes access to it.
type Queue struct {
	Entries          []Track   `json:"entries"`
	IsShuffled       bool      `json:"isShuffled"`
	OriginalOrder    []Track   `json:"originalOrder"`
	SourcePlaylistID string    `json:"sourcePlaylistId,omitempty"`
	SourceTracks     []Track   `json:"sourceTracks,omitempty"`
	Mode             QueueMode `json:"mode"`

	shuffle func(n int, swap func(i, j int))
}

// NewQueue returns an empty queue in ordered mode.
func NewQueue() *Queue {
	return &Queue{Mode: ModeOrdered}
}

// SetShuffler replaces the permutation source. fn must behave like
// rand.Shuffle. Passing nil restores the default.
func (q *Queue) SetShuffler(fn func(n int, swap func(i, j int))) {
	q.shuffle = fn
}

func (q *Queue) permute(tracks []Track) {
	fn := q.shuffle
	if fn == nil {
		fn = rand.Shuffle
	}
	fn(len(tracks), func(i, j int) { tracks[i], tracks[j] = tracks[j], tracks[i] })
}

// Len returns the number of queued tracks.
func (q *Queue) Len() int {
	return len(q.Entries)
}

// Peek returns the next track without removing it.
func (q *Queue) Peek() (Track, bool) {
	if len(q.Entries) == 0 {
		return Track{}, false
	}
	return q.Entries[0], true
}

// Add appends t to the end of the queue.
func (q *Queue) Add(t Track) {
	q.Entries = append(q.Entries, t)
	if q.IsShuffled {
		q.OriginalOrder = append(q.OriginalOrder, t)
		return
	}
	q.resync()
}

// AddToFront makes t the next track to play.
func (q *Queue) AddToFront(t Track) {
	q.Entries = append([]Track{t}, q.Entries...)
	if q.IsShuffled {
		q.OriginalOrder = append([]Track{t}, q.OriginalOrder...)
		return
	}
	q.resync()
}

// RemoveAt removes the entry at index. Stale indices are tolerated: an index
// outside the queue removes nothing and reports false.
func (q *Queue) RemoveAt(index int) (Track, bool) {
	if index < 0 || index >= len(q.Entries) {
		return Track{}, false
	}
	removed := q.Entries[index]
	q.Entries = append(q.Entries[:index:index], q.Entries[index+1:]...)
	q.forget(removed)
	return removed, true
}

// Move relocates the entry at from so that it ends up at index to.
func (q *Queue) Move(from, to int) bool {
	n := len(q.Entries)
	if from < 0 || from >= n || to < 0 || to >= n {
		return false
	}
	if from == to {
		return true
	}
	t := q.Entries[from]
	rest := append(q.Entries[:from:from], q.Entries[from+1:]...)
	out := make([]Track, 0, n)
	out = append(out, rest[:to]...)
	out = append(out, t)
	out = append(out, rest[to:]...)
	q.Entries = out
	if !q.IsShuffled {
		q.resync()
	}
	return true
}

// Shuffle permutes the entries uniformly at random. The first shuffle
// snapshots the current order so Unshuffle can restore it.
func (q *Queue) Shuffle() bool {
	if len(q.Entries) == 0 {
		return false
	}
	if !q.IsShuffled {
		q.OriginalOrder = cloneTracks(q.Entries)
	}
	q.Entries = cloneTracks(q.Entries)
	q.permute(q.Entries)
	q.IsShuffled = true
	return true
}

// Unshuffle restores the order recorded before the first shuffle.
func (q *Queue) Unshuffle() bool {
	if !q.IsShuffled {
		return false
	}
	q.Entries = cloneTracks(q.OriginalOrder)
	q.IsShuffled = false
	return true
}

// SetMode records the source playlist and regenerates the queue from
// tracks. The current head of the queue, if any, stays at the head and is
// neither duplicated nor dropped. Unknown modes are ignored.
func (q *Queue) SetMode(mode QueueMode, playlistID string, tracks []Track) bool {
	if !mode.Valid() {
		return false
	}
	current, hasCurrent := q.Peek()

	q.Mode = mode
	q.SourcePlaylistID = playlistID
	q.SourceTracks = cloneTracks(tracks)

	rest := make([]Track, 0, len(tracks))
	for _, t := range tracks {
		if hasCurrent && t.Equal(current) {
			continue
		}
		rest = append(rest, t)
	}

	switch mode {
	case ModeOrdered:
		q.Entries = withHead(current, hasCurrent, rest)
		q.OriginalOrder = cloneTracks(q.Entries)
		q.IsShuffled = false
	case ModeRandom:
		q.permute(rest)
		q.Entries = withHead(current, hasCurrent, rest)
		q.OriginalOrder = referenceOrder(current, hasCurrent, tracks)
		q.IsShuffled = true
	}
	return true
}

// PlayNext pops the head of the queue. It is the only operation that
// represents advancing playback.
func (q *Queue) PlayNext() (Track, bool) {
	if len(q.Entries) == 0 {
		return Track{}, false
	}
	head := q.Entries[0]
	q.Entries = cloneTracks(q.Entries[1:])
	q.forget(head)
	return head, true
}

// Clone returns a deep copy of q.
func (q *Queue) Clone() *Queue {
	return &Queue{
		Entries:          cloneTracks(q.Entries),
		IsShuffled:       q.IsShuffled,
		OriginalOrder:    cloneTracks(q.OriginalOrder),
		SourcePlaylistID: q.SourcePlaylistID,
		SourceTracks:     cloneTracks(q.SourceTracks),
		Mode:             q.Mode,
		shuffle:          q.shuffle,
	}
}

// forget keeps OriginalOrder consistent after t left Entries.
func (q *Queue) forget(t Track) {
	if !q.IsShuffled {
		q.resync()
		return
	}
	if i := indexOf(q.OriginalOrder, t.ID); i >= 0 {
		q.OriginalOrder = append(q.OriginalOrder[:i:i], q.OriginalOrder[i+1:]...)
	}
}

func (q *Queue) resync() {
	q.OriginalOrder = cloneTracks(q.Entries)
}

func withHead(head Track, ok bool, rest []Track) []Track {
	out := make([]Track, 0, len(rest)+1)
	if ok {
		out = append(out, head)
	}
	return append(out, rest...)
}

// referenceOrder is the unshuffled source order with the current track kept
// exactly once: at its natural position, or first if the source lacks it.
func referenceOrder(current Track, hasCurrent bool, tracks []Track) []Track {
	out := make([]Track, 0, len(tracks)+1)
	seen := false
	for _, t := range tracks {
		if hasCurrent && t.Equal(current) {
			if seen {
				continue
			}
			seen = true
		}
		out = append(out, t)
	}
	if hasCurrent && !seen {
		out = append([]Track{current}, out...)
	}
	return out
}

func indexOf(tracks []Track, id string) int {
	for i, t := range tracks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func cloneTracks(tracks []Track) []Track {
	if tracks == nil {
		return nil
	}
	out := make([]Track, len(tracks))
	copy(out, tracks)
	return out
}
