package party

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tracks(ids ...string) []Track {
	out := make([]Track, len(ids))
	for i, id := range ids {
		out[i] = Track{ID: id, Title: "Song " + id, Artist: "Artist", DurationSeconds: 180}
	}
	return out
}

func ids(ts []Track) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.ID
	}
	return out
}

func sortedIDs(ts []Track) []string {
	out := ids(ts)
	sort.Strings(out)
	return out
}

func queueOf(idList ...string) *Queue {
	q := NewQueue()
	for _, t := range tracks(idList...) {
		q.Add(t)
	}
	return q
}

func seeded(seed uint64) func(n int, swap func(i, j int)) {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return r.Shuffle
}

func TestQueue_AddKeepsOriginalOrderInSync(t *testing.T) {
	q := NewQueue()
	q.Add(Track{ID: "a"})
	q.Add(Track{ID: "b"})
	q.AddToFront(Track{ID: "c"})

	assert.Equal(t, []string{"c", "a", "b"}, ids(q.Entries))
	assert.Equal(t, ids(q.Entries), ids(q.OriginalOrder))
	assert.False(t, q.IsShuffled)
}

func TestQueue_AddWhileShuffledIsKeptOnUnshuffle(t *testing.T) {
	q := queueOf("a", "b", "c")
	q.SetShuffler(seeded(1))
	require.True(t, q.Shuffle())

	q.Add(Track{ID: "d"})
	q.AddToFront(Track{ID: "e"})
	assert.Equal(t, "e", q.Entries[0].ID)
	assert.Equal(t, sortedIDs(q.Entries), sortedIDs(q.OriginalOrder))

	require.True(t, q.Unshuffle())
	assert.Equal(t, []string{"e", "a", "b", "c", "d"}, ids(q.Entries))
}

func TestQueue_RemoveAt(t *testing.T) {
	tests := []struct {
		name    string
		index   int
		wantOK  bool
		wantIDs []string
	}{
		{name: "head", index: 0, wantOK: true, wantIDs: []string{"b", "c"}},
		{name: "middle", index: 1, wantOK: true, wantIDs: []string{"a", "c"}},
		{name: "tail", index: 2, wantOK: true, wantIDs: []string{"a", "b"}},
		{name: "stale index", index: 3, wantOK: false, wantIDs: []string{"a", "b", "c"}},
		{name: "negative index", index: -1, wantOK: false, wantIDs: []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := queueOf("a", "b", "c")
			_, ok := q.RemoveAt(tt.index)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantIDs, ids(q.Entries))
			assert.Equal(t, tt.wantIDs, ids(q.OriginalOrder))
		})
	}
}

func TestQueue_RemoveAtWhileShuffledDropsFromOriginalOrder(t *testing.T) {
	q := queueOf("a", "b", "c", "d")
	q.SetShuffler(seeded(7))
	require.True(t, q.Shuffle())

	removed, ok := q.RemoveAt(1)
	require.True(t, ok)

	assert.NotContains(t, ids(q.OriginalOrder), removed.ID)
	assert.Equal(t, sortedIDs(q.Entries), sortedIDs(q.OriginalOrder))
	assert.True(t, q.IsShuffled)
}

func TestQueue_Move(t *testing.T) {
	q := queueOf("a", "b", "c", "d")

	assert.True(t, q.Move(0, 2))
	assert.Equal(t, []string{"b", "c", "a", "d"}, ids(q.Entries))
	assert.Equal(t, ids(q.Entries), ids(q.OriginalOrder))

	assert.True(t, q.Move(3, 0))
	assert.Equal(t, []string{"d", "b", "c", "a"}, ids(q.Entries))

	assert.False(t, q.Move(4, 0))
	assert.False(t, q.Move(0, -1))
}

func TestQueue_ShuffleIsPermutation(t *testing.T) {
	for n := 0; n < 12; n++ {
		for seed := uint64(0); seed < 20; seed++ {
			idList := make([]string, n)
			for i := range idList {
				idList[i] = fmt.Sprintf("t%02d", i)
			}
			q := queueOf(idList...)
			q.SetShuffler(seeded(seed))
			before := sortedIDs(q.Entries)

			changed := q.Shuffle()

			assert.Equal(t, n > 0, changed)
			assert.Equal(t, before, sortedIDs(q.Entries))
		}
	}
}

func TestQueue_ShuffleEmptyIsNoop(t *testing.T) {
	q := NewQueue()
	assert.False(t, q.Shuffle())
	assert.False(t, q.IsShuffled)
}

func TestQueue_UnshuffleRoundTrip(t *testing.T) {
	for seed := uint64(0); seed < 25; seed++ {
		q := queueOf("a", "b", "c", "d", "e", "f")
		q.SetShuffler(seeded(seed))
		original := ids(q.Entries)

		require.True(t, q.Shuffle())
		require.True(t, q.Shuffle()) // a second shuffle keeps the first snapshot
		require.True(t, q.Unshuffle())

		assert.Equal(t, original, ids(q.Entries))
		assert.False(t, q.IsShuffled)
	}
}

func TestQueue_UnshuffleWhenNotShuffledIsNoop(t *testing.T) {
	q := queueOf("a", "b")
	assert.False(t, q.Unshuffle())
	assert.Equal(t, []string{"a", "b"}, ids(q.Entries))
}

func TestQueue_ShuffleIsRoughlyUniform(t *testing.T) {
	// Every track should land at the head about equally often.
	const rounds = 6000
	counts := map[string]int{}
	r := rand.New(rand.NewPCG(42, 24))
	for i := 0; i < rounds; i++ {
		q := queueOf("a", "b", "c")
		q.SetShuffler(r.Shuffle)
		q.Shuffle()
		counts[q.Entries[0].ID]++
	}
	for _, id := range []string{"a", "b", "c"} {
		assert.InDelta(t, rounds/3, counts[id], rounds*0.05, "head count for %s", id)
	}
}

func TestQueue_PlayNext(t *testing.T) {
	q := queueOf("a", "b")

	next, ok := q.PlayNext()
	require.True(t, ok)
	assert.Equal(t, "a", next.ID)
	assert.Equal(t, []string{"b"}, ids(q.Entries))
	assert.Equal(t, []string{"b"}, ids(q.OriginalOrder))

	next, ok = q.PlayNext()
	require.True(t, ok)
	assert.Equal(t, "b", next.ID)

	_, ok = q.PlayNext()
	assert.False(t, ok)
}

func TestQueue_PlayNextWhileShuffled(t *testing.T) {
	q := queueOf("a", "b", "c")
	q.SetShuffler(seeded(3))
	require.True(t, q.Shuffle())
	head := q.Entries[0]

	next, ok := q.PlayNext()
	require.True(t, ok)
	assert.Equal(t, head.ID, next.ID)
	assert.NotContains(t, ids(q.OriginalOrder), head.ID)
	assert.Len(t, q.OriginalOrder, 2)
}

func TestQueue_SetModeOrderedPinsCurrentTrack(t *testing.T) {
	q := queueOf("c", "x")
	source := tracks("a", "b", "c", "d")

	require.True(t, q.SetMode(ModeOrdered, "pl-1", source))

	assert.Equal(t, []string{"c", "a", "b", "d"}, ids(q.Entries))
	assert.Equal(t, ids(q.Entries), ids(q.OriginalOrder))
	assert.False(t, q.IsShuffled)
	assert.Equal(t, "pl-1", q.SourcePlaylistID)
	assert.Equal(t, ModeOrdered, q.Mode)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(q.SourceTracks))
}

func TestQueue_SetModeOrderedWithoutCurrent(t *testing.T) {
	q := NewQueue()
	require.True(t, q.SetMode(ModeOrdered, "pl-1", tracks("a", "b")))
	assert.Equal(t, []string{"a", "b"}, ids(q.Entries))
}

func TestQueue_SetModeRandomPreservesCurrentTrack(t *testing.T) {
	source := tracks("a", "b", "c", "d", "e")
	for seed := uint64(0); seed < 30; seed++ {
		q := queueOf("c")
		q.SetShuffler(seeded(seed))

		require.True(t, q.SetMode(ModeRandom, "pl-2", source))

		assert.Equal(t, "c", q.Entries[0].ID)
		assert.Equal(t, []string{"a", "b", "c", "d", "e"}, sortedIDs(q.Entries))
		assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids(q.OriginalOrder))
		assert.True(t, q.IsShuffled)
		assert.Equal(t, ModeRandom, q.Mode)
	}
}

func TestQueue_SetModeKeepsCurrentMissingFromSource(t *testing.T) {
	q := queueOf("z")
	q.SetShuffler(seeded(9))

	require.True(t, q.SetMode(ModeRandom, "pl-3", tracks("a", "b")))
	assert.Equal(t, "z", q.Entries[0].ID)
	assert.Len(t, q.Entries, 3)
	assert.Equal(t, []string{"z", "a", "b"}, ids(q.OriginalOrder))

	require.True(t, q.Unshuffle())
	assert.Equal(t, []string{"z", "a", "b"}, ids(q.Entries))
}

func TestQueue_SetModeNeverDuplicatesCurrent(t *testing.T) {
	q := queueOf("a")
	require.True(t, q.SetMode(ModeOrdered, "pl", tracks("a", "b", "a")))
	assert.Equal(t, []string{"a", "b"}, ids(q.Entries))
}

func TestQueue_SetModeUnknownIsIgnored(t *testing.T) {
	q := queueOf("a")
	assert.False(t, q.SetMode(QueueMode("loop"), "pl", tracks("b")))
	assert.Equal(t, []string{"a"}, ids(q.Entries))
}

func TestQueue_CloneIsIndependent(t *testing.T) {
	q := queueOf("a", "b")
	c := q.Clone()
	c.Add(Track{ID: "c"})
	c.RemoveAt(0)

	assert.Equal(t, []string{"a", "b"}, ids(q.Entries))
	assert.Equal(t, []string{"b", "c"}, ids(c.Entries))
}
