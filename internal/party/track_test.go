package party

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPlaybackState_CompensatedPosition(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	track := &Track{ID: "A"}

	tests := []struct {
		name  string
		state PlaybackState
		now   time.Time
		want  float64
	}{
		{
			name:  "playing adds elapsed",
			state: PlaybackState{CurrentTrack: track, PositionSeconds: 10, IsPlaying: true, WrittenAt: t0},
			now:   t0.Add(2 * time.Second),
			want:  12,
		},
		{
			name:  "paused ignores elapsed",
			state: PlaybackState{CurrentTrack: track, PositionSeconds: 10, IsPlaying: false, WrittenAt: t0},
			now:   t0.Add(2 * time.Second),
			want:  10,
		},
		{
			name:  "write from the future is not rewound",
			state: PlaybackState{CurrentTrack: track, PositionSeconds: 10, IsPlaying: true, WrittenAt: t0},
			now:   t0.Add(-time.Second),
			want:  10,
		},
		{
			name:  "unstamped state",
			state: PlaybackState{CurrentTrack: track, PositionSeconds: 4, IsPlaying: true},
			now:   t0,
			want:  4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.state.CompensatedPosition(tt.now), 1e-9)
		})
	}
}

func TestPlaybackState_SameTrack(t *testing.T) {
	s := PlaybackState{CurrentTrack: &Track{ID: "A", Title: "x"}}
	assert.True(t, s.SameTrack(&Track{ID: "A", Title: "y"}))
	assert.False(t, s.SameTrack(&Track{ID: "B"}))
	assert.False(t, s.SameTrack(nil))
	assert.True(t, PlaybackState{}.SameTrack(nil))
}
