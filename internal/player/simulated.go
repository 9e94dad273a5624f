// Package player provides a clock-driven stand-in for a media player.
package player

import (
	"math"
	"sync"
	"time"

	"party-sync-service/internal/party"
)

// Simulated tracks a playback position without producing audio. While
// playing, the position advances with the clock and stops at the end of the
// track.
type Simulated struct {
	mu      sync.Mutex
	now     func() time.Time
	track   *party.Track
	base    float64
	since   time.Time
	playing bool
}

// NewSimulated returns an idle player. A nil clock uses time.Now.
func NewSimulated(now func() time.Time) *Simulated {
	if now == nil {
		now = time.Now
	}
	return &Simulated{now: now}
}

func (s *Simulated) positionLocked() float64 {
	pos := s.base
	if s.playing {
		pos += s.now().Sub(s.since).Seconds()
	}
	return s.clampLocked(pos)
}

func (s *Simulated) clampLocked(pos float64) float64 {
	if s.track != nil && s.track.DurationSeconds > 0 {
		pos = math.Min(pos, s.track.DurationSeconds)
	}
	return math.Max(pos, 0)
}

func (s *Simulated) CurrentPositionSeconds() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positionLocked()
}

func (s *Simulated) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

func (s *Simulated) CurrentTrack() *party.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.track == nil {
		return nil
	}
	t := *s.track
	return &t
}

// Finished reports whether the loaded track has played to its end.
func (s *Simulated) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.track != nil && s.track.DurationSeconds > 0 && s.positionLocked() >= s.track.DurationSeconds
}

func (s *Simulated) Seek(to float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if math.IsNaN(to) || math.IsInf(to, 0) {
		return
	}
	s.base = s.clampLocked(to)
	s.since = s.now()
}

func (s *Simulated) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playing || s.track == nil {
		return
	}
	s.since = s.now()
	s.playing = true
}

func (s *Simulated) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing {
		return
	}
	s.base = s.positionLocked()
	s.playing = false
}

// Load replaces the current track, rewinds to zero and pauses.
func (s *Simulated) Load(t party.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track = &t
	s.base = 0
	s.since = s.now()
	s.playing = false
}
