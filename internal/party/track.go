package party

import "time"

// Track is an immutable playable item. Identity is ID.
type Track struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Artist          string  `json:"artist"`
	DurationSeconds float64 `json:"durationSeconds"`
	SourceRef       string  `json:"sourceRef,omitempty"`
	IsCatalogSource bool    `json:"isCatalogSource"`
}

// Equal reports whether both tracks share the same identity.
func (t Track) Equal(o Track) bool {
	return t.ID == o.ID
}

// PlaybackState is the host-authored playback snapshot replicated to every
// participant. WrittenAt is assigned by the store at acceptance time.
type PlaybackState struct {
	CurrentTrack    *Track    `json:"currentTrack,omitempty"`
	PositionSeconds float64   `json:"positionSeconds"`
	IsPlaying       bool      `json:"isPlaying"`
	WrittenAt       time.Time `json:"writtenAtServerTime"`
	HostID          string    `json:"hostId,omitempty"`
}

// CompensatedPosition returns where the host's player is expected to be at
// serverNow. Elapsed time is only added while playing; a snapshot written in
// the future (clock skew) is never rewound.
func (s PlaybackState) CompensatedPosition(serverNow time.Time) float64 {
	if !s.IsPlaying || s.WrittenAt.IsZero() {
		return s.PositionSeconds
	}
	elapsed := serverNow.Sub(s.WrittenAt).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	return s.PositionSeconds + elapsed
}

// SameTrack reports whether the snapshot refers to t (both nil counts as same).
func (s PlaybackState) SameTrack(t *Track) bool {
	if s.CurrentTrack == nil || t == nil {
		return s.CurrentTrack == nil && t == nil
	}
	return s.CurrentTrack.Equal(*t)
}
