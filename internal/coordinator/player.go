package coordinator

import "party-sync-service/internal/party"

// LocalPlayer is the media player the coordinator keeps aligned.
type LocalPlayer interface {
	CurrentPositionSeconds() float64
	IsPlaying() bool
	CurrentTrack() *party.Track
	Seek(to float64)
	Play()
	Pause()
}

// TrackLoader is implemented by players that can switch tracks. Without it
// the coordinator can only align position and play state.
type TrackLoader interface {
	Load(t party.Track)
}
