package api

import (
	"math"
	"net/http"

	"party-sync-service/internal/party"
)

// Player controls act on the local player only. On a participant the next
// correction pulls it back to the host.

type playerState struct {
	Track           *party.Track `json:"track"`
	PositionSeconds float64      `json:"positionSeconds"`
	IsPlaying       bool         `json:"isPlaying"`
}

func (s *Server) playerState() playerState {
	return playerState{
		Track:           s.player.CurrentTrack(),
		PositionSeconds: s.player.CurrentPositionSeconds(),
		IsPlaying:       s.player.IsPlaying(),
	}
}

func (s *Server) handlePlayerState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.playerState())
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Track party.Track `json:"track"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Track.ID == "" {
		writeError(w, http.StatusBadRequest, "track.id is required")
		return
	}
	s.player.Load(req.Track)
	writeJSON(w, http.StatusOK, s.playerState())
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	if s.player.CurrentTrack() == nil {
		writeError(w, http.StatusConflict, "no track loaded")
		return
	}
	s.player.Play()
	writeJSON(w, http.StatusOK, s.playerState())
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.player.Pause()
	writeJSON(w, http.StatusOK, s.playerState())
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Position *float64 `json:"position"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Position == nil ||
		math.IsNaN(*req.Position) || *req.Position < 0 {
		writeError(w, http.StatusBadRequest, "position must be a non-negative number")
		return
	}
	s.player.Seek(*req.Position)
	writeJSON(w, http.StatusOK, s.playerState())
}
