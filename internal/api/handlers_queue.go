package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"party-sync-service/internal/coordinator"
	"party-sync-service/internal/party"
)

type addTrackRequest struct {
	Track party.Track `json:"track"`
	Front bool        `json:"front"`
}

type moveTrackRequest struct {
	NewIndex *int `json:"newIndex"`
}

type setModeRequest struct {
	Mode       party.QueueMode `json:"mode"`
	PlaylistID string          `json:"playlistId"`
	Tracks     []party.Track   `json:"tracks"`
}

func (s *Server) handleGetQueue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coord.Queue())
}

func (s *Server) handleAddTrack(w http.ResponseWriter, r *http.Request) {
	var req addTrackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Track.ID == "" {
		writeError(w, http.StatusBadRequest, "track.id is required")
		return
	}
	if req.Front {
		s.coord.AddToQueueFront(req.Track)
	} else {
		s.coord.AddToQueue(req.Track)
	}
	writeJSON(w, http.StatusCreated, s.coord.Queue())
}

func (s *Server) handleRemoveTrack(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	removed, ok := s.coord.RemoveFromQueue(index)
	if !ok {
		writeError(w, http.StatusNotFound, "no track at index")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"removed": removed,
		"queue":   s.coord.Queue(),
	})
}

func (s *Server) handleMoveTrack(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	var req moveTrackRequest
	if err := decodeJSON(r, &req); err != nil || req.NewIndex == nil {
		writeError(w, http.StatusBadRequest, "newIndex is required")
		return
	}
	if !s.coord.MoveInQueue(index, *req.NewIndex) {
		writeError(w, http.StatusNotFound, "index out of range")
		return
	}
	writeJSON(w, http.StatusOK, s.coord.Queue())
}

func (s *Server) handleShuffle(w http.ResponseWriter, r *http.Request) {
	if !s.coord.ShuffleQueue() {
		writeError(w, http.StatusConflict, "queue is empty")
		return
	}
	writeJSON(w, http.StatusOK, s.coord.Queue())
}

func (s *Server) handleUnshuffle(w http.ResponseWriter, r *http.Request) {
	if !s.coord.UnshuffleQueue() {
		writeError(w, http.StatusConflict, "queue is not shuffled")
		return
	}
	writeJSON(w, http.StatusOK, s.coord.Queue())
}

func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var req setModeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !s.coord.SetQueueMode(req.Mode, req.PlaylistID, req.Tracks) {
		writeError(w, http.StatusBadRequest, "mode must be ordered or random")
		return
	}
	writeJSON(w, http.StatusOK, s.coord.Queue())
}

// handleNext skips to the head of the queue. The host also records the
// skipped track and starts the next one; elsewhere the head is only popped.
func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	var (
		next party.Track
		ok   bool
	)
	if s.coord.Status().Role == coordinator.RoleHost {
		next, ok = s.coord.AdvanceTrack(true)
	} else {
		next, ok = s.coord.PlayNextInQueue()
	}
	if !ok {
		writeError(w, http.StatusNotFound, "queue is empty")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"track": next})
}

func indexParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "index must be an integer")
		return 0, false
	}
	return index, true
}
