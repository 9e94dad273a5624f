package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"party-sync-service/internal/coordinator"
)

type sessionRequest struct {
	SessionID string `json:"sessionId"`
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coord.Status())
}

func (s *Server) handleBecomeHost(w http.ResponseWriter, r *http.Request) {
	s.enterSession(w, r, s.coord.BecomeHost)
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	s.enterSession(w, r, s.coord.JoinSession)
}

func (s *Server) enterSession(w http.ResponseWriter, r *http.Request, enter func(string) error) {
	var req sessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := enter(req.SessionID); err != nil {
		writeCoordinatorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.coord.Status())
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	s.coord.Disconnect()
	writeJSON(w, http.StatusOK, s.coord.Status())
}

func (s *Server) handleSuspend(w http.ResponseWriter, r *http.Request) {
	s.coord.Suspend()
	writeJSON(w, http.StatusOK, s.coord.Status())
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.Resume(); err != nil {
		if errors.Is(err, coordinator.ErrNoSession) {
			writeError(w, http.StatusConflict, "no active session")
			return
		}
		writeCoordinatorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.coord.Status())
}

func (s *Server) handleRemoveParticipant(w http.ResponseWriter, r *http.Request) {
	s.coord.RemoveParticipant(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func writeCoordinatorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, coordinator.ErrNoSession):
		writeError(w, http.StatusBadRequest, "sessionId is required")
	case errors.Is(err, coordinator.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "agent is shutting down")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
