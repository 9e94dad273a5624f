package api

import (
	"net/http"

	"party-sync-service/internal/party"
)

const defaultTopLimit = 10

type recordPlayRequest struct {
	Track                     party.Track `json:"track"`
	ActualPlayDurationSeconds *float64    `json:"actualPlayDurationSeconds"`
	WasSkipped                bool        `json:"wasSkipped"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	entries := s.coord.RecentHistory(queryLimit(r, 0))
	if entries == nil {
		entries = []party.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}

func (s *Server) handleRecordPlay(w http.ResponseWriter, r *http.Request) {
	var req recordPlayRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Track.ID == "" {
		writeError(w, http.StatusBadRequest, "track.id is required")
		return
	}
	e := s.coord.RecordPlay(req.Track, req.ActualPlayDurationSeconds, req.WasSkipped)
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	s.coord.ClearHistory()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTopTracks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"items": s.coord.MostPlayed(queryLimit(r, defaultTopLimit)),
	})
}

func (s *Server) handleContributors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"items": s.coord.MostActiveContributors(queryLimit(r, defaultTopLimit)),
	})
}

// archiveSession resolves the archive and the session it is read for,
// answering the request itself when either is missing.
func (s *Server) archiveSession(w http.ResponseWriter) (string, bool) {
	if s.archive == nil {
		writeError(w, http.StatusServiceUnavailable, "history archive is not configured")
		return "", false
	}
	sid := s.coord.Status().SessionID
	if sid == "" {
		writeError(w, http.StatusConflict, "no active session")
		return "", false
	}
	return sid, true
}

func writeArchiveResult[T any](w http.ResponseWriter, sid string, items []T, err error) {
	if err != nil {
		log.Warnw("archive read failed", "session", sid, "err", err)
		writeError(w, http.StatusBadGateway, "archive unavailable")
		return
	}
	if items == nil {
		items = []T{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// handleArchive reads the Postgres play log, which outlives the in-session
// history limit.
func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	sid, ok := s.archiveSession(w)
	if !ok {
		return
	}
	entries, err := s.archive.Recent(r.Context(), sid, queryLimit(r, 100))
	writeArchiveResult(w, sid, entries, err)
}

func (s *Server) handleArchiveTopTracks(w http.ResponseWriter, r *http.Request) {
	sid, ok := s.archiveSession(w)
	if !ok {
		return
	}
	items, err := s.archive.MostPlayed(r.Context(), sid, queryLimit(r, defaultTopLimit))
	writeArchiveResult(w, sid, items, err)
}

func (s *Server) handleArchiveContributors(w http.ResponseWriter, r *http.Request) {
	sid, ok := s.archiveSession(w)
	if !ok {
		return
	}
	items, err := s.archive.MostActiveContributors(r.Context(), sid, queryLimit(r, defaultTopLimit))
	writeArchiveResult(w, sid, items, err)
}
