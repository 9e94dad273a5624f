// Package api exposes one party agent to the surrounding application: REST
// routes for session, queue, history and player control, and a websocket
// feed of sync status.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	logging "github.com/ipfs/go-log/v2"

	"party-sync-service/internal/coordinator"
	"party-sync-service/internal/party"
)

var log = logging.Logger("api")

// Player is the local player as the UI drives it.
type Player interface {
	coordinator.LocalPlayer
	coordinator.TrackLoader
}

// HistoryArchive serves the long-term play log of a session.
type HistoryArchive interface {
	Recent(ctx context.Context, sessionID string, limit int) ([]party.HistoryEntry, error)
	MostPlayed(ctx context.Context, sessionID string, limit int) ([]party.TrackCount, error)
	MostActiveContributors(ctx context.Context, sessionID string, limit int) ([]party.ContributorCount, error)
}

type Server struct {
	coord    *coordinator.Coordinator
	player   Player
	archive  HistoryArchive
	hub      *Hub
	upgrader websocket.Upgrader
	now      func() time.Time
}

// NewServer wires the routes. archive may be nil. An empty allowedOrigin
// accepts websocket upgrades from any origin.
func NewServer(coord *coordinator.Coordinator, player Player, archive HistoryArchive, hub *Hub, allowedOrigin string) *Server {
	s := &Server{
		coord:   coord,
		player:  player,
		archive: archive,
		hub:     hub,
		now:     time.Now,
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == allowedOrigin
		},
	}
	return s
}

func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWS)

	r.Route("/session", func(r chi.Router) {
		r.Get("/", s.handleSessionStatus)
		r.Post("/host", s.handleBecomeHost)
		r.Post("/join", s.handleJoin)
		r.Post("/disconnect", s.handleDisconnect)
		r.Post("/suspend", s.handleSuspend)
		r.Post("/resume", s.handleResume)
		r.Delete("/participants/{id}", s.handleRemoveParticipant)
	})

	r.Route("/queue", func(r chi.Router) {
		r.Get("/", s.handleGetQueue)
		r.Post("/tracks", s.handleAddTrack)
		r.Delete("/tracks/{index}", s.handleRemoveTrack)
		r.Patch("/tracks/{index}", s.handleMoveTrack)
		r.Post("/shuffle", s.handleShuffle)
		r.Post("/unshuffle", s.handleUnshuffle)
		r.Post("/mode", s.handleSetMode)
		r.Post("/next", s.handleNext)
	})

	r.Route("/history", func(r chi.Router) {
		r.Get("/", s.handleHistory)
		r.Post("/", s.handleRecordPlay)
		r.Delete("/", s.handleClearHistory)
		r.Get("/top", s.handleTopTracks)
		r.Get("/contributors", s.handleContributors)
		r.Get("/archive", s.handleArchive)
		r.Get("/archive/top", s.handleArchiveTopTracks)
		r.Get("/archive/contributors", s.handleArchiveContributors)
	})

	r.Route("/player", func(r chi.Router) {
		r.Get("/", s.handlePlayerState)
		r.Post("/load", s.handleLoad)
		r.Post("/play", s.handlePlay)
		r.Post("/pause", s.handlePause)
		r.Post("/seek", s.handleSeek)
	})

	return r
}

// StartStatusFeed pushes every coordinator status change to the websocket
// clients until ctx is cancelled. The watch is registered before it returns.
func (s *Server) StartStatusFeed(ctx context.Context) {
	ch, stop := s.coord.Watch()
	go func() {
		defer stop()
		for {
			select {
			case <-ctx.Done():
				return
			case st, ok := <-ch:
				if !ok {
					return
				}
				b, err := json.Marshal(map[string]any{"type": "status", "status": st})
				if err != nil {
					log.Warnw("encode status", "err", err)
					continue
				}
				if !s.hub.Broadcast(b) {
					return
				}
			}
		}
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "party-sync-service",
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debugw("ws upgrade", "err", err)
		return
	}

	client := newClient(s.hub, conn)
	welcome := map[string]any{
		"type":   "welcome",
		"now":    s.now().UTC().Format(time.RFC3339Nano),
		"status": s.coord.Status(),
	}
	if b, err := json.Marshal(welcome); err == nil {
		client.send <- b
	}
	if !s.hub.Register(client) {
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
