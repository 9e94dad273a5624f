// Package replication is the boundary to the replicated session store.
//
// A session is one document with a playback field (written by the host), a
// queue field and a history field (written by anyone allowed to edit), plus
// one report per participant. Every change is pushed to subscribers as a full
// snapshot of the changed field. Delivery is at-least-once and unordered
// across writers; the last accepted write of a field wins.
package replication

import (
	"context"
	"errors"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"party-sync-service/internal/party"
)

var log = logging.Logger("replication")

// ErrClosed is returned by stores that have been shut down.
var ErrClosed = errors.New("replication: store closed")

// Handlers receive snapshots for one session. Nil handlers are skipped.
// Implementations call handlers from a single goroutine per subscription.
type Handlers struct {
	OnPlayback func(party.PlaybackState)
	OnQueue    func(party.Queue)
	OnHistory  func([]party.HistoryEntry)
	OnReport   func(party.ParticipantReport)
}

// Subscription is a live change feed for one session.
type Subscription interface {
	Close() error
}

// Adapter is implemented by session stores.
type Adapter interface {
	// WritePlaybackState stores st and returns it stamped with the store's
	// acceptance time. Stamps never decrease for a given session.
	WritePlaybackState(ctx context.Context, sessionID string, st party.PlaybackState) (party.PlaybackState, error)
	WriteQueue(ctx context.Context, sessionID string, q *party.Queue) error
	WriteHistory(ctx context.Context, sessionID string, entries []party.HistoryEntry) error
	WriteParticipantReport(ctx context.Context, sessionID string, r party.ParticipantReport) error

	// Subscribe delivers the current document and then every change until
	// the subscription is closed.
	Subscribe(ctx context.Context, sessionID string, h Handlers) (Subscription, error)
	Unsubscribe(sub Subscription) error

	// ServerTime reports the store's clock.
	ServerTime(ctx context.Context) (time.Time, error)
}

// Document is a decoded copy of a whole session document.
type Document struct {
	Playback *party.PlaybackState              `json:"playback,omitempty"`
	Queue    *party.Queue                      `json:"queue,omitempty"`
	History  []party.HistoryEntry              `json:"history,omitempty"`
	Reports  map[string]party.ParticipantReport `json:"reports,omitempty"`
}

// EstimateOffset measures how far the store clock is ahead of the local
// clock, assuming symmetric latency for the ServerTime round trip.
func EstimateOffset(ctx context.Context, a Adapter, now func() time.Time) (time.Duration, error) {
	t0 := now()
	server, err := a.ServerTime(ctx)
	if err != nil {
		return 0, err
	}
	t1 := now()
	mid := t0.Add(t1.Sub(t0) / 2)
	return server.Sub(mid), nil
}
