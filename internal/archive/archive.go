// Package archive keeps every recorded play in Postgres so history outlives
// the replicated ring buffer and the session itself.
package archive

import (
	"context"
	"errors"
	"fmt"

	logging "github.com/ipfs/go-log/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"party-sync-service/internal/party"
)

var log = logging.Logger("archive")

// ErrNotConfigured is returned by a nil archive.
var ErrNotConfigured = errors.New("archive: not configured")

// DB is the subset of *pgxpool.Pool the archive needs. It can be mocked
// for testing.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresArchive struct {
	db DB
}

func New(db DB) *PostgresArchive {
	return &PostgresArchive{db: db}
}

func (a *PostgresArchive) ready() error {
	if a == nil || a.db == nil {
		return ErrNotConfigured
	}
	return nil
}

func AutoMigrate(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS party_history (
          id                      TEXT PRIMARY KEY,
          session_id              TEXT NOT NULL,
          track_id                TEXT NOT NULL,
          title                   TEXT NOT NULL DEFAULT '',
          artist                  TEXT NOT NULL DEFAULT '',
          duration_seconds        DOUBLE PRECISION NOT NULL DEFAULT 0,
          source_ref              TEXT NOT NULL DEFAULT '',
          is_catalog_source       BOOLEAN NOT NULL DEFAULT FALSE,
          played_at               TIMESTAMPTZ NOT NULL,
          played_by               TEXT NOT NULL,
          played_by_name          TEXT NOT NULL DEFAULT '',
          actual_duration_seconds DOUBLE PRECISION,
          was_skipped             BOOLEAN NOT NULL DEFAULT FALSE
      )
    `); err != nil {
		log.Errorf("migrate party_history: %v", err)
		return err
	}

	if _, err := db.Exec(ctx, `
      CREATE INDEX IF NOT EXISTS party_history_session_played_at
          ON party_history (session_id, played_at DESC)
    `); err != nil {
		return err
	}
	return nil
}

// Append stores e. Appending the same entry twice is a no-op, since
// replicated history can be handed over more than once.
func (a *PostgresArchive) Append(ctx context.Context, sessionID string, e party.HistoryEntry) error {
	if err := a.ready(); err != nil {
		return err
	}
	_, err := a.db.Exec(ctx, `
		INSERT INTO party_history (
			id, session_id, track_id, title, artist, duration_seconds, source_ref,
			is_catalog_source, played_at, played_by, played_by_name,
			actual_duration_seconds, was_skipped
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING
	`,
		e.ID, sessionID, e.Track.ID, e.Track.Title, e.Track.Artist, e.Track.DurationSeconds, e.Track.SourceRef,
		e.Track.IsCatalogSource, e.PlayedAt, e.PlayedByParticipantID, e.PlayedByDisplayName,
		e.ActualPlayDurationSeconds, e.WasSkipped,
	)
	if err != nil {
		return fmt.Errorf("archive append: %w", err)
	}
	return nil
}

// Recent returns up to limit plays of the session, most recent first.
func (a *PostgresArchive) Recent(ctx context.Context, sessionID string, limit int) ([]party.HistoryEntry, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	rows, err := a.db.Query(ctx, `
		SELECT id, track_id, title, artist, duration_seconds, source_ref, is_catalog_source,
		       played_at, played_by, played_by_name, actual_duration_seconds, was_skipped
		FROM party_history
		WHERE session_id = $1
		ORDER BY played_at DESC
		LIMIT $2
	`, sessionID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("archive recent: %w", err)
	}
	defer rows.Close()

	out := make([]party.HistoryEntry, 0)
	for rows.Next() {
		var e party.HistoryEntry
		if err := rows.Scan(
			&e.ID, &e.Track.ID, &e.Track.Title, &e.Track.Artist, &e.Track.DurationSeconds,
			&e.Track.SourceRef, &e.Track.IsCatalogSource, &e.PlayedAt,
			&e.PlayedByParticipantID, &e.PlayedByDisplayName,
			&e.ActualPlayDurationSeconds, &e.WasSkipped,
		); err != nil {
			return nil, fmt.Errorf("archive recent: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("archive recent: %w", err)
	}
	return out, nil
}

// MostPlayed counts plays per track over the whole archived life of the
// session. Equal counts keep the order in which tracks were first played.
func (a *PostgresArchive) MostPlayed(ctx context.Context, sessionID string, limit int) ([]party.TrackCount, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	rows, err := a.db.Query(ctx, `
		SELECT track_id, MAX(title), MAX(artist), MAX(duration_seconds), COUNT(*) AS plays
		FROM party_history
		WHERE session_id = $1
		GROUP BY track_id
		ORDER BY plays DESC, MIN(played_at) ASC
		LIMIT $2
	`, sessionID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("archive most played: %w", err)
	}
	defer rows.Close()

	out := make([]party.TrackCount, 0)
	for rows.Next() {
		var (
			tc    party.TrackCount
			plays int64
		)
		if err := rows.Scan(&tc.Track.ID, &tc.Track.Title, &tc.Track.Artist, &tc.Track.DurationSeconds, &plays); err != nil {
			return nil, fmt.Errorf("archive most played: %w", err)
		}
		tc.Count = int(plays)
		out = append(out, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("archive most played: %w", err)
	}
	return out, nil
}

// MostActiveContributors counts plays per participant, ties in order of
// each participant's first play.
func (a *PostgresArchive) MostActiveContributors(ctx context.Context, sessionID string, limit int) ([]party.ContributorCount, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	rows, err := a.db.Query(ctx, `
		SELECT played_by, MAX(played_by_name), COUNT(*) AS plays
		FROM party_history
		WHERE session_id = $1
		GROUP BY played_by
		ORDER BY plays DESC, MIN(played_at) ASC
		LIMIT $2
	`, sessionID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("archive contributors: %w", err)
	}
	defer rows.Close()

	out := make([]party.ContributorCount, 0)
	for rows.Next() {
		var (
			cc    party.ContributorCount
			plays int64
		)
		if err := rows.Scan(&cc.ParticipantID, &cc.DisplayName, &plays); err != nil {
			return nil, fmt.Errorf("archive contributors: %w", err)
		}
		cc.Count = int(plays)
		out = append(out, cc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("archive contributors: %w", err)
	}
	return out, nil
}

const maxLimit = 500

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxLimit {
		return maxLimit
	}
	return limit
}
