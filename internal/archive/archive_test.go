package archive

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"party-sync-service/internal/party"
)

func setupMockArchive(t *testing.T) (*PostgresArchive, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return New(mock), mock
}

var playedAt = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestAutoMigrate(t *testing.T) {
	_, mock := setupMockArchive(t)
	defer mock.Close()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS party_history").
			WillReturnResult(pgxmock.NewResult("CREATE", 0))
		mock.ExpectExec("CREATE INDEX IF NOT EXISTS party_history_session_played_at").
			WillReturnResult(pgxmock.NewResult("CREATE", 0))

		require.NoError(t, AutoMigrate(context.Background(), mock))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("TableFails", func(t *testing.T) {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS party_history").
			WillReturnError(errors.New("permission denied"))

		assert.Error(t, AutoMigrate(context.Background(), mock))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAppend(t *testing.T) {
	a, mock := setupMockArchive(t)
	defer mock.Close()

	played := 42.5
	e := party.HistoryEntry{
		ID:                        "h1",
		Track:                     party.Track{ID: "t1", Title: "Alpha", Artist: "Band", DurationSeconds: 240},
		PlayedAt:                  playedAt,
		PlayedByParticipantID:     "p1",
		PlayedByDisplayName:       "Ann",
		ActualPlayDurationSeconds: &played,
		WasSkipped:                true,
	}

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO party_history").
			WithArgs("h1", "s1", "t1", "Alpha", "Band", 240.0, "", false, playedAt, "p1", "Ann", pgxmock.AnyArg(), true).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, a.Append(context.Background(), "s1", e))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DBError", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO party_history").
			WillReturnError(errors.New("connection reset"))

		err := a.Append(context.Background(), "s1", e)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "archive append")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRecent(t *testing.T) {
	a, mock := setupMockArchive(t)
	defer mock.Close()

	played := 30.0
	mock.ExpectQuery("SELECT .* FROM party_history").
		WithArgs("s1", 2).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "track_id", "title", "artist", "duration_seconds", "source_ref", "is_catalog_source",
			"played_at", "played_by", "played_by_name", "actual_duration_seconds", "was_skipped",
		}).AddRow(
			"h2", "t2", "Beta", "Band", 180.0, "", true,
			playedAt.Add(time.Minute), "p2", "Bob", &played, false,
		).AddRow(
			"h1", "t1", "Alpha", "Band", 240.0, "yt:abc", false,
			playedAt, "p1", "Ann", nil, true,
		))

	got, err := a.Recent(context.Background(), "s1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "h2", got[0].ID)
	assert.Equal(t, "Beta", got[0].Track.Title)
	assert.True(t, got[0].Track.IsCatalogSource)
	require.NotNil(t, got[0].ActualPlayDurationSeconds)
	assert.Equal(t, 30.0, *got[0].ActualPlayDurationSeconds)

	assert.Equal(t, "yt:abc", got[1].Track.SourceRef)
	assert.Nil(t, got[1].ActualPlayDurationSeconds)
	assert.True(t, got[1].WasSkipped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMostPlayed(t *testing.T) {
	a, mock := setupMockArchive(t)
	defer mock.Close()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery(`SELECT track_id.*GROUP BY track_id ORDER BY plays DESC, MIN\(played_at\) ASC`).
			WithArgs("s1", maxLimit).
			WillReturnRows(pgxmock.NewRows([]string{"track_id", "title", "artist", "duration_seconds", "plays"}).
				AddRow("t1", "Alpha", "Band", 240.0, int64(5)).
				AddRow("t2", "Beta", "Band", 180.0, int64(2)))

		got, err := a.MostPlayed(context.Background(), "s1", 0)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "t1", got[0].Track.ID)
		assert.Equal(t, 5, got[0].Count)
		assert.Equal(t, 2, got[1].Count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("QueryError", func(t *testing.T) {
		mock.ExpectQuery("SELECT track_id").
			WillReturnError(errors.New("timeout"))

		_, err := a.MostPlayed(context.Background(), "s1", 10)
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMostActiveContributors(t *testing.T) {
	a, mock := setupMockArchive(t)
	defer mock.Close()

	mock.ExpectQuery(`SELECT played_by.*GROUP BY played_by ORDER BY plays DESC, MIN\(played_at\) ASC`).
		WithArgs("s1", 3).
		WillReturnRows(pgxmock.NewRows([]string{"played_by", "played_by_name", "plays"}).
			AddRow("p1", "Ann", int64(7)))

	got, err := a.MostActiveContributors(context.Background(), "s1", 3)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, party.ContributorCount{ParticipantID: "p1", DisplayName: "Ann", Count: 7}, got[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNilArchive(t *testing.T) {
	var a *PostgresArchive
	ctx := context.Background()

	assert.ErrorIs(t, a.Append(ctx, "s1", party.HistoryEntry{}), ErrNotConfigured)
	_, err := a.Recent(ctx, "s1", 10)
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = a.MostPlayed(ctx, "s1", 10)
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = a.MostActiveContributors(ctx, "s1", 10)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, maxLimit, clampLimit(0))
	assert.Equal(t, maxLimit, clampLimit(-3))
	assert.Equal(t, maxLimit, clampLimit(maxLimit+1))
	assert.Equal(t, 20, clampLimit(20))
}
