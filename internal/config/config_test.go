package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"PORT", "REDIS_URL", "DATABASE_URL", "LOG_LEVEL", "ALLOWED_ORIGIN", "PARTICIPANT_ID", "DISPLAY_NAME",
	"HEARTBEAT_INTERVAL", "CORRECTION_INTERVAL", "CORRECTION_THRESHOLD", "REPLICATION_TIMEOUT",
	"STALE_AFTER", "REPORT_STALE_AFTER", "MAX_WRITE_FAILURES", "HISTORY_LIMIT",
}

func clearEnv(t *testing.T) {
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3008", cfg.Port)
	assert.Empty(t, cfg.RedisURL)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.NotEmpty(t, cfg.ParticipantID)
	assert.Equal(t, time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 3*time.Second, cfg.CorrectionInterval)
	assert.Equal(t, 0.4, cfg.CorrectionThreshold)
	assert.Equal(t, 5*time.Second, cfg.ReplicationTimeout)
	assert.Equal(t, 10*time.Second, cfg.StaleAfter)
	assert.Equal(t, 15*time.Second, cfg.ReportStaleAfter)
	assert.Equal(t, 3, cfg.MaxWriteFailures)
	assert.Equal(t, 50, cfg.HistoryLimit)
}

func TestLoad_FromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("PARTICIPANT_ID", "p-7")
	t.Setenv("DISPLAY_NAME", "Ann")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("HEARTBEAT_INTERVAL", "500ms")
	t.Setenv("CORRECTION_INTERVAL", "2.5")
	t.Setenv("CORRECTION_THRESHOLD", "0.25")
	t.Setenv("MAX_WRITE_FAILURES", "5")
	t.Setenv("HISTORY_LIMIT", "20")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 500*time.Millisecond, cfg.HeartbeatInterval)
	assert.Equal(t, 2500*time.Millisecond, cfg.CorrectionInterval)

	cc := cfg.Coordinator()
	assert.Equal(t, "p-7", cc.ParticipantID)
	assert.Equal(t, "Ann", cc.DisplayName)
	assert.Equal(t, 0.25, cc.CorrectionThreshold)
	assert.Equal(t, 5, cc.MaxWriteFailures)
	assert.Equal(t, 20, cc.HistoryLimit)
	assert.Equal(t, 5*time.Second, cc.WriteTimeout)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("HEARTBEAT_INTERVAL", "-1s")
	t.Setenv("CORRECTION_THRESHOLD", "0")
	t.Setenv("MAX_WRITE_FAILURES", "many")
	t.Setenv("STALE_AFTER", "soon")

	_, err := Load()
	require.Error(t, err)
	for _, key := range []string{"HEARTBEAT_INTERVAL", "CORRECTION_THRESHOLD", "MAX_WRITE_FAILURES", "STALE_AFTER"} {
		assert.Contains(t, err.Error(), key)
	}
}
