// Package config reads the agent's settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"party-sync-service/internal/coordinator"
	"party-sync-service/internal/party"
)

type Config struct {
	Port          string
	RedisURL      string
	DatabaseURL   string
	LogLevel      string
	AllowedOrigin string

	ParticipantID       string
	DisplayName         string
	HeartbeatInterval   time.Duration
	CorrectionInterval  time.Duration
	CorrectionThreshold float64
	ReplicationTimeout  time.Duration
	StaleAfter          time.Duration
	ReportStaleAfter    time.Duration
	MaxWriteFailures    int
	HistoryLimit        int
}

// Load reads the environment. Every malformed or non-positive numeric
// setting is reported, not just the first one.
func Load() (Config, error) {
	var errs []error
	cfg := Config{
		Port:          getenv("PORT", "3008"),
		RedisURL:      getenv("REDIS_URL", ""),
		DatabaseURL:   getenv("DATABASE_URL", ""),
		LogLevel:      strings.ToLower(getenv("LOG_LEVEL", "info")),
		AllowedOrigin: getenv("ALLOWED_ORIGIN", ""),
		ParticipantID: getenv("PARTICIPANT_ID", uuid.NewString()),
		DisplayName:   getenv("DISPLAY_NAME", ""),
	}

	cfg.HeartbeatInterval = getenvDuration("HEARTBEAT_INTERVAL", coordinator.DefaultHeartbeatInterval, &errs)
	cfg.CorrectionInterval = getenvDuration("CORRECTION_INTERVAL", coordinator.DefaultCorrectionInterval, &errs)
	cfg.CorrectionThreshold = getenvFloat("CORRECTION_THRESHOLD", coordinator.DefaultCorrectionThreshold, &errs)
	cfg.ReplicationTimeout = getenvDuration("REPLICATION_TIMEOUT", coordinator.DefaultWriteTimeout, &errs)
	cfg.StaleAfter = getenvDuration("STALE_AFTER", coordinator.DefaultStaleAfter, &errs)
	cfg.ReportStaleAfter = getenvDuration("REPORT_STALE_AFTER", coordinator.DefaultReportStaleAfter, &errs)
	cfg.MaxWriteFailures = getenvInt("MAX_WRITE_FAILURES", coordinator.DefaultMaxWriteFailures, &errs)
	cfg.HistoryLimit = getenvInt("HISTORY_LIMIT", party.DefaultHistoryLimit, &errs)

	if cfg.Port == "" {
		errs = append(errs, errors.New("config: PORT is empty"))
	}
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return cfg, nil
}

// Coordinator maps the settings onto a coordinator configuration.
func (c Config) Coordinator() coordinator.Config {
	return coordinator.Config{
		ParticipantID:       c.ParticipantID,
		DisplayName:         c.DisplayName,
		HeartbeatInterval:   c.HeartbeatInterval,
		CorrectionInterval:  c.CorrectionInterval,
		CorrectionThreshold: c.CorrectionThreshold,
		WriteTimeout:        c.ReplicationTimeout,
		StaleAfter:          c.StaleAfter,
		ReportStaleAfter:    c.ReportStaleAfter,
		MaxWriteFailures:    c.MaxWriteFailures,
		HistoryLimit:        c.HistoryLimit,
	}
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int, errs *[]error) int {
	raw := getenv(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		*errs = append(*errs, fmt.Errorf("config: %s must be a positive integer, got %q", key, raw))
		return def
	}
	return v
}

func getenvFloat(key string, def float64, errs *[]error) float64 {
	raw := getenv(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || !(v > 0) {
		*errs = append(*errs, fmt.Errorf("config: %s must be a positive number, got %q", key, raw))
		return def
	}
	return v
}

// getenvDuration accepts Go durations ("1500ms") or plain seconds ("1.5").
func getenvDuration(key string, def time.Duration, errs *[]error) time.Duration {
	raw := getenv(key, "")
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		secs, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil {
			*errs = append(*errs, fmt.Errorf("config: %s is not a duration: %q", key, raw))
			return def
		}
		d = time.Duration(secs * float64(time.Second))
	}
	if d <= 0 {
		*errs = append(*errs, fmt.Errorf("config: %s must be positive, got %q", key, raw))
		return def
	}
	return d
}
