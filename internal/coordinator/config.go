package coordinator

import (
	"time"

	"github.com/google/uuid"

	"party-sync-service/internal/drift"
	"party-sync-service/internal/party"
)

// Config tunes one coordinator. Zero fields take the defaults below.
type Config struct {
	ParticipantID string
	DisplayName   string

	HeartbeatInterval  time.Duration
	CorrectionInterval time.Duration
	// CorrectionThreshold is the drift in seconds above which a participant
	// seeks. It is independent of the classifier bands.
	CorrectionThreshold float64
	WriteTimeout        time.Duration
	// StaleAfter is how long a participant waits for a fresh host snapshot
	// before reporting an error and re-subscribing.
	StaleAfter       time.Duration
	MaxWriteFailures int
	ReportStaleAfter time.Duration
	HistoryLimit     int

	Classifier drift.Classifier
	Now        func() time.Time
	Shuffle    func(n int, swap func(i, j int))
}

const (
	DefaultHeartbeatInterval   = time.Second
	DefaultCorrectionInterval  = 3 * time.Second
	DefaultCorrectionThreshold = 0.4
	DefaultWriteTimeout        = 5 * time.Second
	DefaultStaleAfter          = 10 * time.Second
	DefaultMaxWriteFailures    = 3
	DefaultReportStaleAfter    = 15 * time.Second
)

func (c Config) withDefaults() Config {
	if c.ParticipantID == "" {
		c.ParticipantID = uuid.NewString()
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.CorrectionInterval <= 0 {
		c.CorrectionInterval = DefaultCorrectionInterval
	}
	if c.CorrectionThreshold <= 0 {
		c.CorrectionThreshold = DefaultCorrectionThreshold
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = DefaultStaleAfter
	}
	if c.MaxWriteFailures <= 0 {
		c.MaxWriteFailures = DefaultMaxWriteFailures
	}
	if c.ReportStaleAfter <= 0 {
		c.ReportStaleAfter = DefaultReportStaleAfter
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = party.DefaultHistoryLimit
	}
	if c.Classifier == (drift.Classifier{}) {
		c.Classifier = drift.Default
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}
