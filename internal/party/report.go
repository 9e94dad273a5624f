package party

import (
	"time"

	"party-sync-service/internal/drift"
)

// ParticipantReport is what a participant publishes about itself on every
// correction tick so that every client can show the same sync overview.
type ParticipantReport struct {
	ParticipantID   string       `json:"participantId"`
	DisplayName     string       `json:"displayName"`
	PositionSeconds float64      `json:"positionSeconds"`
	DriftSeconds    float64      `json:"driftSeconds"`
	Status          drift.Status `json:"status"`
	ReportedAt      time.Time    `json:"reportedAt"`
}
