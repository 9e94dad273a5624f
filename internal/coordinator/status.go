package coordinator

import (
	"fmt"
	"time"

	"party-sync-service/internal/drift"
)

// RoleKind names the coordinator's current role.
type RoleKind int

const (
	RoleNone RoleKind = iota
	RoleHost
	RoleParticipant
)

var roleNames = [...]string{"none", "host", "participant"}

func (k RoleKind) String() string {
	if k < 0 || int(k) >= len(roleNames) {
		return fmt.Sprintf("RoleKind(%d)", int(k))
	}
	return roleNames[k]
}

func (k RoleKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ConnectionState is the coarse replication health of a coordinator.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Syncing
	Error
)

var stateNames = [...]string{"disconnected", "connecting", "connected", "syncing", "error"}

func (s ConnectionState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("ConnectionState(%d)", int(s))
	}
	return stateNames[s]
}

func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Connection is a ConnectionState plus the reason when State is Error.
type Connection struct {
	State  ConnectionState `json:"state"`
	Reason string          `json:"reason,omitempty"`
}

func (c Connection) String() string {
	if c.State == Error {
		return "error(" + c.Reason + ")"
	}
	return c.State.String()
}

// Status is a point-in-time copy of the coordinator's observable state.
type Status struct {
	Role         RoleKind                `json:"role"`
	Connection   Connection              `json:"connection"`
	SessionID    string                  `json:"sessionId,omitempty"`
	LastSyncedAt *time.Time              `json:"lastSyncedAt,omitempty"`
	Suspended    bool                    `json:"suspended"`
	Participants map[string]drift.Status `json:"participants"`
}
