// Package drift classifies how far a participant's player is from the host.
//
// The classification is for display only. It uses coarser bands than the
// coordinator's correction threshold and never decides whether to seek.
package drift

import (
	"encoding/json"
	"fmt"
	"math"
)

// Status is the per-participant sync view.
type Status int

const (
	InSync Status = iota
	Lagging
	Disconnected
)

var statusNames = [...]string{"inSync", "lagging", "disconnected"}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// MarshalJSON encodes the status by name.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts the names produced by MarshalJSON.
func (s *Status) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	p, err := ParseStatus(name)
	if err != nil {
		return err
	}
	*s = p
	return nil
}

// ParseStatus converts a status name back to a Status.
func ParseStatus(name string) (Status, error) {
	for i, n := range statusNames {
		if n == name {
			return Status(i), nil
		}
	}
	return Disconnected, fmt.Errorf("drift: unknown status %q", name)
}

// Classifier maps absolute drift in seconds onto a Status.
type Classifier struct {
	InSyncBelow  float64 // drift strictly below this is InSync
	LaggingBelow float64 // drift strictly below this is Lagging
}

// Default uses 1.5s and 5s bands.
var Default = Classifier{InSyncBelow: 1.5, LaggingBelow: 5.0}

// Classify compares a local and a host position. Negative drift (local ahead)
// is treated by magnitude. NaN and infinite inputs classify as Disconnected.
func (c Classifier) Classify(localTime, hostTime float64) Status {
	return c.ClassifyDrift(localTime - hostTime)
}

// ClassifyDrift classifies an already computed offset.
func (c Classifier) ClassifyDrift(offset float64) Status {
	d := math.Abs(offset)
	switch {
	case d < c.InSyncBelow:
		return InSync
	case d < c.LaggingBelow:
		return Lagging
	default:
		return Disconnected
	}
}

// Classify uses the Default bands.
func Classify(localTime, hostTime float64) Status {
	return Default.Classify(localTime, hostTime)
}
