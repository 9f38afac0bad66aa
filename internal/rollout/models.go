// Package rollout provides rollouts: standing rules that assign one firmware
// to every matching device, together with their outcome counters.
package rollout

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository errors.
var (
	ErrRolloutNotFound = errors.New("rollout not found")
)

// Rollout assigns FirmwareID to devices in Feed and Flavor.
type Rollout struct {
	ID           string
	Seq          int64 // creation order within the store
	Name         string
	Feed         string
	Flavor       string
	FirmwareID   string
	Paused       bool
	SuccessCount int64
	FailureCount int64
	CreatedAt    time.Time
}

// Matches reports whether the rollout is live for a device in feed and flavor.
func (r *Rollout) Matches(feed, flavor string) bool {
	return !r.Paused && r.Feed == feed && r.Flavor == flavor
}

// NewerThan orders rollouts by creation time, then by creation sequence.
func (r *Rollout) NewerThan(other *Rollout) bool {
	if !r.CreatedAt.Equal(other.CreatedAt) {
		return r.CreatedAt.After(other.CreatedAt)
	}
	return r.Seq > other.Seq
}

// ValidationError describes invalid rollout input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// NewRolloutID generates a rollout identifier.
func NewRolloutID() string {
	return "ro_" + uuid.New().String()[:22]
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
