package rollout

import "context"

// Repository defines the interface for rollout persistence.
type Repository interface {
	// Create stores a new rollout and assigns its Seq.
	Create(ctx context.Context, r *Rollout) error

	// Get retrieves a rollout by ID.
	Get(ctx context.Context, id string) (*Rollout, error)

	// List retrieves all rollouts in creation order.
	List(ctx context.Context) ([]*Rollout, error)

	// SetPaused sets the pause flag on every listed rollout. If any ID is
	// unknown nothing is changed.
	SetPaused(ctx context.Context, ids []string, paused bool) error

	// RecordOutcome atomically increments the success or failure counter.
	RecordOutcome(ctx context.Context, id string, success bool) error
}
