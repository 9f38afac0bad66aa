package rollout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/otafleet/otafleet/internal/firmware"
)

// FirmwareLookup checks that a rollout's firmware exists.
type FirmwareLookup interface {
	Get(ctx context.Context, id string) (*firmware.Firmware, error)
}

// ServiceConfig holds configuration for the rollout service.
type ServiceConfig struct {
	Repository Repository
	Firmware   FirmwareLookup
	Logger     zerolog.Logger
	Clock      func() time.Time
}

// Service manages the rollout set.
type Service struct {
	repo     Repository
	firmware FirmwareLookup
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService creates a new rollout service.
func NewService(cfg ServiceConfig) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		repo:     cfg.Repository,
		firmware: cfg.Firmware,
		logger:   cfg.Logger,
		now:      clock,
	}
}

// CreateInput holds the fields of a new rollout.
type CreateInput struct {
	Name       string
	Feed       string
	Flavor     string
	FirmwareID string
	Paused     bool
}

// Create validates and stores a new rollout. An unknown firmware yields
// firmware.ErrFirmwareNotFound.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Rollout, error) {
	feed := strings.TrimSpace(in.Feed)
	flavor := strings.TrimSpace(in.Flavor)
	switch {
	case feed == "":
		return nil, &ValidationError{Field: "feed", Message: "is required"}
	case flavor == "":
		return nil, &ValidationError{Field: "flavor", Message: "is required"}
	case in.FirmwareID == "":
		return nil, &ValidationError{Field: "firmware_id", Message: "is required"}
	}

	if _, err := s.firmware.Get(ctx, in.FirmwareID); err != nil {
		return nil, fmt.Errorf("rollout firmware %s: %w", in.FirmwareID, err)
	}

	ro := &Rollout{
		ID:         NewRolloutID(),
		Name:       strings.TrimSpace(in.Name),
		Feed:       feed,
		Flavor:     flavor,
		FirmwareID: in.FirmwareID,
		Paused:     in.Paused,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.repo.Create(ctx, ro); err != nil {
		return nil, fmt.Errorf("create rollout: %w", err)
	}

	s.logger.Info().
		Str("rollout_id", ro.ID).
		Str("feed", ro.Feed).
		Str("flavor", ro.Flavor).
		Str("firmware_id", ro.FirmwareID).
		Bool("paused", ro.Paused).
		Msg("rollout created")

	return ro, nil
}

// SetPaused pauses or resumes the listed rollouts as one operation.
func (s *Service) SetPaused(ctx context.Context, ids []string, paused bool) error {
	if len(ids) == 0 {
		return &ValidationError{Field: "ids", Message: "at least one rollout is required"}
	}
	if err := s.repo.SetPaused(ctx, ids, paused); err != nil {
		return err
	}

	s.logger.Info().Strs("rollout_ids", ids).Bool("paused", paused).Msg("rollouts updated")
	return nil
}

// Get retrieves a rollout by ID.
func (s *Service) Get(ctx context.Context, id string) (*Rollout, error) {
	return s.repo.Get(ctx, id)
}

// List retrieves every rollout with its counters, oldest first.
func (s *Service) List(ctx context.Context) ([]*Rollout, error) {
	return s.repo.List(ctx)
}

// Active returns the non-paused rollouts.
func (s *Service) Active(ctx context.Context) ([]*Rollout, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rollouts: %w", err)
	}

	active := all[:0]
	for _, ro := range all {
		if !ro.Paused {
			active = append(active, ro)
		}
	}
	return active, nil
}

// RecordOutcome counts a terminal device outcome against the rollout.
func (s *Service) RecordOutcome(ctx context.Context, id string, success bool) error {
	if err := s.repo.RecordOutcome(ctx, id, success); err != nil {
		return fmt.Errorf("record rollout outcome: %w", err)
	}
	return nil
}
