package device

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/otafleet/otafleet/internal/database"
	"github.com/otafleet/otafleet/internal/firmware"
	"github.com/otafleet/otafleet/internal/keylock"
)

// FirmwareLookup resolves firmware targets.
type FirmwareLookup interface {
	Get(ctx context.Context, id string) (*firmware.Firmware, error)
}

// ServiceConfig holds configuration for the registry service.
type ServiceConfig struct {
	Repository Repository
	Firmware   FirmwareLookup
	Transactor database.Transactor
	Locks      *keylock.Mutex
	Logger     zerolog.Logger
}

// Service provides administrative access to the device registry.
type Service struct {
	repo     Repository
	firmware FirmwareLookup
	tx       database.Transactor
	locks    *keylock.Mutex
	logger   zerolog.Logger
}

// NewService creates a new registry service. Locks must be shared with the
// update manager so admin edits and device traffic never interleave.
func NewService(cfg ServiceConfig) *Service {
	locks := cfg.Locks
	if locks == nil {
		locks = keylock.New()
	}
	return &Service{
		repo:     cfg.Repository,
		firmware: cfg.Firmware,
		tx:       cfg.Transactor,
		locks:    locks,
		logger:   cfg.Logger,
	}
}

// List retrieves all devices.
func (s *Service) List(ctx context.Context) ([]*Device, error) {
	return s.repo.List(ctx)
}

// Get retrieves a device by ID.
func (s *Service) Get(ctx context.Context, id string) (*Device, error) {
	return s.repo.Get(ctx, id)
}

// BulkUpdate applies patch to every listed device. All devices and the
// firmware target are validated first; on any error nothing is written.
func (s *Service) BulkUpdate(ctx context.Context, ids []string, patch Patch) error {
	if len(ids) == 0 {
		return &ValidationError{Field: "devices", Message: "at least one device is required"}
	}
	if patch.Empty() {
		return &ValidationError{Field: "patch", Message: "no attributes to update"}
	}
	if patch.Feed != nil && strings.TrimSpace(*patch.Feed) == "" {
		return &ValidationError{Field: "feed", Message: "must not be empty"}
	}
	if patch.Flavor != nil && strings.TrimSpace(*patch.Flavor) == "" {
		return &ValidationError{Field: "flavor", Message: "must not be empty"}
	}

	unlock := s.locks.LockAll(ids)
	defer unlock()

	devices := make([]*Device, 0, len(ids))
	for _, id := range ids {
		d, err := s.repo.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("device %s: %w", id, err)
		}
		devices = append(devices, d)
	}

	if err := s.validateTarget(ctx, devices, patch.FirmwareTarget); err != nil {
		return err
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		for _, d := range devices {
			patch.Apply(d)
			if err := s.repo.Update(ctx, d); err != nil {
				return fmt.Errorf("update device %s: %w", d.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info().Int("devices", len(devices)).Msg("devices updated")
	return nil
}

func (s *Service) validateTarget(ctx context.Context, devices []*Device, target *string) error {
	if target == nil || *target == "" || *target == TargetLatest {
		return nil
	}

	fw, err := s.firmware.Get(ctx, *target)
	if err != nil {
		if errors.Is(err, firmware.ErrFirmwareNotFound) {
			return fmt.Errorf("%w: firmware %s does not exist", ErrInvalidTarget, *target)
		}
		return err
	}

	for _, d := range devices {
		if !fw.CompatibleWith(d.HardwareID) {
			return fmt.Errorf("%w: firmware %s is not compatible with device %s", ErrInvalidTarget, fw.ID, d.ID)
		}
	}
	return nil
}
