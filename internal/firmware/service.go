package firmware

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ServiceConfig holds configuration for the catalog service.
type ServiceConfig struct {
	Repository Repository
	Logger     zerolog.Logger
	Clock      func() time.Time
}

// Service manages the firmware catalog.
type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a new catalog service.
func NewService(cfg ServiceConfig) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
		now:    clock,
	}
}

// CreateInput describes a completed artifact ingestion.
type CreateInput struct {
	Version  string
	Filename string
	URI      string
	Hash     string
	Size     int64
	Hardware []HardwareRef
}

func (in CreateInput) validate() error {
	switch {
	case strings.TrimSpace(in.Version) == "":
		return &ValidationError{Field: "version", Message: "is required"}
	case strings.ContainsAny(in.Version, " \t\n"):
		return &ValidationError{Field: "version", Message: "must not contain whitespace"}
	case in.URI == "":
		return &ValidationError{Field: "uri", Message: "is required"}
	case in.Hash == "":
		return &ValidationError{Field: "hash", Message: "is required"}
	case in.Size < 0:
		return &ValidationError{Field: "size", Message: "must not be negative"}
	case len(in.Hardware) == 0:
		return &ValidationError{Field: "hardware", Message: "at least one compatible hardware model is required"}
	}
	for _, ref := range in.Hardware {
		if strings.TrimSpace(ref.Model) == "" {
			return &ValidationError{Field: "hardware", Message: "model must not be empty"}
		}
	}
	return nil
}

// Create adds a firmware record to the catalog. Hardware classes named by
// the input are created if they do not exist yet.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Firmware, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	fw := &Firmware{
		ID:        NewFirmwareID(),
		Version:   strings.TrimSpace(in.Version),
		Hash:      strings.ToLower(in.Hash),
		Size:      in.Size,
		URI:       in.URI,
		Filename:  in.Filename,
		CreatedAt: s.now().UTC(),
	}

	seen := make(map[string]bool, len(in.Hardware))
	for _, ref := range in.Hardware {
		hw, err := s.EnsureHardware(ctx, ref.Model, ref.Revision)
		if err != nil {
			return nil, err
		}
		if !seen[hw.ID] {
			seen[hw.ID] = true
			fw.HardwareIDs = append(fw.HardwareIDs, hw.ID)
		}
	}

	if err := s.repo.Create(ctx, fw); err != nil {
		return nil, fmt.Errorf("create firmware: %w", err)
	}

	s.logger.Info().
		Str("firmware_id", fw.ID).
		Str("version", fw.Version).
		Str("uri", fw.URI).
		Int64("size", fw.Size).
		Msg("firmware created")

	return fw, nil
}

// Replace removes any firmware stored under the same URI, then creates a
// new record. It is used when an artifact is uploaded again.
func (s *Service) Replace(ctx context.Context, in CreateInput) (*Firmware, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if _, err := s.RemoveByURI(ctx, in.URI); err != nil {
		return nil, err
	}
	return s.Create(ctx, in)
}

// RemoveByURI deletes the firmware stored under uri. It reports whether a
// record was removed.
func (s *Service) RemoveByURI(ctx context.Context, uri string) (bool, error) {
	existing, err := s.repo.GetByURI(ctx, uri)
	if err != nil {
		if errors.Is(err, ErrFirmwareNotFound) {
			return false, nil
		}
		return false, err
	}

	if err := s.repo.Delete(ctx, existing.ID); err != nil && !errors.Is(err, ErrFirmwareNotFound) {
		return false, fmt.Errorf("delete firmware: %w", err)
	}

	s.logger.Info().Str("firmware_id", existing.ID).Str("uri", uri).Msg("firmware replaced")
	return true, nil
}

// Get retrieves a firmware record by ID.
func (s *Service) Get(ctx context.Context, id string) (*Firmware, error) {
	return s.repo.Get(ctx, id)
}

// List retrieves all firmware records.
func (s *Service) List(ctx context.Context) ([]*Firmware, error) {
	return s.repo.List(ctx)
}

// Snapshot returns a read-only view of the whole catalog.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list firmware: %w", err)
	}
	return NewSnapshot(items), nil
}

// EnsureHardware returns the hardware class for model and revision,
// creating it on first use. An empty revision means DefaultRevision.
func (s *Service) EnsureHardware(ctx context.Context, model, revision string) (*Hardware, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, &ValidationError{Field: "hw_model", Message: "is required"}
	}
	revision = strings.TrimSpace(revision)
	if revision == "" {
		revision = DefaultRevision
	}

	hw, err := s.repo.GetOrCreateHardware(ctx, &Hardware{
		ID:       NewHardwareID(),
		Model:    model,
		Revision: revision,
	})
	if err != nil {
		return nil, fmt.Errorf("ensure hardware %s:%s: %w", model, revision, err)
	}
	return hw, nil
}

// GetHardware retrieves a hardware class by ID.
func (s *Service) GetHardware(ctx context.Context, id string) (*Hardware, error) {
	return s.repo.GetHardware(ctx, id)
}

// ListHardware retrieves all hardware classes.
func (s *Service) ListHardware(ctx context.Context) ([]*Hardware, error) {
	return s.repo.ListHardware(ctx)
}
