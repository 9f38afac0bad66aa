package updater

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/otafleet/otafleet/internal/database"
	"github.com/otafleet/otafleet/internal/device"
	"github.com/otafleet/otafleet/internal/firmware"
	"github.com/otafleet/otafleet/internal/keylock"
	"github.com/otafleet/otafleet/internal/rollout"
)

// Catalog is the firmware catalog as seen by the manager.
type Catalog interface {
	Snapshot(ctx context.Context) (firmware.Snapshot, error)
	EnsureHardware(ctx context.Context, model, revision string) (*firmware.Hardware, error)
}

// Rollouts is the rollout set as seen by the manager.
type Rollouts interface {
	Active(ctx context.Context) ([]*rollout.Rollout, error)
	RecordOutcome(ctx context.Context, id string, success bool) error
}

// ManagerConfig holds configuration for the update manager.
type ManagerConfig struct {
	Devices    device.Repository
	Catalog    Catalog
	Rollouts   Rollouts
	Transactor database.Transactor
	Locks      *keylock.Mutex
	Metrics    *Metrics
	Logger     zerolog.Logger
	Clock      func() time.Time
}

// Manager is the entry point for device traffic. Poll, Configure and
// Feedback for one device never run concurrently; different devices
// proceed in parallel.
type Manager struct {
	devices  device.Repository
	catalog  Catalog
	rollouts Rollouts
	tx       database.Transactor
	locks    *keylock.Mutex
	metrics  *Metrics
	logger   zerolog.Logger
	now      func() time.Time
}

// NewManager creates a new update manager.
func NewManager(cfg ManagerConfig) *Manager {
	locks := cfg.Locks
	if locks == nil {
		locks = keylock.New()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Manager{
		devices:  cfg.Devices,
		catalog:  cfg.Catalog,
		rollouts: cfg.Rollouts,
		tx:       cfg.Transactor,
		locks:    locks,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger.With().Str("component", "updater").Logger(),
		now:      clock,
	}
}

// PollResult is the answer to a device poll.
type PollResult struct {
	Device      *device.Device
	Registered  bool // the poll created the device
	NeedsConfig bool // hardware has not been reported yet
	Firmware    *firmware.Firmware
	Reason      Reason
}

// ConfigData is the configuration a device reports about itself.
type ConfigData struct {
	HWModel          string
	HWRevision       string
	InstalledVersion string
}

// Poll handles a device poll. An unknown device is registered. The poll
// refreshes last_seen and never changes the device state.
func (m *Manager) Poll(ctx context.Context, deviceID string) (*PollResult, error) {
	if err := validateID(deviceID); err != nil {
		return nil, err
	}

	snap, active, err := m.load(ctx)
	if err != nil {
		return nil, err
	}

	unlock := m.locks.Lock(deviceID)
	defer unlock()

	now := m.now().UTC()
	d, created, err := m.getOrRegister(ctx, deviceID, now)
	if err != nil {
		return nil, err
	}
	if !created {
		d.LastSeen = now
		if err := m.devices.Update(ctx, d); err != nil {
			return nil, fmt.Errorf("update device: %w", err)
		}
	}

	assignment := Assign(d, active, snap)
	res := &PollResult{
		Device:      d,
		Registered:  created,
		NeedsConfig: !d.Configured(),
		Firmware:    assignment.Firmware,
		Reason:      assignment.Reason,
	}
	m.metrics.recordPoll(ctx, res)

	evt := m.logger.Debug().Str("device_id", deviceID).Str("reason", string(res.Reason))
	if res.Firmware != nil {
		evt = evt.Str("firmware_id", res.Firmware.ID)
	}
	evt.Msg("poll handled")

	return res, nil
}

// Configure records the hardware and installed version a device reports,
// registering the device if needed.
func (m *Manager) Configure(ctx context.Context, deviceID string, data ConfigData) (*device.Device, error) {
	if err := validateID(deviceID); err != nil {
		return nil, err
	}

	hw, err := m.catalog.EnsureHardware(ctx, data.HWModel, data.HWRevision)
	if err != nil {
		return nil, err
	}

	unlock := m.locks.Lock(deviceID)
	defer unlock()

	now := m.now().UTC()
	d, _, err := m.getOrRegister(ctx, deviceID, now)
	if err != nil {
		return nil, err
	}

	d.HardwareID = hw.ID
	if v := strings.TrimSpace(data.InstalledVersion); v != "" {
		d.InstalledVersion = v
	}
	d.LastSeen = now
	if err := m.devices.Update(ctx, d); err != nil {
		return nil, fmt.Errorf("update device: %w", err)
	}

	m.logger.Info().
		Str("device_id", deviceID).
		Str("hardware", hw.String()).
		Str("installed_version", d.InstalledVersion).
		Msg("device configured")

	return d, nil
}

// Feedback applies a device report. The device must already be known.
// The device record and any rollout counter change commit together.
func (m *Manager) Feedback(ctx context.Context, deviceID string, fb Feedback) (Outcome, error) {
	if err := validateID(deviceID); err != nil {
		return Outcome{}, err
	}
	if err := fb.Validate(); err != nil {
		return Outcome{}, err
	}

	snap, active, err := m.load(ctx)
	if err != nil {
		return Outcome{}, err
	}

	unlock := m.locks.Lock(deviceID)
	defer unlock()

	d, err := m.devices.Get(ctx, deviceID)
	if err != nil {
		return Outcome{}, err
	}

	now := m.now().UTC()
	assignment := Assign(d, active, snap)
	fw, known := snap.Get(fb.FirmwareID)
	if !known {
		m.logger.Warn().Str("device_id", deviceID).Str("firmware_id", fb.FirmwareID).Msg("feedback for unknown firmware")
	}

	out := Transition(d, fb, assignment, fw, now)
	d.LastSeen = now

	err = m.tx.WithinTx(ctx, func(ctx context.Context) error {
		if out.Counted {
			if err := m.rollouts.RecordOutcome(ctx, out.RolloutID, out.Success); err != nil {
				return err
			}
		}
		if err := m.devices.Update(ctx, d); err != nil {
			return fmt.Errorf("update device: %w", err)
		}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	m.metrics.recordFeedback(ctx, fb, out)

	level := zerolog.InfoLevel
	if out.From == out.To && !out.Counted {
		level = zerolog.DebugLevel
	}
	m.logger.WithLevel(level).
		Str("device_id", deviceID).
		Str("firmware_id", fb.FirmwareID).
		Str("execution", string(fb.Execution)).
		Str("from", string(out.From)).
		Str("to", string(out.To)).
		Bool("counted", out.Counted).
		Msg("feedback applied")

	return out, nil
}

func (m *Manager) load(ctx context.Context) (firmware.Snapshot, []*rollout.Rollout, error) {
	snap, err := m.catalog.Snapshot(ctx)
	if err != nil {
		return firmware.Snapshot{}, nil, err
	}
	active, err := m.rollouts.Active(ctx)
	if err != nil {
		return firmware.Snapshot{}, nil, err
	}
	return snap, active, nil
}

func (m *Manager) getOrRegister(ctx context.Context, deviceID string, now time.Time) (*device.Device, bool, error) {
	d, err := m.devices.Get(ctx, deviceID)
	if err == nil {
		return d, false, nil
	}
	if !errors.Is(err, device.ErrDeviceNotFound) {
		return nil, false, err
	}

	d = device.New(deviceID, now)
	if err := m.devices.Create(ctx, d); err != nil {
		return nil, false, fmt.Errorf("register device: %w", err)
	}

	m.logger.Info().Str("device_id", deviceID).Msg("device registered")
	return d, true, nil
}

func validateID(id string) error {
	if strings.TrimSpace(id) == "" || len(id) > 255 {
		return &ValidationError{Field: "device_id", Message: "must be between 1 and 255 characters"}
	}
	return nil
}
