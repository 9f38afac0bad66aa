// Package device provides the registry of devices known to the update server.
package device

import (
	"errors"
	"time"
)

// Repository and validation errors.
var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrInvalidTarget  = errors.New("invalid firmware target")
)

// Defaults applied to newly registered devices.
const (
	DefaultFeed   = "DEFAULT"
	DefaultFlavor = "DEFAULT"
)

// TargetLatest is the firmware target that tracks the newest compatible firmware.
const TargetLatest = "latest"

// State is the lifecycle state of a device.
type State string

const (
	StateRegistered State = "Registered"
	StateRunning    State = "Running"
	StateFinished   State = "Finished"
	StateError      State = "Error"
)

// Terminal reports whether the state ends an installation attempt.
func (s State) Terminal() bool {
	return s == StateFinished || s == StateError
}

// Device is a single registered device.
type Device struct {
	ID               string
	HardwareID       string
	Feed             string
	Flavor           string
	Pinned           bool
	FirmwareTarget   string
	InstalledVersion string
	State            State
	LastFirmwareID   string
	LastLog          string
	LastSeen         time.Time
	LastStateUpdate  time.Time
	CreatedAt        time.Time
}

// New returns a freshly registered device.
func New(id string, now time.Time) *Device {
	return &Device{
		ID:              id,
		Feed:            DefaultFeed,
		Flavor:          DefaultFlavor,
		State:           StateRegistered,
		LastSeen:        now,
		LastStateUpdate: now,
		CreatedAt:       now,
	}
}

// Configured reports whether the device has reported its hardware.
func (d *Device) Configured() bool {
	return d.HardwareID != ""
}

// TargetFirmwareID returns the concrete firmware the device is pointed at,
// if any. The "latest" sentinel is not a concrete target.
func (d *Device) TargetFirmwareID() (string, bool) {
	if d.FirmwareTarget == "" || d.FirmwareTarget == TargetLatest {
		return "", false
	}
	return d.FirmwareTarget, true
}

// Patch holds attribute changes applied by an administrator. Nil fields are
// left untouched.
type Patch struct {
	Feed           *string
	Flavor         *string
	FirmwareTarget *string
	Pinned         *bool
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Feed == nil && p.Flavor == nil && p.FirmwareTarget == nil && p.Pinned == nil
}

// Apply writes the patch onto d.
func (p Patch) Apply(d *Device) {
	if p.Feed != nil {
		d.Feed = *p.Feed
	}
	if p.Flavor != nil {
		d.Flavor = *p.Flavor
	}
	if p.FirmwareTarget != nil {
		d.FirmwareTarget = *p.FirmwareTarget
	}
	if p.Pinned != nil {
		d.Pinned = *p.Pinned
	}
}

// ValidationError describes invalid registry input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func copyDevice(d *Device) *Device {
	cpy := *d
	return &cpy
}
