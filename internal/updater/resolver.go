// Package updater decides which firmware a device is owed and drives the
// device lifecycle from poll and feedback events.
package updater

import (
	"github.com/otafleet/otafleet/internal/device"
	"github.com/otafleet/otafleet/internal/firmware"
	"github.com/otafleet/otafleet/internal/rollout"
)

// Reason explains how an assignment was reached.
type Reason string

const (
	ReasonPinned   Reason = "pinned"
	ReasonTarget   Reason = "target"
	ReasonLatest   Reason = "latest"
	ReasonRollout  Reason = "rollout"
	ReasonUpToDate Reason = "up_to_date"
	ReasonNoMatch  Reason = "no_match"
)

// Assignment is the outcome of resolving a device. Firmware is nil when
// nothing is owed. Rollout is set when a rollout matched the device.
type Assignment struct {
	Firmware *firmware.Firmware
	Rollout  *rollout.Rollout
	Reason   Reason
}

// Resolve returns the firmware currently owed to d, or nil.
func Resolve(d *device.Device, rollouts []*rollout.Rollout, catalog firmware.Snapshot) *firmware.Firmware {
	return Assign(d, rollouts, catalog).Firmware
}

// Assign evaluates the assignment rules in order; the first rule that
// applies decides. It reads its inputs only and never fails: missing data
// yields an assignment without firmware.
func Assign(d *device.Device, rollouts []*rollout.Rollout, catalog firmware.Snapshot) Assignment {
	if d.Pinned {
		return Assignment{Reason: ReasonPinned}
	}

	if id, ok := d.TargetFirmwareID(); ok {
		fw, found := catalog.Get(id)
		if !found {
			return Assignment{Reason: ReasonNoMatch}
		}
		return owed(d, fw, nil, ReasonTarget)
	}

	if d.FirmwareTarget == device.TargetLatest {
		fw, found := catalog.Latest(d.HardwareID)
		if !found {
			return Assignment{Reason: ReasonNoMatch}
		}
		return owed(d, fw, nil, ReasonLatest)
	}

	ro := matchRollout(d, rollouts)
	if ro == nil {
		return Assignment{Reason: ReasonNoMatch}
	}
	fw, found := catalog.Get(ro.FirmwareID)
	if !found {
		return Assignment{Rollout: ro, Reason: ReasonNoMatch}
	}
	return owed(d, fw, ro, ReasonRollout)
}

// matchRollout picks the newest live rollout for the device's feed and flavor.
func matchRollout(d *device.Device, rollouts []*rollout.Rollout) *rollout.Rollout {
	var best *rollout.Rollout
	for _, ro := range rollouts {
		if !ro.Matches(d.Feed, d.Flavor) {
			continue
		}
		if best == nil || ro.NewerThan(best) {
			best = ro
		}
	}
	return best
}

func owed(d *device.Device, fw *firmware.Firmware, ro *rollout.Rollout, reason Reason) Assignment {
	if fw.Version == d.InstalledVersion {
		return Assignment{Rollout: ro, Reason: ReasonUpToDate}
	}
	return Assignment{Firmware: fw, Rollout: ro, Reason: reason}
}
