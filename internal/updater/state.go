package updater

import (
	"fmt"
	"strings"
	"time"

	"github.com/otafleet/otafleet/internal/device"
	"github.com/otafleet/otafleet/internal/firmware"
)

// Execution is the execution status reported in device feedback.
type Execution string

const (
	ExecutionProceeding Execution = "proceeding"
	ExecutionClosed     Execution = "closed"
	ExecutionCanceled   Execution = "canceled"
	ExecutionRejected   Execution = "rejected"
	ExecutionScheduled  Execution = "scheduled"
	ExecutionResumed    Execution = "resumed"
	ExecutionDownload   Execution = "download"
	ExecutionDownloaded Execution = "downloaded"
)

func (e Execution) valid() bool {
	switch e {
	case ExecutionProceeding, ExecutionClosed, ExecutionCanceled, ExecutionRejected,
		ExecutionScheduled, ExecutionResumed, ExecutionDownload, ExecutionDownloaded:
		return true
	}
	return false
}

// Result is the finished result reported in device feedback.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
	ResultNone    Result = "none"
)

// Feedback is a device report about a deployment.
type Feedback struct {
	FirmwareID string
	Execution  Execution
	Result     Result
	Details    []string
}

// Validate checks the feedback fields.
func (f Feedback) Validate() error {
	if f.FirmwareID == "" {
		return &ValidationError{Field: "id", Message: "firmware id is required"}
	}
	if !f.Execution.valid() {
		return &ValidationError{Field: "execution", Message: fmt.Sprintf("unknown execution %q", f.Execution)}
	}
	switch f.Result {
	case ResultSuccess, ResultFailure, ResultNone, "":
	default:
		return &ValidationError{Field: "result", Message: fmt.Sprintf("unknown result %q", f.Result)}
	}
	return nil
}

// Outcome records what a feedback event did to a device.
type Outcome struct {
	From      device.State
	To        device.State
	Counted   bool // a terminal result was counted against RolloutID
	Success   bool
	RolloutID string
}

// Transition applies fb to d in place. owed is the assignment in force for
// d before the feedback; fw is the firmware fb names, nil if unknown.
//
// A terminal result is counted only when fb names the firmware a rollout
// currently owes the device, and the device has not already recorded the
// same terminal result for that firmware.
func Transition(d *device.Device, fb Feedback, owed Assignment, fw *firmware.Firmware, now time.Time) Outcome {
	out := Outcome{From: d.State, To: d.State}

	if len(fb.Details) > 0 {
		d.LastLog = strings.Join(fb.Details, "\n")
	}

	var terminal bool
	switch {
	case fb.Execution == ExecutionProceeding:
		out.To = device.StateRunning
	case fb.Execution == ExecutionClosed && fb.Result == ResultSuccess:
		out.To, out.Success, terminal = device.StateFinished, true, true
	case fb.Execution == ExecutionClosed && fb.Result == ResultFailure:
		out.To, terminal = device.StateError, true
	default:
		// Progress notes leave the state machine alone.
		return out
	}

	if terminal {
		duplicate := d.State == out.To && d.LastFirmwareID == fb.FirmwareID
		current := owed.Firmware != nil && owed.Firmware.ID == fb.FirmwareID
		if !duplicate && current && owed.Rollout != nil {
			out.Counted = true
			out.RolloutID = owed.Rollout.ID
		}
		if out.Success && fw != nil {
			d.InstalledVersion = fw.Version
		}
	}

	d.State = out.To
	d.LastFirmwareID = fb.FirmwareID
	d.LastStateUpdate = now
	return out
}

// ValidationError describes malformed device input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
