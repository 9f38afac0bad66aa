// Package firmware provides the firmware catalog and the hardware classes
// firmware is compatible with.
package firmware

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository errors.
var (
	ErrFirmwareNotFound = errors.New("firmware not found")
	ErrHardwareNotFound = errors.New("hardware not found")
)

// DefaultRevision is used when a device reports no hardware revision.
const DefaultRevision = "default"

// Hardware identifies a device class.
type Hardware struct {
	ID       string
	Model    string
	Revision string
}

// String renders the hardware as model:revision.
func (h *Hardware) String() string {
	return h.Model + ":" + h.Revision
}

// HardwareRef names a hardware class by model and revision.
type HardwareRef struct {
	Model    string
	Revision string
}

// ParseHardwareRef parses "model" or "model:revision".
func ParseHardwareRef(s string) HardwareRef {
	model, revision, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || revision == "" {
		revision = DefaultRevision
	}
	return HardwareRef{Model: model, Revision: revision}
}

// Firmware is an immutable firmware artifact record.
type Firmware struct {
	ID          string
	Version     string
	HardwareIDs []string
	Hash        string // sha1, hex encoded
	Size        int64
	URI         string
	Filename    string
	CreatedAt   time.Time
}

// CompatibleWith reports whether the firmware can be installed on the hardware.
func (f *Firmware) CompatibleWith(hardwareID string) bool {
	if hardwareID == "" {
		return false
	}
	for _, id := range f.HardwareIDs {
		if id == hardwareID {
			return true
		}
	}
	return false
}

// IsLocal reports whether the artifact is stored on the local filesystem.
func (f *Firmware) IsLocal() bool {
	return strings.HasPrefix(f.URI, "file://")
}

// LocalPath returns the filesystem path of a local artifact.
func (f *Firmware) LocalPath() (string, error) {
	u, err := url.Parse(f.URI)
	if err != nil {
		return "", fmt.Errorf("parse artifact uri: %w", err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("artifact %s is not local", f.ID)
	}
	return u.Path, nil
}

// ValidationError describes invalid catalog input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// NewFirmwareID generates a firmware identifier.
func NewFirmwareID() string {
	return "fw_" + uuid.New().String()[:22]
}

// NewHardwareID generates a hardware identifier.
func NewHardwareID() string {
	return "hw_" + uuid.New().String()[:22]
}

func copyFirmware(f *Firmware) *Firmware {
	cpy := *f
	cpy.HardwareIDs = append([]string(nil), f.HardwareIDs...)
	return &cpy
}
