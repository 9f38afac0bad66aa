package models

// DeviceView is a device as listed by the admin API.
type DeviceView struct {
	UUID               string    `json:"uuid"`
	HWModel            string    `json:"hw_model"`
	HWRevision         string    `json:"hw_revision"`
	Feed               string    `json:"feed"`
	Flavor             string    `json:"flavor"`
	Pinned             bool      `json:"pinned"`
	Firmware           string    `json:"firmware"`
	FWInstalledVersion string    `json:"fw_installed_version"`
	State              string    `json:"state"`
	LastSeen           Timestamp `json:"last_seen"`
	LastStateUpdate    Timestamp `json:"last_state_update"`
}

// DeviceLog is the most recent feedback log of a device.
type DeviceLog struct {
	Log string `json:"log"`
}

// UpdateDevicesRequest changes attributes of several devices at once.
type UpdateDevicesRequest struct {
	Devices  []string `json:"devices"`
	Feed     *string  `json:"feed,omitempty"`
	Flavor   *string  `json:"flavor,omitempty"`
	Firmware *string  `json:"firmware,omitempty"`
	Pinned   *bool    `json:"pinned,omitempty"`
}

// CreateRolloutRequest creates a rollout.
type CreateRolloutRequest struct {
	Name       string `json:"name"`
	Feed       string `json:"feed"`
	Flavor     string `json:"flavor"`
	FirmwareID string `json:"firmware_id"`
	Paused     bool   `json:"paused,omitempty"`
}

// UpdateRolloutsRequest pauses or resumes rollouts.
type UpdateRolloutsRequest struct {
	IDs    []string `json:"ids"`
	Paused bool     `json:"paused"`
}

// RolloutView is a rollout as listed by the admin API.
type RolloutView struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Feed            string    `json:"feed"`
	Flavor          string    `json:"flavor"`
	FirmwareID      string    `json:"firmware_id"`
	FirmwareVersion string    `json:"firmware_version"`
	Paused          bool      `json:"paused"`
	SuccessCount    int64     `json:"success_count"`
	FailureCount    int64     `json:"failure_count"`
	CreatedAt       Timestamp `json:"created_at"`
}

// FirmwareView is a catalog entry as listed by the admin API.
type FirmwareView struct {
	ID        string    `json:"id"`
	Version   string    `json:"version"`
	Filename  string    `json:"filename"`
	URI       string    `json:"uri"`
	SHA1      string    `json:"sha1"`
	Size      int64     `json:"size"`
	Hardware  []string  `json:"hardware"`
	CreatedAt Timestamp `json:"created_at"`
}

// HardwareView is a hardware class.
type HardwareView struct {
	ID       string `json:"id"`
	Model    string `json:"model"`
	Revision string `json:"revision"`
}

// RemoteFirmwareRequest registers an artifact hosted elsewhere.
type RemoteFirmwareRequest struct {
	URL     string   `json:"url"`
	Version string   `json:"version"`
	HWModel []string `json:"hw_model"`
	SHA1    string   `json:"sha1,omitempty"`
}

// FirmwareCreated is returned when an upload or remote registration
// produced a catalog record.
type FirmwareCreated struct {
	Success  bool          `json:"success"`
	Firmware *FirmwareView `json:"firmware,omitempty"`
}

// Page wraps listed items.
type Page[T any] struct {
	Data []T `json:"data"`
}
