package models

// Link is a hypermedia reference in controller responses.
type Link struct {
	Href string `json:"href"`
}

// PollResponse is returned to a polling device.
type PollResponse struct {
	Config PollConfig      `json:"config"`
	Links  map[string]Link `json:"_links"`
}

// PollConfig tells the device how long to sleep between polls.
type PollConfig struct {
	Polling Polling `json:"polling"`
}

// Polling holds the sleep interval as HH:MM:SS.
type Polling struct {
	Sleep string `json:"sleep"`
}

// ConfigDataRequest carries the attributes a device reports about itself.
type ConfigDataRequest struct {
	ID     string            `json:"id,omitempty"`
	Status *FeedbackStatus   `json:"status,omitempty"`
	Data   map[string]string `json:"data"`
}

// DeploymentBase describes the deployment offered to a device.
type DeploymentBase struct {
	ID         string     `json:"id"`
	Deployment Deployment `json:"deployment"`
}

// Deployment lists what the device has to download and install.
type Deployment struct {
	Download string  `json:"download"`
	Update   string  `json:"update"`
	Chunks   []Chunk `json:"chunks"`
}

// Chunk is one installable part of a deployment.
type Chunk struct {
	Part      string     `json:"part"`
	Version   string     `json:"version"`
	Name      string     `json:"name"`
	Artifacts []Artifact `json:"artifacts"`
}

// Artifact is a downloadable file.
type Artifact struct {
	Filename string          `json:"filename"`
	Hashes   ArtifactHashes  `json:"hashes"`
	Size     int64           `json:"size"`
	Links    map[string]Link `json:"_links"`
}

// ArtifactHashes holds the artifact digests.
type ArtifactHashes struct {
	SHA1 string `json:"sha1"`
}

// FeedbackRequest is a device report about a deployment.
type FeedbackRequest struct {
	ID     string         `json:"id"`
	Status FeedbackStatus `json:"status"`
}

// FeedbackStatus is the status part of a feedback report.
type FeedbackStatus struct {
	Execution string         `json:"execution"`
	Result    FeedbackResult `json:"result"`
	Details   []string       `json:"details,omitempty"`
}

// FeedbackResult holds the finished result.
type FeedbackResult struct {
	Finished string `json:"finished"`
}
