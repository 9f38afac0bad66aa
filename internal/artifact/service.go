package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/otafleet/otafleet/internal/firmware"
	"github.com/otafleet/otafleet/internal/remote"
)

// Catalog is the part of the firmware catalog the artifact service writes.
type Catalog interface {
	Replace(ctx context.Context, in firmware.CreateInput) (*firmware.Firmware, error)
	RemoveByURI(ctx context.Context, uri string) (bool, error)
}

// Remote reaches artifacts on other hosts.
type Remote interface {
	Probe(ctx context.Context, rawURL string) (*remote.ProbeResult, error)
	Digest(ctx context.Context, rawURL string) (string, int64, error)
}

// ServiceConfig holds configuration for the artifact service.
type ServiceConfig struct {
	Catalog Catalog
	Store   *Store
	Remote  Remote
	Logger  zerolog.Logger
}

// Service ingests firmware artifacts into the catalog.
type Service struct {
	catalog Catalog
	store   *Store
	remote  Remote
	logger  zerolog.Logger
}

// NewService creates a new artifact service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		catalog: cfg.Catalog,
		store:   cfg.Store,
		remote:  cfg.Remote,
		logger:  cfg.Logger.With().Str("component", "artifact").Logger(),
	}
}

// Chunk is one part of a chunked upload.
type Chunk struct {
	Filename string
	Version  string
	Hardware []firmware.HardwareRef
	Init     bool // first chunk, discard earlier partial data
	Done     bool // last chunk, create the catalog record
	Data     io.Reader
}

// Upload appends a chunk to the named artifact. Any catalog record for the
// same file is dropped on the first chunk. The record is created on the
// last chunk and returned; earlier chunks return nil.
func (s *Service) Upload(ctx context.Context, c Chunk) (*firmware.Firmware, error) {
	if err := ValidateFilename(c.Filename); err != nil {
		return nil, err
	}
	if c.Done && (strings.TrimSpace(c.Version) == "" || len(c.Hardware) == 0) {
		return nil, &firmware.ValidationError{Field: "version", Message: "version and hardware are required on the last chunk"}
	}

	uri := s.store.URI(c.Filename)
	if c.Init {
		if _, err := s.catalog.RemoveByURI(ctx, uri); err != nil {
			return nil, err
		}
	}

	data := c.Data
	if data == nil {
		data = strings.NewReader("")
	}
	if _, err := s.store.Append(c.Filename, data, c.Init); err != nil {
		return nil, err
	}
	if !c.Done {
		return nil, nil
	}

	hash, size, err := s.store.Commit(c.Filename)
	if err != nil {
		return nil, err
	}

	fw, err := s.catalog.Replace(ctx, firmware.CreateInput{
		Version:  c.Version,
		Filename: c.Filename,
		URI:      uri,
		Hash:     hash,
		Size:     size,
		Hardware: c.Hardware,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("firmware_id", fw.ID).Str("filename", c.Filename).Int64("size", size).Msg("upload finished")
	return fw, nil
}

// RemoteInput registers an artifact hosted elsewhere.
type RemoteInput struct {
	URL      string
	Version  string
	Hardware []firmware.HardwareRef
	SHA1     string
}

// AddRemote probes url and records it in the catalog. Without a hash the
// artifact is downloaded once to compute it.
func (s *Service) AddRemote(ctx context.Context, in RemoteInput) (*firmware.Firmware, error) {
	name, err := FilenameFromURL(in.URL)
	if err != nil {
		return nil, err
	}

	return s.Ingest(ctx, Announcement{
		URI:      in.URL,
		Filename: name,
		Version:  in.Version,
		Hardware: in.Hardware,
		SHA1:     in.SHA1,
		Size:     -1,
	})
}

// Announcement describes an artifact that already exists at URI.
type Announcement struct {
	URI      string
	Filename string
	Version  string
	Hardware []firmware.HardwareRef
	SHA1     string
	Size     int64 // -1 when unknown
}

// Ingest records an existing artifact, filling in a missing hash or size
// from the artifact itself. A record with the same URI is replaced.
func (s *Service) Ingest(ctx context.Context, a Announcement) (*firmware.Firmware, error) {
	if a.Filename == "" {
		a.Filename = a.URI[strings.LastIndex(a.URI, "/")+1:]
	}
	if err := ValidateFilename(a.Filename); err != nil {
		return nil, err
	}

	var err error
	switch {
	case strings.HasPrefix(a.URI, "file://"):
		a, err = s.completeLocal(a)
	case strings.HasPrefix(a.URI, "http://"), strings.HasPrefix(a.URI, "https://"):
		a, err = s.completeRemote(ctx, a)
	default:
		return nil, &firmware.ValidationError{Field: "uri", Message: "must be a file, http or https URI"}
	}
	if err != nil {
		return nil, err
	}

	fw, err := s.catalog.Replace(ctx, firmware.CreateInput{
		Version:  a.Version,
		Filename: a.Filename,
		URI:      a.URI,
		Hash:     strings.ToLower(a.SHA1),
		Size:     a.Size,
		Hardware: a.Hardware,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("firmware_id", fw.ID).Str("uri", fw.URI).Msg("artifact ingested")
	return fw, nil
}

func (s *Service) completeLocal(a Announcement) (Announcement, error) {
	path, err := (&firmware.Firmware{URI: a.URI}).LocalPath()
	if err != nil {
		return a, err
	}
	if a.SHA1 != "" && a.Size >= 0 {
		return a, nil
	}
	hash, size, err := HashFile(path)
	if err != nil {
		return a, fmt.Errorf("read local artifact: %w", err)
	}
	if a.SHA1 == "" {
		a.SHA1 = hash
	}
	a.Size = size
	return a, nil
}

func (s *Service) completeRemote(ctx context.Context, a Announcement) (Announcement, error) {
	if s.remote == nil {
		return a, errors.New("remote artifacts are not configured")
	}

	probe, err := s.remote.Probe(ctx, a.URI)
	if err != nil {
		return a, fmt.Errorf("probe %s: %w", a.URI, err)
	}
	if a.Size < 0 {
		a.Size = probe.Size
	}

	if a.SHA1 == "" || a.Size < 0 {
		hash, size, err := s.remote.Digest(ctx, a.URI)
		if err != nil {
			return a, fmt.Errorf("download %s: %w", a.URI, err)
		}
		if a.SHA1 == "" {
			a.SHA1 = hash
		}
		a.Size = size
	}
	return a, nil
}

// CheckStatus is the result of verifying one artifact.
type CheckStatus string

const (
	CheckOK          CheckStatus = "ok"
	CheckMissing     CheckStatus = "missing"
	CheckMismatch    CheckStatus = "mismatch"
	CheckUnreachable CheckStatus = "unreachable"
)

// Check is the verification result for one firmware.
type Check struct {
	FirmwareID string
	URI        string
	Status     CheckStatus
	Detail     string
}

// Verify re-checks an artifact against its catalog record. Local files are
// re-hashed; remote artifacts are probed and their size compared when the
// host reports one.
func (s *Service) Verify(ctx context.Context, fw *firmware.Firmware) Check {
	check := Check{FirmwareID: fw.ID, URI: fw.URI, Status: CheckOK}

	if fw.IsLocal() {
		path, err := fw.LocalPath()
		if err != nil {
			check.Status, check.Detail = CheckMissing, err.Error()
			return check
		}
		hash, size, err := HashFile(path)
		switch {
		case err != nil:
			check.Status, check.Detail = CheckMissing, err.Error()
		case hash != fw.Hash:
			check.Status, check.Detail = CheckMismatch, fmt.Sprintf("sha1 %s, catalog has %s", hash, fw.Hash)
		case size != fw.Size:
			check.Status, check.Detail = CheckMismatch, fmt.Sprintf("size %d, catalog has %d", size, fw.Size)
		}
		return check
	}

	if s.remote == nil {
		check.Status, check.Detail = CheckUnreachable, "remote artifacts are not configured"
		return check
	}
	probe, err := s.remote.Probe(ctx, fw.URI)
	switch {
	case errors.Is(err, remote.ErrNotAvailable):
		check.Status, check.Detail = CheckMissing, err.Error()
	case err != nil:
		check.Status, check.Detail = CheckUnreachable, err.Error()
	case probe.Size >= 0 && probe.Size != fw.Size:
		check.Status, check.Detail = CheckMismatch, fmt.Sprintf("size %d, catalog has %d", probe.Size, fw.Size)
	}
	return check
}
