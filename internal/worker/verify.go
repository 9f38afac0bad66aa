package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/otafleet/otafleet/internal/artifact"
	"github.com/otafleet/otafleet/internal/firmware"
)

// FirmwareLister lists the catalog.
type FirmwareLister interface {
	List(ctx context.Context) ([]*firmware.Firmware, error)
}

// Verifier checks one artifact.
type Verifier interface {
	Verify(ctx context.Context, fw *firmware.Firmware) artifact.Check
}

// VerifyJob re-checks every catalog artifact with a pool of workers.
type VerifyJob struct {
	config   VerifyConfig
	catalog  FirmwareLister
	verifier Verifier
	logger   zerolog.Logger

	metrics *VerifyMetrics
}

// VerifyMetrics tracks verification statistics across runs.
type VerifyMetrics struct {
	mu sync.RWMutex

	Runs        int64
	Checked     int64
	Failures    int64
	LastRunAt   time.Time
	LastRunTook time.Duration
}

// VerifyJobConfig holds configuration for creating a VerifyJob.
type VerifyJobConfig struct {
	Config   VerifyConfig
	Catalog  FirmwareLister
	Verifier Verifier
	Logger   zerolog.Logger
}

// NewVerifyJob creates a verification job.
func NewVerifyJob(cfg VerifyJobConfig) *VerifyJob {
	return &VerifyJob{
		config:   cfg.Config.withDefaults(),
		catalog:  cfg.Catalog,
		verifier: cfg.Verifier,
		logger:   cfg.Logger.With().Str("component", "verify").Logger(),
		metrics:  &VerifyMetrics{},
	}
}

// VerifyResult summarizes one run.
type VerifyResult struct {
	StartTime   time.Time
	Duration    time.Duration
	Total       int
	OK          int
	Missing     int
	Mismatch    int
	Unreachable int
	Problems    []artifact.Check
}

// Failed returns the number of artifacts that did not check out.
func (r *VerifyResult) Failed() int {
	return r.Missing + r.Mismatch + r.Unreachable
}

// Run checks every artifact once. A cancelled context stops handing out
// work; artifacts already being checked finish.
func (j *VerifyJob) Run(ctx context.Context) (*VerifyResult, error) {
	start := time.Now()
	result := &VerifyResult{StartTime: start}

	items, err := j.catalog.List(ctx)
	if err != nil {
		return nil, err
	}

	j.logger.Info().
		Int("artifacts", len(items)).
		Int("concurrency", j.config.Concurrency).
		Msg("starting artifact verification")

	work := make(chan *firmware.Firmware)
	checks := make(chan artifact.Check, len(items))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for fw := range work {
				checks <- j.check(ctx, fw)
			}
		}()
	}

feed:
	for _, fw := range items {
		if ctx.Err() != nil {
			break
		}
		select {
		case work <- fw:
		case <-ctx.Done():
			break feed
		}
	}
	close(work)

	go func() {
		wg.Wait()
		close(checks)
	}()

	for c := range checks {
		result.Total++
		switch c.Status {
		case artifact.CheckOK:
			result.OK++
			continue
		case artifact.CheckMissing:
			result.Missing++
		case artifact.CheckMismatch:
			result.Mismatch++
		default:
			result.Unreachable++
		}
		result.Problems = append(result.Problems, c)
		j.logger.Warn().
			Str("firmware_id", c.FirmwareID).
			Str("uri", c.URI).
			Str("status", string(c.Status)).
			Str("detail", c.Detail).
			Msg("artifact check failed")
	}

	result.Duration = time.Since(start)
	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("checked", result.Total).
		Int("ok", result.OK).
		Int("failed", result.Failed()).
		Msg("artifact verification completed")

	return result, ctx.Err()
}

func (j *VerifyJob) check(ctx context.Context, fw *firmware.Firmware) artifact.Check {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()
	return j.verifier.Verify(ctx, fw)
}

// Schedule runs the job every Interval until ctx ends.
func (j *VerifyJob) Schedule(ctx context.Context) {
	if j.config.Interval <= 0 {
		return
	}
	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := j.Run(ctx); err != nil && ctx.Err() == nil {
				j.logger.Error().Err(err).Msg("artifact verification failed")
			}
		}
	}
}

func (j *VerifyJob) updateMetrics(r *VerifyResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.Runs++
	j.metrics.Checked += int64(r.Total)
	j.metrics.Failures += int64(r.Failed())
	j.metrics.LastRunAt = r.StartTime
	j.metrics.LastRunTook = r.Duration
}

// MetricsSnapshot returns the job statistics as a map.
func (j *VerifyJob) MetricsSnapshot() map[string]interface{} {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return map[string]interface{}{
		"runs":          j.metrics.Runs,
		"checked":       j.metrics.Checked,
		"failures":      j.metrics.Failures,
		"last_run_at":   j.metrics.LastRunAt,
		"last_run_took": j.metrics.LastRunTook.String(),
	}
}
