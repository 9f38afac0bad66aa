// Package metrics exposes fleet gauges for Prometheus scraping.
package metrics

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/otafleet/otafleet/internal/device"
	"github.com/otafleet/otafleet/internal/firmware"
	"github.com/otafleet/otafleet/internal/rollout"
)

// Sources are the stores the collector reads from.
type Sources struct {
	Devices  interface{ List(ctx context.Context) ([]*device.Device, error) }
	Firmware interface{ List(ctx context.Context) ([]*firmware.Firmware, error) }
	Rollouts interface{ List(ctx context.Context) ([]*rollout.Rollout, error) }
}

// Registry holds the fleet gauges on a dedicated Prometheus registry.
type Registry struct {
	reg *prometheus.Registry

	DevicesTotal   *prometheus.GaugeVec
	FirmwareTotal  prometheus.Gauge
	RolloutsTotal  *prometheus.GaugeVec
	RolloutResults *prometheus.GaugeVec
	LastCollect    prometheus.Gauge
}

// NewRegistry creates the gauges and registers them together with the Go
// runtime and process collectors.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		DevicesTotal: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "otafleet_devices_total",
				Help: "Total number of devices by update state",
			},
			[]string{"state"},
		),
		FirmwareTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "otafleet_firmware_total",
				Help: "Total number of firmware images in the catalog",
			},
		),
		RolloutsTotal: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "otafleet_rollouts_total",
				Help: "Total number of rollouts by status",
			},
			[]string{"status"},
		),
		RolloutResults: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "otafleet_rollout_results",
				Help: "Terminal results reported against each rollout",
			},
			[]string{"rollout", "result"},
		),
		LastCollect: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "otafleet_metrics_last_collect_timestamp_seconds",
				Help: "Unix time of the last successful fleet collection",
			},
		),
	}

	r.reg.MustRegister(
		r.DevicesTotal,
		r.FirmwareTotal,
		r.RolloutsTotal,
		r.RolloutResults,
		r.LastCollect,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Handler returns the Prometheus HTTP handler for this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Collector refreshes the fleet gauges periodically.
type Collector struct {
	registry *Registry
	sources  Sources
	interval time.Duration
	logger   zerolog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewCollector creates a collector. A non-positive interval defaults to 15s.
func NewCollector(registry *Registry, sources Sources, interval time.Duration, logger zerolog.Logger) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		registry: registry,
		sources:  sources,
		interval: interval,
		logger:   logger.With().Str("component", "metrics").Logger(),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins collecting in the background.
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	go func() {
		defer close(c.doneCh)
		defer ticker.Stop()

		c.Collect(ctx)
		for {
			select {
			case <-ticker.C:
				c.Collect(ctx)
			case <-c.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the collector and waits for it to exit.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	<-c.doneCh
}

// Collect refreshes all gauges once. A failing source leaves its gauges
// at their previous values.
func (c *Collector) Collect(ctx context.Context) {
	ok := true
	if err := c.collectDevices(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("collect device metrics")
		ok = false
	}
	if err := c.collectFirmware(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("collect firmware metrics")
		ok = false
	}
	if err := c.collectRollouts(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("collect rollout metrics")
		ok = false
	}
	if ok {
		c.registry.LastCollect.SetToCurrentTime()
	}
}

func (c *Collector) collectDevices(ctx context.Context) error {
	devices, err := c.sources.Devices.List(ctx)
	if err != nil {
		return err
	}

	counts := map[device.State]int{
		device.StateRegistered: 0,
		device.StateRunning:    0,
		device.StateFinished:   0,
		device.StateError:      0,
	}
	for _, d := range devices {
		counts[d.State]++
	}

	c.registry.DevicesTotal.Reset()
	for state, n := range counts {
		c.registry.DevicesTotal.WithLabelValues(strings.ToLower(string(state))).Set(float64(n))
	}
	return nil
}

func (c *Collector) collectFirmware(ctx context.Context) error {
	fws, err := c.sources.Firmware.List(ctx)
	if err != nil {
		return err
	}
	c.registry.FirmwareTotal.Set(float64(len(fws)))
	return nil
}

func (c *Collector) collectRollouts(ctx context.Context) error {
	rollouts, err := c.sources.Rollouts.List(ctx)
	if err != nil {
		return err
	}

	var active, paused int
	c.registry.RolloutResults.Reset()
	for _, ro := range rollouts {
		if ro.Paused {
			paused++
		} else {
			active++
		}
		c.registry.RolloutResults.WithLabelValues(ro.ID, "success").Set(float64(ro.SuccessCount))
		c.registry.RolloutResults.WithLabelValues(ro.ID, "failure").Set(float64(ro.FailureCount))
	}
	c.registry.RolloutsTotal.WithLabelValues("active").Set(float64(active))
	c.registry.RolloutsTotal.WithLabelValues("paused").Set(float64(paused))
	return nil
}
