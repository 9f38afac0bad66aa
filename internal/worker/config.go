// Package worker provides background artifact ingestion and verification.
package worker

import (
	"time"
)

// VerifyConfig holds configuration for the artifact verification job.
type VerifyConfig struct {
	// Concurrency is the number of artifacts checked in parallel.
	// Default: 4
	Concurrency int

	// Timeout bounds the check of a single artifact.
	// Default: 5 minutes
	Timeout time.Duration

	// Interval is the pause between scheduled runs. Zero disables the schedule.
	Interval time.Duration
}

// DefaultVerifyConfig returns the default verification configuration.
func DefaultVerifyConfig() VerifyConfig {
	return VerifyConfig{
		Concurrency: 4,
		Timeout:     5 * time.Minute,
		Interval:    time.Hour,
	}
}

func (c VerifyConfig) withDefaults() VerifyConfig {
	def := DefaultVerifyConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	return c
}

// SubscriberConfig holds Pub/Sub receive settings.
type SubscriberConfig struct {
	ProjectID      string
	Subscription   string
	MaxOutstanding int
	NumGoroutines  int
	MaxExtension   time.Duration
}

// DefaultSubscriberConfig returns receive settings for the ingestion
// subscription.
func DefaultSubscriberConfig() SubscriberConfig {
	return SubscriberConfig{
		Subscription:   "firmware-artifacts",
		MaxOutstanding: 10,
		NumGoroutines:  1,
		MaxExtension:   10 * time.Minute,
	}
}
