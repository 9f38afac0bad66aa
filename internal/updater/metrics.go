package updater

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/otafleet/otafleet/internal/updater"

// Metrics holds the OpenTelemetry instruments for device traffic.
type Metrics struct {
	polls      metric.Int64Counter
	offers     metric.Int64Counter
	feedback   metric.Int64Counter
	outcomes   metric.Int64Counter
	registered metric.Int64Counter
}

// NewMetrics creates the updater instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	polls, err := meter.Int64Counter(
		"otafleet.device.polls",
		metric.WithDescription("Number of device polls handled"),
		metric.WithUnit("{poll}"),
	)
	if err != nil {
		return nil, err
	}

	offers, err := meter.Int64Counter(
		"otafleet.deployment.offers",
		metric.WithDescription("Number of polls that offered a deployment"),
		metric.WithUnit("{deployment}"),
	)
	if err != nil {
		return nil, err
	}

	feedback, err := meter.Int64Counter(
		"otafleet.device.feedback",
		metric.WithDescription("Number of feedback reports handled"),
		metric.WithUnit("{report}"),
	)
	if err != nil {
		return nil, err
	}

	outcomes, err := meter.Int64Counter(
		"otafleet.rollout.outcomes",
		metric.WithDescription("Number of terminal outcomes counted against rollouts"),
		metric.WithUnit("{outcome}"),
	)
	if err != nil {
		return nil, err
	}

	registered, err := meter.Int64Counter(
		"otafleet.device.registrations",
		metric.WithDescription("Number of devices registered by their first poll"),
		metric.WithUnit("{device}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		polls:      polls,
		offers:     offers,
		feedback:   feedback,
		outcomes:   outcomes,
		registered: registered,
	}, nil
}

func (m *Metrics) recordPoll(ctx context.Context, res *PollResult) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("reason", string(res.Reason)))
	m.polls.Add(ctx, 1, attrs)
	if res.Firmware != nil {
		m.offers.Add(ctx, 1, attrs)
	}
	if res.Registered {
		m.registered.Add(ctx, 1)
	}
}

func (m *Metrics) recordFeedback(ctx context.Context, fb Feedback, out Outcome) {
	if m == nil {
		return
	}
	m.feedback.Add(ctx, 1, metric.WithAttributes(
		attribute.String("execution", string(fb.Execution)),
		attribute.String("state", string(out.To)),
	))
	if out.Counted {
		m.outcomes.Add(ctx, 1, metric.WithAttributes(
			attribute.String("rollout.id", out.RolloutID),
			attribute.Bool("success", out.Success),
		))
	}
}
