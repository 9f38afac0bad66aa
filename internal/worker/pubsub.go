package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/otafleet/otafleet/internal/artifact"
	"github.com/otafleet/otafleet/internal/firmware"
)

// Job types carried in ArtifactMessage.JobType.
const (
	JobIngest = "ingest"
	JobVerify = "verify"
)

// ArtifactMessage is the payload published for a new artifact. An empty
// JobType means ingest.
type ArtifactMessage struct {
	JobType  string            `json:"job_type,omitempty"`
	URI      string            `json:"uri"`
	Filename string            `json:"filename,omitempty"`
	Version  string            `json:"version"`
	Hardware []HardwareMessage `json:"hardware"`
	SHA1     string            `json:"sha1,omitempty"`
	Size     *int64            `json:"size,omitempty"`
}

// HardwareMessage names one compatible hardware class.
type HardwareMessage struct {
	Model    string `json:"model"`
	Revision string `json:"revision,omitempty"`
}

// Decision tells the subscriber what to do with a message.
type Decision int

const (
	Ack Decision = iota
	Nack
)

// Ingester records announced artifacts.
type Ingester interface {
	Ingest(ctx context.Context, a artifact.Announcement) (*firmware.Firmware, error)
}

// IngestHandler turns messages into catalog records.
type IngestHandler struct {
	ingester Ingester
	verify   *VerifyJob
	logger   zerolog.Logger
}

// NewIngestHandler creates a handler. verify may be nil, in which case
// verify jobs are acked and ignored.
func NewIngestHandler(ingester Ingester, verify *VerifyJob, logger zerolog.Logger) *IngestHandler {
	return &IngestHandler{
		ingester: ingester,
		verify:   verify,
		logger:   logger.With().Str("component", "ingest").Logger(),
	}
}

// Handle processes one message. Malformed or invalid messages are acked
// so they are not redelivered; storage and network errors are nacked.
func (h *IngestHandler) Handle(ctx context.Context, id string, data []byte) Decision {
	logger := h.logger.With().Str("message_id", id).Logger()

	var msg ArtifactMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		logger.Error().Err(err).Msg("failed to parse message")
		return Ack
	}

	switch msg.JobType {
	case "", JobIngest:
		return h.ingest(ctx, logger, msg)
	case JobVerify:
		if h.verify == nil {
			logger.Warn().Msg("verify job requested but not configured")
			return Ack
		}
		if _, err := h.verify.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("verify job failed")
			return Nack
		}
		return Ack
	default:
		logger.Warn().Str("job_type", msg.JobType).Msg("unknown job type")
		return Ack
	}
}

func (h *IngestHandler) ingest(ctx context.Context, logger zerolog.Logger, msg ArtifactMessage) Decision {
	if msg.URI == "" || msg.Version == "" || len(msg.Hardware) == 0 {
		logger.Error().Str("uri", msg.URI).Msg("artifact message missing uri, version or hardware")
		return Ack
	}

	a := artifact.Announcement{
		URI:      msg.URI,
		Filename: msg.Filename,
		Version:  msg.Version,
		SHA1:     msg.SHA1,
		Size:     -1,
	}
	if msg.Size != nil {
		a.Size = *msg.Size
	}
	for _, hw := range msg.Hardware {
		a.Hardware = append(a.Hardware, firmware.HardwareRef{Model: hw.Model, Revision: hw.Revision})
	}

	fw, err := h.ingester.Ingest(ctx, a)
	if err != nil {
		var verr *firmware.ValidationError
		if errors.As(err, &verr) || errors.Is(err, artifact.ErrInvalidFilename) {
			logger.Error().Err(err).Str("uri", msg.URI).Msg("rejected artifact message")
			return Ack
		}
		logger.Error().Err(err).Str("uri", msg.URI).Msg("artifact ingestion failed")
		return Nack
	}

	logger.Info().Str("firmware_id", fw.ID).Str("uri", fw.URI).Msg("artifact message handled")
	return Ack
}

// PubSubHandler receives artifact messages from a subscription.
type PubSubHandler struct {
	client       *pubsub.Client
	subscriber   *pubsub.Subscriber
	subscription string
	handler      *IngestHandler
	logger       zerolog.Logger
}

// NewPubSubHandler creates a Pub/Sub client for cfg.ProjectID.
func NewPubSubHandler(ctx context.Context, cfg SubscriberConfig, handler *IngestHandler, logger zerolog.Logger) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	def := DefaultSubscriberConfig()
	if cfg.MaxOutstanding <= 0 {
		cfg.MaxOutstanding = def.MaxOutstanding
	}
	if cfg.NumGoroutines <= 0 {
		cfg.NumGoroutines = def.NumGoroutines
	}
	if cfg.MaxExtension <= 0 {
		cfg.MaxExtension = def.MaxExtension
	}

	subscriber := client.Subscriber(cfg.Subscription)
	subscriber.ReceiveSettings.MaxOutstandingMessages = cfg.MaxOutstanding
	subscriber.ReceiveSettings.NumGoroutines = cfg.NumGoroutines
	subscriber.ReceiveSettings.MaxExtension = cfg.MaxExtension

	return &PubSubHandler{
		client:       client,
		subscriber:   subscriber,
		subscription: cfg.Subscription,
		handler:      handler,
		logger:       logger,
	}, nil
}

// Start receives messages until ctx is done.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscription).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		start := time.Now()
		decision := h.handler.Handle(ctx, msg.ID, msg.Data)

		h.logger.Debug().
			Str("message_id", msg.ID).
			Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
			Dur("duration", time.Since(start)).
			Bool("acked", decision == Ack).
			Msg("pubsub message processed")

		if decision == Ack {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}
