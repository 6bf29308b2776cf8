// Package worker runs the background DGVI rebuild: triggered by Pub/Sub
// messages and by a monthly schedule.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/greenroute/greenroute/internal/dgvi"
	"github.com/greenroute/greenroute/internal/gvi"
)

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	rebuilder        *dgvi.Rebuilder
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Rebuilder        *dgvi.Rebuilder
	Logger           zerolog.Logger
}

// RebuildMessage is a DGVI rebuild job message.
type RebuildMessage struct {
	JobType string `json:"job_type"`
	Month   string `json:"month,omitempty"`
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	subscriber.ReceiveSettings.MaxOutstandingMessages = 1
	subscriber.ReceiveSettings.MaxExtension = 30 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		rebuilder:        cfg.Rebuilder,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	var rebuildMsg RebuildMessage
	if err := json.Unmarshal(msg.Data, &rebuildMsg); err != nil {
		logger.Error().Err(err).Msg("failed to parse message")
		msg.Nack()
		return
	}

	if rebuildMsg.JobType != "dgvi_rebuild" {
		logger.Warn().Str("job_type", rebuildMsg.JobType).Msg("unknown job type")
		msg.Ack() // Ack unknown messages to prevent redelivery
		return
	}

	month := rebuildMsg.Month
	if month == "" {
		month = CurrentMonth(time.Now())
	}
	if err := gvi.ValidateMonth(month); err != nil {
		logger.Error().Err(err).Str("month", month).Msg("invalid rebuild month")
		msg.Ack()
		return
	}

	result, err := h.rebuilder.Rebuild(ctx, month)
	if err != nil {
		logger.Error().Err(err).Str("month", month).Msg("rebuild failed")
		msg.Nack()
		return
	}

	logger.Info().
		Str("month", month).
		Int("updated", result.Updated).
		Int("failed", result.Failed).
		Dur("duration", time.Since(startTime)).
		Msg("rebuild completed")

	msg.Ack()
}

// CurrentMonth formats a time as a "YYYY-MM" month tag.
func CurrentMonth(t time.Time) string {
	return t.Format("2006-01")
}
