// Package publish fans successfully reconciled notifications out to live
// subscribers. Delivery is best-effort: a failed publish never fails or
// retries the reconciliation that triggered it.
package publish

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/William9701/blockchain-hr-platform/pkg/metrics"
	"github.com/William9701/blockchain-hr-platform/pkg/models"
	"github.com/William9701/blockchain-hr-platform/pkg/tracing"
)

// ChannelPublisher is the pub/sub surface the sink needs.
type ChannelPublisher interface {
	Publish(ctx context.Context, channel string, payload any) error
}

// Event is the wire shape delivered to party channels.
type Event struct {
	Type        models.NotificationType    `json:"type"`
	AgreementID uint64                     `json:"agreement_id"`
	Position    uint64                     `json:"sequence_position"`
	Payload     models.NotificationPayload `json:"payload"`
}

// Sink publishes one event per notification to each involved party's channel.
type Sink struct {
	client        ChannelPublisher
	logger        ectologger.Logger
	channelPrefix string
}

func NewSink(client ChannelPublisher, logger ectologger.Logger, channelPrefix string) *Sink {
	if channelPrefix == "" {
		channelPrefix = "parties"
	}
	return &Sink{
		client:        client,
		logger:        logger,
		channelPrefix: channelPrefix,
	}
}

// Notify publishes the notification to the company and talent channels.
// Errors are logged and swallowed.
func (s *Sink) Notify(ctx context.Context, notification *models.Notification) {
	ctx, span := tracing.StartSpan(ctx, "publish.Sink.Notify")
	defer span.End()

	event := Event{
		Type:        notification.Type,
		AgreementID: notification.AgreementID,
		Position:    notification.SequencePosition,
		Payload:     notification.Payload,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to encode publish event")
		metrics.RecordPublish("encode_error")
		return
	}

	seen := map[string]bool{}
	for _, address := range []string{notification.Company, notification.Talent} {
		if address == "" || seen[address] {
			continue
		}
		seen[address] = true

		channel := fmt.Sprintf("%s:%s", s.channelPrefix, address)
		if err := s.client.Publish(ctx, channel, payload); err != nil {
			s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"channel":      channel,
				"agreement_id": notification.AgreementID,
			}).Warn("Failed to publish party event")
			metrics.RecordPublish("error")
			continue
		}
		metrics.RecordPublish("ok")
	}
}
