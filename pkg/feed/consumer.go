// Package feed delivers ledger notifications to the reconcile engine, live
// from Kafka and historically from the chain gateway.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/William9701/blockchain-hr-platform/pkg/metrics"
	"github.com/William9701/blockchain-hr-platform/pkg/models"
	"github.com/William9701/blockchain-hr-platform/pkg/tracing"
)

// Handler reconciles one notification. A non-nil error leaves the message
// uncommitted so it is redelivered; dedup downstream keeps this safe.
type Handler func(ctx context.Context, notification *models.Notification) error

// ConsumerConfig holds the live feed configuration. One topic exists per
// notification type, named "<prefix>.<type>".
type ConsumerConfig struct {
	Brokers       []string
	TopicPrefix   string
	ConsumerGroup string
}

// Consumer fans in every notification topic onto a single handler.
type Consumer struct {
	readers []*kafka.Reader
	logger  ectologger.Logger
	handler Handler
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

func NewConsumer(cfg ConsumerConfig, logger ectologger.Logger, handler Handler) *Consumer {
	readers := make([]*kafka.Reader, 0, len(models.NotificationTypes))
	for _, notificationType := range models.NotificationTypes {
		readers = append(readers, kafka.NewReader(kafka.ReaderConfig{
			Brokers:        cfg.Brokers,
			Topic:          fmt.Sprintf("%s.%s", cfg.TopicPrefix, notificationType),
			GroupID:        cfg.ConsumerGroup,
			MinBytes:       10e3, // 10KB
			MaxBytes:       10e6, // 10MB
			MaxWait:        500 * time.Millisecond,
			StartOffset:    kafka.FirstOffset,
			CommitInterval: time.Second,
		}))
	}

	return &Consumer{
		readers: readers,
		logger:  logger,
		handler: handler,
	}
}

// Start begins consuming from every notification topic.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	for _, reader := range c.readers {
		c.wg.Add(1)
		go c.consumeLoop(ctx, reader)
	}

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"topics": len(c.readers),
	}).Info("Notification feed started")
	return nil
}

// Stop gracefully stops all readers.
func (c *Consumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()

	var firstErr error
	for _, reader := range c.readers {
		if err := reader.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Consumer) consumeLoop(ctx context.Context, reader *kafka.Reader) {
	defer c.wg.Done()

	topic := reader.Config().Topic
	for {
		select {
		case <-ctx.Done():
			c.logger.WithContext(ctx).Infof("Feed loop for %s stopping", topic)
			return
		default:
			msg, err := reader.FetchMessage(ctx)
			if err != nil {
				if err == context.Canceled || err == io.EOF {
					return
				}
				c.logger.WithContext(ctx).WithError(err).Errorf("Failed to fetch message from %s", topic)
				continue
			}

			c.processMessage(ctx, reader, msg)
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, reader *kafka.Reader, msg kafka.Message) {
	ctx, span := tracing.StartSpan(ctx, "feed.Consumer.processMessage")
	defer span.End()

	log := c.logger.WithContext(ctx).WithFields(map[string]any{
		"topic":     msg.Topic,
		"partition": msg.Partition,
		"offset":    msg.Offset,
	})

	var notification models.Notification
	if err := json.Unmarshal(msg.Value, &notification); err != nil {
		log.WithError(err).Error("Failed to decode notification")
		metrics.FeedMessagesTotal.WithLabelValues(msg.Topic, "malformed").Inc()
		// Commit malformed payloads so the partition does not stall
		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.WithError(err).Error("Failed to commit message")
		}
		return
	}

	if err := ValidateNotification(&notification); err != nil {
		log.WithError(err).Error("Rejected invalid notification")
		metrics.FeedMessagesTotal.WithLabelValues(msg.Topic, "invalid").Inc()
		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.WithError(err).Error("Failed to commit message")
		}
		return
	}

	if err := c.handler(ctx, &notification); err != nil {
		// Do NOT commit on handler failure. Redelivery is safe because the
		// engine dedups on idempotency key.
		log.WithError(err).Error("Failed to reconcile notification (not committing)")
		metrics.FeedMessagesTotal.WithLabelValues(msg.Topic, "failed").Inc()
		return
	}

	metrics.FeedMessagesTotal.WithLabelValues(msg.Topic, "handled").Inc()
	if err := reader.CommitMessages(ctx, msg); err != nil {
		log.WithError(err).Error("Failed to commit message")
	}
}

// Health returns the feed health status.
func (c *Consumer) Health() bool {
	return len(c.readers) > 0
}
