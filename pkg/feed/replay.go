package feed

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/pkg/errors"

	"github.com/William9701/blockchain-hr-platform/pkg/ledger"
	"github.com/William9701/blockchain-hr-platform/pkg/metrics"
	"github.com/William9701/blockchain-hr-platform/pkg/tracing"
)

// Replayer walks historical notifications from the chain gateway in bounded
// batches. It is used at boot to close the gap between the stored watermark
// and the live feed.
type Replayer struct {
	client    ledger.Client
	logger    ectologger.Logger
	batchSize int
}

func NewReplayer(client ledger.Client, logger ectologger.Logger, batchSize int) *Replayer {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Replayer{
		client:    client,
		logger:    logger,
		batchSize: batchSize,
	}
}

// Replay feeds every historical notification with a sequence position in
// [from, to] to the handler, in order. Invalid notifications are skipped and
// logged; handler errors abort the replay.
func (r *Replayer) Replay(ctx context.Context, from, to uint64, handler Handler) error {
	ctx, span := tracing.StartSpan(ctx, "feed.Replayer.Replay")
	defer span.End()

	if to < from {
		return nil
	}

	cursor := from
	for cursor <= to {
		batch, err := r.client.ListNotifications(ctx, cursor, to, r.batchSize)
		if err != nil {
			metrics.ReplayBatchesTotal.WithLabelValues("error").Inc()
			return errors.Wrapf(err, "replay batch starting at %d failed", cursor)
		}
		metrics.ReplayBatchesTotal.WithLabelValues("ok").Inc()

		if len(batch) == 0 {
			return nil
		}

		for i := range batch {
			notification := &batch[i]
			if err := ValidateNotification(notification); err != nil {
				r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
					"sequence_position": notification.SequencePosition,
				}).Error("Skipping invalid historical notification")
				continue
			}

			if err := handler(ctx, notification); err != nil {
				return errors.Wrapf(err, "replay handler failed at position %d", notification.SequencePosition)
			}
		}

		last := batch[len(batch)-1].SequencePosition
		if last < cursor {
			return errors.Errorf("gateway returned non-advancing batch at position %d", cursor)
		}
		cursor = last + 1
	}

	return nil
}
