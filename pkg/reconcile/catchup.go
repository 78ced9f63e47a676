package reconcile

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"github.com/William9701/blockchain-hr-platform/pkg/feed"
	"github.com/William9701/blockchain-hr-platform/pkg/tracing"
)

// CatchUp replays historical notifications from the lowest stored watermark
// to the head of the ledger, then marks the engine ready. Anything the live
// feed delivered in the meantime is absorbed by dedup.
func (e *Engine) CatchUp(ctx context.Context, replayer *feed.Replayer) error {
	ctx, span := tracing.StartSpan(ctx, "reconcile.Engine.CatchUp")
	defer span.End()

	floor, err := e.watermarks.Floor(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to read watermark floor")
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"floor": floor,
	}).Info("Starting catch-up replay")

	if err := replayer.Replay(ctx, floor+1, math.MaxUint64, e.Handle); err != nil {
		return errors.Wrap(err, "catch-up replay failed")
	}

	e.ready.Store(true)
	e.logger.WithContext(ctx).Info("Catch-up replay complete, engine ready")
	return nil
}
