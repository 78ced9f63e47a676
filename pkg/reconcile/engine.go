// Package reconcile is the event-sourced core of the indexer. It turns a
// stream of at-least-once, possibly out-of-order ledger notifications into an
// exactly-once local mirror: dedup via the activity log's idempotency key,
// authoritative state via a fresh ledger fetch, and one atomic transaction
// per applied notification.
package reconcile

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/pkg/errors"

	"github.com/William9701/blockchain-hr-platform/pkg/ledger"
	"github.com/William9701/blockchain-hr-platform/pkg/metrics"
	"github.com/William9701/blockchain-hr-platform/pkg/models"
	"github.com/William9701/blockchain-hr-platform/pkg/projector"
	"github.com/William9701/blockchain-hr-platform/pkg/tracing"
)

// Config bounds the engine's concurrency and retry behavior.
type Config struct {
	WorkerCount  int
	MaxAttempts  int
	RetryBackoff time.Duration
	QueueDepth   int
}

func (c *Config) defaults() {
	if c.WorkerCount <= 0 {
		c.WorkerCount = 4
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 250 * time.Millisecond
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = 256
	}
}

type job struct {
	ctx          context.Context
	notification *models.Notification
	result       chan error
}

// Engine reconciles notifications. Notifications for the same agreement are
// always processed by the same worker, so per-agreement handling is serial
// while distinct agreements proceed in parallel.
type Engine struct {
	cfg Config

	ledger      ledger.Client
	db          TxBeginner
	activities  ActivityStore
	agreements  AgreementStore
	watermarks  WatermarkStore
	quarantines QuarantineStore
	applier     Applier
	sink        Notifier
	logger      ectologger.Logger

	queues []chan job
	wg     sync.WaitGroup
	cancel context.CancelFunc
	ready  atomic.Bool
}

func NewEngine(
	cfg Config,
	ledgerClient ledger.Client,
	db TxBeginner,
	activities ActivityStore,
	agreements AgreementStore,
	watermarks WatermarkStore,
	quarantines QuarantineStore,
	applier Applier,
	sink Notifier,
	logger ectologger.Logger,
) *Engine {
	cfg.defaults()
	return &Engine{
		cfg:         cfg,
		ledger:      ledgerClient,
		db:          db,
		activities:  activities,
		agreements:  agreements,
		watermarks:  watermarks,
		quarantines: quarantines,
		applier:     applier,
		sink:        sink,
		logger:      logger,
	}
}

// Start spawns the worker pool.
func (e *Engine) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	e.queues = make([]chan job, e.cfg.WorkerCount)
	for i := range e.queues {
		e.queues[i] = make(chan job, e.cfg.QueueDepth)
		e.wg.Add(1)
		go e.workerLoop(ctx, e.queues[i])
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"workers": e.cfg.WorkerCount,
	}).Info("Reconcile engine started")
	return nil
}

// Stop drains the workers.
func (e *Engine) Stop() error {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	return nil
}

// Ready reports whether boot catch-up has completed.
func (e *Engine) Ready() bool {
	return e.ready.Load()
}

// Handle routes a notification to its agreement's worker and waits for the
// outcome. A nil return means the notification is settled: applied, skipped
// as a duplicate, or durably quarantined.
func (e *Engine) Handle(ctx context.Context, notification *models.Notification) error {
	index := int(notification.AgreementID % uint64(len(e.queues)))
	j := job{
		ctx:          ctx,
		notification: notification,
		result:       make(chan error, 1),
	}

	select {
	case e.queues[index] <- j:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-j.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) workerLoop(ctx context.Context, queue chan job) {
	defer e.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case j := <-queue:
			j.result <- e.process(j.ctx, j.notification)
		}
	}
}

// process settles one notification, retrying transient failures with linear
// backoff before quarantining.
func (e *Engine) process(ctx context.Context, notification *models.Notification) error {
	ctx, span := tracing.StartSpan(ctx, "reconcile.Engine.process")
	defer span.End()

	metrics.NotificationsInFlight.Inc()
	defer metrics.NotificationsInFlight.Dec()
	start := time.Now()

	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"type":              notification.Type,
		"agreement_id":      notification.AgreementID,
		"idempotency_key":   notification.IdempotencyKey,
		"sequence_position": notification.SequencePosition,
	})

	for attempt := 1; ; attempt++ {
		err := e.reconcileOnce(ctx, notification)

		switch {
		case err == nil:
			metrics.RecordReconcile(string(notification.Type), "applied", time.Since(start).Seconds())
			e.sink.Notify(ctx, notification)
			return nil

		case errors.Is(err, ErrDuplicateNotification):
			log.Debug("Skipping duplicate notification")
			metrics.RecordDuplicate()
			metrics.RecordReconcile(string(notification.Type), "duplicate", time.Since(start).Seconds())
			return nil

		case errors.Is(err, ledger.ErrInvalidReference):
			log.WithError(err).Warn("Quarantining notification with invalid reference")
			return e.quarantine(ctx, notification, models.QuarantineInvalidReference, err, start)

		case errors.Is(err, projector.ErrInconsistentState) || errors.Is(err, ErrMirrorRegression):
			log.WithError(err).Warn("Quarantining notification violating ledger invariants")
			return e.quarantine(ctx, notification, models.QuarantineInvariantViolation, err, start)

		default:
			if attempt >= e.cfg.MaxAttempts {
				log.WithError(err).Errorf("Reconcile failed after %d attempts, quarantining", attempt)
				return e.quarantine(ctx, notification, models.QuarantineRetriesExhausted, err, start)
			}

			log.WithError(err).Warnf("Reconcile attempt %d failed, retrying", attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.cfg.RetryBackoff * time.Duration(attempt)):
			}
		}
	}
}

// reconcileOnce runs one attempt: fetch authoritative state, then apply the
// dedup insert, mirror refresh, aggregates and watermark in one transaction.
func (e *Engine) reconcileOnce(ctx context.Context, notification *models.Notification) error {
	state, err := e.ledger.FetchAgreement(ctx, notification.AgreementID)
	if err != nil {
		return err
	}

	txCtx, tx, err := e.db.GetTx(ctx, nil)
	if err != nil {
		return err
	}

	inserted, err := e.activities.Insert(txCtx, e.buildRecord(notification))
	if err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if !inserted {
		_ = tx.Rollback(ctx)
		return ErrDuplicateNotification
	}

	if err := e.guardMirror(txCtx, state); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := e.agreements.Upsert(txCtx, &state.Agreement); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := e.agreements.UpsertMilestones(txCtx, state.Agreement.ID, state.Milestones); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := e.applier.Apply(txCtx, notification, state); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := e.activities.MarkProcessed(txCtx, notification.IdempotencyKey); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if _, err := e.watermarks.Advance(txCtx, notification.AgreementID, notification.SequencePosition); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	return tx.Commit(ctx)
}

// guardMirror rejects fetched state that would move the local mirror
// backward. Forward jumps over skipped ranks are fine, the fetch is allowed
// to be ahead of the notification stream; a lower rank or a move out of a
// terminal status means a stale gateway read.
func (e *Engine) guardMirror(ctx context.Context, state *ledger.AgreementState) error {
	current, found, err := e.agreements.CurrentStatus(ctx, state.Agreement.ID)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	next := state.Agreement.Status
	if next != current && (current.Terminal() || next.Rank() < current.Rank()) {
		return errors.Wrapf(ErrMirrorRegression, "agreement %d status %s -> %s", state.Agreement.ID, current, next)
	}

	stored, err := e.agreements.GetMilestones(ctx, state.Agreement.ID)
	if err != nil {
		return err
	}
	statusByIndex := make(map[int]models.MilestoneStatus, len(stored))
	for _, milestone := range stored {
		statusByIndex[milestone.Index] = milestone.Status
	}
	for _, milestone := range state.Milestones {
		current, ok := statusByIndex[milestone.Index]
		if !ok || milestone.Status == current {
			continue
		}
		if !current.CanAdvance(milestone.Status) {
			return errors.Wrapf(ErrMirrorRegression, "milestone %d status %s -> %s", milestone.Index, current, milestone.Status)
		}
	}
	return nil
}

// quarantine writes the side-log entry in its own transaction; the failed
// notification is then acknowledged so the feed can move on. The unresolved
// entry keeps the agreement's watermark pinned.
func (e *Engine) quarantine(ctx context.Context, notification *models.Notification, reason models.QuarantineReason, cause error, start time.Time) error {
	if _, err := e.quarantines.Insert(ctx, notification, reason, cause.Error()); err != nil {
		// The quarantine itself failed; leave the notification unsettled so
		// it is redelivered.
		return errors.Wrap(err, "failed to quarantine notification")
	}

	metrics.RecordQuarantine(string(reason))
	metrics.RecordReconcile(string(notification.Type), "quarantined", time.Since(start).Seconds())
	return nil
}

func (e *Engine) buildRecord(notification *models.Notification) *models.ActivityRecord {
	payload, err := json.Marshal(notification.Payload)
	if err != nil {
		payload = []byte("{}")
	}

	return &models.ActivityRecord{
		AgreementID:      notification.AgreementID,
		IdempotencyKey:   notification.IdempotencyKey,
		SequencePosition: notification.SequencePosition,
		Type:             notification.Type,
		Company:          notification.Company,
		Talent:           notification.Talent,
		Initiator:        notification.Initiator,
		Payload:          payload,
		Timestamp:        notification.Timestamp,
	}
}
