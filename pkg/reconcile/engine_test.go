package reconcile

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/William9701/blockchain-hr-platform/internal/repositories/profile"
	"github.com/William9701/blockchain-hr-platform/pkg/database"
	"github.com/William9701/blockchain-hr-platform/pkg/feed"
	"github.com/William9701/blockchain-hr-platform/pkg/ledger"
	"github.com/William9701/blockchain-hr-platform/pkg/models"
	"github.com/William9701/blockchain-hr-platform/pkg/projector"
)

const (
	companyAddress = "0x1111111111111111111111111111111111111111"
	talentAddress  = "0x2222222222222222222222222222222222222222"
)

type fakeTx struct {
	commits   int
	rollbacks int
}

func (f *fakeTx) IsOpen() bool { return f.commits == 0 && f.rollbacks == 0 }

func (f *fakeTx) Commit(ctx context.Context) error {
	f.commits++
	return nil
}

func (f *fakeTx) Rollback(ctx context.Context) error {
	f.rollbacks++
	return nil
}
func (f *fakeTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return nil, nil
}
func (f *fakeTx) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	return nil
}
func (f *fakeTx) NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error) {
	return nil, nil
}
func (f *fakeTx) QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row {
	return nil
}
func (f *fakeTx) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	return nil
}
func (f *fakeTx) Rebind(query string) string { return query }

type fakeTxBeginner struct {
	txs []*fakeTx
}

func (f *fakeTxBeginner) GetTx(ctx context.Context, opts *sql.TxOptions) (context.Context, database.Tx, error) {
	tx := &fakeTx{}
	f.txs = append(f.txs, tx)
	return ctx, tx, nil
}

type fakeActivities struct {
	seen      map[string]bool
	processed []string
}

func newFakeActivities() *fakeActivities {
	return &fakeActivities{seen: map[string]bool{}}
}

func (f *fakeActivities) Insert(ctx context.Context, record *models.ActivityRecord) (bool, error) {
	if f.seen[record.IdempotencyKey] {
		return false, nil
	}
	f.seen[record.IdempotencyKey] = true
	return true, nil
}

func (f *fakeActivities) MarkProcessed(ctx context.Context, idempotencyKey string) error {
	f.processed = append(f.processed, idempotencyKey)
	return nil
}

type fakeAgreements struct {
	upserts          []*models.Agreement
	milestoneUpserts int
	status           models.AgreementStatus
	milestones       []models.Milestone
}

func (f *fakeAgreements) Upsert(ctx context.Context, agreement *models.Agreement) error {
	f.upserts = append(f.upserts, agreement)
	return nil
}

func (f *fakeAgreements) UpsertMilestones(ctx context.Context, agreementID uint64, milestones []models.Milestone) error {
	f.milestoneUpserts++
	return nil
}

func (f *fakeAgreements) CurrentStatus(ctx context.Context, agreementID uint64) (models.AgreementStatus, bool, error) {
	if f.status == "" {
		return "", false, nil
	}
	return f.status, true, nil
}

func (f *fakeAgreements) GetMilestones(ctx context.Context, agreementID uint64) ([]models.Milestone, error) {
	return f.milestones, nil
}

type fakeWatermarks struct {
	advanced map[uint64]uint64
	floor    uint64
}

func newFakeWatermarks() *fakeWatermarks {
	return &fakeWatermarks{advanced: map[uint64]uint64{}}
}

func (f *fakeWatermarks) Advance(ctx context.Context, agreementID, position uint64) (uint64, error) {
	if position > f.advanced[agreementID] {
		f.advanced[agreementID] = position
	}
	return f.advanced[agreementID], nil
}

func (f *fakeWatermarks) Floor(ctx context.Context) (uint64, error) {
	return f.floor, nil
}

type fakeQuarantines struct {
	entries []models.QuarantineReason
	err     error
}

func (f *fakeQuarantines) Insert(ctx context.Context, notification *models.Notification, reason models.QuarantineReason, detail string) (*models.QuarantinedNotification, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.entries = append(f.entries, reason)
	return &models.QuarantinedNotification{
		AgreementID:    notification.AgreementID,
		IdempotencyKey: notification.IdempotencyKey,
		Reason:         reason,
		Detail:         detail,
	}, nil
}

type fakeApplier struct {
	applied []models.NotificationType
	err     error
}

func (f *fakeApplier) Apply(ctx context.Context, notification *models.Notification, state *ledger.AgreementState) error {
	if f.err != nil {
		return f.err
	}
	f.applied = append(f.applied, notification.Type)
	return nil
}

type fakeSink struct {
	notified []string
}

func (f *fakeSink) Notify(ctx context.Context, notification *models.Notification) {
	f.notified = append(f.notified, notification.IdempotencyKey)
}

// fakeChain serves agreement state and history, optionally failing the first
// failures fetches with a transient error.
type fakeChain struct {
	state    *ledger.AgreementState
	history  []models.Notification
	failures int
	fetchErr error
	fetches  int
}

func (f *fakeChain) FetchAgreement(ctx context.Context, agreementID uint64) (*ledger.AgreementState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if f.failures > 0 {
		f.failures--
		return nil, ledger.ErrUnreachableSource
	}
	return f.state, nil
}

func (f *fakeChain) FetchPartyAgreements(ctx context.Context, address string) ([]uint64, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeChain) ListNotifications(ctx context.Context, from, to uint64, limit int) ([]models.Notification, error) {
	var batch []models.Notification
	for _, n := range f.history {
		if n.SequencePosition >= from && n.SequencePosition <= to {
			batch = append(batch, n)
			if len(batch) == limit {
				break
			}
		}
	}
	return batch, nil
}

func (f *fakeChain) VerifySignature(ctx context.Context, check ledger.SignatureCheck) (bool, error) {
	return false, errors.New("not implemented")
}

type engineFixture struct {
	engine      *Engine
	chain       *fakeChain
	db          *fakeTxBeginner
	activities  *fakeActivities
	agreements  *fakeAgreements
	watermarks  *fakeWatermarks
	quarantines *fakeQuarantines
	applier     *fakeApplier
	sink        *fakeSink
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	f := &engineFixture{
		chain: &fakeChain{
			state: &ledger.AgreementState{
				Agreement: models.Agreement{
					ID:      1,
					Company: companyAddress,
					Talent:  talentAddress,
					Status:  models.AgreementActive,
				},
				Milestones: []models.Milestone{
					{AgreementID: 1, Index: 0, Amount: "10000", Status: models.MilestonePaid},
				},
			},
		},
		db:          &fakeTxBeginner{},
		activities:  newFakeActivities(),
		agreements:  &fakeAgreements{},
		watermarks:  newFakeWatermarks(),
		quarantines: &fakeQuarantines{},
		applier:     &fakeApplier{},
		sink:        &fakeSink{},
	}

	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	f.engine = NewEngine(Config{
		WorkerCount:  2,
		MaxAttempts:  3,
		RetryBackoff: time.Millisecond,
		QueueDepth:   16,
	}, f.chain, f.db, f.activities, f.agreements, f.watermarks, f.quarantines, f.applier, f.sink, logger)

	require.NoError(t, f.engine.Start(context.Background()))
	t.Cleanup(func() { _ = f.engine.Stop() })
	return f
}

func engineNotification(key string, position uint64) *models.Notification {
	return &models.Notification{
		Type:             models.AgreementCreated,
		AgreementID:      1,
		IdempotencyKey:   key,
		SequencePosition: position,
		Company:          companyAddress,
		Talent:           talentAddress,
		Timestamp:        time.Now(),
	}
}

func TestEngineAppliesNotification(t *testing.T) {
	f := newEngineFixture(t)

	err := f.engine.Handle(context.Background(), engineNotification("key-1", 1))
	require.NoError(t, err)

	assert.True(t, f.activities.seen["key-1"])
	assert.Equal(t, []string{"key-1"}, f.activities.processed)
	require.Len(t, f.agreements.upserts, 1)
	assert.Equal(t, uint64(1), f.agreements.upserts[0].ID)
	assert.Equal(t, 1, f.agreements.milestoneUpserts)
	assert.Equal(t, []models.NotificationType{models.AgreementCreated}, f.applier.applied)
	assert.Equal(t, uint64(1), f.watermarks.advanced[1])
	assert.Equal(t, []string{"key-1"}, f.sink.notified)

	require.Len(t, f.db.txs, 1)
	assert.Equal(t, 1, f.db.txs[0].commits)
	assert.Equal(t, 0, f.db.txs[0].rollbacks)
}

func TestEngineSkipsDuplicates(t *testing.T) {
	f := newEngineFixture(t)

	n := engineNotification("key-1", 1)
	require.NoError(t, f.engine.Handle(context.Background(), n))
	require.NoError(t, f.engine.Handle(context.Background(), n))

	// The second delivery rolls back without touching the mirror or aggregates.
	assert.Len(t, f.agreements.upserts, 1)
	assert.Len(t, f.applier.applied, 1)
	assert.Len(t, f.sink.notified, 1)

	require.Len(t, f.db.txs, 2)
	assert.Equal(t, 1, f.db.txs[1].rollbacks)
	assert.Equal(t, 0, f.db.txs[1].commits)
}

func TestEngineAbsorbsReplayLiveOverlap(t *testing.T) {
	f := newEngineFixture(t)

	// The same position arrives once from replay and once from the live feed.
	require.NoError(t, f.engine.Handle(context.Background(), engineNotification("key-7", 7)))
	require.NoError(t, f.engine.Handle(context.Background(), engineNotification("key-7", 7)))

	assert.Len(t, f.activities.processed, 1)
	assert.Equal(t, uint64(7), f.watermarks.advanced[1])
}

func TestEngineRetriesTransientFailures(t *testing.T) {
	f := newEngineFixture(t)
	f.chain.failures = 2

	err := f.engine.Handle(context.Background(), engineNotification("key-1", 1))
	require.NoError(t, err)

	assert.Equal(t, 3, f.chain.fetches)
	assert.Len(t, f.applier.applied, 1)
	assert.Empty(t, f.quarantines.entries)
}

func TestEngineQuarantinesAfterRetriesExhausted(t *testing.T) {
	f := newEngineFixture(t)
	f.chain.fetchErr = ledger.ErrUnreachableSource

	err := f.engine.Handle(context.Background(), engineNotification("key-1", 1))
	require.NoError(t, err)

	assert.Equal(t, 3, f.chain.fetches)
	assert.Equal(t, []models.QuarantineReason{models.QuarantineRetriesExhausted}, f.quarantines.entries)
	assert.Empty(t, f.sink.notified)
}

func TestEngineQuarantinesInvalidReference(t *testing.T) {
	f := newEngineFixture(t)
	f.chain.fetchErr = ledger.ErrInvalidReference

	err := f.engine.Handle(context.Background(), engineNotification("key-1", 1))
	require.NoError(t, err)

	// Invalid references are not retried; retrying cannot make them valid.
	assert.Equal(t, 1, f.chain.fetches)
	assert.Equal(t, []models.QuarantineReason{models.QuarantineInvalidReference}, f.quarantines.entries)
}

func TestEngineQuarantinesInvariantViolations(t *testing.T) {
	f := newEngineFixture(t)
	f.applier.err = errors.Wrap(projector.ErrInconsistentState, "milestone index 5 out of range (agreement has 2)")

	err := f.engine.Handle(context.Background(), engineNotification("key-1", 1))
	require.NoError(t, err)

	assert.Equal(t, []models.QuarantineReason{models.QuarantineInvariantViolation}, f.quarantines.entries)
	assert.Empty(t, f.activities.processed)
	assert.Empty(t, f.sink.notified)

	require.Len(t, f.db.txs, 1)
	assert.Equal(t, 1, f.db.txs[0].rollbacks)
}

func TestEngineRejectsBackwardAgreementStatus(t *testing.T) {
	f := newEngineFixture(t)
	f.agreements.status = models.AgreementCompleted
	f.chain.state.Agreement.Status = models.AgreementActive

	// The gateway served state behind the mirror; it must never be applied.
	err := f.engine.Handle(context.Background(), engineNotification("key-1", 9))
	require.NoError(t, err)

	assert.Equal(t, []models.QuarantineReason{models.QuarantineInvariantViolation}, f.quarantines.entries)
	assert.Empty(t, f.agreements.upserts)
	assert.Zero(t, f.watermarks.advanced[1])
	assert.Empty(t, f.sink.notified)

	require.Len(t, f.db.txs, 1)
	assert.Equal(t, 1, f.db.txs[0].rollbacks)
}

func TestEngineRejectsBackwardMilestoneStatus(t *testing.T) {
	f := newEngineFixture(t)
	f.agreements.status = models.AgreementActive
	f.agreements.milestones = []models.Milestone{
		{AgreementID: 1, Index: 0, Status: models.MilestonePaid},
	}
	f.chain.state.Milestones[0].Status = models.MilestoneStatusSubmitted

	err := f.engine.Handle(context.Background(), engineNotification("key-1", 9))
	require.NoError(t, err)

	assert.Equal(t, []models.QuarantineReason{models.QuarantineInvariantViolation}, f.quarantines.entries)
	assert.Empty(t, f.agreements.upserts)
	assert.Zero(t, f.watermarks.advanced[1])
}

func TestEngineAllowsForwardStatusJumps(t *testing.T) {
	f := newEngineFixture(t)
	f.agreements.status = models.AgreementPending
	f.chain.state.Agreement.Status = models.AgreementCompleted
	f.agreements.milestones = []models.Milestone{
		{AgreementID: 1, Index: 0, Status: models.MilestonePending},
	}

	// Skipped intermediate notifications are fine; the fetch is ahead.
	err := f.engine.Handle(context.Background(), engineNotification("key-1", 9))
	require.NoError(t, err)

	assert.Empty(t, f.quarantines.entries)
	assert.Len(t, f.agreements.upserts, 1)
	assert.Equal(t, uint64(9), f.watermarks.advanced[1])
}

// noopProfiles satisfies the projector's store surface without recording.
type noopProfiles struct{}

func (noopProfiles) Ensure(ctx context.Context, address string, role models.PartyRole) error {
	return nil
}

func (noopProfiles) ApplyDelta(ctx context.Context, delta profile.Delta) error {
	return nil
}

func (noopProfiles) AppendCredential(ctx context.Context, address string, credential models.CredentialRef) error {
	return nil
}

func TestEngineQuarantinesOutOfRangeMilestoneReference(t *testing.T) {
	f := newEngineFixture(t)
	require.NoError(t, f.engine.Stop())

	// Same stores, but the real projector instead of the fake applier.
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	engine := NewEngine(Config{
		WorkerCount:  2,
		MaxAttempts:  3,
		RetryBackoff: time.Millisecond,
		QueueDepth:   16,
	}, f.chain, f.db, f.activities, f.agreements, f.watermarks, f.quarantines,
		projector.New(noopProfiles{}, logger, 200), f.sink, logger)
	require.NoError(t, engine.Start(context.Background()))
	t.Cleanup(func() { _ = engine.Stop() })

	n := engineNotification("key-1", 9)
	n.Type = models.MilestoneSubmitted
	index := 5
	n.Payload.MilestoneIndex = &index

	// The agreement has one milestone; index 5 can never become valid.
	err := engine.Handle(context.Background(), n)
	require.NoError(t, err)

	assert.Equal(t, []models.QuarantineReason{models.QuarantineInvariantViolation}, f.quarantines.entries)
	assert.Zero(t, f.watermarks.advanced[1])
	assert.Empty(t, f.activities.processed)
	assert.Empty(t, f.sink.notified)
}

func TestEngineQuarantineFailureLeavesUnsettled(t *testing.T) {
	f := newEngineFixture(t)
	f.chain.fetchErr = ledger.ErrInvalidReference
	f.quarantines.err = errors.New("quarantine table unavailable")

	// If the side-log write fails the handler must report an error so the
	// feed redelivers instead of silently losing the notification.
	err := f.engine.Handle(context.Background(), engineNotification("key-1", 1))
	assert.Error(t, err)
}

func TestEngineCatchUp(t *testing.T) {
	f := newEngineFixture(t)
	f.watermarks.floor = 2
	for position := uint64(1); position <= 5; position++ {
		f.chain.history = append(f.chain.history, *engineNotification(
			string(rune('a'+position))+"-key", position))
	}

	assert.False(t, f.engine.Ready())

	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	replayer := feed.NewReplayer(f.chain, logger, 2)
	require.NoError(t, f.engine.CatchUp(context.Background(), replayer))

	// Positions at or below the floor are already settled and skipped.
	assert.NotContains(t, f.activities.processed, "b-key")
	assert.Contains(t, f.activities.processed, "d-key")
	assert.Contains(t, f.activities.processed, "f-key")
	assert.Equal(t, uint64(5), f.watermarks.advanced[1])
	assert.True(t, f.engine.Ready())
}

func TestEngineHandleHonorsContextCancellation(t *testing.T) {
	f := newEngineFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.engine.Handle(ctx, engineNotification("key-1", 1))
	assert.ErrorIs(t, err, context.Canceled)
}
