package reconcile

import (
	"context"
	"database/sql"

	"github.com/William9701/blockchain-hr-platform/pkg/database"
	"github.com/William9701/blockchain-hr-platform/pkg/ledger"
	"github.com/William9701/blockchain-hr-platform/pkg/models"
)

// TxBeginner opens context-carried transactions. Satisfied by database.DB.
type TxBeginner interface {
	GetTx(ctx context.Context, opts *sql.TxOptions) (context.Context, database.Tx, error)
}

// ActivityStore is the dedup log surface the engine writes to.
type ActivityStore interface {
	Insert(ctx context.Context, record *models.ActivityRecord) (bool, error)
	MarkProcessed(ctx context.Context, idempotencyKey string) error
}

// AgreementStore mirrors fetched ledger state locally.
type AgreementStore interface {
	Upsert(ctx context.Context, agreement *models.Agreement) error
	UpsertMilestones(ctx context.Context, agreementID uint64, milestones []models.Milestone) error
	CurrentStatus(ctx context.Context, agreementID uint64) (models.AgreementStatus, bool, error)
	GetMilestones(ctx context.Context, agreementID uint64) ([]models.Milestone, error)
}

// WatermarkStore tracks per-agreement reconciliation progress.
type WatermarkStore interface {
	Advance(ctx context.Context, agreementID, position uint64) (uint64, error)
	Floor(ctx context.Context) (uint64, error)
}

// QuarantineStore side-logs notifications that cannot be applied.
type QuarantineStore interface {
	Insert(ctx context.Context, notification *models.Notification, reason models.QuarantineReason, detail string) (*models.QuarantinedNotification, error)
}

// Applier folds a deduplicated notification into the aggregates.
type Applier interface {
	Apply(ctx context.Context, notification *models.Notification, state *ledger.AgreementState) error
}

// Notifier fans a reconciled notification out to live subscribers.
type Notifier interface {
	Notify(ctx context.Context, notification *models.Notification)
}
