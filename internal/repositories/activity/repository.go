// Package activity persists the immutable notification log. The unique
// idempotency key on this table is what makes reconciliation exactly-once.
package activity

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/William9701/blockchain-hr-platform/pkg/database"
	"github.com/William9701/blockchain-hr-platform/pkg/models"
	"github.com/William9701/blockchain-hr-platform/pkg/tracing"
)

const columns = "id, agreement_id, idempotency_key, sequence_position, type, company, talent, initiator, payload, timestamp, processed, created_at"

// Repository handles activity record persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Insert writes one activity record. Returns false when a record with the
// same idempotency key already exists; nothing is written in that case.
func (r *Repository) Insert(ctx context.Context, record *models.ActivityRecord) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "activity.Repository.Insert")
	defer span.End()

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if len(record.Payload) == 0 {
		record.Payload = []byte("{}")
	}

	query := `
		INSERT INTO activity_records (
			agreement_id, idempotency_key, sequence_position, type,
			company, talent, initiator, payload, timestamp, processed, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (idempotency_key) DO NOTHING
	`

	result, err := database.Executor(ctx, r.db).ExecContext(ctx, query,
		record.AgreementID, record.IdempotencyKey, record.SequencePosition, record.Type,
		record.Company, record.Talent, record.Initiator, record.Payload, record.Timestamp,
		record.Processed, record.CreatedAt,
	)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"agreement_id":    record.AgreementID,
			"idempotency_key": record.IdempotencyKey,
		}).Error("Failed to insert activity record")
		return false, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to insert activity record: %v", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to read insert result")
	}
	return rows > 0, nil
}

// MarkProcessed flips the processed flag after projections have been applied.
func (r *Repository) MarkProcessed(ctx context.Context, idempotencyKey string) error {
	ctx, span := tracing.StartSpan(ctx, "activity.Repository.MarkProcessed")
	defer span.End()

	query := `UPDATE activity_records SET processed = TRUE WHERE idempotency_key = $1`
	if _, err := database.Executor(ctx, r.db).ExecContext(ctx, query, idempotencyKey); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"idempotency_key": idempotencyKey,
		}).Error("Failed to mark activity record processed")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to mark activity record processed")
	}
	return nil
}

// ListByAgreement returns the activity history of one agreement, newest first.
func (r *Repository) ListByAgreement(ctx context.Context, agreementID uint64, limit, offset int) ([]models.ActivityRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "activity.Repository.ListByAgreement")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("activity_records")
	sb.Where(sb.Equal("agreement_id", agreementID))
	sb.OrderBy("sequence_position DESC")
	sb.Limit(limit).Offset(offset)

	query, args := sb.Build()
	var records []models.ActivityRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"agreement_id": agreementID}).Error("Failed to list activity records")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list activity records")
	}
	return records, nil
}

// ListByParty returns activity involving a wallet on either side, newest first.
func (r *Repository) ListByParty(ctx context.Context, address string, limit, offset int) ([]models.ActivityRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "activity.Repository.ListByParty")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("activity_records")
	sb.Where(sb.Or(sb.Equal("company", address), sb.Equal("talent", address)))
	sb.OrderBy("sequence_position DESC")
	sb.Limit(limit).Offset(offset)

	query, args := sb.Build()
	var records []models.ActivityRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"address": address}).Error("Failed to list party activity")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list party activity")
	}
	return records, nil
}

// GetByKey returns one activity record by idempotency key.
func (r *Repository) GetByKey(ctx context.Context, idempotencyKey string) (*models.ActivityRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "activity.Repository.GetByKey")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("activity_records")
	sb.Where(sb.Equal("idempotency_key", idempotencyKey))

	query, args := sb.Build()
	var record models.ActivityRecord
	if err := database.Executor(ctx, r.db).GetContext(ctx, &record, query, args...); err != nil {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "activity record %s not found", idempotencyKey)
	}
	return &record, nil
}
