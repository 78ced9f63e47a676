// Package quarantine persists notifications that could not be applied.
// An unresolved entry pins the affected agreement's watermark in place.
package quarantine

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/William9701/blockchain-hr-platform/pkg/database"
	"github.com/William9701/blockchain-hr-platform/pkg/models"
	"github.com/William9701/blockchain-hr-platform/pkg/tracing"
)

const columns = "id, agreement_id, idempotency_key, sequence_position, type, reason, detail, notification, created_at, resolved_at"

// Repository handles quarantined notification persistence
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

// Insert quarantines one notification. Re-quarantining the same idempotency
// key is a no-op so redelivered poison messages do not pile up.
func (r *Repository) Insert(ctx context.Context, notification *models.Notification, reason models.QuarantineReason, detail string) (*models.QuarantinedNotification, error) {
	ctx, span := tracing.StartSpan(ctx, "quarantine.Repository.Insert")
	defer span.End()

	raw, err := json.Marshal(notification)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "unencodable notification")
	}

	entry := &models.QuarantinedNotification{
		ID:               uuid.New().String(),
		AgreementID:      notification.AgreementID,
		IdempotencyKey:   notification.IdempotencyKey,
		SequencePosition: notification.SequencePosition,
		Type:             notification.Type,
		Reason:           reason,
		Detail:           detail,
		Notification:     raw,
		CreatedAt:        time.Now().UTC(),
	}

	query := `
		INSERT INTO quarantined_notifications (
			id, agreement_id, idempotency_key, sequence_position, type,
			reason, detail, notification, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (idempotency_key) DO NOTHING
	`

	_, err = database.Executor(ctx, r.db).ExecContext(ctx, query,
		entry.ID, entry.AgreementID, entry.IdempotencyKey, entry.SequencePosition,
		entry.Type, entry.Reason, entry.Detail, entry.Notification, entry.CreatedAt,
	)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"agreement_id":    entry.AgreementID,
			"idempotency_key": entry.IdempotencyKey,
			"reason":          entry.Reason,
		}).Error("Failed to quarantine notification")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to quarantine notification: %v", err)
	}

	return entry, nil
}

// ListUnresolved returns unresolved quarantine entries, oldest first.
func (r *Repository) ListUnresolved(ctx context.Context, limit, offset int) ([]models.QuarantinedNotification, error) {
	ctx, span := tracing.StartSpan(ctx, "quarantine.Repository.ListUnresolved")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("quarantined_notifications")
	sb.Where(sb.IsNull("resolved_at"))
	sb.OrderBy("sequence_position ASC")
	sb.Limit(limit).Offset(offset)

	query, args := sb.Build()
	var entries []models.QuarantinedNotification
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list quarantined notifications")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list quarantined notifications")
	}
	return entries, nil
}

// Get returns one quarantine entry by id.
func (r *Repository) Get(ctx context.Context, id string) (*models.QuarantinedNotification, error) {
	ctx, span := tracing.StartSpan(ctx, "quarantine.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("quarantined_notifications")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var entry models.QuarantinedNotification
	if err := database.Executor(ctx, r.db).GetContext(ctx, &entry, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "quarantine entry %s not found", id)
		}
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get quarantine entry")
	}
	return &entry, nil
}

// Resolve marks an entry resolved, releasing its hold on the agreement
// watermark. Resolving an already-resolved entry is a no-op.
func (r *Repository) Resolve(ctx context.Context, id string) (*models.QuarantinedNotification, error) {
	ctx, span := tracing.StartSpan(ctx, "quarantine.Repository.Resolve")
	defer span.End()

	query := `
		UPDATE quarantined_notifications
		SET resolved_at = COALESCE(resolved_at, $2)
		WHERE id = $1
	`
	result, err := database.Executor(ctx, r.db).ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"quarantine_id": id}).Error("Failed to resolve quarantine entry")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to resolve quarantine entry")
	}

	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "quarantine entry %s not found", id)
	}

	return r.Get(ctx, id)
}

// HasUnresolvedAtOrBelow reports whether an unresolved entry for the
// agreement exists at or below the given sequence position.
func (r *Repository) HasUnresolvedAtOrBelow(ctx context.Context, agreementID, position uint64) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "quarantine.Repository.HasUnresolvedAtOrBelow")
	defer span.End()

	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM quarantined_notifications
			WHERE agreement_id = $1
			  AND resolved_at IS NULL
			  AND sequence_position <= $2
		)
	`
	if err := database.Executor(ctx, r.db).GetContext(ctx, &exists, query, agreementID, position); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"agreement_id": agreementID}).Error("Failed to check quarantine state")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to check quarantine state")
	}
	return exists, nil
}
