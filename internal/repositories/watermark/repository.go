// Package watermark tracks per-agreement reconciliation progress. A
// watermark only advances past a sequence position once no unresolved
// quarantined notification at or below that position exists for the
// agreement.
package watermark

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/William9701/blockchain-hr-platform/pkg/database"
	"github.com/William9701/blockchain-hr-platform/pkg/tracing"
)

// Repository handles watermark persistence
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

// Get returns the stored watermark for an agreement, zero when none exists.
func (r *Repository) Get(ctx context.Context, agreementID uint64) (uint64, error) {
	ctx, span := tracing.StartSpan(ctx, "watermark.Repository.Get")
	defer span.End()

	var position uint64
	query := `SELECT position FROM watermarks WHERE agreement_id = $1`
	err := database.Executor(ctx, r.db).GetContext(ctx, &position, query, agreementID)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"agreement_id": agreementID}).Error("Failed to get watermark")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get watermark")
	}
	return position, nil
}

// Advance moves the watermark to position if that is a forward move and no
// unresolved quarantine at or below position exists for the agreement.
// Returns the position actually stored.
func (r *Repository) Advance(ctx context.Context, agreementID, position uint64) (uint64, error) {
	ctx, span := tracing.StartSpan(ctx, "watermark.Repository.Advance")
	defer span.End()

	query := `
		INSERT INTO watermarks (agreement_id, position, updated_at)
		SELECT $1, $2, $3
		WHERE NOT EXISTS (
			SELECT 1 FROM quarantined_notifications
			WHERE agreement_id = $1
			  AND resolved_at IS NULL
			  AND sequence_position <= $2
		)
		ON CONFLICT (agreement_id) DO UPDATE SET
			position = EXCLUDED.position,
			updated_at = EXCLUDED.updated_at
		WHERE watermarks.position < EXCLUDED.position
	`

	if _, err := database.Executor(ctx, r.db).ExecContext(ctx, query, agreementID, position, time.Now().UTC()); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"agreement_id": agreementID,
			"position":     position,
		}).Error("Failed to advance watermark")
		return 0, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to advance watermark: %v", err)
	}

	return r.Get(ctx, agreementID)
}

// Floor returns the lowest stored watermark across all agreements. Replay at
// boot starts here; the dedup log absorbs anything already applied.
func (r *Repository) Floor(ctx context.Context) (uint64, error) {
	ctx, span := tracing.StartSpan(ctx, "watermark.Repository.Floor")
	defer span.End()

	var floor uint64
	query := `SELECT COALESCE(MIN(position), 0) FROM watermarks`
	if err := r.db.GetContext(ctx, &floor, query); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get watermark floor")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get watermark floor")
	}
	return floor, nil
}

// Head returns the highest stored watermark across all agreements.
func (r *Repository) Head(ctx context.Context) (uint64, error) {
	ctx, span := tracing.StartSpan(ctx, "watermark.Repository.Head")
	defer span.End()

	var head uint64
	query := `SELECT COALESCE(MAX(position), 0) FROM watermarks`
	if err := r.db.GetContext(ctx, &head, query); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get watermark head")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get watermark head")
	}
	return head, nil
}
