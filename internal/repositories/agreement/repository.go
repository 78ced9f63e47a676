// Package agreement persists the local mirror of on-chain agreements.
// Rows are always overwritten with freshly fetched ledger state, never
// edited from notification payloads.
package agreement

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/William9701/blockchain-hr-platform/pkg/database"
	"github.com/William9701/blockchain-hr-platform/pkg/models"
	"github.com/William9701/blockchain-hr-platform/pkg/tracing"
)

const agreementColumns = "id, company, talent, title, metadata_ref, total_amount, status, start_at, end_at, company_approved, talent_approved, milestone_count, created_at, updated_at"
const milestoneColumns = "agreement_id, milestone_index, description, amount, deadline, status, deliverable_ref, updated_at"

// Repository handles agreement and milestone persistence
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

// Upsert overwrites the local agreement row with authoritative ledger state.
func (r *Repository) Upsert(ctx context.Context, agreement *models.Agreement) error {
	ctx, span := tracing.StartSpan(ctx, "agreement.Repository.Upsert")
	defer span.End()

	now := time.Now().UTC()
	if agreement.CreatedAt.IsZero() {
		agreement.CreatedAt = now
	}
	agreement.UpdatedAt = now

	query := `
		INSERT INTO agreements (
			id, company, talent, title, metadata_ref, total_amount, status,
			start_at, end_at, company_approved, talent_approved, milestone_count,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			company = EXCLUDED.company,
			talent = EXCLUDED.talent,
			title = EXCLUDED.title,
			metadata_ref = EXCLUDED.metadata_ref,
			total_amount = EXCLUDED.total_amount,
			status = EXCLUDED.status,
			start_at = EXCLUDED.start_at,
			end_at = EXCLUDED.end_at,
			company_approved = EXCLUDED.company_approved,
			talent_approved = EXCLUDED.talent_approved,
			milestone_count = EXCLUDED.milestone_count,
			updated_at = EXCLUDED.updated_at
	`

	_, err := database.Executor(ctx, r.db).ExecContext(ctx, query,
		agreement.ID, agreement.Company, agreement.Talent, agreement.Title,
		agreement.MetadataRef, agreement.TotalAmount, agreement.Status,
		agreement.StartAt, agreement.EndAt, agreement.CompanyApproved,
		agreement.TalentApproved, agreement.MilestoneCount,
		agreement.CreatedAt, agreement.UpdatedAt,
	)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"agreement_id": agreement.ID}).Error("Failed to upsert agreement")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to upsert agreement: %v", err)
	}
	return nil
}

// UpsertMilestones overwrites the milestone rows of one agreement.
func (r *Repository) UpsertMilestones(ctx context.Context, agreementID uint64, milestones []models.Milestone) error {
	ctx, span := tracing.StartSpan(ctx, "agreement.Repository.UpsertMilestones")
	defer span.End()

	if len(milestones) == 0 {
		return nil
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO milestones (
			agreement_id, milestone_index, description, amount, deadline,
			status, deliverable_ref, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (agreement_id, milestone_index) DO UPDATE SET
			description = EXCLUDED.description,
			amount = EXCLUDED.amount,
			deadline = EXCLUDED.deadline,
			status = EXCLUDED.status,
			deliverable_ref = EXCLUDED.deliverable_ref,
			updated_at = EXCLUDED.updated_at
	`

	executor := database.Executor(ctx, r.db)
	for i := range milestones {
		milestone := &milestones[i]
		milestone.AgreementID = agreementID
		milestone.UpdatedAt = now

		_, err := executor.ExecContext(ctx, query,
			milestone.AgreementID, milestone.Index, milestone.Description,
			milestone.Amount, milestone.Deadline, milestone.Status,
			milestone.DeliverableRef, milestone.UpdatedAt,
		)
		if err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"agreement_id":    agreementID,
				"milestone_index": milestone.Index,
			}).Error("Failed to upsert milestone")
			return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to upsert milestone: %v", err)
		}
	}
	return nil
}

// Get returns one agreement with its milestones ordered by index.
func (r *Repository) Get(ctx context.Context, agreementID uint64) (*models.AgreementWithMilestones, error) {
	ctx, span := tracing.StartSpan(ctx, "agreement.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(agreementColumns)
	sb.From("agreements")
	sb.Where(sb.Equal("id", agreementID))

	query, args := sb.Build()
	var agreement models.Agreement
	if err := database.Executor(ctx, r.db).GetContext(ctx, &agreement, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "agreement %d not found", agreementID)
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"agreement_id": agreementID}).Error("Failed to get agreement")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get agreement")
	}

	milestones, err := r.GetMilestones(ctx, agreementID)
	if err != nil {
		return nil, err
	}

	return &models.AgreementWithMilestones{
		Agreement:  agreement,
		Milestones: milestones,
	}, nil
}

// GetMilestones returns the milestones of one agreement ordered by index.
func (r *Repository) GetMilestones(ctx context.Context, agreementID uint64) ([]models.Milestone, error) {
	ctx, span := tracing.StartSpan(ctx, "agreement.Repository.GetMilestones")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(milestoneColumns)
	sb.From("milestones")
	sb.Where(sb.Equal("agreement_id", agreementID))
	sb.OrderBy("milestone_index ASC")

	query, args := sb.Build()
	var milestones []models.Milestone
	if err := database.Executor(ctx, r.db).SelectContext(ctx, &milestones, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"agreement_id": agreementID}).Error("Failed to get milestones")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get milestones")
	}
	return milestones, nil
}

// ListByParty returns agreements a wallet participates in, newest first.
func (r *Repository) ListByParty(ctx context.Context, address string, limit, offset int) ([]models.Agreement, error) {
	ctx, span := tracing.StartSpan(ctx, "agreement.Repository.ListByParty")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(agreementColumns)
	sb.From("agreements")
	sb.Where(sb.Or(sb.Equal("company", address), sb.Equal("talent", address)))
	sb.OrderBy("created_at DESC")
	sb.Limit(limit).Offset(offset)

	query, args := sb.Build()
	var agreements []models.Agreement
	if err := r.db.SelectContext(ctx, &agreements, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"address": address}).Error("Failed to list party agreements")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list party agreements")
	}
	return agreements, nil
}

// CurrentStatus returns the stored status of an agreement; found is false
// when the agreement is not mirrored locally yet.
func (r *Repository) CurrentStatus(ctx context.Context, agreementID uint64) (models.AgreementStatus, bool, error) {
	ctx, span := tracing.StartSpan(ctx, "agreement.Repository.CurrentStatus")
	defer span.End()

	var status models.AgreementStatus
	query := `SELECT status FROM agreements WHERE id = $1`
	if err := database.Executor(ctx, r.db).GetContext(ctx, &status, query, agreementID); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"agreement_id": agreementID}).Error("Failed to get agreement status")
		return "", false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get agreement status")
	}
	return status, true, nil
}
