// Package profile persists party aggregates. Counter and amount columns are
// only ever changed through relative SQL increments so that replaying the
// activity log reproduces identical values.
package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/William9701/blockchain-hr-platform/pkg/database"
	"github.com/William9701/blockchain-hr-platform/pkg/models"
	"github.com/William9701/blockchain-hr-platform/pkg/tracing"
)

const columns = "address, role, display_name, bio, rating, total_contracts, completed_contracts, disputed_contracts, cancelled_contracts, total_earned, total_spent, credentials, session_nonce, created_at, updated_at"

// Delta is one relative aggregate update for a party. Counter fields add to
// the stored values; amount fields are decimal strings in smallest units and
// add numerically.
type Delta struct {
	Address            string
	TotalContracts     int64
	CompletedContracts int64
	DisputedContracts  int64
	CancelledContracts int64
	Earned             string
	Spent              string
}

// Repository handles party profile persistence
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

// Ensure creates the profile row for an address if it does not exist yet.
func (r *Repository) Ensure(ctx context.Context, address string, role models.PartyRole) error {
	ctx, span := tracing.StartSpan(ctx, "profile.Repository.Ensure")
	defer span.End()

	now := time.Now().UTC()
	query := `
		INSERT INTO party_profiles (
			address, role, total_earned, total_spent, credentials, created_at, updated_at
		) VALUES ($1, $2, '0', '0', '[]'::jsonb, $3, $3)
		ON CONFLICT (address) DO NOTHING
	`
	if _, err := database.Executor(ctx, r.db).ExecContext(ctx, query, address, role, now); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"address": address}).Error("Failed to ensure party profile")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to ensure party profile: %v", err)
	}
	return nil
}

// ApplyDelta applies one relative aggregate update. Amount columns are
// numeric; the addition happens in the database so concurrent appliers
// serialize on the row.
func (r *Repository) ApplyDelta(ctx context.Context, delta Delta) error {
	ctx, span := tracing.StartSpan(ctx, "profile.Repository.ApplyDelta")
	defer span.End()

	earned := delta.Earned
	if earned == "" {
		earned = "0"
	}
	spent := delta.Spent
	if spent == "" {
		spent = "0"
	}

	query := `
		UPDATE party_profiles SET
			total_contracts = total_contracts + $2,
			completed_contracts = completed_contracts + $3,
			disputed_contracts = disputed_contracts + $4,
			cancelled_contracts = cancelled_contracts + $5,
			total_earned = (total_earned::numeric + $6::numeric)::text,
			total_spent = (total_spent::numeric + $7::numeric)::text,
			updated_at = $8
		WHERE address = $1
	`

	result, err := database.Executor(ctx, r.db).ExecContext(ctx, query,
		delta.Address, delta.TotalContracts, delta.CompletedContracts,
		delta.DisputedContracts, delta.CancelledContracts,
		earned, spent, time.Now().UTC(),
	)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"address": delta.Address}).Error("Failed to apply profile delta")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to apply profile delta: %v", err)
	}

	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "party profile %s not found", delta.Address)
	}
	return nil
}

// AppendCredential appends one credential reference to the profile's
// credentials array.
func (r *Repository) AppendCredential(ctx context.Context, address string, credential models.CredentialRef) error {
	ctx, span := tracing.StartSpan(ctx, "profile.Repository.AppendCredential")
	defer span.End()

	entry, err := json.Marshal(credential)
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid credential reference")
	}

	query := `
		UPDATE party_profiles SET
			credentials = COALESCE(credentials, '[]'::jsonb) || $2::jsonb,
			updated_at = $3
		WHERE address = $1
	`
	if _, err := database.Executor(ctx, r.db).ExecContext(ctx, query, address, entry, time.Now().UTC()); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"address": address}).Error("Failed to append credential")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to append credential: %v", err)
	}
	return nil
}

// Get returns one party profile by address.
func (r *Repository) Get(ctx context.Context, address string) (*models.PartyProfile, error) {
	ctx, span := tracing.StartSpan(ctx, "profile.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("party_profiles")
	sb.Where(sb.Equal("address", address))

	query, args := sb.Build()
	var profile models.PartyProfile
	if err := database.Executor(ctx, r.db).GetContext(ctx, &profile, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "party profile %s not found", address)
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"address": address}).Error("Failed to get party profile")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get party profile")
	}
	return &profile, nil
}

// UpdateDetails sets the operator-editable display fields.
func (r *Repository) UpdateDetails(ctx context.Context, address, displayName, bio string) error {
	ctx, span := tracing.StartSpan(ctx, "profile.Repository.UpdateDetails")
	defer span.End()

	query := `UPDATE party_profiles SET display_name = $2, bio = $3, updated_at = $4 WHERE address = $1`
	result, err := database.Executor(ctx, r.db).ExecContext(ctx, query, address, displayName, bio, time.Now().UTC())
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"address": address}).Error("Failed to update profile details")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update profile details")
	}

	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "party profile %s not found", address)
	}
	return nil
}

// SetSessionNonce stores the login challenge nonce for an address.
func (r *Repository) SetSessionNonce(ctx context.Context, address, nonce string) error {
	ctx, span := tracing.StartSpan(ctx, "profile.Repository.SetSessionNonce")
	defer span.End()

	query := `UPDATE party_profiles SET session_nonce = $2, updated_at = $3 WHERE address = $1`
	result, err := database.Executor(ctx, r.db).ExecContext(ctx, query, address, nonce, time.Now().UTC())
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"address": address}).Error("Failed to set session nonce")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to set session nonce")
	}

	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "party profile %s not found", address)
	}
	return nil
}
