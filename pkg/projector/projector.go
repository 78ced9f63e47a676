// Package projector folds reconciled notifications into the party
// aggregates. Every update is expressed as a relative delta so that the fold
// is deterministic: replaying the full activity log from empty state
// reproduces identical aggregates.
package projector

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/pkg/errors"

	"github.com/William9701/blockchain-hr-platform/internal/repositories/profile"
	"github.com/William9701/blockchain-hr-platform/pkg/amount"
	"github.com/William9701/blockchain-hr-platform/pkg/ledger"
	"github.com/William9701/blockchain-hr-platform/pkg/models"
	"github.com/William9701/blockchain-hr-platform/pkg/tracing"
)

// ErrInconsistentState means the notification contradicts authoritative
// ledger state (for example a paid milestone that does not exist). The caller
// quarantines these; retrying cannot fix them.
var ErrInconsistentState = errors.New("notification inconsistent with ledger state")

// ProfileStore is the aggregate persistence surface the projector writes to.
type ProfileStore interface {
	Ensure(ctx context.Context, address string, role models.PartyRole) error
	ApplyDelta(ctx context.Context, delta profile.Delta) error
	AppendCredential(ctx context.Context, address string, credential models.CredentialRef) error
}

// Projector applies per-notification aggregate updates.
type Projector struct {
	profiles       ProfileStore
	logger         ectologger.Logger
	feeBasisPoints int
}

func New(profiles ProfileStore, logger ectologger.Logger, feeBasisPoints int) *Projector {
	return &Projector{
		profiles:       profiles,
		logger:         logger,
		feeBasisPoints: feeBasisPoints,
	}
}

// Apply updates aggregates for one deduplicated notification. The state
// argument is the freshly fetched ledger view of the affected agreement and
// is the only trusted source for amounts and party addresses.
func (p *Projector) Apply(ctx context.Context, notification *models.Notification, state *ledger.AgreementState) error {
	ctx, span := tracing.StartSpan(ctx, "projector.Projector.Apply")
	defer span.End()

	company := state.Agreement.Company
	talent := state.Agreement.Talent

	if err := p.profiles.Ensure(ctx, company, models.RoleCompany); err != nil {
		return err
	}
	if err := p.profiles.Ensure(ctx, talent, models.RoleTalent); err != nil {
		return err
	}

	switch notification.Type {
	case models.AgreementCreated:
		return p.applyPair(ctx,
			profile.Delta{Address: company, TotalContracts: 1},
			profile.Delta{Address: talent, TotalContracts: 1},
		)

	case models.MilestonePaidOut:
		return p.applyPayout(ctx, notification, state)

	case models.AgreementDone:
		return p.applyPair(ctx,
			profile.Delta{Address: company, CompletedContracts: 1},
			profile.Delta{Address: talent, CompletedContracts: 1},
		)

	case models.AgreementDisputed:
		return p.applyPair(ctx,
			profile.Delta{Address: company, DisputedContracts: 1},
			profile.Delta{Address: talent, DisputedContracts: 1},
		)

	case models.AgreementVoided:
		return p.applyPair(ctx,
			profile.Delta{Address: company, CancelledContracts: 1},
			profile.Delta{Address: talent, CancelledContracts: 1},
		)

	case models.CredentialIssued:
		return p.profiles.AppendCredential(ctx, talent, models.CredentialRef{
			AgreementID: notification.AgreementID,
			TokenRef:    notification.Payload.ExternalRef,
			IssuedAt:    notification.Timestamp,
		})

	case models.MilestoneSubmitted, models.MilestoneApproved:
		// Mirrored agreement state covers these; no aggregate change, but a
		// milestone reference outside the fetched set can never become valid.
		return p.checkMilestoneIndex(notification, state)

	case models.AgreementAccepted, models.AgreementActivated, models.AgreementFinal:
		// Mirrored agreement state covers these; no aggregate change.
		return nil

	default:
		return errors.Wrapf(ErrInconsistentState, "no projection for type %q", notification.Type)
	}
}

// applyPayout credits the talent with the milestone amount net of the
// platform fee and debits the company with the gross amount. The fee itself
// accrues to the platform treasury on chain, not to either profile.
func (p *Projector) applyPayout(ctx context.Context, notification *models.Notification, state *ledger.AgreementState) error {
	paidAmount, err := p.payoutAmount(notification, state)
	if err != nil {
		return err
	}

	_, net, err := amount.FeeSplit(paidAmount, p.feeBasisPoints)
	if err != nil {
		return errors.Wrapf(ErrInconsistentState, "unparseable payout amount %q: %v", paidAmount, err)
	}

	return p.applyPair(ctx,
		profile.Delta{Address: state.Agreement.Company, Spent: paidAmount},
		profile.Delta{Address: state.Agreement.Talent, Earned: net},
	)
}

// checkMilestoneIndex rejects a milestone reference the freshly fetched
// agreement does not have. The fetch is already authoritative, so an out of
// range index is inconsistent on first sight, not worth a retry.
func (p *Projector) checkMilestoneIndex(notification *models.Notification, state *ledger.AgreementState) error {
	if notification.Payload.MilestoneIndex == nil {
		return nil
	}
	index := *notification.Payload.MilestoneIndex
	if index < 0 || index >= len(state.Milestones) {
		return errors.Wrapf(ErrInconsistentState, "milestone index %d out of range (agreement has %d)", index, len(state.Milestones))
	}
	return nil
}

func (p *Projector) payoutAmount(notification *models.Notification, state *ledger.AgreementState) (string, error) {
	if notification.Payload.MilestoneIndex == nil {
		return "", errors.Wrap(ErrInconsistentState, "payout without milestone index")
	}

	index := *notification.Payload.MilestoneIndex
	if err := p.checkMilestoneIndex(notification, state); err != nil {
		return "", err
	}

	// The fetched milestone amount is authoritative; the payload copy is a hint.
	ledgerAmount := state.Milestones[index].Amount
	if ledgerAmount != "" {
		return ledgerAmount, nil
	}
	if notification.Payload.Amount != "" {
		return notification.Payload.Amount, nil
	}
	return "", errors.Wrapf(ErrInconsistentState, "milestone %d has no amount", index)
}

func (p *Projector) applyPair(ctx context.Context, companyDelta, talentDelta profile.Delta) error {
	if err := p.profiles.ApplyDelta(ctx, companyDelta); err != nil {
		return err
	}
	return p.profiles.ApplyDelta(ctx, talentDelta)
}
