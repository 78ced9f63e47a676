// Package ledger reads authoritative agreement state from the chain gateway.
// The indexer never trusts notification payloads for state; it re-fetches the
// agreement from here before writing projections.
package ledger

import (
	"context"
	"regexp"

	"github.com/William9701/blockchain-hr-platform/pkg/models"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ValidAddress reports whether s is a well-formed wallet address.
func ValidAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// AgreementState is the authoritative on-chain view of one agreement.
type AgreementState struct {
	Agreement  models.Agreement   `json:"agreement"`
	Milestones []models.Milestone `json:"milestones"`
}

// SignatureCheck is a signed-message verification request.
type SignatureCheck struct {
	Address   string `json:"address"`
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

// Client reads agreement state and historical notifications from the chain.
type Client interface {
	// FetchAgreement returns the current on-chain state of an agreement.
	// Returns ErrInvalidReference when the agreement does not exist.
	FetchAgreement(ctx context.Context, agreementID uint64) (*AgreementState, error)

	// FetchPartyAgreements returns the agreement ids a wallet participates in.
	FetchPartyAgreements(ctx context.Context, address string) ([]uint64, error)

	// ListNotifications returns historical notifications with sequence
	// positions in [from, to], at most limit per call, ordered by position.
	ListNotifications(ctx context.Context, from, to uint64, limit int) ([]models.Notification, error)

	// VerifySignature checks a signed message against a wallet address.
	VerifySignature(ctx context.Context, check SignatureCheck) (bool, error)
}
