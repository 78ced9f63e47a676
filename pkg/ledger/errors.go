package ledger

import "github.com/pkg/errors"

var (
	// ErrUnreachableSource means the gateway or chain node could not be reached.
	// Callers may retry.
	ErrUnreachableSource = errors.New("ledger source unreachable")

	// ErrInvalidReference means the referenced agreement or milestone does not
	// exist on chain. Retrying will not help.
	ErrInvalidReference = errors.New("invalid ledger reference")
)
