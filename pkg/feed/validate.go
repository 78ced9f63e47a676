package feed

import (
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/William9701/blockchain-hr-platform/pkg/ledger"
	"github.com/William9701/blockchain-hr-platform/pkg/models"
)

var validate = validator.New()

// ValidateNotification rejects notifications that cannot be reconciled:
// unknown types, malformed addresses, or missing identity fields.
func ValidateNotification(n *models.Notification) error {
	if err := validate.Struct(n); err != nil {
		return errors.Wrap(err, "notification failed validation")
	}

	if !n.Type.Known() {
		return errors.Errorf("unknown notification type %q", n.Type)
	}

	for _, address := range []string{n.Company, n.Talent} {
		if !ledger.ValidAddress(address) {
			return errors.Errorf("malformed party address %q", address)
		}
	}

	if n.Initiator != "" && !ledger.ValidAddress(n.Initiator) {
		return errors.Errorf("malformed initiator address %q", n.Initiator)
	}

	return nil
}
