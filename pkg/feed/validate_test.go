package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/William9701/blockchain-hr-platform/pkg/models"
)

func validNotification() *models.Notification {
	return &models.Notification{
		Type:             models.AgreementCreated,
		AgreementID:      42,
		IdempotencyKey:   "0xabc-42-0",
		SequencePosition: 7,
		Company:          "0x1111111111111111111111111111111111111111",
		Talent:           "0x2222222222222222222222222222222222222222",
		Timestamp:        time.Now(),
	}
}

func TestValidateNotification(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, ValidateNotification(validNotification()))
	})

	t.Run("unknown type", func(t *testing.T) {
		n := validNotification()
		n.Type = "agreement.exploded"
		assert.Error(t, ValidateNotification(n))
	})

	t.Run("missing idempotency key", func(t *testing.T) {
		n := validNotification()
		n.IdempotencyKey = ""
		assert.Error(t, ValidateNotification(n))
	})

	t.Run("missing agreement id", func(t *testing.T) {
		n := validNotification()
		n.AgreementID = 0
		assert.Error(t, ValidateNotification(n))
	})

	t.Run("malformed company address", func(t *testing.T) {
		n := validNotification()
		n.Company = "0xshort"
		assert.Error(t, ValidateNotification(n))
	})

	t.Run("malformed talent address", func(t *testing.T) {
		n := validNotification()
		n.Talent = "not-an-address"
		assert.Error(t, ValidateNotification(n))
	})

	t.Run("initiator is optional", func(t *testing.T) {
		n := validNotification()
		n.Initiator = ""
		assert.NoError(t, ValidateNotification(n))

		n.Initiator = "0x3333333333333333333333333333333333333333"
		assert.NoError(t, ValidateNotification(n))

		n.Initiator = "0xnope"
		assert.Error(t, ValidateNotification(n))
	})
}
