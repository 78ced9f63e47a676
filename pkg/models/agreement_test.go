package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAgreementStatusCanTransition(t *testing.T) {
	t.Run("allowed moves", func(t *testing.T) {
		assert.True(t, AgreementPending.CanTransition(AgreementActive))
		assert.True(t, AgreementPending.CanTransition(AgreementCancelled))
		assert.True(t, AgreementActive.CanTransition(AgreementCompleted))
		assert.True(t, AgreementActive.CanTransition(AgreementStatusDisputed))
		assert.True(t, AgreementCompleted.CanTransition(AgreementFinalized))
		assert.True(t, AgreementCompleted.CanTransition(AgreementStatusDisputed))
	})

	t.Run("blocked moves", func(t *testing.T) {
		assert.False(t, AgreementPending.CanTransition(AgreementCompleted))
		assert.False(t, AgreementPending.CanTransition(AgreementFinalized))
		assert.False(t, AgreementActive.CanTransition(AgreementPending))
		assert.False(t, AgreementActive.CanTransition(AgreementCancelled))
		assert.False(t, AgreementFinalized.CanTransition(AgreementActive))
		assert.False(t, AgreementCancelled.CanTransition(AgreementActive))
		assert.False(t, AgreementStatusDisputed.CanTransition(AgreementCompleted))
	})

	t.Run("self transition is not a move", func(t *testing.T) {
		assert.False(t, AgreementActive.CanTransition(AgreementActive))
	})
}

func TestAgreementStatusTerminal(t *testing.T) {
	assert.False(t, AgreementPending.Terminal())
	assert.False(t, AgreementActive.Terminal())
	assert.False(t, AgreementCompleted.Terminal())
	assert.True(t, AgreementStatusDisputed.Terminal())
	assert.True(t, AgreementFinalized.Terminal())
	assert.True(t, AgreementCancelled.Terminal())
}

func TestAgreementStatusRank(t *testing.T) {
	assert.Equal(t, 0, AgreementPending.Rank())
	assert.Equal(t, 1, AgreementActive.Rank())
	assert.Equal(t, 2, AgreementCompleted.Rank())
	assert.Equal(t, 3, AgreementStatusDisputed.Rank())
	assert.Equal(t, 3, AgreementFinalized.Rank())
	assert.Equal(t, 3, AgreementCancelled.Rank())
	assert.Equal(t, -1, AgreementStatus("bogus").Rank())
}

func TestMilestoneStatusRank(t *testing.T) {
	assert.Equal(t, 0, MilestonePending.Rank())
	assert.Equal(t, 1, MilestoneInProgress.Rank())
	assert.Equal(t, 2, MilestoneStatusSubmitted.Rank())
	assert.Equal(t, 3, MilestoneStatusApproved.Rank())
	assert.Equal(t, 4, MilestonePaid.Rank())
	assert.Equal(t, -1, MilestoneStatus("bogus").Rank())
}

func TestMilestoneStatusCanAdvance(t *testing.T) {
	assert.True(t, MilestonePending.CanAdvance(MilestoneInProgress))
	assert.True(t, MilestoneStatusSubmitted.CanAdvance(MilestonePaid))
	assert.False(t, MilestonePaid.CanAdvance(MilestoneStatusApproved))
	assert.False(t, MilestoneStatusApproved.CanAdvance(MilestoneStatusApproved))

	// Unknown statuses rank below everything and can never overwrite.
	assert.False(t, MilestonePending.CanAdvance(MilestoneStatus("bogus")))
}

func TestNotificationTypeKnown(t *testing.T) {
	for _, known := range NotificationTypes {
		assert.True(t, known.Known(), string(known))
	}
	assert.False(t, NotificationType("agreement.exploded").Known())
	assert.False(t, NotificationType("").Known())
}
