package projector

import (
	"context"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/William9701/blockchain-hr-platform/internal/repositories/profile"
	"github.com/William9701/blockchain-hr-platform/pkg/ledger"
	"github.com/William9701/blockchain-hr-platform/pkg/models"
)

const (
	companyAddress = "0x1111111111111111111111111111111111111111"
	talentAddress  = "0x2222222222222222222222222222222222222222"
)

// fakeProfiles records every aggregate mutation in order.
type fakeProfiles struct {
	ensured     []string
	deltas      []profile.Delta
	credentials map[string][]models.CredentialRef
	err         error
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{credentials: map[string][]models.CredentialRef{}}
}

func (f *fakeProfiles) Ensure(ctx context.Context, address string, role models.PartyRole) error {
	if f.err != nil {
		return f.err
	}
	f.ensured = append(f.ensured, address)
	return nil
}

func (f *fakeProfiles) ApplyDelta(ctx context.Context, delta profile.Delta) error {
	if f.err != nil {
		return f.err
	}
	f.deltas = append(f.deltas, delta)
	return nil
}

func (f *fakeProfiles) AppendCredential(ctx context.Context, address string, credential models.CredentialRef) error {
	if f.err != nil {
		return f.err
	}
	f.credentials[address] = append(f.credentials[address], credential)
	return nil
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func agreementState(milestoneAmounts ...string) *ledger.AgreementState {
	state := &ledger.AgreementState{
		Agreement: models.Agreement{
			ID:      1,
			Company: companyAddress,
			Talent:  talentAddress,
			Status:  models.AgreementActive,
		},
	}
	for index, amount := range milestoneAmounts {
		state.Milestones = append(state.Milestones, models.Milestone{
			AgreementID: 1,
			Index:       index,
			Amount:      amount,
			Status:      models.MilestonePaid,
		})
	}
	return state
}

func notification(notificationType models.NotificationType) *models.Notification {
	return &models.Notification{
		Type:             notificationType,
		AgreementID:      1,
		IdempotencyKey:   "key-1",
		SequencePosition: 1,
		Company:          companyAddress,
		Talent:           talentAddress,
		Timestamp:        time.Now(),
	}
}

func TestProjectorEnsuresBothParties(t *testing.T) {
	profiles := newFakeProfiles()
	p := New(profiles, testLogger(), 200)

	err := p.Apply(context.Background(), notification(models.AgreementCreated), agreementState())
	require.NoError(t, err)

	assert.Equal(t, []string{companyAddress, talentAddress}, profiles.ensured)
}

func TestProjectorAgreementCreated(t *testing.T) {
	profiles := newFakeProfiles()
	p := New(profiles, testLogger(), 200)

	err := p.Apply(context.Background(), notification(models.AgreementCreated), agreementState())
	require.NoError(t, err)

	require.Len(t, profiles.deltas, 2)
	assert.Equal(t, profile.Delta{Address: companyAddress, TotalContracts: 1}, profiles.deltas[0])
	assert.Equal(t, profile.Delta{Address: talentAddress, TotalContracts: 1}, profiles.deltas[1])
}

func TestProjectorMilestonePaid(t *testing.T) {
	t.Run("splits fee from ledger amount", func(t *testing.T) {
		profiles := newFakeProfiles()
		p := New(profiles, testLogger(), 200)

		n := notification(models.MilestonePaidOut)
		index := 0
		n.Payload.MilestoneIndex = &index

		err := p.Apply(context.Background(), n, agreementState("3000000000000000000"))
		require.NoError(t, err)

		require.Len(t, profiles.deltas, 2)
		assert.Equal(t, profile.Delta{Address: companyAddress, Spent: "3000000000000000000"}, profiles.deltas[0])
		assert.Equal(t, profile.Delta{Address: talentAddress, Earned: "2940000000000000000"}, profiles.deltas[1])
	})

	t.Run("ledger amount wins over payload hint", func(t *testing.T) {
		profiles := newFakeProfiles()
		p := New(profiles, testLogger(), 200)

		n := notification(models.MilestonePaidOut)
		index := 0
		n.Payload.MilestoneIndex = &index
		n.Payload.Amount = "999"

		err := p.Apply(context.Background(), n, agreementState("10000"))
		require.NoError(t, err)

		require.Len(t, profiles.deltas, 2)
		assert.Equal(t, "10000", profiles.deltas[0].Spent)
		assert.Equal(t, "9800", profiles.deltas[1].Earned)
	})

	t.Run("missing milestone index is inconsistent", func(t *testing.T) {
		profiles := newFakeProfiles()
		p := New(profiles, testLogger(), 200)

		err := p.Apply(context.Background(), notification(models.MilestonePaidOut), agreementState("10000"))
		assert.ErrorIs(t, err, ErrInconsistentState)
		assert.Empty(t, profiles.deltas)
	})

	t.Run("out of range milestone index is inconsistent", func(t *testing.T) {
		profiles := newFakeProfiles()
		p := New(profiles, testLogger(), 200)

		n := notification(models.MilestonePaidOut)
		index := 5
		n.Payload.MilestoneIndex = &index

		// Payout references milestone 5 but the agreement only has 2.
		err := p.Apply(context.Background(), n, agreementState("100", "200"))
		assert.ErrorIs(t, err, ErrInconsistentState)
		assert.Empty(t, profiles.deltas)
	})
}

func TestProjectorLifecycleCounters(t *testing.T) {
	cases := []struct {
		notificationType models.NotificationType
		check            func(t *testing.T, delta profile.Delta)
	}{
		{models.AgreementDone, func(t *testing.T, delta profile.Delta) {
			assert.Equal(t, int64(1), delta.CompletedContracts)
		}},
		{models.AgreementDisputed, func(t *testing.T, delta profile.Delta) {
			assert.Equal(t, int64(1), delta.DisputedContracts)
		}},
		{models.AgreementVoided, func(t *testing.T, delta profile.Delta) {
			assert.Equal(t, int64(1), delta.CancelledContracts)
		}},
	}

	for _, tc := range cases {
		t.Run(string(tc.notificationType), func(t *testing.T) {
			profiles := newFakeProfiles()
			p := New(profiles, testLogger(), 200)

			err := p.Apply(context.Background(), notification(tc.notificationType), agreementState())
			require.NoError(t, err)

			require.Len(t, profiles.deltas, 2)
			tc.check(t, profiles.deltas[0])
			tc.check(t, profiles.deltas[1])
		})
	}
}

func TestProjectorCredentialIssued(t *testing.T) {
	profiles := newFakeProfiles()
	p := New(profiles, testLogger(), 200)

	n := notification(models.CredentialIssued)
	n.Payload.ExternalRef = "token-77"

	err := p.Apply(context.Background(), n, agreementState())
	require.NoError(t, err)

	require.Len(t, profiles.credentials[talentAddress], 1)
	credential := profiles.credentials[talentAddress][0]
	assert.Equal(t, uint64(1), credential.AgreementID)
	assert.Equal(t, "token-77", credential.TokenRef)
	assert.Empty(t, profiles.deltas)
}

func TestProjectorMilestoneReferenceBounds(t *testing.T) {
	for _, notificationType := range []models.NotificationType{
		models.MilestoneSubmitted,
		models.MilestoneApproved,
	} {
		t.Run(string(notificationType), func(t *testing.T) {
			profiles := newFakeProfiles()
			p := New(profiles, testLogger(), 200)

			n := notification(notificationType)
			index := 5
			n.Payload.MilestoneIndex = &index

			// References milestone 5 but the agreement only has 2.
			err := p.Apply(context.Background(), n, agreementState("100", "200"))
			assert.ErrorIs(t, err, ErrInconsistentState)
			assert.Empty(t, profiles.deltas)
		})
	}

	t.Run("in range index passes", func(t *testing.T) {
		profiles := newFakeProfiles()
		p := New(profiles, testLogger(), 200)

		n := notification(models.MilestoneSubmitted)
		index := 1
		n.Payload.MilestoneIndex = &index

		err := p.Apply(context.Background(), n, agreementState("100", "200"))
		require.NoError(t, err)
		assert.Empty(t, profiles.deltas)
	})
}

func TestProjectorNoOpTypes(t *testing.T) {
	for _, notificationType := range []models.NotificationType{
		models.AgreementAccepted,
		models.AgreementActivated,
		models.MilestoneSubmitted,
		models.MilestoneApproved,
		models.AgreementFinal,
	} {
		t.Run(string(notificationType), func(t *testing.T) {
			profiles := newFakeProfiles()
			p := New(profiles, testLogger(), 200)

			err := p.Apply(context.Background(), notification(notificationType), agreementState())
			require.NoError(t, err)
			assert.Empty(t, profiles.deltas)
		})
	}
}

func TestProjectorUnknownType(t *testing.T) {
	profiles := newFakeProfiles()
	p := New(profiles, testLogger(), 200)

	err := p.Apply(context.Background(), notification("agreement.exploded"), agreementState())
	assert.ErrorIs(t, err, ErrInconsistentState)
}

func TestProjectorReplayDeterminism(t *testing.T) {
	// Folding the same ordered notifications twice from empty state must
	// produce identical delta sequences.
	run := func() []profile.Delta {
		profiles := newFakeProfiles()
		p := New(profiles, testLogger(), 200)

		index := 0
		paid := notification(models.MilestonePaidOut)
		paid.Payload.MilestoneIndex = &index

		for _, n := range []*models.Notification{
			notification(models.AgreementCreated),
			paid,
			notification(models.AgreementDone),
		} {
			require.NoError(t, p.Apply(context.Background(), n, agreementState("5000")))
		}
		return profiles.deltas
	}

	assert.Equal(t, run(), run())
}
