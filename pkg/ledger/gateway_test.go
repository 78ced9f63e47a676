package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/William9701/blockchain-hr-platform/pkg/httpclient"
	"github.com/William9701/blockchain-hr-platform/pkg/models"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func newTestGateway(t *testing.T, handler http.HandlerFunc) *Gateway {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewGateway(GatewayConfig{BaseURL: server.URL}, httpclient.NewClient(httpclient.DefaultConfig(), testLogger()), testLogger())
}

func TestValidAddress(t *testing.T) {
	assert.True(t, ValidAddress("0x1111111111111111111111111111111111111111"))
	assert.True(t, ValidAddress("0xAbCdEf1234567890aBcDeF1234567890abcdef12"))
	assert.False(t, ValidAddress(""))
	assert.False(t, ValidAddress("0x111"))
	assert.False(t, ValidAddress("1111111111111111111111111111111111111111"))
	assert.False(t, ValidAddress("0xZZ11111111111111111111111111111111111111"))
}

func TestGatewayFetchAgreement(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/agreements/42", r.URL.Path)
			_ = json.NewEncoder(w).Encode(AgreementState{
				Agreement: models.Agreement{ID: 42, Status: models.AgreementActive},
				Milestones: []models.Milestone{
					{AgreementID: 42, Index: 0, Amount: "1000"},
				},
			})
		})

		state, err := gateway.FetchAgreement(context.Background(), 42)
		require.NoError(t, err)
		assert.Equal(t, uint64(42), state.Agreement.ID)
		assert.Len(t, state.Milestones, 1)
	})

	t.Run("not found maps to invalid reference", func(t *testing.T) {
		gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		_, err := gateway.FetchAgreement(context.Background(), 42)
		assert.ErrorIs(t, err, ErrInvalidReference)
	})

	t.Run("server error maps to unreachable source", func(t *testing.T) {
		gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		_, err := gateway.FetchAgreement(context.Background(), 42)
		assert.ErrorIs(t, err, ErrUnreachableSource)
	})

	t.Run("rate limit maps to unreachable source", func(t *testing.T) {
		gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})

		_, err := gateway.FetchAgreement(context.Background(), 42)
		assert.ErrorIs(t, err, ErrUnreachableSource)
	})
}

func TestGatewayFetchPartyAgreements(t *testing.T) {
	t.Run("returns ids", func(t *testing.T) {
		gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"agreement_ids": []uint64{1, 2, 3}})
		})

		ids, err := gateway.FetchPartyAgreements(context.Background(), "0x1111111111111111111111111111111111111111")
		require.NoError(t, err)
		assert.Equal(t, []uint64{1, 2, 3}, ids)
	})

	t.Run("rejects malformed address locally", func(t *testing.T) {
		gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("gateway should not be called")
		})

		_, err := gateway.FetchPartyAgreements(context.Background(), "nope")
		assert.ErrorIs(t, err, ErrInvalidReference)
	})
}

func TestGatewayListNotifications(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("from"))
		assert.Equal(t, "10", r.URL.Query().Get("to"))
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"notifications": []models.Notification{
				{Type: models.AgreementCreated, AgreementID: 1, IdempotencyKey: "k", SequencePosition: 5},
			},
		})
	})

	notifications, err := gateway.ListNotifications(context.Background(), 5, 10, 100)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, uint64(5), notifications[0].SequencePosition)
}

func TestGatewayVerifySignature(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/signatures/verify", r.URL.Path)

		var check SignatureCheck
		require.NoError(t, json.NewDecoder(r.Body).Decode(&check))
		_ = json.NewEncoder(w).Encode(map[string]bool{"valid": check.Signature == "good"})
	})

	valid, err := gateway.VerifySignature(context.Background(), SignatureCheck{
		Address:   "0x1111111111111111111111111111111111111111",
		Message:   "login",
		Signature: "good",
	})
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = gateway.VerifySignature(context.Background(), SignatureCheck{Signature: "bad"})
	require.NoError(t, err)
	assert.False(t, valid)
}
