package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/pkg/errors"

	"github.com/William9701/blockchain-hr-platform/pkg/httpclient"
	"github.com/William9701/blockchain-hr-platform/pkg/metrics"
	"github.com/William9701/blockchain-hr-platform/pkg/models"
	"github.com/William9701/blockchain-hr-platform/pkg/tracing"
)

// Gateway is the HTTP implementation of Client against the chain gateway
// service that fronts the employment and credential contracts.
type Gateway struct {
	baseURL string
	client  *httpclient.Client
	logger  ectologger.Logger
}

type GatewayConfig struct {
	BaseURL string
	Timeout time.Duration
}

func NewGateway(cfg GatewayConfig, client *httpclient.Client, logger ectologger.Logger) *Gateway {
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	return &Gateway{
		baseURL: cfg.BaseURL,
		client:  client,
		logger:  logger,
	}
}

func (g *Gateway) FetchAgreement(ctx context.Context, agreementID uint64) (*AgreementState, error) {
	ctx, span := tracing.StartSpan(ctx, "ledger.Gateway.FetchAgreement")
	defer span.End()

	var state AgreementState
	endpoint := fmt.Sprintf("%s/v1/agreements/%d", g.baseURL, agreementID)
	if err := g.getJSON(ctx, "fetch_agreement", endpoint, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (g *Gateway) FetchPartyAgreements(ctx context.Context, address string) ([]uint64, error) {
	ctx, span := tracing.StartSpan(ctx, "ledger.Gateway.FetchPartyAgreements")
	defer span.End()

	if !ValidAddress(address) {
		return nil, errors.Wrapf(ErrInvalidReference, "malformed address %q", address)
	}

	var result struct {
		AgreementIDs []uint64 `json:"agreement_ids"`
	}
	endpoint := fmt.Sprintf("%s/v1/parties/%s/agreements", g.baseURL, url.PathEscape(address))
	if err := g.getJSON(ctx, "fetch_party_agreements", endpoint, &result); err != nil {
		return nil, err
	}
	return result.AgreementIDs, nil
}

func (g *Gateway) ListNotifications(ctx context.Context, from, to uint64, limit int) ([]models.Notification, error) {
	ctx, span := tracing.StartSpan(ctx, "ledger.Gateway.ListNotifications")
	defer span.End()

	query := url.Values{}
	query.Set("from", strconv.FormatUint(from, 10))
	query.Set("to", strconv.FormatUint(to, 10))
	query.Set("limit", strconv.Itoa(limit))

	var result struct {
		Notifications []models.Notification `json:"notifications"`
	}
	endpoint := fmt.Sprintf("%s/v1/notifications?%s", g.baseURL, query.Encode())
	if err := g.getJSON(ctx, "list_notifications", endpoint, &result); err != nil {
		return nil, err
	}
	return result.Notifications, nil
}

func (g *Gateway) VerifySignature(ctx context.Context, check SignatureCheck) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "ledger.Gateway.VerifySignature")
	defer span.End()

	start := time.Now()
	resp, err := g.client.PostJSON(ctx, g.baseURL+"/v1/signatures/verify", check, nil)
	if err != nil {
		metrics.RecordLedgerRequest("verify_signature", "error", time.Since(start).Seconds())
		return false, errors.Wrap(ErrUnreachableSource, err.Error())
	}
	metrics.RecordLedgerRequest("verify_signature", strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		return false, g.statusError(resp.StatusCode, "verify_signature")
	}

	var result struct {
		Valid bool `json:"valid"`
	}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return false, errors.Wrap(err, "failed to decode verification response")
	}
	return result.Valid, nil
}

func (g *Gateway) getJSON(ctx context.Context, operation, endpoint string, dest any) error {
	start := time.Now()
	resp, err := g.client.Get(ctx, endpoint, nil)
	if err != nil {
		metrics.RecordLedgerRequest(operation, "error", time.Since(start).Seconds())
		g.logger.WithContext(ctx).WithError(err).Errorf("ledger gateway %s failed", operation)
		return errors.Wrap(ErrUnreachableSource, err.Error())
	}
	metrics.RecordLedgerRequest(operation, strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		return g.statusError(resp.StatusCode, operation)
	}

	if err := json.Unmarshal(resp.Body, dest); err != nil {
		return errors.Wrapf(err, "failed to decode %s response", operation)
	}
	return nil
}

func (g *Gateway) statusError(statusCode int, operation string) error {
	switch {
	case statusCode == http.StatusNotFound:
		return errors.Wrapf(ErrInvalidReference, "%s returned 404", operation)
	case statusCode >= http.StatusInternalServerError || statusCode == http.StatusTooManyRequests:
		return errors.Wrapf(ErrUnreachableSource, "%s returned %d", operation, statusCode)
	default:
		return errors.Errorf("%s returned unexpected status %d", operation, statusCode)
	}
}
