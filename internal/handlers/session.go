package handlers

import (
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/William9701/blockchain-hr-platform/internal/repositories/profile"
	"github.com/William9701/blockchain-hr-platform/pkg/ledger"
	"github.com/William9701/blockchain-hr-platform/pkg/models"
)

// SessionHandler implements the wallet challenge login: the caller requests a
// nonce, signs it, and proves control of the address by returning the
// signature. Verification is delegated to the chain gateway.
type SessionHandler struct {
	profiles *profile.Repository
	ledger   ledger.Client
	logger   ectologger.Logger
}

func NewSessionHandler(profiles *profile.Repository, ledgerClient ledger.Client, logger ectologger.Logger) *SessionHandler {
	return &SessionHandler{
		profiles: profiles,
		ledger:   ledgerClient,
		logger:   logger,
	}
}

func (h *SessionHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/v1/session/nonce", h.Nonce)
	e.POST("/api/v1/session/verify", h.Verify)
}

// NonceRequest asks for a fresh login challenge
type NonceRequest struct {
	Address string `json:"address"`
}

// NonceResponse carries the message the wallet must sign
type NonceResponse struct {
	Address string `json:"address"`
	Message string `json:"message"`
}

// Nonce issues a fresh challenge nonce for an address
// POST /api/v1/session/nonce
func (h *SessionHandler) Nonce(c echo.Context) error {
	ctx := c.Request().Context()

	var req NonceRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if !ledger.ValidAddress(req.Address) {
		return BadRequest("invalid address")
	}

	// Unknown addresses get a profile row so the nonce has somewhere to live
	if err := h.profiles.Ensure(ctx, req.Address, models.RoleTalent); err != nil {
		return err
	}

	nonce := uuid.New().String()
	if err := h.profiles.SetSessionNonce(ctx, req.Address, nonce); err != nil {
		return err
	}

	return SuccessResponse(c, NonceResponse{
		Address: req.Address,
		Message: loginMessage(req.Address, nonce),
	})
}

// VerifyRequest proves control of an address
type VerifyRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
}

// Verify checks the signed challenge and rotates the nonce
// POST /api/v1/session/verify
func (h *SessionHandler) Verify(c echo.Context) error {
	ctx := c.Request().Context()

	var req VerifyRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if !ledger.ValidAddress(req.Address) {
		return BadRequest("invalid address")
	}

	stored, err := h.profiles.Get(ctx, req.Address)
	if err != nil {
		return err
	}
	if stored.SessionNonce == "" {
		return Unauthorized("no active challenge for address")
	}

	valid, err := h.ledger.VerifySignature(ctx, ledger.SignatureCheck{
		Address:   req.Address,
		Message:   loginMessage(req.Address, stored.SessionNonce),
		Signature: req.Signature,
	})
	if err != nil {
		return err
	}
	if !valid {
		h.logger.WithContext(ctx).WithFields(map[string]any{"address": req.Address}).Warn("Rejected invalid login signature")
		return Unauthorized("invalid signature")
	}

	// Rotate the nonce so the challenge cannot be replayed
	if err := h.profiles.SetSessionNonce(ctx, req.Address, uuid.New().String()); err != nil {
		return err
	}

	return SuccessResponse(c, map[string]any{
		"address":       req.Address,
		"authenticated": true,
	})
}

func loginMessage(address, nonce string) string {
	return fmt.Sprintf("Sign in to the HR platform\nAddress: %s\nNonce: %s", address, nonce)
}
