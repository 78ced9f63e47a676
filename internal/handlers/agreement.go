package handlers

import (
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/William9701/blockchain-hr-platform/internal/repositories/agreement"
)

// AgreementHandler serves the mirrored agreement read API
type AgreementHandler struct {
	agreements *agreement.Repository
	logger     ectologger.Logger
}

func NewAgreementHandler(agreements *agreement.Repository, logger ectologger.Logger) *AgreementHandler {
	return &AgreementHandler{
		agreements: agreements,
		logger:     logger,
	}
}

func (h *AgreementHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/v1/agreements/:id", h.Get)
	e.GET("/api/v1/parties/:address/agreements", h.ListByParty)
}

// Get returns one agreement with its milestones
// GET /api/v1/agreements/:id
func (h *AgreementHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseAgreementID(c, "id")
	if err != nil {
		return err
	}

	result, err := h.agreements.Get(ctx, id)
	if err != nil {
		return err
	}
	return SuccessResponse(c, result)
}

// ListByParty returns agreements a wallet participates in
// GET /api/v1/parties/:address/agreements
func (h *AgreementHandler) ListByParty(c echo.Context) error {
	ctx := c.Request().Context()

	address, err := ParseAddress(c, "address")
	if err != nil {
		return err
	}

	limit, offset := ParsePagination(c)
	agreements, err := h.agreements.ListByParty(ctx, address, limit, offset)
	if err != nil {
		return err
	}

	return SuccessResponse(c, map[string]any{
		"agreements": agreements,
		"count":      len(agreements),
	})
}
