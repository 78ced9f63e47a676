package handlers

import (
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/William9701/blockchain-hr-platform/internal/repositories/activity"
)

// ActivityHandler serves the activity log read API
type ActivityHandler struct {
	activities *activity.Repository
	logger     ectologger.Logger
}

func NewActivityHandler(activities *activity.Repository, logger ectologger.Logger) *ActivityHandler {
	return &ActivityHandler{
		activities: activities,
		logger:     logger,
	}
}

func (h *ActivityHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/v1/agreements/:id/activity", h.ListByAgreement)
	e.GET("/api/v1/parties/:address/activity", h.ListByParty)
}

// ListByAgreement returns the activity history of one agreement
// GET /api/v1/agreements/:id/activity
func (h *ActivityHandler) ListByAgreement(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseAgreementID(c, "id")
	if err != nil {
		return err
	}

	limit, offset := ParsePagination(c)
	records, err := h.activities.ListByAgreement(ctx, id, limit, offset)
	if err != nil {
		return err
	}

	return SuccessResponse(c, map[string]any{
		"activity": records,
		"count":    len(records),
	})
}

// ListByParty returns activity involving one wallet
// GET /api/v1/parties/:address/activity
func (h *ActivityHandler) ListByParty(c echo.Context) error {
	ctx := c.Request().Context()

	address, err := ParseAddress(c, "address")
	if err != nil {
		return err
	}

	limit, offset := ParsePagination(c)
	records, err := h.activities.ListByParty(ctx, address, limit, offset)
	if err != nil {
		return err
	}

	return SuccessResponse(c, map[string]any{
		"activity": records,
		"count":    len(records),
	})
}
