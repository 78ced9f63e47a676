package handlers

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/William9701/blockchain-hr-platform/internal/repositories/quarantine"
	"github.com/William9701/blockchain-hr-platform/pkg/models"
)

// QuarantineHandler serves the operator quarantine API
type QuarantineHandler struct {
	quarantines *quarantine.Repository
	logger      ectologger.Logger
}

func NewQuarantineHandler(quarantines *quarantine.Repository, logger ectologger.Logger) *QuarantineHandler {
	return &QuarantineHandler{
		quarantines: quarantines,
		logger:      logger,
	}
}

func (h *QuarantineHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/v1/quarantine", h.List)
	e.POST("/api/v1/quarantine/:id/resolve", h.Resolve)
}

// QuarantineListResponse represents the unresolved quarantine entries
type QuarantineListResponse struct {
	Entries []models.QuarantinedNotification `json:"entries"`
	Count   int                              `json:"count"`
}

// List returns unresolved quarantine entries, oldest first
// GET /api/v1/quarantine
func (h *QuarantineHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	limit, offset := ParsePagination(c)
	entries, err := h.quarantines.ListUnresolved(ctx, limit, offset)
	if err != nil {
		return err
	}

	return SuccessResponse(c, QuarantineListResponse{
		Entries: entries,
		Count:   len(entries),
	})
}

// Resolve marks a quarantine entry resolved, releasing the watermark of the
// affected agreement
// POST /api/v1/quarantine/:id/resolve
func (h *QuarantineHandler) Resolve(c echo.Context) error {
	ctx := c.Request().Context()

	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid id: must be a valid UUID")
	}

	entry, err := h.quarantines.Resolve(ctx, id)
	if err != nil {
		return err
	}

	h.logger.WithContext(ctx).WithFields(map[string]any{
		"quarantine_id": id,
		"agreement_id":  entry.AgreementID,
	}).Info("Quarantine entry resolved")

	return SuccessResponse(c, entry)
}
