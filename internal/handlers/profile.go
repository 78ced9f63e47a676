package handlers

import (
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/William9701/blockchain-hr-platform/internal/repositories/profile"
	appctx "github.com/William9701/blockchain-hr-platform/pkg/context"
)

// ProfileHandler serves the party aggregate read API
type ProfileHandler struct {
	profiles *profile.Repository
	logger   ectologger.Logger
}

func NewProfileHandler(profiles *profile.Repository, logger ectologger.Logger) *ProfileHandler {
	return &ProfileHandler{
		profiles: profiles,
		logger:   logger,
	}
}

func (h *ProfileHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/v1/parties/:address", h.Get)
	e.PUT("/api/v1/parties/:address", h.UpdateDetails)
}

// Get returns the aggregate profile of one wallet
// GET /api/v1/parties/:address
func (h *ProfileHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	address, err := ParseAddress(c, "address")
	if err != nil {
		return err
	}

	result, err := h.profiles.Get(ctx, address)
	if err != nil {
		return err
	}
	return SuccessResponse(c, result)
}

// UpdateDetailsRequest carries the operator-editable display fields
type UpdateDetailsRequest struct {
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio"`
}

// UpdateDetails sets the display fields of the caller's own profile
// PUT /api/v1/parties/:address
func (h *ProfileHandler) UpdateDetails(c echo.Context) error {
	ctx := c.Request().Context()

	address, err := ParseAddress(c, "address")
	if err != nil {
		return err
	}

	// Only the authenticated wallet may edit its own profile
	caller := appctx.GetPartyAddress(ctx)
	if caller == "" || caller != address {
		return Unauthorized("profile can only be edited by its owner")
	}

	var req UpdateDetailsRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}

	if err := h.profiles.UpdateDetails(ctx, address, req.DisplayName, req.Bio); err != nil {
		return err
	}

	result, err := h.profiles.Get(ctx, address)
	if err != nil {
		return err
	}
	return SuccessResponse(c, result)
}
