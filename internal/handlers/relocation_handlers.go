package handlers

import (
	"net/http"
	"strings"

	"assetflow/internal/common"
	"assetflow/internal/middleware"
	"assetflow/internal/models"
	"assetflow/internal/services"

	"github.com/labstack/echo/v4"
)

// RelocationHandlers exposes item moves within one tenant.
type RelocationHandlers struct {
	relocations services.RelocationService
}

// NewRelocationHandlers creates relocation handlers
func NewRelocationHandlers(relocations services.RelocationService) *RelocationHandlers {
	return &RelocationHandlers{relocations: relocations}
}

// actorID prefers the actor carried by the audit middleware and falls back to
// the raw header.
func actorID(c echo.Context) string {
	if actor, ok := middleware.ActorFromContext(c.Request().Context()); ok {
		return actor
	}
	return strings.TrimSpace(c.Request().Header.Get(common.ActorIDHeader))
}

// Relocate handles POST /v1/tenants/:tenant/products/:id/relocate
func (h *RelocationHandlers) Relocate(c echo.Context) error {
	productID, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendError(c, err)
	}

	var req models.RelocationRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "body", "invalid request format")
	}
	req.ProductID = productID

	result, err := h.relocations.Relocate(c.Request().Context(), c.Param("tenant"), actorID(c), &req)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// BulkRelocate handles POST /v1/tenants/:tenant/products/relocate/bulk
func (h *RelocationHandlers) BulkRelocate(c echo.Context) error {
	var req models.BulkRelocationRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "body", "invalid request format")
	}

	result, err := h.relocations.BulkRelocate(c.Request().Context(), c.Param("tenant"), actorID(c), &req)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// PreviewStatus derives the status an item would get without touching any
// tenant data.
func (h *RelocationHandlers) PreviewStatus(c echo.Context) error {
	var in models.StatusInput
	if err := c.Bind(&in); err != nil {
		return common.SendValidationError(c, "body", "invalid request format")
	}

	status, err := h.relocations.PreviewStatus(in)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]models.ProductStatus{"status": status})
}
