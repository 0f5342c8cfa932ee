package handlers

import (
	"net/http"
	"strings"

	"assetflow/internal/common"
	"assetflow/internal/models"
	"assetflow/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// WarehouseHandlers handles warehouse-related HTTP requests
type WarehouseHandlers struct {
	warehouseService services.WarehouseService
}

// NewWarehouseHandlers creates a new warehouse handlers instance
func NewWarehouseHandlers(warehouseService services.WarehouseService) *WarehouseHandlers {
	return &WarehouseHandlers{warehouseService: warehouseService}
}

// ResolveWarehouseResponse carries either an assignment or an escalation.
type ResolveWarehouseResponse struct {
	Assignment *models.WarehouseAssignment `json:"assignment,omitempty"`
	Escalation *models.Escalation          `json:"escalation,omitempty"`
}

// ResolveWarehouse handles GET /v1/warehouses/resolve?country=..&tenant=..
func (h *WarehouseHandlers) ResolveWarehouse(c echo.Context) error {
	productID := uuid.Nil
	if raw := strings.TrimSpace(c.QueryParam("product_id")); raw != "" {
		id, err := common.ValidateUUID(raw, "product_id")
		if err != nil {
			return common.SendError(c, err)
		}
		productID = id
	}

	assignment, escalation, err := h.warehouseService.Resolve(
		c.Request().Context(),
		c.QueryParam("country"),
		c.QueryParam("tenant"),
		productID,
		c.QueryParam("category"),
	)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, ResolveWarehouseResponse{Assignment: assignment, Escalation: escalation})
}

// CreateWarehouse handles creating a new warehouse
func (h *WarehouseHandlers) CreateWarehouse(c echo.Context) error {
	var req models.Warehouse
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "body", "invalid request format")
	}

	warehouse, err := h.warehouseService.CreateWarehouse(c.Request().Context(), &req)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusCreated, warehouse)
}

// ActivateWarehouse makes the warehouse the only active one of its country.
func (h *WarehouseHandlers) ActivateWarehouse(c echo.Context) error {
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendError(c, err)
	}

	warehouse, err := h.warehouseService.ActivateWarehouse(c.Request().Context(), id)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, warehouse)
}

// DeleteWarehouse handles DELETE /v1/warehouses/:id
func (h *WarehouseHandlers) DeleteWarehouse(c echo.Context) error {
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendError(c, err)
	}

	if err := h.warehouseService.SoftDeleteWarehouse(c.Request().Context(), id); err != nil {
		return common.SendError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
