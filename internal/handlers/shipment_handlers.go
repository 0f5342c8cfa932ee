package handlers

import (
	"net/http"

	"assetflow/internal/common"
	"assetflow/internal/models"
	"assetflow/internal/services"

	"github.com/labstack/echo/v4"
)

// ShipmentHandlers closes shipments created by relocations.
type ShipmentHandlers struct {
	shipments services.ShipmentService
}

// NewShipmentHandlers creates shipment handlers
func NewShipmentHandlers(shipments services.ShipmentService) *ShipmentHandlers {
	return &ShipmentHandlers{shipments: shipments}
}

// UpdateStatus handles PUT /v1/tenants/:tenant/shipments/:id/status
func (h *ShipmentHandlers) UpdateStatus(c echo.Context) error {
	shipmentID, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendError(c, err)
	}

	var req models.ShipmentStatusRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "body", "invalid request format")
	}

	resolution, err := h.shipments.UpdateStatus(c.Request().Context(), c.Param("tenant"), actorID(c), shipmentID, &req)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, resolution)
}
