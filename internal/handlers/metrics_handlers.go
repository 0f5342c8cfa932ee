package handlers

import (
	"context"
	"net/http"

	"assetflow/internal/common"
	"assetflow/internal/models"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// MetricsReader is the read side of the warehouse occupancy projection.
type MetricsReader interface {
	GetWarehouseMetrics(ctx context.Context, warehouseID uuid.UUID) (*models.WarehouseMetrics, error)
	GetCountryMetrics(ctx context.Context, countryCode string) (*models.CountryMetrics, error)
	GetGlobalOverview(ctx context.Context) (*models.GlobalOverview, error)
}

// MetricsHandlers serves the warehouse read projections
type MetricsHandlers struct {
	metrics MetricsReader
}

// NewMetricsHandlers creates metrics handlers
func NewMetricsHandlers(metrics MetricsReader) *MetricsHandlers {
	return &MetricsHandlers{metrics: metrics}
}

// GetWarehouseMetrics handles GET /v1/metrics/warehouses/:id
func (h *MetricsHandlers) GetWarehouseMetrics(c echo.Context) error {
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendError(c, err)
	}

	metrics, err := h.metrics.GetWarehouseMetrics(c.Request().Context(), id)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, metrics)
}

// GetCountryMetrics handles GET /v1/metrics/countries/:code
func (h *MetricsHandlers) GetCountryMetrics(c echo.Context) error {
	metrics, err := h.metrics.GetCountryMetrics(c.Request().Context(), c.Param("code"))
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, metrics)
}

// GetOverview handles GET /v1/metrics/overview
func (h *MetricsHandlers) GetOverview(c echo.Context) error {
	overview, err := h.metrics.GetGlobalOverview(c.Request().Context())
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, overview)
}
