package handlers

import (
	"net/http"

	"assetflow/internal/common"
	"assetflow/internal/services"

	"github.com/labstack/echo/v4"
)

// TenantHandlers handles tenant-related HTTP requests
type TenantHandlers struct {
	tenantService services.TenantService
}

// NewTenantHandlers creates a new tenant handlers instance
func NewTenantHandlers(tenantService services.TenantService) *TenantHandlers {
	return &TenantHandlers{tenantService: tenantService}
}

// Onboard registers the tenant and provisions its database.
func (h *TenantHandlers) Onboard(c echo.Context) error {
	var req services.OnboardTenantRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "body", "invalid request format")
	}

	tenant, err := h.tenantService.Onboard(c.Request().Context(), &req)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusCreated, tenant)
}

// GetTenant handles GET /v1/tenants/:tenant
func (h *TenantHandlers) GetTenant(c echo.Context) error {
	tenant, err := h.tenantService.GetTenantByName(c.Request().Context(), c.Param("tenant"))
	if err != nil {
		return common.SendError(c, err)
	}
	if tenant == nil {
		return common.SendError(c, common.NewNotFound("tenant", c.Param("tenant")))
	}
	return c.JSON(http.StatusOK, tenant)
}

// UpdateRecoverableConfig replaces the tenant's category -> recoverable map.
func (h *TenantHandlers) UpdateRecoverableConfig(c echo.Context) error {
	var req struct {
		RecoverableConfig map[string]bool `json:"recoverable_config"`
	}
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "body", "invalid request format")
	}

	tenant, err := h.tenantService.UpdateRecoverableConfig(c.Request().Context(), c.Param("tenant"), req.RecoverableConfig)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, tenant)
}

// Deactivate handles DELETE /v1/tenants/:tenant
func (h *TenantHandlers) Deactivate(c echo.Context) error {
	if err := h.tenantService.Deactivate(c.Request().Context(), c.Param("tenant")); err != nil {
		return common.SendError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
