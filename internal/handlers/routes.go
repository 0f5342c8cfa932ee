package handlers

import (
	"net/http"

	"assetflow/internal/middleware"

	"github.com/labstack/echo/v4"
)

// Router bundles every handler group mounted on the server.
type Router struct {
	Relocations *RelocationHandlers
	Shipments   *ShipmentHandlers
	Products    *ProductHandlers
	Warehouses  *WarehouseHandlers
	Metrics     *MetricsHandlers
	Tenants     *TenantHandlers
	Health      *HealthHandlers
	Jobs        *JobHandlers
	// Prometheus serves /metrics; omitted when nil.
	Prometheus http.Handler
}

// Register mounts every route on e
func (r *Router) Register(e *echo.Echo, versions *middleware.VersionMiddleware) {
	if r.Health != nil {
		e.GET("/health", r.Health.HealthCheck)
		e.GET("/health/live", r.Health.LivenessCheck)
	}
	if r.Prometheus != nil {
		e.GET("/metrics", echo.WrapHandler(r.Prometheus))
	}

	v1 := versions.VersionRoute(e, "v1")

	if r.Tenants != nil {
		v1.POST("/tenants", r.Tenants.Onboard)
		v1.GET("/tenants/:tenant", r.Tenants.GetTenant)
		v1.PUT("/tenants/:tenant/recoverable-config", r.Tenants.UpdateRecoverableConfig)
		v1.DELETE("/tenants/:tenant", r.Tenants.Deactivate)
	}

	if r.Products != nil {
		v1.POST("/tenants/:tenant/products", r.Products.CreateProduct)
		v1.GET("/tenants/:tenant/products/:id", r.Products.GetProduct)
		v1.DELETE("/tenants/:tenant/products/:id", r.Products.DeleteProduct)
	}

	if r.Relocations != nil {
		v1.POST("/tenants/:tenant/products/:id/relocate", r.Relocations.Relocate)
		v1.POST("/tenants/:tenant/products/relocate/bulk", r.Relocations.BulkRelocate)
		v1.POST("/status/preview", r.Relocations.PreviewStatus)
	}

	if r.Shipments != nil {
		v1.PUT("/tenants/:tenant/shipments/:id/status", r.Shipments.UpdateStatus)
	}

	if r.Warehouses != nil {
		v1.GET("/warehouses/resolve", r.Warehouses.ResolveWarehouse)
		v1.POST("/warehouses", r.Warehouses.CreateWarehouse)
		v1.PUT("/warehouses/:id/activate", r.Warehouses.ActivateWarehouse)
		v1.DELETE("/warehouses/:id", r.Warehouses.DeleteWarehouse)
	}

	if r.Metrics != nil {
		v1.GET("/metrics/warehouses/:id", r.Metrics.GetWarehouseMetrics)
		v1.GET("/metrics/countries/:code", r.Metrics.GetCountryMetrics)
		v1.GET("/metrics/overview", r.Metrics.GetOverview)
	}

	if r.Jobs != nil {
		v1.GET("/jobs", r.Jobs.ListJobs)
		v1.POST("/jobs/:name/run", r.Jobs.TriggerJob)
	}
}
