package handlers

import (
	"net/http"

	"assetflow/internal/common"
	"assetflow/internal/models"
	"assetflow/internal/services"

	"github.com/labstack/echo/v4"
)

// ProductHandlers handles HTTP requests for products
type ProductHandlers struct {
	productService services.ProductService
}

// NewProductHandlers creates a new product handlers instance
func NewProductHandlers(productService services.ProductService) *ProductHandlers {
	return &ProductHandlers{productService: productService}
}

// CreateProduct handles POST /v1/tenants/:tenant/products
func (h *ProductHandlers) CreateProduct(c echo.Context) error {
	var req models.NewProductRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "body", "invalid request format")
	}

	product, err := h.productService.CreateProduct(c.Request().Context(), c.Param("tenant"), actorID(c), &req)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusCreated, product)
}

// GetProduct handles GET /v1/tenants/:tenant/products/:id
func (h *ProductHandlers) GetProduct(c echo.Context) error {
	productID, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendError(c, err)
	}

	product, err := h.productService.GetProduct(c.Request().Context(), c.Param("tenant"), productID)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, product)
}

// DeleteProduct soft-deletes; shipped items keep their history.
func (h *ProductHandlers) DeleteProduct(c echo.Context) error {
	productID, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendError(c, err)
	}

	product, err := h.productService.SoftDeleteProduct(c.Request().Context(), c.Param("tenant"), actorID(c), productID)
	if err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, product)
}
