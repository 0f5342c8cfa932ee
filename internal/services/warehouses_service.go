package services

import (
	"context"
	"fmt"
	"strings"

	"assetflow/internal/common"
	"assetflow/internal/models"
	"assetflow/internal/repositories"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WarehouseResolver picks the partner warehouse that receives an item.
type WarehouseResolver interface {
	Resolve(ctx context.Context, originCountry, tenantName string, productID uuid.UUID, category string) (*models.WarehouseAssignment, *models.Escalation, error)
}

// WarehouseService resolves and administers partner warehouses
type WarehouseService interface {
	WarehouseResolver
	CreateWarehouse(ctx context.Context, warehouse *models.Warehouse) (*models.Warehouse, error)
	ActivateWarehouse(ctx context.Context, id uuid.UUID) (*models.Warehouse, error)
	SoftDeleteWarehouse(ctx context.Context, id uuid.UUID) error
}

type warehouseService struct {
	shared   repositories.SharedTxRunner
	validate *validator.Validate
	logger   *zap.Logger
}

// NewWarehouseService creates a new warehouse service
func NewWarehouseService(shared repositories.SharedTxRunner, validate *validator.Validate, logger *zap.Logger) WarehouseService {
	return &warehouseService{
		shared:   shared,
		validate: validate,
		logger:   logger,
	}
}

// Resolve never creates anything. Gaps in the registry come back as an
// escalation for an operator rather than as an error.
func (s *warehouseService) Resolve(ctx context.Context, originCountry, tenantName string, productID uuid.UUID, category string) (*models.WarehouseAssignment, *models.Escalation, error) {
	code := strings.ToUpper(strings.TrimSpace(originCountry))

	escalate := func(reason models.EscalationReason, detail string) *models.Escalation {
		return &models.Escalation{
			Reason:      reason,
			CountryCode: code,
			TenantName:  tenantName,
			ProductID:   productID,
			Category:    category,
			Message: fmt.Sprintf("Tenant %s needs a partner warehouse in %q for product %s (%s): %s.",
				tenantName, code, productID, category, detail),
		}
	}

	if code == "" {
		return nil, escalate(models.EscalationUnknownCountry, "the origin country is unknown"), nil
	}

	country, err := s.shared.Warehouses().GetCountry(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve warehouse for %s: %w", code, err)
	}
	if country == nil {
		return nil, escalate(models.EscalationUnknownCountry, "the country is not in the warehouse registry"), nil
	}

	live := 0
	for i := range country.Warehouses {
		if !country.Warehouses[i].IsDeleted {
			live++
		}
	}
	if live == 0 {
		return nil, escalate(models.EscalationNoWarehouse, "the country has no warehouse"), nil
	}

	active := country.ActiveWarehouse()
	if active == nil {
		return nil, escalate(models.EscalationNoActive, "the country has no active warehouse"), nil
	}

	return &models.WarehouseAssignment{
		WarehouseID:   active.ID,
		WarehouseName: active.Name,
		CountryCode:   country.CountryCode,
	}, nil, nil
}

// CreateWarehouse registers an inactive warehouse in a known country.
func (s *warehouseService) CreateWarehouse(ctx context.Context, warehouse *models.Warehouse) (*models.Warehouse, error) {
	warehouse.CountryCode = strings.ToUpper(strings.TrimSpace(warehouse.CountryCode))
	if err := s.validate.Struct(warehouse); err != nil {
		return nil, validationError(err)
	}

	err := s.shared.WithinSharedTx(ctx, func(store repositories.SharedStore) error {
		country, err := store.Warehouses().GetCountry(ctx, warehouse.CountryCode)
		if err != nil {
			return err
		}
		if country == nil {
			return common.NewValidation("country_code", fmt.Sprintf("unknown country %q", warehouse.CountryCode))
		}

		warehouse.ID = uuid.New()
		warehouse.IsActive = false
		warehouse.IsDeleted = false
		if warehouse.PartnerType == "" {
			warehouse.PartnerType = "partner"
		}
		return store.Warehouses().CreateWarehouse(ctx, warehouse)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("warehouse created",
		zap.String("warehouse_id", warehouse.ID.String()),
		zap.String("country", warehouse.CountryCode),
	)
	return warehouse, nil
}

// ActivateWarehouse makes id the only active warehouse of its country.
func (s *warehouseService) ActivateWarehouse(ctx context.Context, id uuid.UUID) (*models.Warehouse, error) {
	var activated *models.Warehouse
	err := s.shared.WithinSharedTx(ctx, func(store repositories.SharedStore) error {
		w, err := store.Warehouses().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if w == nil || w.IsDeleted {
			return common.NewNotFound("warehouse", id.String())
		}
		if _, err := store.Warehouses().Activate(ctx, w.CountryCode, w.ID); err != nil {
			return err
		}
		w.IsActive = true
		activated = w
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("warehouse activated",
		zap.String("warehouse_id", id.String()),
		zap.String("country", activated.CountryCode),
	)
	return activated, nil
}

func (s *warehouseService) SoftDeleteWarehouse(ctx context.Context, id uuid.UUID) error {
	deleted, err := s.shared.Warehouses().SoftDelete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return common.NewNotFound("warehouse", id.String())
	}
	s.logger.Info("warehouse deleted", zap.String("warehouse_id", id.String()))
	return nil
}
