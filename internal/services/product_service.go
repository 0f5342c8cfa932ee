package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"assetflow/internal/common"
	"assetflow/internal/models"
	"assetflow/internal/repositories"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProductService manages the item lifecycle
type ProductService interface {
	CreateProduct(ctx context.Context, tenantName, actorID string, req *models.NewProductRequest) (*models.Product, error)
	SoftDeleteProduct(ctx context.Context, tenantName, actorID string, productID uuid.UUID) (*models.Product, error)
	GetProduct(ctx context.Context, tenantName string, productID uuid.UUID) (*models.Product, error)
}

type productService struct {
	tenants    TenantDirectory
	tx         TenantTxRunner
	warehouses WarehouseResolver
	history    HistoryRecorder
	projection ProjectionDispatcher
	notifier   Notifier
	validate   *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewProductService creates a new product service
func NewProductService(deps RelocationDeps) ProductService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Validate == nil {
		deps.Validate = NewValidator()
	}
	return &productService{
		tenants:    deps.Tenants,
		tx:         deps.Tx,
		warehouses: deps.Warehouses,
		history:    deps.History,
		projection: deps.Projection,
		notifier:   deps.Notifier,
		validate:   deps.Validate,
		logger:     deps.Logger,
		now:        time.Now,
	}
}

// CreateProduct stores a new item standalone, or directly in a member's list
// when the location is Employee.
func (s *productService) CreateProduct(ctx context.Context, tenantName, actorID string, req *models.NewProductRequest) (*models.Product, error) {
	if req == nil {
		return nil, common.NewValidation("product", "is required")
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	if strings.TrimSpace(req.Product.Category) == "" {
		return nil, common.NewValidation("category", "is required")
	}

	tenant, err := s.tenant(ctx, tenantName)
	if err != nil {
		return nil, err
	}

	product := req.Product.Clone()
	product.ID = uuid.New()
	product.Location = req.Location
	product.IsDeleted = false
	product.FPShipment = false
	product.ActiveShipment = false
	if product.Condition == "" {
		product.Condition = models.ConditionOptimal
	}
	if !product.Recoverable {
		product.Recoverable = tenant.IsRecoverable(product.Category)
	}
	if product.SerialNumber != nil && strings.TrimSpace(*product.SerialNumber) == "" {
		product.SerialNumber = nil
	}
	now := s.now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now

	var escalation *models.Escalation
	if req.Location == models.LocationFPWarehouse {
		if req.Warehouse != nil {
			ref := *req.Warehouse
			product.Warehouse = &ref
		} else {
			var assignment *models.WarehouseAssignment
			assignment, escalation, err = s.warehouses.Resolve(ctx, tenant.Country, tenant.Name, product.ID, product.Category)
			if err != nil {
				return nil, err
			}
			product.Warehouse = assignment.Ref()
		}
	} else {
		product.Warehouse = nil
	}

	var member *models.Member
	err = s.tx.WithinTx(ctx, tenant.Name, func(store repositories.TenantStore) error {
		if serial := product.Serial(); serial != "" {
			exists, err := store.Products().SerialExists(ctx, serial, product.ID)
			if err != nil {
				return err
			}
			if exists {
				return fmt.Errorf("serial number %s: %w", serial, common.ErrDuplicate)
			}
		}

		if req.Location == models.LocationEmployee {
			member, err = store.Members().GetForUpdate(ctx, *req.MemberID)
			if err != nil {
				return err
			}
			if member == nil || member.IsDeleted {
				return common.NewNotFound("member", req.MemberID.String())
			}
			product.Status = DeriveStatus(models.StatusInput{Location: req.Location, HasAssignee: true, Condition: product.Condition})
			member.Products = append(member.Products, *product)
			if err := store.Members().SaveProducts(ctx, member); err != nil {
				return err
			}
		} else {
			product.Status = DeriveStatus(models.StatusInput{Location: req.Location, Condition: product.Condition})
			if err := store.Products().Insert(ctx, product); err != nil {
				return err
			}
		}

		itemID := product.ID
		return s.history.Record(ctx, store.History(), HistoryEntry{
			ActionType: models.ActionCreate,
			ItemType:   models.ItemProduct,
			ItemID:     &itemID,
			ActorID:    actorID,
			NewData:    product,
		})
	})
	if err != nil {
		return nil, err
	}

	if escalation != nil && s.notifier != nil {
		s.notifier.Notify(ctx, escalationDedupKey(escalation), escalation.Message)
	}
	s.dispatch(ctx, tenant, product, member)
	return product, nil
}

// SoftDeleteProduct deprecates an item. An embedded item is moved out of the
// member into a standalone deleted row so its history keeps a home.
func (s *productService) SoftDeleteProduct(ctx context.Context, tenantName, actorID string, productID uuid.UUID) (*models.Product, error) {
	tenant, err := s.tenant(ctx, tenantName)
	if err != nil {
		return nil, err
	}

	var product *models.Product
	err = s.tx.WithinTx(ctx, tenant.Name, func(store repositories.TenantStore) error {
		loc, err := locateProduct(ctx, store, productID)
		if err != nil {
			return err
		}
		product = loc.product
		if product.IsDeleted {
			return common.NewNotFound("product", productID.String())
		}
		if product.ActiveShipment {
			return &common.ConflictingActiveShipmentError{ProductID: product.ID, SerialNumber: product.Serial()}
		}
		before := product.Clone()

		product.IsDeleted = true
		product.Status = models.StatusDeprecated
		product.UpdatedAt = s.now().UTC()

		if loc.holder != nil {
			loc.holder.RemoveProduct(product.ID)
			if err := store.Members().SaveProducts(ctx, loc.holder); err != nil {
				return err
			}
			if err := store.Products().Insert(ctx, product); err != nil {
				return err
			}
		} else if err := store.Products().Update(ctx, product); err != nil {
			return err
		}

		itemID := product.ID
		return s.history.Record(ctx, store.History(), HistoryEntry{
			ActionType: models.ActionDelete,
			ItemType:   models.ItemProduct,
			ItemID:     &itemID,
			ActorID:    actorID,
			OldData:    before,
			NewData:    product,
		})
	})
	if err != nil {
		return nil, err
	}

	s.dispatch(ctx, tenant, product, nil)
	return product, nil
}

func (s *productService) GetProduct(ctx context.Context, tenantName string, productID uuid.UUID) (*models.Product, error) {
	tenant, err := s.tenant(ctx, tenantName)
	if err != nil {
		return nil, err
	}
	var product *models.Product
	err = s.tx.WithinTx(ctx, tenant.Name, func(store repositories.TenantStore) error {
		loc, err := locateProduct(ctx, store, productID)
		if err != nil {
			return err
		}
		product = loc.product
		return nil
	})
	return product, err
}

func (s *productService) tenant(ctx context.Context, name string) (*models.Tenant, error) {
	return activeTenant(ctx, s.tenants, name)
}

func (s *productService) dispatch(ctx context.Context, tenant *models.Tenant, product *models.Product, member *models.Member) {
	if s.projection == nil {
		return
	}
	snapshot := models.ProductSnapshot{
		TenantID:   tenant.ID,
		TenantName: tenant.Name,
		Product:    *product.Clone(),
	}
	if member != nil {
		snapshot.Member = member.Ref()
	}
	s.projection.Dispatch(ctx, snapshot)
}
