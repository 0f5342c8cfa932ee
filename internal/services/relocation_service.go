package services

import (
	"context"
	"fmt"
	"time"

	"assetflow/internal/common"
	"assetflow/internal/models"
	"assetflow/internal/repositories"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// TenantTxRunner opens transactions on a tenant's database.
type TenantTxRunner interface {
	WithinTx(ctx context.Context, tenantName string, fn func(store repositories.TenantStore) error) error
}

// ProjectionDispatcher hands committed item states to the global projector.
type ProjectionDispatcher interface {
	Dispatch(ctx context.Context, snapshots ...models.ProductSnapshot)
}

// RelocationService moves items between locations of one tenant
type RelocationService interface {
	Relocate(ctx context.Context, tenantName, actorID string, req *models.RelocationRequest) (*models.RelocationResult, error)
	BulkRelocate(ctx context.Context, tenantName, actorID string, req *models.BulkRelocationRequest) (*models.BulkRelocationResult, error)
	PreviewStatus(in models.StatusInput) (models.ProductStatus, error)
}

// RelocationDeps wires the collaborators of the relocation engine.
type RelocationDeps struct {
	Tenants    TenantDirectory
	Tx         TenantTxRunner
	Warehouses WarehouseResolver
	History    HistoryRecorder
	Notifier   Notifier
	Projection ProjectionDispatcher
	Validate   *validator.Validate
	Logger     *zap.Logger
	Registerer prometheus.Registerer
}

type relocationService struct {
	RelocationDeps
	relocations *prometheus.CounterVec
	now         func() time.Time
}

// NewRelocationService creates a new relocation service
func NewRelocationService(deps RelocationDeps) RelocationService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Validate == nil {
		deps.Validate = NewValidator()
	}
	s := &relocationService{
		RelocationDeps: deps,
		relocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assetflow",
			Subsystem: "relocation",
			Name:      "completed_total",
			Help:      "Committed relocations by action type.",
		}, []string{"action_type"}),
		now: time.Now,
	}
	if deps.Registerer != nil {
		deps.Registerer.MustRegister(s.relocations)
	}
	return s
}

// located is the resolved storage shape of an item: a standalone row when
// holder is nil, an entry of holder's products otherwise.
type located struct {
	product *models.Product
	holder  *models.Member
}

func locateProduct(ctx context.Context, store repositories.TenantStore, productID uuid.UUID) (*located, error) {
	product, err := store.Products().GetForUpdate(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product != nil {
		return &located{product: product}, nil
	}

	holder, err := store.Members().FindHolderForUpdate(ctx, productID)
	if err != nil {
		return nil, err
	}
	if holder == nil {
		return nil, common.NewNotFound("product", productID.String())
	}
	idx := holder.ProductIndex(productID)
	if idx < 0 {
		return nil, common.NewNotFound("product", productID.String())
	}
	return &located{product: holder.Products[idx].Clone(), holder: holder}, nil
}

// relocationOutcome is what one applied relocation leaves behind for the
// post-commit steps.
type relocationOutcome struct {
	action   models.ActionType
	result   *models.RelocationResult
	snapshot models.ProductSnapshot
}

func (s *relocationService) Relocate(ctx context.Context, tenantName, actorID string, req *models.RelocationRequest) (*models.RelocationResult, error) {
	if err := s.Validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	tenant, err := s.activeTenant(ctx, tenantName)
	if err != nil {
		return nil, err
	}

	var outcome *relocationOutcome
	err = s.Tx.WithinTx(ctx, tenant.Name, func(store repositories.TenantStore) error {
		var err error
		outcome, err = s.apply(ctx, store, tenant, actorID, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, []*relocationOutcome{outcome})
	return outcome.result, nil
}

// BulkRelocate applies every relocation in one tenant transaction. The first
// failing item aborts the whole batch.
func (s *relocationService) BulkRelocate(ctx context.Context, tenantName, actorID string, req *models.BulkRelocationRequest) (*models.BulkRelocationResult, error) {
	if req == nil || len(req.Relocations) == 0 {
		return nil, common.NewValidation("relocations", "at least one relocation is required")
	}
	seen := make(map[uuid.UUID]int, len(req.Relocations))
	for i := range req.Relocations {
		item := &req.Relocations[i]
		if err := s.Validate.Struct(item); err != nil {
			return nil, &common.BatchError{Index: i, ProductID: item.ProductID, Err: validationError(err)}
		}
		if first, dup := seen[item.ProductID]; dup {
			return nil, &common.BatchError{Index: i, ProductID: item.ProductID,
				Err: common.NewValidation("product_id", fmt.Sprintf("duplicates item %d of the batch", first))}
		}
		seen[item.ProductID] = i
	}

	tenant, err := s.activeTenant(ctx, tenantName)
	if err != nil {
		return nil, err
	}

	result := &models.BulkRelocationResult{
		OperationID: uuid.NewString(),
		TotalItems:  len(req.Relocations),
		StartTime:   s.now().UTC(),
	}

	var outcomes []*relocationOutcome
	err = s.Tx.WithinTx(ctx, tenant.Name, func(store repositories.TenantStore) error {
		outcomes = outcomes[:0]
		for i := range req.Relocations {
			item := &req.Relocations[i]
			outcome, err := s.apply(ctx, store, tenant, actorID, item)
			if err != nil {
				return &common.BatchError{Index: i, ProductID: item.ProductID, Err: err}
			}
			outcomes = append(outcomes, outcome)
		}
		return nil
	})
	if err != nil {
		s.Logger.Warn("bulk relocation aborted",
			zap.String("tenant", tenant.Name),
			zap.String("operation_id", result.OperationID),
			zap.Error(err),
		)
		return nil, err
	}

	s.afterCommit(ctx, outcomes)

	result.Results = make([]models.RelocationResult, 0, len(outcomes))
	for _, o := range outcomes {
		result.Results = append(result.Results, *o.result)
	}
	result.CompletionTime = s.now().UTC()
	return result, nil
}

func (s *relocationService) PreviewStatus(in models.StatusInput) (models.ProductStatus, error) {
	if err := s.Validate.Struct(in); err != nil {
		return "", validationError(err)
	}
	return DeriveStatus(in), nil
}

func (s *relocationService) activeTenant(ctx context.Context, name string) (*models.Tenant, error) {
	return activeTenant(ctx, s.Tenants, name)
}

// activeTenant resolves name and refuses deactivated tenants.
func activeTenant(ctx context.Context, dir TenantDirectory, name string) (*models.Tenant, error) {
	tenant, err := dir.GetTenantByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, common.NewNotFound("tenant", name)
	}
	if !tenant.IsActive {
		return nil, common.NewValidation("tenant", fmt.Sprintf("tenant %q is deactivated", name))
	}
	return tenant, nil
}

// apply runs one relocation against store. Nothing it writes is visible
// until the surrounding transaction commits.
func (s *relocationService) apply(ctx context.Context, store repositories.TenantStore, tenant *models.Tenant, actorID string, req *models.RelocationRequest) (*relocationOutcome, error) {
	loc, err := locateProduct(ctx, store, req.ProductID)
	if err != nil {
		return nil, err
	}
	product := loc.product
	if product.IsDeleted {
		return nil, common.NewNotFound("product", product.ID.String())
	}
	if product.ActiveShipment {
		conflict := &common.ConflictingActiveShipmentError{ProductID: product.ID, SerialNumber: product.Serial()}
		active, err := store.Shipments().ActiveForProduct(ctx, product.ID)
		if err != nil {
			return nil, err
		}
		if active != nil {
			conflict.ShipmentID = &active.ID
		}
		return nil, conflict
	}
	before := product.Clone()

	var target *models.Member
	if req.TargetLocation == models.LocationEmployee {
		if loc.holder != nil && loc.holder.ID == *req.TargetMemberID {
			target = loc.holder
		} else {
			target, err = store.Members().GetForUpdate(ctx, *req.TargetMemberID)
			if err != nil {
				return nil, err
			}
			if target == nil || target.IsDeleted {
				return nil, common.NewNotFound("member", req.TargetMemberID.String())
			}
		}
	}

	origin := s.currentParty(tenant, loc)
	result := &models.RelocationResult{}

	var destination models.Party
	switch req.TargetLocation {
	case models.LocationEmployee:
		destination = models.MemberParty(target)
		product.Warehouse = nil
	case models.LocationOurOffice:
		destination = models.OfficeParty(tenant)
		product.Warehouse = nil
	case models.LocationFPWarehouse:
		country := req.OriginCountry
		if country == "" {
			country = origin.Country
		}
		assignment, escalation, err := s.Warehouses.Resolve(ctx, country, tenant.Name, product.ID, product.Category)
		if err != nil {
			return nil, err
		}
		result.Escalation = escalation
		product.Warehouse = assignment.Ref()
		destination = models.WarehouseParty(product.Warehouse)
	}

	if req.Condition != nil {
		product.Condition = *req.Condition
	}
	if req.Price != nil {
		price := *req.Price
		product.Price = &price
	}

	shipping := req.FPShipment && product.Condition != models.ConditionUnusable
	missing := MissingAddressFields(destination)
	if shipping && len(missing) > 0 && req.RequireCompleteAddress {
		return nil, &common.MissingAddressError{Party: describeParty(destination), Fields: missing}
	}

	product.Status = DeriveStatus(models.StatusInput{
		FPShipment:      req.FPShipment,
		Location:        req.TargetLocation,
		HasAssignee:     target != nil,
		Condition:       product.Condition,
		AddressComplete: len(missing) == 0,
	})
	product.Location = req.TargetLocation
	product.FPShipment = shipping
	product.UpdatedAt = s.now().UTC()

	if shipping {
		shipment := &models.Shipment{
			ID:            uuid.New(),
			Origin:        origin,
			Destination:   destination,
			ProductIDs:    []uuid.UUID{product.ID},
			Status:        shipmentStatusFor(destination),
			ActionType:    req.ActionType,
			ActorID:       actorID,
			DesirableDate: req.DesirableDate,
			CreatedAt:     s.now().UTC(),
			UpdatedAt:     s.now().UTC(),
		}
		if err := store.Shipments().Create(ctx, shipment); err != nil {
			return nil, err
		}
		product.ActiveShipment = true
		if loc.holder != nil {
			loc.holder.ActiveShipment = true
		}
		if target != nil {
			target.ActiveShipment = true
		}
		result.Shipment = shipment
		if len(missing) > 0 {
			result.MissingAddressFields = missing
		}
	}

	if err := s.moveShape(ctx, store, loc, target, product); err != nil {
		return nil, err
	}

	if req.ActionType != "" {
		itemID := product.ID
		err := s.History.Record(ctx, store.History(), HistoryEntry{
			ActionType: req.ActionType,
			ItemType:   models.ItemProduct,
			ItemID:     &itemID,
			ActorID:    actorID,
			OldData:    before,
			NewData:    product,
		})
		if err != nil {
			return nil, err
		}
		result.History = true
	}

	result.Product = product
	snapshot := models.ProductSnapshot{
		TenantID:   tenant.ID,
		TenantName: tenant.Name,
		Product:    *product.Clone(),
	}
	if target != nil {
		snapshot.Member = target.Ref()
	}
	return &relocationOutcome{action: req.ActionType, result: result, snapshot: snapshot}, nil
}

// moveShape writes the item into its new storage shape and takes it out of
// the old one. Both halves go through the same store so they commit or roll
// back together.
func (s *relocationService) moveShape(ctx context.Context, store repositories.TenantStore, loc *located, target *models.Member, product *models.Product) error {
	switch {
	case loc.holder != nil && target != nil && loc.holder.ID == target.ID:
		// Stays with the same member; replace the embedded entry in place.
		target.Products[target.ProductIndex(product.ID)] = *product
		return store.Members().SaveProducts(ctx, target)

	case loc.holder != nil && target != nil:
		loc.holder.RemoveProduct(product.ID)
		if err := store.Members().SaveProducts(ctx, loc.holder); err != nil {
			return err
		}
		target.Products = append(target.Products, *product)
		return store.Members().SaveProducts(ctx, target)

	case loc.holder != nil:
		loc.holder.RemoveProduct(product.ID)
		if err := store.Members().SaveProducts(ctx, loc.holder); err != nil {
			return err
		}
		return store.Products().Insert(ctx, product)

	case target != nil:
		if err := store.Products().Delete(ctx, product.ID); err != nil {
			return err
		}
		target.Products = append(target.Products, *product)
		return store.Members().SaveProducts(ctx, target)

	default:
		return store.Products().Update(ctx, product)
	}
}

// currentParty describes where the item is right now.
func (s *relocationService) currentParty(tenant *models.Tenant, loc *located) models.Party {
	switch {
	case loc.holder != nil:
		return models.MemberParty(loc.holder)
	case loc.product.Location == models.LocationFPWarehouse:
		return models.WarehouseParty(loc.product.Warehouse)
	default:
		return models.OfficeParty(tenant)
	}
}

func (s *relocationService) afterCommit(ctx context.Context, outcomes []*relocationOutcome) {
	snapshots := make([]models.ProductSnapshot, 0, len(outcomes))
	for _, o := range outcomes {
		snapshots = append(snapshots, o.snapshot)
		s.relocations.WithLabelValues(actionLabel(o.action)).Inc()

		if esc := o.result.Escalation; esc != nil && s.Notifier != nil {
			s.Logger.Warn("warehouse escalation",
				zap.String("tenant", esc.TenantName),
				zap.String("country", esc.CountryCode),
				zap.String("reason", string(esc.Reason)),
				zap.String("product_id", esc.ProductID.String()),
			)
			s.Notifier.Notify(ctx, escalationDedupKey(esc), esc.Message)
		}
	}
	if s.Projection != nil {
		s.Projection.Dispatch(ctx, snapshots...)
	}
}

func describeParty(p models.Party) string {
	if p.Name == "" {
		return string(p.Kind)
	}
	return fmt.Sprintf("%s %q", p.Kind, p.Name)
}

func actionLabel(a models.ActionType) string {
	if a == "" {
		return "none"
	}
	return string(a)
}
