package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"assetflow/internal/common"
	"assetflow/internal/models"
	"assetflow/internal/repositories"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ShipmentService closes shipments opened by relocations
type ShipmentService interface {
	// UpdateStatus resolves an in-transit shipment and releases its items
	UpdateStatus(ctx context.Context, tenantName, actorID string, shipmentID uuid.UUID, req *models.ShipmentStatusRequest) (*models.ShipmentResolution, error)
}

type shipmentService struct {
	tenants    TenantDirectory
	tx         TenantTxRunner
	history    HistoryRecorder
	projection ProjectionDispatcher
	validate   *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewShipmentService builds the shipment resolver from the relocation wiring.
func NewShipmentService(deps RelocationDeps) ShipmentService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Validate == nil {
		deps.Validate = NewValidator()
	}
	return &shipmentService{
		tenants:    deps.Tenants,
		tx:         deps.Tx,
		history:    deps.History,
		projection: deps.Projection,
		validate:   deps.Validate,
		logger:     deps.Logger,
		now:        time.Now,
	}
}

// releaseSet tracks the members loaded while releasing items so each is
// read and written once per transaction.
type releaseSet struct {
	members map[uuid.UUID]*models.Member
	order   []uuid.UUID
}

func (r *releaseSet) add(m *models.Member) *models.Member {
	if cached, ok := r.members[m.ID]; ok {
		return cached
	}
	r.members[m.ID] = m
	r.order = append(r.order, m.ID)
	return m
}

// UpdateStatus marks the shipment Received or Cancelled. Every item it
// carried loses its active shipment in whichever storage shape holds it, and
// members on either end keep the flag only while another shipment of theirs
// is still unresolved. A cancelled shipment leaves items where the relocation
// put them.
func (s *shipmentService) UpdateStatus(ctx context.Context, tenantName, actorID string, shipmentID uuid.UUID, req *models.ShipmentStatusRequest) (*models.ShipmentResolution, error) {
	if req == nil {
		return nil, common.NewValidation("status", "is required")
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	tenant, err := activeTenant(ctx, s.tenants, tenantName)
	if err != nil {
		return nil, err
	}

	var (
		resolution *models.ShipmentResolution
		snapshots  []models.ProductSnapshot
	)
	err = s.tx.WithinTx(ctx, tenant.Name, func(store repositories.TenantStore) error {
		resolution, snapshots = nil, nil

		shipment, err := store.Shipments().GetForUpdate(ctx, shipmentID)
		if err != nil {
			return err
		}
		if shipment == nil {
			return common.NewNotFound("shipment", shipmentID.String())
		}
		if !shipment.Status.Active() {
			return common.NewValidation("status", fmt.Sprintf("shipment is already %s", shipment.Status))
		}
		before := *shipment

		if err := store.Shipments().UpdateStatus(ctx, shipment.ID, req.Status); err != nil {
			return err
		}
		now := s.now().UTC()
		shipment.Status = req.Status
		shipment.UpdatedAt = now

		set := &releaseSet{members: map[uuid.UUID]*models.Member{}}
		released := make([]models.Product, 0, len(shipment.ProductIDs))
		for _, productID := range shipment.ProductIDs {
			product, holder, err := s.release(ctx, store, set, productID, now)
			if err != nil {
				return err
			}
			if product == nil {
				continue
			}
			released = append(released, *product.Clone())
			snap := models.ProductSnapshot{TenantID: tenant.ID, TenantName: tenant.Name, Product: *product.Clone()}
			if holder != nil {
				snap.Member = holder.Ref()
			}
			snapshots = append(snapshots, snap)
		}

		if err := s.settleMembers(ctx, store, set, shipment); err != nil {
			return err
		}

		err = s.history.Record(ctx, store.History(), HistoryEntry{
			ActionType: models.ActionResolveShipment,
			ItemType:   models.ItemShipment,
			ItemID:     &shipment.ID,
			ActorID:    actorID,
			OldData:    before,
			NewData:    shipment,
		})
		if err != nil {
			return err
		}
		resolution = &models.ShipmentResolution{Shipment: shipment, Products: released}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("shipment resolved",
		zap.String("tenant", tenant.Name),
		zap.String("shipment_id", shipmentID.String()),
		zap.String("status", string(req.Status)),
		zap.Int("products", len(resolution.Products)),
	)
	if s.projection != nil && len(snapshots) > 0 {
		s.projection.Dispatch(ctx, snapshots...)
	}
	return resolution, nil
}

// release clears the active shipment of one item. Standalone rows are written
// immediately; embedded items are written with their member in settleMembers.
// Items already released or deleted yield a nil product.
func (s *shipmentService) release(ctx context.Context, store repositories.TenantStore, set *releaseSet, productID uuid.UUID, now time.Time) (*models.Product, *models.Member, error) {
	loc, err := locateProduct(ctx, store, productID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.logger.Warn("shipped item no longer exists", zap.String("product_id", productID.String()))
			return nil, nil, nil
		}
		return nil, nil, err
	}

	product := loc.product
	var holder *models.Member
	if loc.holder != nil {
		holder = set.add(loc.holder)
		product = &holder.Products[holder.ProductIndex(productID)]
	}
	if !product.ActiveShipment || product.IsDeleted {
		return nil, nil, nil
	}

	product.ActiveShipment = false
	product.FPShipment = false
	product.Status = DeriveStatus(models.StatusInput{
		Location:    product.Location,
		HasAssignee: holder != nil,
		Condition:   product.Condition,
	})
	product.UpdatedAt = now

	if holder == nil {
		if err := store.Products().Update(ctx, product); err != nil {
			return nil, nil, err
		}
	}
	return product, holder, nil
}

// settleMembers recomputes the active-shipment flag of every member the
// shipment touched and persists members whose items or flag changed.
func (s *shipmentService) settleMembers(ctx context.Context, store repositories.TenantStore, set *releaseSet, shipment *models.Shipment) error {
	dirty := make(map[uuid.UUID]bool, len(set.order))
	for _, id := range set.order {
		dirty[id] = true
	}
	for _, party := range []models.Party{shipment.Origin, shipment.Destination} {
		id, ok := party.MemberID()
		if !ok {
			continue
		}
		if _, loaded := set.members[id]; loaded {
			continue
		}
		member, err := store.Members().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if member == nil {
			continue
		}
		set.add(member)
	}

	for _, id := range set.order {
		member := set.members[id]
		active, err := store.Shipments().CountActiveForMember(ctx, id)
		if err != nil {
			return err
		}
		flag := active > 0
		if member.ActiveShipment == flag && !dirty[id] {
			continue
		}
		member.ActiveShipment = flag
		if err := store.Members().SaveProducts(ctx, member); err != nil {
			return err
		}
	}
	return nil
}
