package testhelpers

import (
	"context"
	"sort"
	"sync"

	"assetflow/internal/common"
	"assetflow/internal/models"
	"assetflow/internal/repositories"

	"github.com/google/uuid"
)

// TenantData is the full content of one in-memory tenant database.
type TenantData struct {
	Products  map[uuid.UUID]*models.Product
	Members   map[uuid.UUID]*models.Member
	Shipments map[uuid.UUID]*models.Shipment
	History   []*models.HistoryRecord
}

func newTenantData() *TenantData {
	return &TenantData{
		Products:  map[uuid.UUID]*models.Product{},
		Members:   map[uuid.UUID]*models.Member{},
		Shipments: map[uuid.UUID]*models.Shipment{},
	}
}

func (d *TenantData) clone() *TenantData {
	c := newTenantData()
	for id, p := range d.Products {
		c.Products[id] = p.Clone()
	}
	for id, m := range d.Members {
		c.Members[id] = cloneMember(m)
	}
	for id, s := range d.Shipments {
		c.Shipments[id] = cloneShipment(s)
	}
	c.History = append([]*models.HistoryRecord(nil), d.History...)
	return c
}

func cloneMember(m *models.Member) *models.Member {
	c := *m
	c.Products = make([]models.Product, len(m.Products))
	for i := range m.Products {
		c.Products[i] = *m.Products[i].Clone()
	}
	return &c
}

func cloneShipment(s *models.Shipment) *models.Shipment {
	c := *s
	c.ProductIDs = append([]uuid.UUID(nil), s.ProductIDs...)
	return &c
}

// MemTenants is a transactional in-memory stand-in for the tenant databases.
// Transactions run one at a time on a private copy that replaces the tenant's
// data only when fn succeeds.
type MemTenants struct {
	mu      sync.Mutex
	tenants map[string]*TenantData
	// AcquireErr, when set, is returned by every call as if the connection
	// registry had failed.
	AcquireErr error
}

// NewMemTenants creates an empty set of in-memory tenant databases
func NewMemTenants() *MemTenants {
	return &MemTenants{tenants: map[string]*TenantData{}}
}

// Data returns the committed data of a tenant for seeding and assertions.
func (m *MemTenants) Data(tenant string) *TenantData {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dataLocked(tenant)
}

func (m *MemTenants) dataLocked(tenant string) *TenantData {
	d, ok := m.tenants[tenant]
	if !ok {
		d = newTenantData()
		m.tenants[tenant] = d
	}
	return d
}

func (m *MemTenants) WithinTx(ctx context.Context, tenant string, fn func(store repositories.TenantStore) error) error {
	if m.AcquireErr != nil {
		return m.AcquireErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.dataLocked(tenant).clone()
	if err := fn(&memTenantStore{d: work}); err != nil {
		return err
	}
	m.tenants[tenant] = work
	return nil
}

func (m *MemTenants) Store(ctx context.Context, tenant string) (repositories.TenantStore, error) {
	if m.AcquireErr != nil {
		return nil, m.AcquireErr
	}
	m.mu.Lock()
	d := m.dataLocked(tenant)
	m.mu.Unlock()
	return &memTenantStore{d: d, mu: &m.mu}, nil
}

type memTenantStore struct {
	d  *TenantData
	mu *sync.Mutex
}

func (s *memTenantStore) lock() func() {
	if s.mu == nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *memTenantStore) Products() repositories.ProductRepository   { return memProducts{s} }
func (s *memTenantStore) Members() repositories.MemberRepository     { return memMembers{s} }
func (s *memTenantStore) Shipments() repositories.ShipmentRepository { return memShipments{s} }
func (s *memTenantStore) History() repositories.HistoryRepository    { return memHistory{s} }

type memProducts struct{ s *memTenantStore }

func (r memProducts) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	defer r.s.lock()()
	return r.s.d.Products[id].Clone(), nil
}

func (r memProducts) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return r.Get(ctx, id)
}

func (r memProducts) Insert(ctx context.Context, p *models.Product) error {
	defer r.s.lock()()
	if _, ok := r.s.d.Products[p.ID]; ok {
		return common.ErrDuplicate
	}
	r.s.d.Products[p.ID] = p.Clone()
	return nil
}

func (r memProducts) Update(ctx context.Context, p *models.Product) error {
	defer r.s.lock()()
	if _, ok := r.s.d.Products[p.ID]; !ok {
		return common.NewNotFound("product", p.ID.String())
	}
	r.s.d.Products[p.ID] = p.Clone()
	return nil
}

func (r memProducts) Delete(ctx context.Context, id uuid.UUID) error {
	defer r.s.lock()()
	if _, ok := r.s.d.Products[id]; !ok {
		return common.NewNotFound("product", id.String())
	}
	delete(r.s.d.Products, id)
	return nil
}

func (r memProducts) SerialExists(ctx context.Context, serial string, excludeID uuid.UUID) (bool, error) {
	defer r.s.lock()()
	for id, p := range r.s.d.Products {
		if id != excludeID && !p.IsDeleted && p.Serial() == serial {
			return true, nil
		}
	}
	for _, m := range r.s.d.Members {
		for i := range m.Products {
			if m.Products[i].ID != excludeID && m.Products[i].Serial() == serial {
				return true, nil
			}
		}
	}
	return false, nil
}

type memMembers struct{ s *memTenantStore }

func (r memMembers) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	defer r.s.lock()()
	m, ok := r.s.d.Members[id]
	if !ok {
		return nil, nil
	}
	return cloneMember(m), nil
}

func (r memMembers) FindHolderForUpdate(ctx context.Context, productID uuid.UUID) (*models.Member, error) {
	defer r.s.lock()()
	for _, m := range r.s.d.Members {
		if m.ProductIndex(productID) >= 0 {
			return cloneMember(m), nil
		}
	}
	return nil, nil
}

func (r memMembers) Insert(ctx context.Context, m *models.Member) error {
	defer r.s.lock()()
	r.s.d.Members[m.ID] = cloneMember(m)
	return nil
}

func (r memMembers) SaveProducts(ctx context.Context, m *models.Member) error {
	defer r.s.lock()()
	stored, ok := r.s.d.Members[m.ID]
	if !ok {
		return common.NewNotFound("member", m.ID.String())
	}
	updated := cloneMember(stored)
	updated.Products = cloneMember(m).Products
	updated.ActiveShipment = m.ActiveShipment
	r.s.d.Members[m.ID] = updated
	return nil
}

type memShipments struct{ s *memTenantStore }

func (r memShipments) Create(ctx context.Context, sh *models.Shipment) error {
	defer r.s.lock()()
	r.s.d.Shipments[sh.ID] = cloneShipment(sh)
	return nil
}

func (r memShipments) GetByID(ctx context.Context, id uuid.UUID) (*models.Shipment, error) {
	defer r.s.lock()()
	sh, ok := r.s.d.Shipments[id]
	if !ok {
		return nil, nil
	}
	return cloneShipment(sh), nil
}

func (r memShipments) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Shipment, error) {
	return r.GetByID(ctx, id)
}

func (r memShipments) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ShipmentStatus) error {
	defer r.s.lock()()
	sh, ok := r.s.d.Shipments[id]
	if !ok {
		return common.NewNotFound("shipment", id.String())
	}
	updated := cloneShipment(sh)
	updated.Status = status
	r.s.d.Shipments[id] = updated
	return nil
}

func (r memShipments) CountActiveForMember(ctx context.Context, memberID uuid.UUID) (int, error) {
	defer r.s.lock()()
	count := 0
	for _, sh := range r.s.d.Shipments {
		if !sh.Status.Active() {
			continue
		}
		if id, ok := sh.Origin.MemberID(); ok && id == memberID {
			count++
			continue
		}
		if id, ok := sh.Destination.MemberID(); ok && id == memberID {
			count++
		}
	}
	return count, nil
}

func (r memShipments) ActiveForProduct(ctx context.Context, productID uuid.UUID) (*models.Shipment, error) {
	defer r.s.lock()()
	var newest *models.Shipment
	for _, sh := range r.s.d.Shipments {
		if sh.Status != models.ShipmentInTransit && sh.Status != models.ShipmentInTransitMissingData {
			continue
		}
		for _, id := range sh.ProductIDs {
			if id == productID && (newest == nil || sh.CreatedAt.After(newest.CreatedAt)) {
				newest = sh
			}
		}
	}
	if newest == nil {
		return nil, nil
	}
	return cloneShipment(newest), nil
}

type memHistory struct{ s *memTenantStore }

func (r memHistory) Insert(ctx context.Context, rec *models.HistoryRecord) error {
	defer r.s.lock()()
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	c := *rec
	r.s.d.History = append(r.s.d.History, &c)
	return nil
}

func (r memHistory) ListByItem(ctx context.Context, itemID uuid.UUID, limit int) ([]*models.HistoryRecord, error) {
	defer r.s.lock()()
	var out []*models.HistoryRecord
	for i := len(r.s.d.History) - 1; i >= 0; i-- {
		rec := r.s.d.History[i]
		if rec.ItemID != nil && *rec.ItemID == itemID {
			out = append(out, rec)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// ProductsOf returns every live copy of the product across both storage
// shapes: standalone rows and member embeddings.
func (d *TenantData) ProductsOf(id uuid.UUID) (standalone *models.Product, holders []uuid.UUID) {
	if p, ok := d.Products[id]; ok {
		standalone = p
	}
	for memberID, m := range d.Members {
		if m.ProductIndex(id) >= 0 {
			holders = append(holders, memberID)
		}
	}
	sort.Slice(holders, func(i, j int) bool { return holders[i].String() < holders[j].String() })
	return standalone, holders
}
