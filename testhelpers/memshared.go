package testhelpers

import (
	"context"
	"sort"
	"sync"
	"time"

	"assetflow/internal/common"
	"assetflow/internal/models"
	"assetflow/internal/repositories"

	"github.com/google/uuid"
)

type globalKey struct {
	tenantID   uuid.UUID
	originalID uuid.UUID
}

// SharedData is the full content of the in-memory shared database.
type SharedData struct {
	Tenants   map[uuid.UUID]*models.Tenant
	Countries map[string]*models.WarehouseCountry
	Metrics   map[uuid.UUID]*models.WarehouseMetrics
	Global    map[globalKey]*models.GlobalProduct
}

func newSharedData() *SharedData {
	return &SharedData{
		Tenants:   map[uuid.UUID]*models.Tenant{},
		Countries: map[string]*models.WarehouseCountry{},
		Metrics:   map[uuid.UUID]*models.WarehouseMetrics{},
		Global:    map[globalKey]*models.GlobalProduct{},
	}
}

func (d *SharedData) clone() *SharedData {
	c := newSharedData()
	for id, t := range d.Tenants {
		cp := *t
		c.Tenants[id] = &cp
	}
	for code, country := range d.Countries {
		cp := *country
		cp.Warehouses = append([]models.Warehouse(nil), country.Warehouses...)
		c.Countries[code] = &cp
	}
	for id, m := range d.Metrics {
		c.Metrics[id] = cloneMetrics(m)
	}
	for k, g := range d.Global {
		c.Global[k] = cloneGlobal(g)
	}
	return c
}

func cloneMetrics(m *models.WarehouseMetrics) *models.WarehouseMetrics {
	cp := *m
	cp.TenantMetrics = append([]models.TenantMetrics(nil), m.TenantMetrics...)
	return &cp
}

func cloneGlobal(g *models.GlobalProduct) *models.GlobalProduct {
	cp := *g
	cp.Attributes = append([]models.Attribute(nil), g.Attributes...)
	if g.Warehouse != nil {
		w := *g.Warehouse
		cp.Warehouse = &w
	}
	if g.Member != nil {
		m := *g.Member
		cp.Member = &m
	}
	return &cp
}

// GlobalRow returns the committed index row, or nil.
func (d *SharedData) GlobalRow(tenantID, originalID uuid.UUID) *models.GlobalProduct {
	return d.Global[globalKey{tenantID, originalID}]
}

// MemShared is a transactional in-memory stand-in for the shared database.
type MemShared struct {
	mu   sync.Mutex
	data *SharedData
	// TxErr, when set, fails every WithinSharedTx before fn runs.
	TxErr error
}

// NewMemShared creates an empty in-memory shared database
func NewMemShared() *MemShared {
	return &MemShared{data: newSharedData()}
}

// Data returns the committed data for seeding and assertions.
func (m *MemShared) Data() *SharedData {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data
}

// AddCountry seeds a country with its warehouses.
func (m *MemShared) AddCountry(code, name string, warehouses ...models.Warehouse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range warehouses {
		warehouses[i].CountryCode = code
	}
	m.data.Countries[code] = &models.WarehouseCountry{CountryCode: code, CountryName: name, Warehouses: warehouses}
}

// AddTenant seeds a tenant.
func (m *MemShared) AddTenant(t *models.Tenant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.Tenants[t.ID] = t
}

func (m *MemShared) store() *memSharedStore { return &memSharedStore{d: m.data, mu: &m.mu} }

func (m *MemShared) Tenants() repositories.TenantRepository { return memTenantRepo{m.store()} }
func (m *MemShared) Warehouses() repositories.WarehouseRepository {
	return memWarehouseRepo{m.store()}
}
func (m *MemShared) WarehouseMetrics() repositories.WarehouseMetricsRepository {
	return memMetricsRepo{m.store()}
}
func (m *MemShared) GlobalProducts() repositories.GlobalProductRepository {
	return memGlobalRepo{m.store()}
}

func (m *MemShared) WithinSharedTx(ctx context.Context, fn func(store repositories.SharedStore) error) error {
	if m.TxErr != nil {
		return m.TxErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.data.clone()
	if err := fn(&memSharedStore{d: work}); err != nil {
		return err
	}
	m.data = work
	return nil
}

type memSharedStore struct {
	d  *SharedData
	mu *sync.Mutex
}

func (s *memSharedStore) lock() func() {
	if s.mu == nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *memSharedStore) Tenants() repositories.TenantRepository       { return memTenantRepo{s} }
func (s *memSharedStore) Warehouses() repositories.WarehouseRepository { return memWarehouseRepo{s} }
func (s *memSharedStore) GlobalProducts() repositories.GlobalProductRepository {
	return memGlobalRepo{s}
}
func (s *memSharedStore) WarehouseMetrics() repositories.WarehouseMetricsRepository {
	return memMetricsRepo{s}
}

type memTenantRepo struct{ s *memSharedStore }

func (r memTenantRepo) Create(ctx context.Context, t *models.Tenant) error {
	defer r.s.lock()()
	for _, existing := range r.s.d.Tenants {
		if existing.Name == t.Name {
			return common.ErrDuplicate
		}
	}
	cp := *t
	r.s.d.Tenants[t.ID] = &cp
	return nil
}

func (r memTenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	defer r.s.lock()()
	t, ok := r.s.d.Tenants[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r memTenantRepo) GetByName(ctx context.Context, name string) (*models.Tenant, error) {
	defer r.s.lock()()
	for _, t := range r.s.d.Tenants {
		if t.Name == name {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (r memTenantRepo) UpdateRecoverableConfig(ctx context.Context, id uuid.UUID, config map[string]bool) error {
	defer r.s.lock()()
	t, ok := r.s.d.Tenants[id]
	if !ok {
		return common.NewNotFound("tenant", id.String())
	}
	t.RecoverableConfig = config
	return nil
}

func (r memTenantRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	defer r.s.lock()()
	t, ok := r.s.d.Tenants[id]
	if !ok {
		return common.NewNotFound("tenant", id.String())
	}
	t.IsActive = active
	return nil
}

func (r memTenantRepo) List(ctx context.Context, limit, offset int) ([]*models.Tenant, error) {
	defer r.s.lock()()
	var out []*models.Tenant
	for _, t := range r.s.d.Tenants {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

type memWarehouseRepo struct{ s *memSharedStore }

func (r memWarehouseRepo) GetCountry(ctx context.Context, code string) (*models.WarehouseCountry, error) {
	defer r.s.lock()()
	c, ok := r.s.d.Countries[code]
	if !ok {
		return nil, nil
	}
	cp := *c
	cp.Warehouses = append([]models.Warehouse(nil), c.Warehouses...)
	return &cp, nil
}

func (r memWarehouseRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Warehouse, error) {
	defer r.s.lock()()
	for _, c := range r.s.d.Countries {
		for i := range c.Warehouses {
			if c.Warehouses[i].ID == id {
				w := c.Warehouses[i]
				return &w, nil
			}
		}
	}
	return nil, nil
}

func (r memWarehouseRepo) CreateCountry(ctx context.Context, country *models.WarehouseCountry) error {
	defer r.s.lock()()
	if _, ok := r.s.d.Countries[country.CountryCode]; !ok {
		r.s.d.Countries[country.CountryCode] = &models.WarehouseCountry{
			CountryCode: country.CountryCode,
			CountryName: country.CountryName,
		}
	}
	return nil
}

func (r memWarehouseRepo) CreateWarehouse(ctx context.Context, w *models.Warehouse) error {
	defer r.s.lock()()
	c, ok := r.s.d.Countries[w.CountryCode]
	if !ok {
		return common.NewNotFound("country", w.CountryCode)
	}
	c.Warehouses = append(c.Warehouses, *w)
	return nil
}

func (r memWarehouseRepo) Activate(ctx context.Context, code string, id uuid.UUID) (int64, error) {
	defer r.s.lock()()
	c, ok := r.s.d.Countries[code]
	if !ok {
		return 0, nil
	}
	var n int64
	for i := range c.Warehouses {
		if c.Warehouses[i].IsDeleted {
			continue
		}
		c.Warehouses[i].IsActive = c.Warehouses[i].ID == id
		n++
	}
	return n, nil
}

func (r memWarehouseRepo) SoftDelete(ctx context.Context, id uuid.UUID) (bool, error) {
	defer r.s.lock()()
	for _, c := range r.s.d.Countries {
		for i := range c.Warehouses {
			if c.Warehouses[i].ID == id && !c.Warehouses[i].IsDeleted {
				c.Warehouses[i].IsDeleted = true
				c.Warehouses[i].IsActive = false
				return true, nil
			}
		}
	}
	return false, nil
}

type memMetricsRepo struct{ s *memSharedStore }

func (r memMetricsRepo) AddTotals(ctx context.Context, warehouseID uuid.UUID, d models.MetricDelta) (bool, error) {
	defer r.s.lock()()
	m, ok := r.s.d.Metrics[warehouseID]
	if !ok {
		return false, nil
	}
	m.TotalProducts += d.Products
	m.TotalComputers += d.Computers
	m.TotalOtherProducts += d.Others
	m.UpdatedAt = time.Now()
	return true, nil
}

func (r memMetricsRepo) Create(ctx context.Context, metrics *models.WarehouseMetrics) error {
	defer r.s.lock()()
	if _, ok := r.s.d.Metrics[metrics.WarehouseID]; ok {
		return nil
	}
	r.s.d.Metrics[metrics.WarehouseID] = &models.WarehouseMetrics{
		WarehouseID:   metrics.WarehouseID,
		WarehouseName: metrics.WarehouseName,
		CountryCode:   metrics.CountryCode,
		UpdatedAt:     time.Now(),
	}
	return nil
}

func (r memMetricsRepo) AddTenant(ctx context.Context, warehouseID, tenantID uuid.UUID, tenantName string, d models.MetricDelta) error {
	defer r.s.lock()()
	m, ok := r.s.d.Metrics[warehouseID]
	if !ok {
		return common.NewNotFound("warehouse metrics", warehouseID.String())
	}
	for i := range m.TenantMetrics {
		tm := &m.TenantMetrics[i]
		if tm.TenantID == tenantID {
			tm.TenantName = tenantName
			tm.TotalProducts += d.Products
			tm.Computers += d.Computers
			tm.OtherProducts += d.Others
			return nil
		}
	}
	m.TenantMetrics = append(m.TenantMetrics, models.TenantMetrics{
		TenantID:      tenantID,
		TenantName:    tenantName,
		TotalProducts: d.Products,
		Computers:     d.Computers,
		OtherProducts: d.Others,
	})
	return nil
}

func (r memMetricsRepo) SubtractTenant(ctx context.Context, warehouseID, tenantID uuid.UUID, d models.MetricDelta) (bool, error) {
	defer r.s.lock()()
	m, ok := r.s.d.Metrics[warehouseID]
	if !ok {
		return false, nil
	}
	for i := range m.TenantMetrics {
		tm := &m.TenantMetrics[i]
		if tm.TenantID == tenantID {
			tm.TotalProducts -= d.Products
			tm.Computers -= d.Computers
			tm.OtherProducts -= d.Others
			return true, nil
		}
	}
	return false, nil
}

func (r memMetricsRepo) PruneTenants(ctx context.Context, warehouseID uuid.UUID) error {
	defer r.s.lock()()
	m, ok := r.s.d.Metrics[warehouseID]
	if !ok {
		return nil
	}
	kept := m.TenantMetrics[:0]
	for _, tm := range m.TenantMetrics {
		if tm.TotalProducts > 0 {
			kept = append(kept, tm)
		}
	}
	m.TenantMetrics = kept
	return nil
}

func (r memMetricsRepo) RecountTenants(ctx context.Context, warehouseID uuid.UUID) error {
	defer r.s.lock()()
	if m, ok := r.s.d.Metrics[warehouseID]; ok {
		m.TotalTenants = int64(len(m.TenantMetrics))
	}
	return nil
}

func (r memMetricsRepo) Get(ctx context.Context, warehouseID uuid.UUID) (*models.WarehouseMetrics, error) {
	defer r.s.lock()()
	m, ok := r.s.d.Metrics[warehouseID]
	if !ok {
		return nil, nil
	}
	return cloneMetrics(m), nil
}

func (r memMetricsRepo) ListByCountry(ctx context.Context, code string) ([]models.WarehouseMetrics, error) {
	all, err := r.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.WarehouseMetrics
	for _, m := range all {
		if m.CountryCode == code {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r memMetricsRepo) ListAll(ctx context.Context) ([]models.WarehouseMetrics, error) {
	defer r.s.lock()()
	out := make([]models.WarehouseMetrics, 0, len(r.s.d.Metrics))
	for _, m := range r.s.d.Metrics {
		out = append(out, *cloneMetrics(m))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CountryCode != out[j].CountryCode {
			return out[i].CountryCode < out[j].CountryCode
		}
		return out[i].WarehouseName < out[j].WarehouseName
	})
	return out, nil
}

type memGlobalRepo struct{ s *memSharedStore }

func (r memGlobalRepo) Get(ctx context.Context, tenantID, originalID uuid.UUID) (*models.GlobalProduct, error) {
	defer r.s.lock()()
	g, ok := r.s.d.Global[globalKey{tenantID, originalID}]
	if !ok {
		return nil, nil
	}
	return cloneGlobal(g), nil
}

func (r memGlobalRepo) GetForUpdate(ctx context.Context, tenantID, originalID uuid.UUID) (*models.GlobalProduct, error) {
	return r.Get(ctx, tenantID, originalID)
}

func (r memGlobalRepo) Upsert(ctx context.Context, g *models.GlobalProduct) error {
	defer r.s.lock()()
	key := globalKey{g.TenantID, g.OriginalID}
	if cur, ok := r.s.d.Global[key]; ok && g.SourceUpdatedAt.Before(cur.SourceUpdatedAt) {
		return nil
	}
	cp := cloneGlobal(g)
	cp.SyncedAt = time.Time{}
	r.s.d.Global[key] = cp
	return nil
}
