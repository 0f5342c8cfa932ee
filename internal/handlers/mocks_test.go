package handlers

import (
	"context"

	"assetflow/internal/jobs/background"
	"assetflow/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockRelocationService struct {
	mock.Mock
}

func (m *MockRelocationService) Relocate(ctx context.Context, tenantName, actorID string, req *models.RelocationRequest) (*models.RelocationResult, error) {
	args := m.Called(ctx, tenantName, actorID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RelocationResult), args.Error(1)
}

func (m *MockRelocationService) BulkRelocate(ctx context.Context, tenantName, actorID string, req *models.BulkRelocationRequest) (*models.BulkRelocationResult, error) {
	args := m.Called(ctx, tenantName, actorID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BulkRelocationResult), args.Error(1)
}

func (m *MockRelocationService) PreviewStatus(in models.StatusInput) (models.ProductStatus, error) {
	args := m.Called(in)
	return args.Get(0).(models.ProductStatus), args.Error(1)
}

type MockShipmentService struct {
	mock.Mock
}

func (m *MockShipmentService) UpdateStatus(ctx context.Context, tenantName, actorID string, shipmentID uuid.UUID, req *models.ShipmentStatusRequest) (*models.ShipmentResolution, error) {
	args := m.Called(ctx, tenantName, actorID, shipmentID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ShipmentResolution), args.Error(1)
}

type MockProductService struct {
	mock.Mock
}

func (m *MockProductService) CreateProduct(ctx context.Context, tenantName, actorID string, req *models.NewProductRequest) (*models.Product, error) {
	args := m.Called(ctx, tenantName, actorID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductService) SoftDeleteProduct(ctx context.Context, tenantName, actorID string, productID uuid.UUID) (*models.Product, error) {
	args := m.Called(ctx, tenantName, actorID, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductService) GetProduct(ctx context.Context, tenantName string, productID uuid.UUID) (*models.Product, error) {
	args := m.Called(ctx, tenantName, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

type MockWarehouseService struct {
	mock.Mock
}

func (m *MockWarehouseService) Resolve(ctx context.Context, originCountry, tenantName string, productID uuid.UUID, category string) (*models.WarehouseAssignment, *models.Escalation, error) {
	args := m.Called(ctx, originCountry, tenantName, productID, category)
	var assignment *models.WarehouseAssignment
	if a := args.Get(0); a != nil {
		assignment = a.(*models.WarehouseAssignment)
	}
	var escalation *models.Escalation
	if e := args.Get(1); e != nil {
		escalation = e.(*models.Escalation)
	}
	return assignment, escalation, args.Error(2)
}

func (m *MockWarehouseService) CreateWarehouse(ctx context.Context, warehouse *models.Warehouse) (*models.Warehouse, error) {
	args := m.Called(ctx, warehouse)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Warehouse), args.Error(1)
}

func (m *MockWarehouseService) ActivateWarehouse(ctx context.Context, id uuid.UUID) (*models.Warehouse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Warehouse), args.Error(1)
}

func (m *MockWarehouseService) SoftDeleteWarehouse(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockMetricsReader struct {
	mock.Mock
}

func (m *MockMetricsReader) GetWarehouseMetrics(ctx context.Context, warehouseID uuid.UUID) (*models.WarehouseMetrics, error) {
	args := m.Called(ctx, warehouseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WarehouseMetrics), args.Error(1)
}

func (m *MockMetricsReader) GetCountryMetrics(ctx context.Context, countryCode string) (*models.CountryMetrics, error) {
	args := m.Called(ctx, countryCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CountryMetrics), args.Error(1)
}

func (m *MockMetricsReader) GetGlobalOverview(ctx context.Context) (*models.GlobalOverview, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GlobalOverview), args.Error(1)
}

type fakeJobs struct {
	statuses []background.JobStatus
	ran      []string
}

func (f *fakeJobs) GetJobStatus() []background.JobStatus { return f.statuses }

func (f *fakeJobs) RunNow(name string) error {
	for _, s := range f.statuses {
		if s.Name == name {
			f.ran = append(f.ran, name)
			return nil
		}
	}
	return errUnknownJob
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type fakeBacklog int64

func (b fakeBacklog) ProjectionQueueLen(context.Context) (int64, error) { return int64(b), nil }

type fakeCounter int

func (c fakeCounter) Len() int { return int(c) }
