package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"assetflow/internal/common"
	"assetflow/internal/models"
	"assetflow/testhelpers"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type MockTenantCache struct {
	mock.Mock
}

func (m *MockTenantCache) GetTenant(ctx context.Context, name string) (*models.Tenant, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockTenantCache) SetTenant(ctx context.Context, tenant *models.Tenant, ttl time.Duration) error {
	args := m.Called(ctx, tenant, ttl)
	return args.Error(0)
}

func (m *MockTenantCache) InvalidateTenant(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

type MockTenantProvisioner struct {
	mock.Mock
}

func (m *MockTenantProvisioner) Provision(ctx context.Context, tenantName string) error {
	args := m.Called(ctx, tenantName)
	return args.Error(0)
}

type TenantServiceTestSuite struct {
	suite.Suite
	ctx         context.Context
	shared      *testhelpers.MemShared
	cache       *MockTenantCache
	provisioner *MockTenantProvisioner
	service     TenantService
}

func (suite *TenantServiceTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.shared = testhelpers.NewMemShared()
	suite.cache = &MockTenantCache{}
	suite.provisioner = &MockTenantProvisioner{}
	suite.service = NewTenantService(suite.shared.Tenants(), suite.cache, suite.provisioner, NewValidator(), zap.NewNop())

	suite.cache.Test(suite.T())
	suite.provisioner.Test(suite.T())
}

func (suite *TenantServiceTestSuite) TearDownTest() {
	suite.cache.AssertExpectations(suite.T())
	suite.provisioner.AssertExpectations(suite.T())
}

func TestTenantServiceTestSuite(t *testing.T) {
	suite.Run(t, new(TenantServiceTestSuite))
}

func (suite *TenantServiceTestSuite) seed(name string) *models.Tenant {
	t := &models.Tenant{ID: uuid.New(), Name: name, DisplayName: "Globex", IsActive: true}
	suite.shared.AddTenant(t)
	return t
}

func (suite *TenantServiceTestSuite) TestGetTenantByName_CacheHit() {
	cached := &models.Tenant{ID: uuid.New(), Name: "globex"}
	suite.cache.On("GetTenant", suite.ctx, "globex").Return(cached, nil).Once()

	tenant, err := suite.service.GetTenantByName(suite.ctx, "globex")
	suite.NoError(err)
	suite.Same(cached, tenant)
}

func (suite *TenantServiceTestSuite) TestGetTenantByName_MissFillsCache() {
	seeded := suite.seed("globex")
	suite.cache.On("GetTenant", suite.ctx, "globex").Return(nil, nil).Once()
	suite.cache.On("SetTenant", suite.ctx, mock.AnythingOfType("*models.Tenant"), tenantCacheTTL).Return(nil).Once().
		Run(func(args mock.Arguments) {
			assert.Equal(suite.T(), seeded.ID, args.Get(1).(*models.Tenant).ID)
		})

	tenant, err := suite.service.GetTenantByName(suite.ctx, "globex")
	suite.NoError(err)
	suite.Equal(seeded.ID, tenant.ID)
}

func (suite *TenantServiceTestSuite) TestGetTenantByName_UnknownIsNil() {
	suite.cache.On("GetTenant", suite.ctx, "initech").Return(nil, errors.New("redis down")).Once()

	tenant, err := suite.service.GetTenantByName(suite.ctx, "initech")
	suite.NoError(err)
	suite.Nil(tenant)
}

func (suite *TenantServiceTestSuite) TestOnboard_ProvisionsThenRegisters() {
	suite.provisioner.On("Provision", suite.ctx, "umbrella_corp").Return(nil).Once()

	tenant, err := suite.service.Onboard(suite.ctx, &OnboardTenantRequest{
		Name:        " Umbrella_Corp ",
		DisplayName: "Umbrella",
		Country:     "ar",
	})
	suite.Require().NoError(err)
	suite.Equal("umbrella_corp", tenant.Name)
	suite.Equal("AR", tenant.Country)
	suite.True(tenant.IsActive)
	suite.NotEmpty(tenant.Widgets)
	suite.NotNil(tenant.RecoverableConfig)

	stored, err := suite.shared.Tenants().GetByName(suite.ctx, "umbrella_corp")
	suite.Require().NoError(err)
	suite.Equal(tenant.ID, stored.ID)
}

func (suite *TenantServiceTestSuite) TestOnboard_RejectsBadNames() {
	_, err := suite.service.Onboard(suite.ctx, &OnboardTenantRequest{Name: "acme-co", DisplayName: "Acme"})
	suite.ErrorIs(err, common.ErrValidation)

	_, err = suite.service.Onboard(suite.ctx, &OnboardTenantRequest{Name: "", DisplayName: "Acme"})
	suite.ErrorIs(err, common.ErrValidation)
}

func (suite *TenantServiceTestSuite) TestOnboard_Duplicate() {
	suite.seed("globex")

	_, err := suite.service.Onboard(suite.ctx, &OnboardTenantRequest{Name: "globex", DisplayName: "Globex"})
	suite.ErrorIs(err, common.ErrDuplicate)
}

func (suite *TenantServiceTestSuite) TestOnboard_ProvisionFailureRegistersNothing() {
	suite.provisioner.On("Provision", suite.ctx, "hooli").Return(errors.New("create database: permission denied")).Once()

	_, err := suite.service.Onboard(suite.ctx, &OnboardTenantRequest{Name: "hooli", DisplayName: "Hooli"})
	suite.Error(err)
	suite.Empty(suite.shared.Data().Tenants)
}

func (suite *TenantServiceTestSuite) TestUpdateRecoverableConfigInvalidates() {
	seeded := suite.seed("globex")
	suite.cache.On("GetTenant", suite.ctx, "globex").Return(seeded, nil).Once()
	suite.cache.On("InvalidateTenant", suite.ctx, "globex").Return(nil).Once()

	tenant, err := suite.service.UpdateRecoverableConfig(suite.ctx, "globex", map[string]bool{"Computer": true})
	suite.Require().NoError(err)
	suite.True(tenant.IsRecoverable("Computer"))
	suite.True(suite.shared.Data().Tenants[seeded.ID].RecoverableConfig["Computer"])
}

func (suite *TenantServiceTestSuite) TestDeactivate() {
	seeded := suite.seed("globex")
	suite.cache.On("GetTenant", suite.ctx, "globex").Return(nil, nil).Once()
	suite.cache.On("SetTenant", suite.ctx, mock.Anything, tenantCacheTTL).Return(nil).Once()
	suite.cache.On("InvalidateTenant", suite.ctx, "globex").Return(errors.New("redis down")).Once()

	suite.Require().NoError(suite.service.Deactivate(suite.ctx, "globex"))
	suite.False(suite.shared.Data().Tenants[seeded.ID].IsActive)

	suite.cache.On("GetTenant", suite.ctx, "nobody").Return(nil, nil).Once()
	suite.ErrorIs(suite.service.Deactivate(suite.ctx, "nobody"), common.ErrNotFound)
}
