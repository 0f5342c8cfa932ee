package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"assetflow/internal/models"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type SharedStoreTestSuite struct {
	suite.Suite
	mock     pgxmock.PgxPoolIface
	shared   *SharedDB
	context  context.Context
	tenantID uuid.UUID
}

func (suite *SharedStoreTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	require.NoError(suite.T(), err)
	suite.mock = mock
	suite.shared = NewSharedDB(mock)
	suite.context = context.Background()
	suite.tenantID = uuid.New()
}

func (suite *SharedStoreTestSuite) TearDownTest() {
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
	suite.mock.Close()
}

func TestSharedStoreTestSuite(t *testing.T) {
	suite.Run(t, new(SharedStoreTestSuite))
}

func (suite *SharedStoreTestSuite) TestTenantGetByName_Missing() {
	suite.mock.ExpectQuery(`FROM tenants WHERE name = \$1`).
		WithArgs("acme").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	tenant, err := suite.shared.Tenants().GetByName(suite.context, "acme")
	assert.NoError(suite.T(), err)
	assert.Nil(suite.T(), tenant)
}

func (suite *SharedStoreTestSuite) TestTenantGetByName_DecodesConfig() {
	now := time.Now()
	suite.mock.ExpectQuery(`FROM tenants WHERE name = \$1`).
		WithArgs("acme").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "display_name", "country", "state", "city",
			"zip_code", "address", "apartment", "phone", "recoverable_config", "widgets", "is_active",
			"created_at", "updated_at"}).
			AddRow(suite.tenantID, "acme", "Acme Inc", "AR", "BA", "CABA", "1000", "Main 1", "", "+54",
				[]byte(`{"Computer":true,"Merchandising":false}`), []byte(`[{"id":"stock","order":1}]`), true, now, now))

	tenant, err := suite.shared.Tenants().GetByName(suite.context, "acme")
	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), tenant)
	assert.True(suite.T(), tenant.IsRecoverable("Computer"))
	assert.False(suite.T(), tenant.IsRecoverable("Merchandising"))
	assert.Len(suite.T(), tenant.Widgets, 1)
}

func (suite *SharedStoreTestSuite) TestWarehouseActivate_SingleStatement() {
	target := uuid.New()
	suite.mock.ExpectExec(`UPDATE warehouses\s+SET is_active = \(id = \$2\)`).
		WithArgs("AR", target).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := suite.shared.Warehouses().Activate(suite.context, "AR", target)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(3), n)
}

func (suite *SharedStoreTestSuite) TestWarehouseGetCountry_Unknown() {
	suite.mock.ExpectQuery(`FROM warehouse_countries WHERE country_code = \$1`).
		WithArgs("ZZ").
		WillReturnRows(pgxmock.NewRows([]string{"country_code", "country_name"}))

	country, err := suite.shared.Warehouses().GetCountry(suite.context, "ZZ")
	assert.NoError(suite.T(), err)
	assert.Nil(suite.T(), country)
}

func (suite *SharedStoreTestSuite) TestWarehouseSoftDelete_AlreadyDeleted() {
	id := uuid.New()
	suite.mock.ExpectExec(`SET is_deleted = TRUE, is_active = FALSE`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := suite.shared.Warehouses().SoftDelete(suite.context, id)
	assert.NoError(suite.T(), err)
	assert.False(suite.T(), ok)
}

func (suite *SharedStoreTestSuite) TestMetricsAddTotals_ReportsMissingRow() {
	warehouseID := uuid.New()
	delta := models.DeltaFor(true)
	suite.mock.ExpectExec(`SET total_products = total_products \+ \$2`).
		WithArgs(warehouseID, int64(1), int64(1), int64(0)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	found, err := suite.shared.WarehouseMetrics().AddTotals(suite.context, warehouseID, delta)
	assert.NoError(suite.T(), err)
	assert.False(suite.T(), found)
}

func (suite *SharedStoreTestSuite) TestMetricsSubtractTenant() {
	warehouseID := uuid.New()
	suite.mock.ExpectExec(`UPDATE warehouse_tenant_metrics`).
		WithArgs(warehouseID, suite.tenantID, int64(1), int64(0), int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	found, err := suite.shared.WarehouseMetrics().SubtractTenant(suite.context, warehouseID, suite.tenantID, models.DeltaFor(false))
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), found)
}

func (suite *SharedStoreTestSuite) TestMetricsGet_AttachesBreakdown() {
	warehouseID := uuid.New()
	now := time.Now()
	suite.mock.ExpectQuery(`FROM warehouse_metrics WHERE warehouse_id = \$1`).
		WithArgs(warehouseID).
		WillReturnRows(pgxmock.NewRows([]string{"warehouse_id", "warehouse_name", "country_code", "total_products",
			"total_computers", "total_other_products", "total_tenants", "updated_at"}).
			AddRow(warehouseID, "Buenos Aires", "AR", int64(3), int64(2), int64(1), int64(1), now))
	suite.mock.ExpectQuery(`FROM warehouse_tenant_metrics\s+WHERE warehouse_id = ANY\(\$1\)`).
		WithArgs([]uuid.UUID{warehouseID}).
		WillReturnRows(pgxmock.NewRows([]string{"warehouse_id", "tenant_id", "tenant_name", "total_products",
			"computers", "other_products"}).
			AddRow(warehouseID, suite.tenantID, "acme", int64(3), int64(2), int64(1)))

	metrics, err := suite.shared.WarehouseMetrics().Get(suite.context, warehouseID)
	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), metrics)
	require.Len(suite.T(), metrics.TenantMetrics, 1)
	assert.Equal(suite.T(), metrics.TotalProducts, metrics.TenantMetrics[0].TotalProducts)
}

func (suite *SharedStoreTestSuite) TestGlobalProductUpsert() {
	g := &models.GlobalProduct{
		TenantID:   suite.tenantID,
		OriginalID: uuid.New(),
		TenantName: "acme",
		Category:   "Computer",
		Location:   models.LocationEmployee,
		Status:     models.StatusDelivered,
		Condition:  models.ConditionOptimal,
		Member:     &models.MemberRef{MemberID: uuid.New(), Email: "ada@example.com"},
	}
	suite.mock.ExpectExec(`INSERT INTO global_products .+ ON CONFLICT \(tenant_id, original_id\) DO UPDATE`).
		WithArgs(g.TenantID, g.OriginalID, "acme", "", "Computer", []byte("[]"), (*string)(nil),
			"Employee", "Delivered", "Optimal", false, false, false, false, []byte(nil), pgxmock.AnyArg(), "", time.Time{}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(suite.T(), suite.shared.GlobalProducts().Upsert(suite.context, g))
}

func (suite *SharedStoreTestSuite) TestGlobalProductUpsert_KeepsNewerRow() {
	g := &models.GlobalProduct{
		TenantID:        suite.tenantID,
		OriginalID:      uuid.New(),
		TenantName:      "acme",
		Category:        "Computer",
		Location:        models.LocationOurOffice,
		Status:          models.StatusAvailable,
		Condition:       models.ConditionOptimal,
		SourceUpdatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	suite.mock.ExpectExec(`WHERE global_products\.source_updated_at <= EXCLUDED\.source_updated_at`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), g.SourceUpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	assert.NoError(suite.T(), suite.shared.GlobalProducts().Upsert(suite.context, g))
}

func (suite *SharedStoreTestSuite) TestGlobalProductGetForUpdate_LocksMissingRow() {
	originalID := uuid.New()
	suite.mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
		WithArgs(suite.tenantID, originalID).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	suite.mock.ExpectQuery(`FROM global_products WHERE tenant_id = \$1 AND original_id = \$2 FOR UPDATE`).
		WithArgs(suite.tenantID, originalID).
		WillReturnRows(pgxmock.NewRows([]string{"tenant_id"}))

	row, err := suite.shared.GlobalProducts().GetForUpdate(suite.context, suite.tenantID, originalID)
	assert.NoError(suite.T(), err)
	assert.Nil(suite.T(), row)
}

func (suite *SharedStoreTestSuite) TestWithinSharedTx_CommitsOnSuccess() {
	warehouseID := uuid.New()
	suite.mock.ExpectBegin()
	suite.mock.ExpectExec(`DELETE FROM warehouse_tenant_metrics`).
		WithArgs(warehouseID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	suite.mock.ExpectCommit()

	err := suite.shared.WithinSharedTx(suite.context, func(store SharedStore) error {
		return store.WarehouseMetrics().PruneTenants(suite.context, warehouseID)
	})
	assert.NoError(suite.T(), err)
}

func (suite *SharedStoreTestSuite) TestWithinSharedTx_RollsBackOnError() {
	boom := errors.New("boom")
	suite.mock.ExpectBegin()
	suite.mock.ExpectRollback()

	err := suite.shared.WithinSharedTx(suite.context, func(store SharedStore) error {
		return boom
	})
	assert.ErrorIs(suite.T(), err, boom)
}
