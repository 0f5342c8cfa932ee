package testhelpers

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"assetflow/internal/models"
	"assetflow/internal/repositories"
	"assetflow/internal/tenancy"
	"assetflow/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// TestDB holds a throwaway tenant database for integration tests.
type TestDB struct {
	Pool    *pgxpool.Pool
	Tenant  string
	Cleanup func() error
}

// SetupTestDB provisions a fresh tenant database through the onboarding path
// and opens a pool on it. connString must point at a database the test user
// can CREATE DATABASE from; it defaults to TEST_DATABASE_URL and the test is
// skipped when neither is set.
func SetupTestDB(t *testing.T, connString string) *TestDB {
	t.Helper()

	if connString == "" {
		connString = os.Getenv("TEST_DATABASE_URL")
	}
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	admin, err := database.NewPool(ctx, connString)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	tenant := "it_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")
	provisioner := tenancy.NewProvisioner(admin, connString, nil, zap.NewNop())
	if err := provisioner.Provision(ctx, tenant); err != nil {
		admin.Close()
		t.Fatalf("Failed to provision tenant database: %v", err)
	}

	dsn, err := database.TenantDSN(connString, tenant)
	if err != nil {
		admin.Close()
		t.Fatalf("Failed to build tenant dsn: %v", err)
	}
	pool, err := database.NewPool(ctx, dsn)
	if err != nil {
		admin.Close()
		t.Fatalf("Failed to connect to tenant database: %v", err)
	}

	return &TestDB{
		Pool:   pool,
		Tenant: tenant,
		Cleanup: func() error {
			pool.Close()
			defer admin.Close()
			drop := "DROP DATABASE IF EXISTS " + pgx.Identifier{database.TenantDatabaseName(tenant)}.Sanitize() + " WITH (FORCE)"
			_, err := admin.Exec(context.Background(), drop)
			return err
		},
	}
}

// SetupTestMember inserts a member with a complete shipping address.
func SetupTestMember(t *testing.T, db *TestDB) *models.Member {
	t.Helper()

	member := &models.Member{
		ID:        uuid.New(),
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada+" + uuid.NewString()[:8] + "@example.com",
		Phone:     "+54 11 5555 0000",
		DNI:       "30111222",
		Country:   "AR",
		City:      "Buenos Aires",
		ZipCode:   "C1001",
		Address:   "Av. Corrientes 1234",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := repositories.NewMemberRepo(db.Pool).Insert(context.Background(), member); err != nil {
		t.Fatalf("Failed to create test member: %v", err)
	}
	return member
}

// SetupTestProduct inserts a standalone item at the given location.
func SetupTestProduct(t *testing.T, db *TestDB, location models.Location) *models.Product {
	t.Helper()

	serial := "SN-" + uuid.NewString()[:8]
	product := &models.Product{
		ID:           uuid.New(),
		Name:         "ThinkPad T14",
		Category:     "Computer",
		Attributes:   []models.Attribute{{Key: "brand", Value: "Lenovo"}},
		SerialNumber: &serial,
		Location:     location,
		Status:       models.StatusAvailable,
		Condition:    models.ConditionOptimal,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := repositories.NewProductRepo(db.Pool).Insert(context.Background(), product); err != nil {
		t.Fatalf("Failed to create test product: %v", err)
	}
	return product
}
