package tenancy

import (
	"context"
	"errors"
	"testing"

	"assetflow/pkg/database"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestProvision_CreatesAndMigrates(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM pg_database WHERE datname = \$1\)`).
		WithArgs("tenant_acme_corp").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`CREATE DATABASE "tenant_acme_corp"`).
		WillReturnResult(pgxmock.NewResult("CREATE DATABASE", 0))

	var migratedDSN string
	var migratedSchema database.Schema
	p := NewProvisioner(mock, "postgres://u:p@db:5432/postgres?sslmode=disable", func(dsn string, schema database.Schema) (bool, error) {
		migratedDSN, migratedSchema = dsn, schema
		return true, nil
	}, zap.NewNop())

	require.NoError(t, p.Provision(context.Background(), "Acme-Corp"))
	assert.Equal(t, "postgres://u:p@db:5432/tenant_acme_corp?sslmode=disable", migratedDSN)
	assert.Equal(t, database.SchemaTenant, migratedSchema)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProvision_MigrationFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`FROM pg_database`).
		WithArgs("tenant_acme").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	p := NewProvisioner(mock, "postgres://db/postgres", func(string, database.Schema) (bool, error) {
		return false, errors.New("dirty database")
	}, zap.NewNop())

	err = p.Provision(context.Background(), "acme")
	assert.ErrorContains(t, err, "dirty database")
	assert.NoError(t, mock.ExpectationsWereMet())
}
