package database

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenantDatabaseName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"acme", "tenant_acme"},
		{"  Acme ", "tenant_acme"},
		{"acme-corp.io", "tenant_acme_corp_io"},
		{"acme_2", "tenant_acme_2"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, TenantDatabaseName(tt.in))
		})
	}
}

func TestTenantDSN(t *testing.T) {
	dsn, err := TenantDSN("postgres://u:p@db:5432/postgres?sslmode=disable", "acme")
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db:5432/tenant_acme?sslmode=disable", dsn)

	_, err = TenantDSN("mysql://u:p@db/x", "acme")
	assert.Error(t, err)
}

func TestCreateTenantDatabase(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM pg_database WHERE datname = \$1\)`).
		WithArgs("tenant_acme").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`CREATE DATABASE "tenant_acme"`).
		WillReturnResult(pgxmock.NewResult("CREATE DATABASE", 0))

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("tenant_acme").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	require.NoError(t, CreateTenantDatabase(context.Background(), mock, "acme"))
	require.NoError(t, CreateTenantDatabase(context.Background(), mock, "acme"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commits", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE products`).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		err = WithTx(ctx, mock, func(tx pgx.Tx) error {
			_, err := tx.Exec(ctx, `UPDATE products SET is_deleted = TRUE`)
			return err
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		boom := errors.New("boom")
		mock.ExpectBegin()
		mock.ExpectRollback()

		err = WithTx(ctx, mock, func(pgx.Tx) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back and re-panics", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectRollback()

		assert.PanicsWithValue(t, "kaboom", func() {
			_ = WithTx(ctx, mock, func(pgx.Tx) error { panic("kaboom") })
		})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

		called := false
		err = WithTx(ctx, mock, func(pgx.Tx) error { called = true; return nil })
		assert.ErrorContains(t, err, "begin transaction")
		assert.False(t, called)
	})
}
