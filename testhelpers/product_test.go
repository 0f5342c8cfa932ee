package testhelpers

import (
	"context"
	"errors"
	"testing"

	"assetflow/internal/common"
	"assetflow/internal/models"
	"assetflow/internal/repositories"
	"assetflow/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenantStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := SetupTestDB(t, "")
	defer func() { require.NoError(t, testDB.Cleanup()) }()

	ctx := context.Background()
	store := repositories.NewTenantStore(testDB.Pool)

	t.Run("StandaloneRoundTrip", func(t *testing.T) {
		product := SetupTestProduct(t, testDB, models.LocationOurOffice)
		price := decimal.RequireFromString("1299.99")
		product.Price = &price
		require.NoError(t, store.Products().Update(ctx, product))

		got, err := store.Products().Get(ctx, product.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, product.Name, got.Name)
		assert.Equal(t, product.Attributes, got.Attributes)
		require.NotNil(t, got.Price)
		assert.True(t, price.Equal(*got.Price))
	})

	t.Run("SerialUniqueAcrossShapes", func(t *testing.T) {
		product := SetupTestProduct(t, testDB, models.LocationOurOffice)

		exists, err := store.Products().SerialExists(ctx, *product.SerialNumber, product.ID)
		require.NoError(t, err)
		assert.False(t, exists)

		member := SetupTestMember(t, testDB)
		clone := *product
		clone.ID = uuid.New()
		member.Products = append(member.Products, clone)
		require.NoError(t, store.Members().SaveProducts(ctx, member))

		exists, err = store.Products().SerialExists(ctx, *product.SerialNumber, product.ID)
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("MoveIntoMemberInsideTransaction", func(t *testing.T) {
		product := SetupTestProduct(t, testDB, models.LocationOurOffice)
		member := SetupTestMember(t, testDB)

		err := database.WithTx(ctx, testDB.Pool, func(tx pgx.Tx) error {
			txStore := repositories.NewTenantStore(tx)
			if err := txStore.Products().Delete(ctx, product.ID); err != nil {
				return err
			}
			locked, err := txStore.Members().GetForUpdate(ctx, member.ID)
			if err != nil {
				return err
			}
			product.Location = models.LocationEmployee
			locked.Products = append(locked.Products, *product)
			return txStore.Members().SaveProducts(ctx, locked)
		})
		require.NoError(t, err)

		standalone, err := store.Products().Get(ctx, product.ID)
		require.NoError(t, err)
		assert.Nil(t, standalone)

		holder, err := store.Members().FindHolderForUpdate(ctx, product.ID)
		require.NoError(t, err)
		require.NotNil(t, holder)
		assert.Equal(t, member.ID, holder.ID)
	})

	t.Run("RollbackLeavesStateIntact", func(t *testing.T) {
		product := SetupTestProduct(t, testDB, models.LocationOurOffice)
		boom := errors.New("boom")

		err := database.WithTx(ctx, testDB.Pool, func(tx pgx.Tx) error {
			if err := repositories.NewTenantStore(tx).Products().Delete(ctx, product.ID); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := store.Products().Get(ctx, product.ID)
		require.NoError(t, err)
		assert.NotNil(t, got)
	})

	t.Run("DeleteMissing", func(t *testing.T) {
		product := SetupTestProduct(t, testDB, models.LocationOurOffice)
		require.NoError(t, store.Products().Delete(ctx, product.ID))
		assert.ErrorIs(t, store.Products().Delete(ctx, product.ID), common.ErrNotFound)
	})
}
