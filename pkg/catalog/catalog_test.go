package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/sweetshop/pkg/errs"
	"github.com/example/sweetshop/pkg/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	return NewService(db, nil, nil, zap.NewNop()), db
}

func seedProduct(t *testing.T, db *gorm.DB, name string, price float64, stock int) *models.Product {
	t.Helper()
	p := &models.Product{
		ID:       uuid.New().String(),
		Name:     name,
		Category: "chocolate",
		Price:    price,
		Stock:    stock,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func TestGet(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	p := seedProduct(t, db, "Dark Truffle", 4.50, 10)

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
	assert.Equal(t, 10, got.Stock)

	_, err = svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestSearch(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedProduct(t, db, "Dark Truffle", 4.50, 10)
	seedProduct(t, db, "Milk Fudge", 2.00, 5)
	gummy := &models.Product{ID: uuid.New().String(), Name: "Sour Gummy", Category: "gummy", Price: 1.25, Stock: 50}
	require.NoError(t, db.Create(gummy).Error)

	all, err := svc.Search(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byName, err := svc.Search(ctx, Filter{Name: "truffle"})
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "Dark Truffle", byName[0].Name)

	byCategory, err := svc.Search(ctx, Filter{Category: "gummy"})
	require.NoError(t, err)
	require.Len(t, byCategory, 1)

	min, max := 1.50, 3.00
	byPrice, err := svc.Search(ctx, Filter{MinPrice: &min, MaxPrice: &max})
	require.NoError(t, err)
	require.Len(t, byPrice, 1)
	assert.Equal(t, "Milk Fudge", byPrice[0].Name)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	err := svc.Create(ctx, &models.Product{Price: 1.0, Stock: 1})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	err = svc.Create(ctx, &models.Product{Name: "Bad Price", Price: -1.0})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	err = svc.Create(ctx, &models.Product{Name: "Bad Stock", Price: 1.0, Stock: -1})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	p := &models.Product{Name: "Good", Price: 1.0, Stock: 1}
	require.NoError(t, svc.Create(ctx, p))
	assert.NotEmpty(t, p.ID)
}

func TestUpdateReplacesAllFields(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	p := seedProduct(t, db, "Old Name", 4.50, 10)

	updated, err := svc.Update(ctx, p.ID, &models.Product{
		Name:     "New Name",
		Category: "caramel",
		Price:    5.00,
		Stock:    7,
	})
	require.NoError(t, err)
	assert.Equal(t, "New Name", updated.Name)
	assert.Equal(t, "caramel", updated.Category)
	assert.Equal(t, 5.00, updated.Price)
	assert.Equal(t, 7, updated.Stock)

	_, err = svc.Update(ctx, "missing", &models.Product{Name: "X", Price: 1})
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestDelete(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	p := seedProduct(t, db, "Doomed", 1.00, 1)

	require.NoError(t, svc.Delete(ctx, p.ID))
	_, err := svc.Get(ctx, p.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	err = svc.Delete(ctx, p.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestAdjustStock(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	p := seedProduct(t, db, "Dark Truffle", 4.50, 5)

	t.Run("decrement within stock", func(t *testing.T) {
		got, err := svc.AdjustStock(ctx, p.ID, -3)
		require.NoError(t, err)
		assert.Equal(t, 2, got.Stock)
	})

	t.Run("decrement below zero rejected", func(t *testing.T) {
		_, err := svc.AdjustStock(ctx, p.ID, -3)
		require.Error(t, err)

		var stockErr *errs.InsufficientStockError
		require.True(t, errors.As(err, &stockErr))
		assert.Equal(t, "Dark Truffle", stockErr.Product)
		assert.Equal(t, 2, stockErr.Available)
		assert.Equal(t, 3, stockErr.Requested)

		// Nothing was written.
		got, err := svc.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.Stock)
	})

	t.Run("increment", func(t *testing.T) {
		got, err := svc.AdjustStock(ctx, p.ID, 10)
		require.NoError(t, err)
		assert.Equal(t, 12, got.Stock)
	})

	t.Run("unknown product", func(t *testing.T) {
		_, err := svc.AdjustStock(ctx, "missing", -1)
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})
}

func TestPurchaseAndRestock(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	p := seedProduct(t, db, "Milk Fudge", 2.00, 4)

	_, err := svc.Purchase(ctx, p.ID, 0)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	got, err := svc.Purchase(ctx, p.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)

	_, err = svc.Purchase(ctx, p.ID, 1)
	assert.True(t, errs.IsInsufficientStock(err))

	_, err = svc.Restock(ctx, p.ID, 0)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	got, err = svc.Restock(ctx, p.ID, 25)
	require.NoError(t, err)
	assert.Equal(t, 25, got.Stock)
}
