// Package catalog implements the product store. AdjustStockTx is the
// single chokepoint for every stock mutation in the system; it enforces
// the non-negative stock invariant with one conditional UPDATE so that
// concurrent buyers of the last unit cannot both succeed.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/sweetshop/pkg/errs"
	"github.com/example/sweetshop/pkg/models"
	"github.com/example/sweetshop/pkg/repository"
)

type Service struct {
	db     *gorm.DB
	cache  *repository.Cache
	events repository.EventSink
	logger *zap.Logger
}

// NewService wires the catalog store. cache and events may be nil; the
// service then skips caching and event emission.
func NewService(db *gorm.DB, cache *repository.Cache, events repository.EventSink, logger *zap.Logger) *Service {
	return &Service{db: db, cache: cache, events: events, logger: logger}
}

// Filter narrows a catalog search. Nil price bounds are open-ended.
type Filter struct {
	Name     string
	Category string
	MinPrice *float64
	MaxPrice *float64
}

// Get returns a product by id, preferring the cache.
func (s *Service) Get(ctx context.Context, productID string) (*models.Product, error) {
	if s.cache != nil {
		if p, err := s.cache.GetProductCache(ctx, productID); err == nil {
			return p, nil
		}
	}

	var product models.Product
	if err := s.db.WithContext(ctx).First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product %s: %w", productID, errs.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.CacheProduct(ctx, &product); err != nil {
			s.logger.Warn("Failed to cache product", zap.String("product_id", product.ID), zap.Error(err))
		}
	}

	return &product, nil
}

// Search lists products matching the filter. An empty filter returns the
// whole catalog.
func (s *Service) Search(ctx context.Context, filter Filter) ([]models.Product, error) {
	query := s.db.WithContext(ctx).Model(&models.Product{})
	if filter.Name != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(filter.Name)+"%")
	}
	if filter.Category != "" {
		query = query.Where("LOWER(category) LIKE ?", "%"+strings.ToLower(filter.Category)+"%")
	}
	if filter.MinPrice != nil {
		query = query.Where("price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		query = query.Where("price <= ?", *filter.MaxPrice)
	}

	var products []models.Product
	if err := query.Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	return products, nil
}

// Create adds a product to the catalog. Administrative.
func (s *Service) Create(ctx context.Context, product *models.Product) error {
	if err := validate(product); err != nil {
		return err
	}
	if product.ID == "" {
		product.ID = uuid.New().String()
	}

	if err := s.db.WithContext(ctx).Create(product).Error; err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	s.emit(ctx, "create_product", product.ID, bson.M{"name": product.Name, "stock": product.Stock})
	return nil
}

// Update replaces all editable fields of a product. Administrative.
func (s *Service) Update(ctx context.Context, productID string, details *models.Product) (*models.Product, error) {
	if err := validate(details); err != nil {
		return nil, err
	}

	var product models.Product
	if err := s.db.WithContext(ctx).First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product %s: %w", productID, errs.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	product.Name = details.Name
	product.Category = details.Category
	product.Price = details.Price
	product.Stock = details.Stock
	product.Description = details.Description
	product.Image = details.Image

	if err := s.db.WithContext(ctx).Save(&product).Error; err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	s.invalidate(ctx, productID)
	return &product, nil
}

// Delete removes a product from the catalog. Historical order items keep
// their own copy of the product name, so past orders are unaffected.
func (s *Service) Delete(ctx context.Context, productID string) error {
	result := s.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", productID)
	if result.Error != nil {
		return fmt.Errorf("failed to delete product: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("product %s: %w", productID, errs.ErrNotFound)
	}

	s.invalidate(ctx, productID)
	s.emit(ctx, "delete_product", productID, bson.M{})
	return nil
}

// AdjustStock applies newStock = stock + delta in its own transaction.
func (s *Service) AdjustStock(ctx context.Context, productID string, delta int) (*models.Product, error) {
	var product *models.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := AdjustStockTx(tx, productID, delta)
		if err != nil {
			return err
		}
		product = p
		return nil
	})
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) || errs.IsInsufficientStock(err) {
			return nil, err
		}
		return nil, fmt.Errorf("stock adjustment failed: %v: %w", err, errs.ErrUnavailable)
	}

	s.invalidate(ctx, productID)
	s.emit(ctx, "stock_changed", productID, bson.M{"delta": delta, "stock": product.Stock})
	return product, nil
}

// AdjustStockTx applies a stock delta inside an existing transaction.
// The WHERE clause carries the non-negative guard, so the check and the
// write are one statement; a zero row count means the guard rejected the
// delta (or the product is gone) and the caller's transaction can roll
// back with nothing written.
func AdjustStockTx(tx *gorm.DB, productID string, delta int) (*models.Product, error) {
	result := tx.Model(&models.Product{}).
		Where("id = ? AND stock + ? >= 0", productID, delta).
		Update("stock", gorm.Expr("stock + ?", delta))
	if result.Error != nil {
		return nil, fmt.Errorf("failed to adjust stock: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		var p models.Product
		if err := tx.First(&p, "id = ?", productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("product %s: %w", productID, errs.ErrNotFound)
			}
			return nil, fmt.Errorf("failed to get product: %w", err)
		}
		return nil, &errs.InsufficientStockError{
			Product:   p.Name,
			Available: p.Stock,
			Requested: -delta,
		}
	}

	var product models.Product
	if err := tx.First(&product, "id = ?", productID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload product: %w", err)
	}
	return &product, nil
}

// Purchase is a point-of-sale deduction that bypasses the cart and the
// order trail entirely.
func (s *Service) Purchase(ctx context.Context, productID string, quantity int) (*models.Product, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("purchase quantity must be at least 1: %w", errs.ErrInvalidArgument)
	}
	return s.AdjustStock(ctx, productID, -quantity)
}

// Restock increases a product's stock. No upper bound is enforced.
func (s *Service) Restock(ctx context.Context, productID string, quantity int) (*models.Product, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("restock quantity must be at least 1: %w", errs.ErrInvalidArgument)
	}
	return s.AdjustStock(ctx, productID, quantity)
}

func validate(product *models.Product) error {
	if product.Name == "" {
		return fmt.Errorf("product name is required: %w", errs.ErrInvalidArgument)
	}
	if product.Price < 0 {
		return fmt.Errorf("price must be non-negative: %w", errs.ErrInvalidArgument)
	}
	if product.Stock < 0 {
		return fmt.Errorf("stock must be non-negative: %w", errs.ErrInvalidArgument)
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, productID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateProduct(ctx, productID); err != nil {
		s.logger.Warn("Failed to invalidate product cache", zap.String("product_id", productID), zap.Error(err))
	}
}

func (s *Service) emit(ctx context.Context, action, entityID string, data bson.M) {
	if s.events == nil {
		return
	}
	go func() {
		event := &repository.Event{
			Service:  "catalog-service",
			Action:   action,
			EntityID: entityID,
			Data:     data,
		}
		recordCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.events.Record(recordCtx, event); err != nil {
			s.logger.Warn("Failed to record event", zap.String("action", action), zap.Error(err))
		}
	}()
}
