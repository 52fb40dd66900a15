// Package cart manages each customer's open cart. The stock checks here
// are advisory feedback only; another checkout can still drain stock
// before this cart is converted. Enforcement happens in the checkout
// engine's transaction.
package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/sweetshop/pkg/errs"
	"github.com/example/sweetshop/pkg/identity"
	"github.com/example/sweetshop/pkg/models"
)

type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// Line is a cart item joined with its product's display fields and a
// computed line total.
type Line struct {
	ID          string  `json:"id"`
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Image       string  `json:"image"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
	TotalPrice  float64 `json:"total_price"`
}

// List returns the customer's cart lines.
func (s *Service) List(ctx context.Context, customer identity.Customer) ([]Line, error) {
	var items []models.CartItem
	if err := s.db.WithContext(ctx).Where("user_id = ?", customer.ID).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list cart items: %w", err)
	}

	lines := make([]Line, 0, len(items))
	for _, item := range items {
		var product models.Product
		if err := s.db.WithContext(ctx).First(&product, "id = ?", item.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Product deleted since the line was added; show the line bare.
				lines = append(lines, toLine(&item, nil))
				continue
			}
			return nil, fmt.Errorf("failed to load product for cart item: %w", err)
		}
		lines = append(lines, toLine(&item, &product))
	}
	return lines, nil
}

// Add puts quantity units of a product into the cart. Adding a product
// that is already in the cart merges into the existing line: quantities
// sum and the price snapshot is refreshed to the product's current price.
func (s *Service) Add(ctx context.Context, customer identity.Customer, productID string, quantity int) (*Line, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("quantity must be at least 1: %w", errs.ErrInvalidArgument)
	}

	var product models.Product
	if err := s.db.WithContext(ctx).First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product %s: %w", productID, errs.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	if product.Stock < quantity {
		return nil, &errs.InsufficientStockError{
			Product:   product.Name,
			Available: product.Stock,
			Requested: quantity,
		}
	}

	var item models.CartItem
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", customer.ID, productID).
		First(&item).Error
	switch {
	case err == nil:
		item.Quantity += quantity
		item.Price = product.Price
		if err := s.db.WithContext(ctx).Save(&item).Error; err != nil {
			return nil, fmt.Errorf("failed to update cart item: %w", err)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		item = models.CartItem{
			ID:        uuid.New().String(),
			UserID:    customer.ID,
			ProductID: productID,
			Quantity:  quantity,
			Price:     product.Price,
		}
		if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
			return nil, fmt.Errorf("failed to create cart item: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to look up cart item: %w", err)
	}

	line := toLine(&item, &product)
	return &line, nil
}

// UpdateQuantity overwrites a line's quantity. A quantity of zero or less
// deletes the line.
func (s *Service) UpdateQuantity(ctx context.Context, customer identity.Customer, itemID string, quantity int) error {
	item, err := s.ownedItem(ctx, customer, itemID)
	if err != nil {
		return err
	}

	if quantity <= 0 {
		if err := s.db.WithContext(ctx).Delete(item).Error; err != nil {
			return fmt.Errorf("failed to delete cart item: %w", err)
		}
		return nil
	}

	var product models.Product
	if err := s.db.WithContext(ctx).First(&product, "id = ?", item.ProductID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("product %s: %w", item.ProductID, errs.ErrNotFound)
		}
		return fmt.Errorf("failed to get product: %w", err)
	}
	if product.Stock < quantity {
		return &errs.InsufficientStockError{
			Product:   product.Name,
			Available: product.Stock,
			Requested: quantity,
		}
	}

	item.Quantity = quantity
	if err := s.db.WithContext(ctx).Save(item).Error; err != nil {
		return fmt.Errorf("failed to update cart item: %w", err)
	}
	return nil
}

// Remove deletes one line from the customer's cart.
func (s *Service) Remove(ctx context.Context, customer identity.Customer, itemID string) error {
	item, err := s.ownedItem(ctx, customer, itemID)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(item).Error; err != nil {
		return fmt.Errorf("failed to delete cart item: %w", err)
	}
	return nil
}

// Clear deletes every line in the customer's cart.
func (s *Service) Clear(ctx context.Context, customer identity.Customer) error {
	if err := s.db.WithContext(ctx).Where("user_id = ?", customer.ID).Delete(&models.CartItem{}).Error; err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

func (s *Service) ownedItem(ctx context.Context, customer identity.Customer, itemID string) (*models.CartItem, error) {
	var item models.CartItem
	if err := s.db.WithContext(ctx).First(&item, "id = ?", itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("cart item %s: %w", itemID, errs.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get cart item: %w", err)
	}
	if item.UserID != customer.ID {
		return nil, fmt.Errorf("cart item %s belongs to another customer: %w", itemID, errs.ErrForbidden)
	}
	return &item, nil
}

func toLine(item *models.CartItem, product *models.Product) Line {
	line := Line{
		ID:         item.ID,
		ProductID:  item.ProductID,
		Quantity:   item.Quantity,
		Price:      item.Price,
		TotalPrice: item.Price * float64(item.Quantity),
	}
	if product != nil {
		line.ProductName = product.Name
		line.Category = product.Category
		line.Description = product.Description
		line.Image = product.Image
	}
	return line
}
