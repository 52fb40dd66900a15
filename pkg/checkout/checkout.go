// Package checkout converts a customer's cart into one immutable order.
// Order creation, per-line stock decrement and cart clearing run inside a
// single transaction: either all of it persists or none of it does.
package checkout

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

	"github.com/example/sweetshop/pkg/catalog"
	"github.com/example/sweetshop/pkg/errs"
	"github.com/example/sweetshop/pkg/identity"
	"github.com/example/sweetshop/pkg/models"
	"github.com/example/sweetshop/pkg/repository"
)

const estimatedDeliveryLead = 7 * 24 * time.Hour

type Engine struct {
	db     *gorm.DB
	cache  *repository.Cache
	events repository.EventSink
	logger *zap.Logger
}

// NewEngine wires the checkout engine. cache and events may be nil.
func NewEngine(db *gorm.DB, cache *repository.Cache, events repository.EventSink, logger *zap.Logger) *Engine {
	return &Engine{db: db, cache: cache, events: events, logger: logger}
}

// PaymentDetails optionally accompanies a checkout. Instrument is an
// opaque blob forwarded by the adapter; its presence triggers transaction
// id synthesis. Real gateway integration is out of scope.
type PaymentDetails struct {
	Mode            models.PaymentMode
	Instrument      string
	ShippingAddress string
	CustomerNotes   string
}

// Checkout converts the customer's whole cart into one PENDING order,
// decrementing stock for every line and emptying the cart, all in one
// transaction. The first line whose conditional decrement fails aborts
// the whole operation; no partial order is ever visible.
func (e *Engine) Checkout(ctx context.Context, customer identity.Customer, payment *PaymentDetails) (*models.Order, error) {
	var order *models.Order

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var items []models.CartItem
		if err := tx.Where("user_id = ?", customer.ID).Find(&items).Error; err != nil {
			return fmt.Errorf("failed to load cart: %w", err)
		}
		if len(items) == 0 {
			return fmt.Errorf("cannot checkout: %w", errs.ErrEmptyCart)
		}

		o := &models.Order{
			ID:     uuid.New().String(),
			UserID: customer.ID,
			Status: models.StatusPending,
		}
		if payment != nil {
			applyPayment(o, payment)
		}

		var total float64
		for _, item := range items {
			product, err := catalog.AdjustStockTx(tx, item.ProductID, -item.Quantity)
			if err != nil {
				return err
			}

			lineTotal := item.Price * float64(item.Quantity)
			o.Items = append(o.Items, models.OrderItem{
				ID:          uuid.New().String(),
				OrderID:     o.ID,
				ProductID:   item.ProductID,
				ProductName: product.Name,
				Category:    product.Category,
				Quantity:    item.Quantity,
				Price:       item.Price,
				TotalPrice:  lineTotal,
			})
			total += lineTotal
		}
		o.TotalAmount = total

		if err := tx.Create(o).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		if err := tx.Where("user_id = ?", customer.ID).Delete(&models.CartItem{}).Error; err != nil {
			return fmt.Errorf("failed to clear cart: %w", err)
		}

		order = o
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}

	e.afterCheckout(ctx, order)
	return order, nil
}

func applyPayment(o *models.Order, payment *PaymentDetails) {
	if payment.Mode != "" {
		o.PaymentMode = payment.Mode
	}
	o.ShippingAddress = payment.ShippingAddress
	o.CustomerNotes = payment.CustomerNotes
	if payment.Instrument != "" {
		o.PaymentTransactionID = newTransactionID(o.PaymentMode)
	}
	estimated := time.Now().Add(estimatedDeliveryLead)
	o.EstimatedDeliveryDate = &estimated
}

// newTransactionID synthesizes an opaque payment transaction id; a real
// gateway would supply this.
func newTransactionID(mode models.PaymentMode) string {
	prefix := "TX"
	switch mode {
	case models.PaymentCreditCard:
		prefix = "CC"
	case models.PaymentPayPal:
		prefix = "PP"
	}
	suffix := strings.ToUpper(uuid.New().String()[:8])
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), suffix)
}

// classify keeps the caller-visible taxonomy intact and folds everything
// else into ErrUnavailable now that the transaction has rolled back.
func classify(err error) error {
	switch {
	case errors.Is(err, errs.ErrEmptyCart),
		errors.Is(err, errs.ErrNotFound),
		errors.Is(err, errs.ErrInvalidArgument),
		errs.IsInsufficientStock(err):
		return err
	default:
		return fmt.Errorf("checkout failed: %v: %w", err, errs.ErrUnavailable)
	}
}

func (e *Engine) afterCheckout(ctx context.Context, order *models.Order) {
	if e.cache != nil {
		if err := e.cache.CacheOrder(ctx, order); err != nil {
			e.logger.Warn("Failed to cache order", zap.String("order_id", order.ID), zap.Error(err))
		}
		for _, item := range order.Items {
			if err := e.cache.InvalidateProduct(ctx, item.ProductID); err != nil {
				e.logger.Warn("Failed to invalidate product cache", zap.String("product_id", item.ProductID), zap.Error(err))
			}
		}
	}

	if e.events != nil {
		go func() {
			event := &repository.Event{
				Service:  "checkout-service",
				Action:   "order_created",
				EntityID: order.ID,
				Data: bson.M{
					"user_id":      order.UserID,
					"total_amount": order.TotalAmount,
					"items":        len(order.Items),
				},
			}
			recordCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := e.events.Record(recordCtx, event); err != nil {
				e.logger.Warn("Failed to record order event", zap.String("order_id", order.ID), zap.Error(err))
			}
		}()
	}

	e.logger.Info("Checkout completed",
		zap.String("order_id", order.ID),
		zap.String("user_id", order.UserID),
		zap.Float64("total_amount", order.TotalAmount),
		zap.Int("items", len(order.Items)))
}
