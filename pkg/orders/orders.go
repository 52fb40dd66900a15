// Package orders owns the order lifecycle: status transitions, tracking
// assignment and ownership-checked reads. Orders themselves are created
// only by the checkout engine and never deleted here.
package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/sweetshop/pkg/errs"
	"github.com/example/sweetshop/pkg/identity"
	"github.com/example/sweetshop/pkg/models"
	"github.com/example/sweetshop/pkg/repository"
)

type Service struct {
	db     *gorm.DB
	cache  *repository.Cache
	events repository.EventSink
	logger *zap.Logger
}

// NewService wires the lifecycle service. cache and events may be nil.
func NewService(db *gorm.DB, cache *repository.Cache, events repository.EventSink, logger *zap.Logger) *Service {
	return &Service{db: db, cache: cache, events: events, logger: logger}
}

// SetStatus overwrites the order's status and applies the per-status
// effect (SHIPPED stamps an estimated delivery date, DELIVERED stamps the
// actual one). Any target status is accepted; off-graph moves are logged.
func (s *Service) SetStatus(ctx context.Context, orderID string, status models.OrderStatus) (*models.Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !ValidTransition(order.Status, status) {
		s.logger.Warn("Order status moved off the expected graph",
			zap.String("order_id", orderID),
			zap.String("from", string(order.Status)),
			zap.String("to", string(status)))
	}

	applyTransition(order, status, time.Now())

	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(order).Error; err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	s.invalidate(ctx, orderID)
	s.emit(ctx, "status_changed", orderID, bson.M{"status": string(status)})
	return order, nil
}

// SetTracking stores a tracking number. An order still in PROCESSING is
// advanced to SHIPPED as a side effect, with the SHIPPED effect applied.
func (s *Service) SetTracking(ctx context.Context, orderID, trackingNumber string) (*models.Order, error) {
	if trackingNumber == "" {
		return nil, fmt.Errorf("tracking number is required: %w", errs.ErrInvalidArgument)
	}

	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}

	order.TrackingNumber = trackingNumber
	now := time.Now()
	order.UpdatedAt = now
	if order.Status == models.StatusProcessing {
		applyTransition(order, models.StatusShipped, now)
	}

	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(order).Error; err != nil {
		return nil, fmt.Errorf("failed to update order tracking: %w", err)
	}

	s.invalidate(ctx, orderID)
	s.emit(ctx, "tracking_assigned", orderID, bson.M{"tracking_number": trackingNumber, "status": string(order.Status)})
	return order, nil
}

// GetByID returns one order with its items. Non-admin callers may only
// read their own orders.
func (s *Service) GetByID(ctx context.Context, customer identity.Customer, orderID string) (*models.Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !customer.Owns(order.UserID) {
		return nil, fmt.Errorf("order %s belongs to another customer: %w", orderID, errs.ErrForbidden)
	}
	return order, nil
}

// ListForCustomer returns the customer's orders, newest first.
func (s *Service) ListForCustomer(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// ListAll returns every order, newest first. Administrative.
func (s *Service) ListAll(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.WithContext(ctx).
		Preload("Items").
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *Service) load(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Preload("Items").First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order %s: %w", orderID, errs.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}

func (s *Service) invalidate(ctx context.Context, orderID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateOrder(ctx, orderID); err != nil {
		s.logger.Warn("Failed to invalidate order cache", zap.String("order_id", orderID), zap.Error(err))
	}
}

func (s *Service) emit(ctx context.Context, action, entityID string, data bson.M) {
	if s.events == nil {
		return
	}
	go func() {
		event := &repository.Event{
			Service:  "order-service",
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
