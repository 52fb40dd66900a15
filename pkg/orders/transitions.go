package orders

import (
	"time"

	"github.com/example/sweetshop/pkg/models"
)

const shippedDeliveryLead = 3 * 24 * time.Hour

// transitions is the expected status graph. SetStatus does not reject
// edges outside it — administrative overrides (say, re-opening a
// DELIVERED order) are deliberately allowed — but off-graph moves are
// logged so they stay visible.
var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.StatusPending:        {models.StatusConfirmed, models.StatusCancelled},
	models.StatusConfirmed:      {models.StatusProcessing, models.StatusCancelled},
	models.StatusProcessing:     {models.StatusShipped, models.StatusCancelled},
	models.StatusShipped:        {models.StatusOutForDelivery},
	models.StatusOutForDelivery: {models.StatusDelivered},
	models.StatusDelivered:      {models.StatusRefunded},
	models.StatusCancelled:      {},
	models.StatusRefunded:       {},
}

// ValidTransition reports whether from → to is on the expected graph.
func ValidTransition(from, to models.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// enterEffects are the side effects applied when an order enters a
// status, kept declarative so each one is testable on its own.
var enterEffects = map[models.OrderStatus]func(o *models.Order, now time.Time){
	models.StatusShipped: func(o *models.Order, now time.Time) {
		estimated := now.Add(shippedDeliveryLead)
		o.EstimatedDeliveryDate = &estimated
	},
	models.StatusDelivered: func(o *models.Order, now time.Time) {
		o.ActualDeliveryDate = &now
	},
}

// applyTransition moves the order to the target status and runs the
// per-status effect, if any.
func applyTransition(o *models.Order, to models.OrderStatus, now time.Time) {
	o.Status = to
	o.UpdatedAt = now
	if effect, ok := enterEffects[to]; ok {
		effect(o, now)
	}
}
