// Package errs defines the caller-visible failure conditions of the
// order-processing core. All of them are recoverable; the adapter layer
// (HTTP, RPC) decides how to surface them. Retry policy belongs to the
// adapter, never to the core.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the referenced product, cart item or order does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden means the caller does not own the referenced entity.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidArgument covers non-positive quantities and similar bad input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrEmptyCart is returned by checkout when the customer has no cart lines.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrConflict is reserved for strict status-transition enforcement.
	// The lifecycle is currently permissive, so nothing returns it yet.
	ErrConflict = errors.New("conflict")
	// ErrUnavailable wraps persistence failures after the transaction rolled back.
	ErrUnavailable = errors.New("unavailable")
)

// InsufficientStockError reports a stock check or conditional decrement
// that failed, naming the offending product.
type InsufficientStockError struct {
	Product   string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock available for %s: available %d, requested %d",
		e.Product, e.Available, e.Requested)
}

// IsInsufficientStock reports whether err carries an InsufficientStockError.
func IsInsufficientStock(err error) bool {
	var e *InsufficientStockError
	return errors.As(err, &e)
}
