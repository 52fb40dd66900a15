package models

import (
	"fmt"
)

// OrderStatus is the fulfillment state of an order.
type OrderStatus string

const (
	StatusPending        OrderStatus = "PENDING"
	StatusConfirmed      OrderStatus = "CONFIRMED"
	StatusProcessing     OrderStatus = "PROCESSING"
	StatusShipped        OrderStatus = "SHIPPED"
	StatusOutForDelivery OrderStatus = "OUT_FOR_DELIVERY"
	StatusDelivered      OrderStatus = "DELIVERED"
	StatusCancelled      OrderStatus = "CANCELLED"
	StatusRefunded       OrderStatus = "REFUNDED"
)

// PaymentMode tags how an order was paid for. The core stores the tag and
// an opaque transaction id; gateway integration lives elsewhere.
type PaymentMode string

const (
	PaymentCreditCard     PaymentMode = "CREDIT_CARD"
	PaymentPayPal         PaymentMode = "PAYPAL"
	PaymentBankTransfer   PaymentMode = "BANK_TRANSFER"
	PaymentCashOnDelivery PaymentMode = "CASH_ON_DELIVERY"
)

var orderStatuses = map[OrderStatus]bool{
	StatusPending:        true,
	StatusConfirmed:      true,
	StatusProcessing:     true,
	StatusShipped:        true,
	StatusOutForDelivery: true,
	StatusDelivered:      true,
	StatusCancelled:      true,
	StatusRefunded:       true,
}

// ParseOrderStatus validates a raw status string from an adapter layer.
func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(s)
	if !orderStatuses[status] {
		return "", fmt.Errorf("unknown order status %q", s)
	}
	return status, nil
}

// Terminal reports whether no further transition is expected from s.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusDelivered, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

var paymentModes = map[PaymentMode]bool{
	PaymentCreditCard:     true,
	PaymentPayPal:         true,
	PaymentBankTransfer:   true,
	PaymentCashOnDelivery: true,
}

// ParsePaymentMode validates a raw payment mode string.
func ParsePaymentMode(s string) (PaymentMode, error) {
	mode := PaymentMode(s)
	if !paymentModes[mode] {
		return "", fmt.Errorf("unknown payment mode %q", s)
	}
	return mode, nil
}
