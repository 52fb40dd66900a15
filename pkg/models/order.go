package models

import (
	"time"
)

// Order is the immutable record produced by a checkout. Its item set and
// total amount are computed once at creation; lifecycle transitions only
// touch status, tracking and the delivery timestamps.
type Order struct {
	ID                    string      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID                string      `gorm:"type:varchar(36);not null;index" json:"user_id"`
	Items                 []OrderItem `gorm:"foreignKey:OrderID" json:"items"`
	TotalAmount           float64     `gorm:"type:decimal(10,2);not null" json:"total_amount"`
	Status                OrderStatus `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	PaymentMode           PaymentMode `gorm:"type:varchar(20)" json:"payment_mode,omitempty"`
	PaymentTransactionID  string      `gorm:"type:varchar(64)" json:"payment_transaction_id,omitempty"`
	ShippingAddress       string      `gorm:"type:text" json:"shipping_address,omitempty"`
	CustomerNotes         string      `gorm:"type:text" json:"customer_notes,omitempty"`
	TrackingNumber        string      `gorm:"type:varchar(64)" json:"tracking_number,omitempty"`
	EstimatedDeliveryDate *time.Time  `json:"estimated_delivery_date,omitempty"`
	ActualDeliveryDate    *time.Time  `json:"actual_delivery_date,omitempty"`
	CreatedAt             time.Time   `json:"created_at"`
	UpdatedAt             time.Time   `json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

// OrderItem is one line of an order. Product name and category are copied
// from the product at checkout so the order survives later catalog edits
// or deletion.
type OrderItem struct {
	ID          string  `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrderID     string  `gorm:"type:varchar(36);not null;index" json:"order_id"`
	ProductID   string  `gorm:"type:varchar(36);not null;index" json:"product_id"`
	ProductName string  `gorm:"type:varchar(100)" json:"product_name"`
	Category    string  `gorm:"type:varchar(50)" json:"category"`
	Quantity    int     `gorm:"not null" json:"quantity"`
	Price       float64 `gorm:"type:decimal(10,2);not null" json:"price"`
	TotalPrice  float64 `gorm:"type:decimal(10,2);not null" json:"total_price"`
}

func (OrderItem) TableName() string {
	return "order_items"
}
