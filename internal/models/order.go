package models

import "time"

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusFailed    OrderStatus = "failed"
)

// IsTerminal reports whether the status can no longer change.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusFailed
}

// PaymentStatus mirrors what the payment provider verified for an order.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// OrderItem represents a single item within an order.
type OrderItem struct {
	ID        uint    `json:"-" gorm:"primaryKey"`
	OrderID   string  `json:"-" gorm:"index;type:varchar(36);not null"`
	ProductID string  `json:"product_id" gorm:"type:varchar(64);not null"`
	Quantity  int     `json:"quantity" gorm:"not null"`
	Price     float64 `json:"price" gorm:"not null"` // Price at the time of order
}

// Order represents a customer order. Orders are never deleted.
type Order struct {
	ID            string        `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID        string        `json:"user_id" gorm:"index;type:varchar(36);not null"`
	Items         []OrderItem   `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:RESTRICT"`
	TotalAmount   float64       `json:"total_amount" gorm:"not null"`
	Currency      string        `json:"currency" gorm:"type:varchar(8);not null"`
	TxRef         string        `json:"tx_ref" gorm:"uniqueIndex;type:varchar(64);not null"`
	Status        OrderStatus   `json:"status" gorm:"index;type:varchar(16);not null"`
	PaymentStatus PaymentStatus `json:"payment_status" gorm:"type:varchar(16);not null"`
	CouponCode    string        `json:"coupon_code,omitempty" gorm:"type:varchar(32)"`
	CustomerEmail string        `json:"customer_email" gorm:"type:varchar(255)"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// OrderStats summarises a customer's order history.
type OrderStats struct {
	TotalOrders     int64   `json:"totalOrders"`
	CompletedOrders int64   `json:"completedOrders"`
	TotalSpent      float64 `json:"totalSpent"`
}
