package models

import (
	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusPreparing OrderStatus = "PREPARING"
	OrderStatusReady     OrderStatus = "READY"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

var orderStatusFlow = map[OrderStatus]OrderStatus{
	OrderStatusPending:   OrderStatusConfirmed,
	OrderStatusConfirmed: OrderStatusPreparing,
	OrderStatusPreparing: OrderStatusReady,
	OrderStatusReady:     OrderStatusCompleted,
}

// Terminal reports whether no further transition is allowed
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// CanTransition reports whether an order may move from s to next.
// Orders advance one step at a time, or are cancelled from any non-terminal state.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	if s.Terminal() {
		return false
	}
	if next == OrderStatusCancelled {
		return true
	}
	return orderStatusFlow[s] == next
}

// Order is a placed sale
type Order struct {
	Base
	OrderNumber  string          `json:"order_number" gorm:"uniqueIndex;not null"`
	TotalAmount  decimal.Decimal `json:"total_amount" gorm:"type:decimal(12,2);not null"`
	Status       OrderStatus     `json:"status" gorm:"type:varchar(20);not null;index"`
	CustomerName *string         `json:"customer_name"`
	MemberID     *string         `json:"member_id" gorm:"type:varchar(36);index"`
	Notes        *string         `json:"notes"`
	Items        []OrderItem     `json:"items,omitempty" gorm:"foreignKey:OrderID"`
}

// OrderItem is one line of an order. Price is copied from the catalog at
// order time and never changes afterwards.
type OrderItem struct {
	Base
	OrderID   string          `json:"order_id" gorm:"type:varchar(36);not null;index"`
	LineNo    int             `json:"line_no" gorm:"not null"`
	ProductID string          `json:"product_id" gorm:"type:varchar(36);not null;index"`
	Product   *Product        `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Quantity  int             `json:"quantity" gorm:"not null"`
	Price     decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null"`
	Subtotal  decimal.Decimal `json:"subtotal" gorm:"type:decimal(12,2);not null"`
}
