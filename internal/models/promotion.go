package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PromotionType selects how a promotion computes its discount
type PromotionType string

const (
	PromotionDiscount    PromotionType = "DISCOUNT"     // percent off
	PromotionFixedAmount PromotionType = "FIXED_AMOUNT" // flat amount off
	PromotionBuyXGetY    PromotionType = "BUY_X_GET_Y"
	PromotionHappyHour   PromotionType = "HAPPY_HOUR" // percent off inside a daily time window
	PromotionMinSpend    PromotionType = "MIN_SPEND"  // percent off above a spend threshold
)

// PromotionStatus is the lifecycle state of a promotion
type PromotionStatus string

const (
	PromotionActive   PromotionStatus = "ACTIVE"
	PromotionInactive PromotionStatus = "INACTIVE"
	PromotionExpired  PromotionStatus = "EXPIRED"
)

// Promotion is a discount rule
type Promotion struct {
	Base
	Name            string           `json:"name" gorm:"not null"`
	Description     *string          `json:"description"`
	Type            PromotionType    `json:"type" gorm:"type:varchar(20);not null"`
	Status          PromotionStatus  `json:"status" gorm:"type:varchar(20);not null;index"`
	DiscountPercent *decimal.Decimal `json:"discount_percent" gorm:"type:decimal(5,2)"`
	DiscountAmount  *decimal.Decimal `json:"discount_amount" gorm:"type:decimal(12,2)"`
	MaxDiscount     *decimal.Decimal `json:"max_discount" gorm:"type:decimal(12,2)"`
	MinSpend        *decimal.Decimal `json:"min_spend" gorm:"type:decimal(12,2)"`
	StartTime       *string          `json:"start_time"` // HH:MM
	EndTime         *string          `json:"end_time"`   // HH:MM
	BuyQuantity     *int             `json:"buy_quantity"`
	GetQuantity     *int             `json:"get_quantity"`
	StartDate       *time.Time       `json:"start_date"`
	EndDate         *time.Time       `json:"end_date"`
	UsageLimit      *int             `json:"usage_limit"`
	UsageCount      int              `json:"usage_count" gorm:"not null"`
}

// Coupon is a single-use code bound to a promotion
type Coupon struct {
	Base
	Code        string     `json:"code" gorm:"uniqueIndex;not null"`
	Name        string     `json:"name" gorm:"not null"`
	Description *string    `json:"description"`
	PromotionID string     `json:"promotion_id" gorm:"type:varchar(36);not null;index"`
	Promotion   *Promotion `json:"promotion,omitempty" gorm:"foreignKey:PromotionID"`
	IsUsed      bool       `json:"is_used" gorm:"not null"`
	UsedAt      *time.Time `json:"used_at"`
	UsedBy      *string    `json:"used_by"`
	OrderID     *string    `json:"order_id" gorm:"type:varchar(36)"`
}

// PromotionUsage records a discount applied to an order
type PromotionUsage struct {
	Base
	PromotionID    string          `json:"promotion_id" gorm:"type:varchar(36);not null;index"`
	Promotion      *Promotion      `json:"promotion,omitempty" gorm:"foreignKey:PromotionID"`
	OrderID        string          `json:"order_id" gorm:"type:varchar(36);uniqueIndex;not null"`
	CustomerName   *string         `json:"customer_name"`
	DiscountAmount decimal.Decimal `json:"discount_amount" gorm:"type:decimal(12,2);not null"`
	CouponCode     *string         `json:"coupon_code"`
}
