package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coffeepula/pos-api/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var hundred = decimal.NewFromInt(100)

// DiscountLine is the part of an order line a promotion looks at
type DiscountLine struct {
	Price    decimal.Decimal
	Quantity int
}

// PromotionApplies reports whether promo can be used at the given moment
func PromotionApplies(promo models.Promotion, at time.Time) bool {
	if promo.Status != models.PromotionActive {
		return false
	}
	if promo.StartDate != nil && at.Before(*promo.StartDate) {
		return false
	}
	if promo.EndDate != nil && at.After(*promo.EndDate) {
		return false
	}
	if promo.UsageLimit != nil && promo.UsageCount >= *promo.UsageLimit {
		return false
	}
	if promo.Type == models.PromotionHappyHour {
		return withinDailyWindow(promo.StartTime, promo.EndTime, at)
	}
	return true
}

// withinDailyWindow compares HH:MM strings; a window that ends before it
// starts wraps past midnight
func withinDailyWindow(start, end *string, at time.Time) bool {
	if start == nil || end == nil {
		return false
	}
	now := at.Format("15:04")
	if *start <= *end {
		return now >= *start && now < *end
	}
	return now >= *start || now < *end
}

// CalculatePromotionDiscount returns the discount promo gives on an order.
// It returns zero when the promotion does not apply. The result never
// exceeds the subtotal.
func CalculatePromotionDiscount(promo models.Promotion, lines []DiscountLine, at time.Time) decimal.Decimal {
	if !PromotionApplies(promo, at) {
		return decimal.Zero
	}

	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	if promo.MinSpend != nil && subtotal.LessThan(*promo.MinSpend) {
		return decimal.Zero
	}

	discount := decimal.Zero
	switch promo.Type {
	case models.PromotionDiscount, models.PromotionHappyHour, models.PromotionMinSpend:
		if promo.DiscountPercent != nil {
			discount = subtotal.Mul(*promo.DiscountPercent).Div(hundred)
		}
	case models.PromotionFixedAmount:
		if promo.DiscountAmount != nil {
			discount = *promo.DiscountAmount
		}
	case models.PromotionBuyXGetY:
		if promo.BuyQuantity == nil || promo.GetQuantity == nil || *promo.BuyQuantity <= 0 || *promo.GetQuantity <= 0 {
			break
		}
		group := *promo.BuyQuantity + *promo.GetQuantity
		for _, l := range lines {
			free := (l.Quantity / group) * *promo.GetQuantity
			discount = discount.Add(l.Price.Mul(decimal.NewFromInt(int64(free))))
		}
	}

	if promo.MaxDiscount != nil && discount.GreaterThan(*promo.MaxDiscount) {
		discount = *promo.MaxDiscount
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	return discount.Round(2)
}

// PromotionInput holds the fields accepted when creating a promotion
type PromotionInput struct {
	Name            string               `json:"name" binding:"required"`
	Description     *string              `json:"description"`
	Type            models.PromotionType `json:"type" binding:"required"`
	DiscountPercent *decimal.Decimal     `json:"discount_percent"`
	DiscountAmount  *decimal.Decimal     `json:"discount_amount"`
	MaxDiscount     *decimal.Decimal     `json:"max_discount"`
	MinSpend        *decimal.Decimal     `json:"min_spend"`
	StartTime       *string              `json:"start_time"`
	EndTime         *string              `json:"end_time"`
	BuyQuantity     *int                 `json:"buy_quantity"`
	GetQuantity     *int                 `json:"get_quantity"`
	StartDate       *time.Time           `json:"start_date"`
	EndDate         *time.Time           `json:"end_date"`
	UsageLimit      *int                 `json:"usage_limit"`
}

func (in PromotionInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return invalid("name", "is required")
	}
	switch in.Type {
	case models.PromotionDiscount, models.PromotionMinSpend:
		if in.DiscountPercent == nil || !in.DiscountPercent.IsPositive() || in.DiscountPercent.GreaterThan(hundred) {
			return invalid("discount_percent", "must be between 0 and 100")
		}
		if in.Type == models.PromotionMinSpend && (in.MinSpend == nil || !in.MinSpend.IsPositive()) {
			return invalid("min_spend", "is required for MIN_SPEND promotions")
		}
	case models.PromotionHappyHour:
		if in.DiscountPercent == nil || !in.DiscountPercent.IsPositive() || in.DiscountPercent.GreaterThan(hundred) {
			return invalid("discount_percent", "must be between 0 and 100")
		}
		if !validClock(in.StartTime) || !validClock(in.EndTime) {
			return invalid("start_time", "start_time and end_time must be HH:MM")
		}
	case models.PromotionFixedAmount:
		if in.DiscountAmount == nil || !in.DiscountAmount.IsPositive() {
			return invalid("discount_amount", "must be greater than zero")
		}
	case models.PromotionBuyXGetY:
		if in.BuyQuantity == nil || in.GetQuantity == nil || *in.BuyQuantity < 1 || *in.GetQuantity < 1 {
			return invalid("buy_quantity", "buy_quantity and get_quantity must be at least 1")
		}
	default:
		return invalid("type", "unknown promotion type %q", in.Type)
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return invalid("end_date", "must not be before start_date")
	}
	if in.UsageLimit != nil && *in.UsageLimit < 1 {
		return invalid("usage_limit", "must be at least 1")
	}
	return nil
}

func validClock(s *string) bool {
	if s == nil {
		return false
	}
	_, err := time.Parse("15:04", *s)
	return err == nil
}

// PromotionUpdate replaces a promotion's settings. Status is kept when nil.
type PromotionUpdate struct {
	PromotionInput
	Status *models.PromotionStatus `json:"status"`
}

// CouponInput holds the fields accepted when creating a coupon
type CouponInput struct {
	Code        string  `json:"code" binding:"required"`
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
	PromotionID string  `json:"promotion_id" binding:"required"`
}

// DiscountQuote is the discount an order would receive
type DiscountQuote struct {
	OrderID       string          `json:"order_id"`
	PromotionID   *string         `json:"promotion_id"`
	PromotionName *string         `json:"promotion_name"`
	CouponCode    *string         `json:"coupon_code"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	Total         decimal.Decimal `json:"total"`
}

// PromotionService manages promotions and coupons and applies them to orders
type PromotionService interface {
	CreatePromotion(ctx context.Context, input PromotionInput) (models.Promotion, error)
	ListPromotions(ctx context.Context) ([]models.Promotion, error)
	ActivePromotions(ctx context.Context) ([]models.Promotion, error)
	UpdatePromotion(ctx context.Context, id string, input PromotionUpdate) (models.Promotion, error)
	// DeletePromotion removes an unused promotion and its coupons. A promotion
	// that has been applied to an order can only be deactivated.
	DeletePromotion(ctx context.Context, id string) error
	// ListUsage returns applied discounts, newest first. An empty promotionID
	// lists every promotion's usage.
	ListUsage(ctx context.Context, promotionID string, limit int) ([]models.PromotionUsage, error)
	CreateCoupon(ctx context.Context, input CouponInput) (models.Coupon, error)
	ListCoupons(ctx context.Context, promotionID string) ([]models.Coupon, error)
	ValidateCoupon(ctx context.Context, code string) (models.Coupon, error)
	// QuoteDiscount uses the coupon when given, otherwise the best active promotion
	QuoteDiscount(ctx context.Context, orderID string, couponCode *string) (DiscountQuote, error)
	// ApplyToOrder records the quoted discount against the order. The order
	// total itself is not rewritten.
	ApplyToOrder(ctx context.Context, orderID string, couponCode *string) (models.PromotionUsage, error)
}

type promotionService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewPromotionService creates a new instance of PromotionService
func NewPromotionService(db *gorm.DB) PromotionService {
	return &promotionService{db: db, now: time.Now}
}

func (s *promotionService) CreatePromotion(ctx context.Context, input PromotionInput) (models.Promotion, error) {
	if err := input.validate(); err != nil {
		return models.Promotion{}, err
	}
	promo := models.Promotion{
		Name:            strings.TrimSpace(input.Name),
		Description:     input.Description,
		Type:            input.Type,
		Status:          models.PromotionActive,
		DiscountPercent: input.DiscountPercent,
		DiscountAmount:  input.DiscountAmount,
		MaxDiscount:     input.MaxDiscount,
		MinSpend:        input.MinSpend,
		StartTime:       input.StartTime,
		EndTime:         input.EndTime,
		BuyQuantity:     input.BuyQuantity,
		GetQuantity:     input.GetQuantity,
		StartDate:       input.StartDate,
		EndDate:         input.EndDate,
		UsageLimit:      input.UsageLimit,
	}
	if err := s.db.WithContext(ctx).Create(&promo).Error; err != nil {
		return models.Promotion{}, fmt.Errorf("create promotion: %w", err)
	}
	log.WithFields(logrus.Fields{"promotion_id": promo.ID, "type": promo.Type}).Info("Promotion created")
	return promo, nil
}

func (s *promotionService) UpdatePromotion(ctx context.Context, id string, input PromotionUpdate) (models.Promotion, error) {
	if err := input.validate(); err != nil {
		return models.Promotion{}, err
	}
	if input.Status != nil {
		switch *input.Status {
		case models.PromotionActive, models.PromotionInactive, models.PromotionExpired:
		default:
			return models.Promotion{}, invalid("status", "unknown promotion status %q", *input.Status)
		}
	}

	db := s.db.WithContext(ctx)
	var promo models.Promotion
	if err := db.First(&promo, "id = ?", id).Error; err != nil {
		return models.Promotion{}, notFoundOr(err, "promotion", id)
	}
	status := promo.Status
	if input.Status != nil {
		status = *input.Status
	}
	err := db.Model(&promo).
		Select("name", "description", "type", "status", "discount_percent", "discount_amount", "max_discount",
			"min_spend", "start_time", "end_time", "buy_quantity", "get_quantity", "start_date", "end_date", "usage_limit").
		Updates(models.Promotion{
			Name:            strings.TrimSpace(input.Name),
			Description:     input.Description,
			Type:            input.Type,
			Status:          status,
			DiscountPercent: input.DiscountPercent,
			DiscountAmount:  input.DiscountAmount,
			MaxDiscount:     input.MaxDiscount,
			MinSpend:        input.MinSpend,
			StartTime:       input.StartTime,
			EndTime:         input.EndTime,
			BuyQuantity:     input.BuyQuantity,
			GetQuantity:     input.GetQuantity,
			StartDate:       input.StartDate,
			EndDate:         input.EndDate,
			UsageLimit:      input.UsageLimit,
		}).Error
	if err != nil {
		return models.Promotion{}, fmt.Errorf("update promotion: %w", err)
	}
	if err := db.First(&promo, "id = ?", id).Error; err != nil {
		return models.Promotion{}, notFoundOr(err, "promotion", id)
	}
	log.WithFields(logrus.Fields{"promotion_id": promo.ID, "status": promo.Status}).Info("Promotion updated")
	return promo, nil
}

func (s *promotionService) DeletePromotion(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var promo models.Promotion
		if err := tx.First(&promo, "id = ?", id).Error; err != nil {
			return notFoundOr(err, "promotion", id)
		}
		var used int64
		if err := tx.Model(&models.PromotionUsage{}).Where("promotion_id = ?", id).Count(&used).Error; err != nil {
			return fmt.Errorf("count promotion usage: %w", err)
		}
		if used > 0 {
			return invalid("promotion", "%s was applied to %d orders; set it INACTIVE instead", promo.Name, used)
		}
		if err := tx.Where("promotion_id = ?", id).Delete(&models.Coupon{}).Error; err != nil {
			return fmt.Errorf("delete coupons: %w", err)
		}
		return tx.Delete(&promo).Error
	})
	if err != nil {
		return err
	}
	log.WithField("promotion_id", id).Info("Promotion deleted")
	return nil
}

func (s *promotionService) ListUsage(ctx context.Context, promotionID string, limit int) ([]models.PromotionUsage, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := s.db.WithContext(ctx).Preload("Promotion").Order("created_at DESC").Limit(limit)
	if promotionID != "" {
		query = query.Where("promotion_id = ?", promotionID)
	}
	var usages []models.PromotionUsage
	if err := query.Find(&usages).Error; err != nil {
		return nil, fmt.Errorf("list promotion usage: %w", err)
	}
	return usages, nil
}

func (s *promotionService) ListPromotions(ctx context.Context) ([]models.Promotion, error) {
	var promos []models.Promotion
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&promos).Error; err != nil {
		return nil, fmt.Errorf("list promotions: %w", err)
	}
	return promos, nil
}

func (s *promotionService) ActivePromotions(ctx context.Context) ([]models.Promotion, error) {
	var promos []models.Promotion
	err := s.db.WithContext(ctx).Where("status = ?", models.PromotionActive).Order("created_at").Find(&promos).Error
	if err != nil {
		return nil, fmt.Errorf("list active promotions: %w", err)
	}
	now := s.now()
	active := promos[:0]
	for _, p := range promos {
		if PromotionApplies(p, now) {
			active = append(active, p)
		}
	}
	return active, nil
}

func (s *promotionService) CreateCoupon(ctx context.Context, input CouponInput) (models.Coupon, error) {
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	if code == "" {
		return models.Coupon{}, invalid("code", "is required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return models.Coupon{}, invalid("name", "is required")
	}

	coupon := models.Coupon{
		Code:        code,
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		PromotionID: input.PromotionID,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var promo models.Promotion
		if err := tx.First(&promo, "id = ?", input.PromotionID).Error; err != nil {
			return notFoundOr(err, "promotion", input.PromotionID)
		}
		var existing int64
		if err := tx.Model(&models.Coupon{}).Where("code = ?", code).Count(&existing).Error; err != nil {
			return fmt.Errorf("check coupon code: %w", err)
		}
		if existing > 0 {
			return invalid("code", "coupon %s already exists", code)
		}
		return tx.Create(&coupon).Error
	})
	if err != nil {
		return models.Coupon{}, err
	}
	return coupon, nil
}

func (s *promotionService) ListCoupons(ctx context.Context, promotionID string) ([]models.Coupon, error) {
	query := s.db.WithContext(ctx).Order("created_at DESC")
	if promotionID != "" {
		query = query.Where("promotion_id = ?", promotionID)
	}
	var coupons []models.Coupon
	if err := query.Find(&coupons).Error; err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	return coupons, nil
}

func (s *promotionService) ValidateCoupon(ctx context.Context, code string) (models.Coupon, error) {
	return s.usableCoupon(s.db.WithContext(ctx), code)
}

func (s *promotionService) usableCoupon(tx *gorm.DB, code string) (models.Coupon, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	var coupon models.Coupon
	if err := tx.Preload("Promotion").First(&coupon, "code = ?", code).Error; err != nil {
		return models.Coupon{}, notFoundOr(err, "coupon", code)
	}
	if coupon.IsUsed {
		return models.Coupon{}, invalid("coupon", "coupon %s has already been used", code)
	}
	if coupon.Promotion == nil || !PromotionApplies(*coupon.Promotion, s.now()) {
		return models.Coupon{}, invalid("coupon", "coupon %s is not valid right now", code)
	}
	return coupon, nil
}

func (s *promotionService) quote(tx *gorm.DB, orderID string, couponCode *string) (DiscountQuote, *models.Coupon, error) {
	var order models.Order
	if err := tx.Preload("Items").First(&order, "id = ?", orderID).Error; err != nil {
		return DiscountQuote{}, nil, notFoundOr(err, "order", orderID)
	}
	lines := make([]DiscountLine, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, DiscountLine{Price: item.Price, Quantity: item.Quantity})
	}

	q := DiscountQuote{OrderID: order.ID, Subtotal: order.TotalAmount, Discount: decimal.Zero}
	now := s.now()
	var coupon *models.Coupon

	if couponCode != nil && strings.TrimSpace(*couponCode) != "" {
		c, err := s.usableCoupon(tx, *couponCode)
		if err != nil {
			return DiscountQuote{}, nil, err
		}
		coupon = &c
		q.CouponCode = &c.Code
		q.PromotionID = &c.Promotion.ID
		q.PromotionName = &c.Promotion.Name
		q.Discount = CalculatePromotionDiscount(*c.Promotion, lines, now)
	} else {
		var promos []models.Promotion
		if err := tx.Where("status = ?", models.PromotionActive).Find(&promos).Error; err != nil {
			return DiscountQuote{}, nil, fmt.Errorf("load promotions: %w", err)
		}
		for i := range promos {
			d := CalculatePromotionDiscount(promos[i], lines, now)
			if d.GreaterThan(q.Discount) {
				q.Discount = d
				q.PromotionID = &promos[i].ID
				q.PromotionName = &promos[i].Name
			}
		}
	}

	q.Total = q.Subtotal.Sub(q.Discount)
	return q, coupon, nil
}

func (s *promotionService) QuoteDiscount(ctx context.Context, orderID string, couponCode *string) (DiscountQuote, error) {
	q, _, err := s.quote(s.db.WithContext(ctx), orderID, couponCode)
	return q, err
}

func (s *promotionService) ApplyToOrder(ctx context.Context, orderID string, couponCode *string) (models.PromotionUsage, error) {
	var usage models.PromotionUsage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.PromotionUsage
		err := tx.First(&existing, "order_id = ?", orderID).Error
		if err == nil {
			return invalid("order", "a promotion is already applied to order %s", orderID)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("check promotion usage: %w", err)
		}

		q, coupon, err := s.quote(tx, orderID, couponCode)
		if err != nil {
			return err
		}
		if q.PromotionID == nil || !q.Discount.IsPositive() {
			return invalid("order", "no promotion applies to order %s", orderID)
		}

		bump := tx.Model(&models.Promotion{}).
			Where("id = ? AND (usage_limit IS NULL OR usage_count < usage_limit)", *q.PromotionID).
			Update("usage_count", gorm.Expr("usage_count + 1"))
		if bump.Error != nil {
			return fmt.Errorf("count promotion usage: %w", bump.Error)
		}
		if bump.RowsAffected == 0 {
			return invalid("promotion", "usage limit reached")
		}

		var order models.Order
		if err := tx.First(&order, "id = ?", orderID).Error; err != nil {
			return notFoundOr(err, "order", orderID)
		}

		if coupon != nil {
			now := s.now()
			claim := tx.Model(&models.Coupon{}).
				Where("id = ? AND is_used = ?", coupon.ID, false).
				Updates(map[string]interface{}{
					"is_used":  true,
					"used_at":  now,
					"used_by":  order.CustomerName,
					"order_id": order.ID,
				})
			if claim.Error != nil {
				return fmt.Errorf("mark coupon used: %w", claim.Error)
			}
			if claim.RowsAffected == 0 {
				return invalid("coupon", "coupon %s has already been used", coupon.Code)
			}
		}

		usage = models.PromotionUsage{
			PromotionID:    *q.PromotionID,
			OrderID:        order.ID,
			CustomerName:   order.CustomerName,
			DiscountAmount: q.Discount,
			CouponCode:     q.CouponCode,
		}
		return tx.Create(&usage).Error
	})
	if err != nil {
		return models.PromotionUsage{}, err
	}

	log.WithFields(logrus.Fields{
		"order_id":     orderID,
		"promotion_id": usage.PromotionID,
		"discount":     usage.DiscountAmount.String(),
	}).Info("Promotion applied")
	return usage, nil
}
