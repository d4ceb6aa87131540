package controllers

import (
	"net/http"

	"github.com/coffeepula/pos-api/internal/services"
	"github.com/gin-gonic/gin"
)

// PromotionController handles promotions, coupons and order discounts
type PromotionController interface {
	CreatePromotion(c *gin.Context)
	ListPromotions(c *gin.Context)
	ActivePromotions(c *gin.Context)
	UpdatePromotion(c *gin.Context)
	DeletePromotion(c *gin.Context)
	ListUsage(c *gin.Context)
	CreateCoupon(c *gin.Context)
	ListCoupons(c *gin.Context)
	ValidateCoupon(c *gin.Context)
	QuoteDiscount(c *gin.Context)
	ApplyDiscount(c *gin.Context)
}

type promotionController struct {
	promotions services.PromotionService
}

// NewPromotionController creates a new instance of PromotionController
func NewPromotionController(promotions services.PromotionService) PromotionController {
	return &promotionController{promotions: promotions}
}

// DiscountRequest optionally names a coupon; without one the best active
// promotion is used
type DiscountRequest struct {
	CouponCode *string `json:"coupon_code"`
}

// CreatePromotion godoc
// @Summary Create a promotion
// @Tags promotions
// @Accept json
// @Produce json
// @Param promotion body services.PromotionInput true "Promotion"
// @Success 201 {object} models.Promotion
// @Failure 400 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/promotions [post]
func (c *promotionController) CreatePromotion(ctx *gin.Context) {
	var input services.PromotionInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		respondBindError(ctx, err)
		return
	}
	promo, err := c.promotions.CreatePromotion(ctx.Request.Context(), input)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, promo)
}

// ListPromotions godoc
// @Summary List promotions
// @Tags promotions
// @Produce json
// @Success 200 {array} models.Promotion
// @Security BearerAuth
// @Router /api/v1/promotions [get]
func (c *promotionController) ListPromotions(ctx *gin.Context) {
	promos, err := c.promotions.ListPromotions(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, promos)
}

// ActivePromotions godoc
// @Summary List promotions that apply right now
// @Tags promotions
// @Produce json
// @Success 200 {array} models.Promotion
// @Security BearerAuth
// @Router /api/v1/promotions/active [get]
func (c *promotionController) ActivePromotions(ctx *gin.Context) {
	promos, err := c.promotions.ActivePromotions(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, promos)
}

// CreateCoupon godoc
// @Summary Create a coupon
// @Tags promotions
// @Accept json
// @Produce json
// @Param coupon body services.CouponInput true "Coupon"
// @Success 201 {object} models.Coupon
// @Failure 400 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/coupons [post]
func (c *promotionController) CreateCoupon(ctx *gin.Context) {
	var input services.CouponInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		respondBindError(ctx, err)
		return
	}
	coupon, err := c.promotions.CreateCoupon(ctx.Request.Context(), input)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, coupon)
}

// ListCoupons godoc
// @Summary List coupons
// @Tags promotions
// @Produce json
// @Param promotion_id query string false "Filter by promotion"
// @Success 200 {array} models.Coupon
// @Security BearerAuth
// @Router /api/v1/coupons [get]
func (c *promotionController) ListCoupons(ctx *gin.Context) {
	coupons, err := c.promotions.ListCoupons(ctx.Request.Context(), ctx.Query("promotion_id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, coupons)
}

// ValidateCoupon godoc
// @Summary Check whether a coupon can be used
// @Tags promotions
// @Produce json
// @Param code path string true "Coupon code"
// @Success 200 {object} models.Coupon
// @Failure 400 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/coupons/{code}/validate [get]
func (c *promotionController) ValidateCoupon(ctx *gin.Context) {
	coupon, err := c.promotions.ValidateCoupon(ctx.Request.Context(), ctx.Param("code"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, coupon)
}

func bindDiscountRequest(ctx *gin.Context) (DiscountRequest, bool) {
	var req DiscountRequest
	if ctx.Request.ContentLength == 0 {
		return req, true
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondBindError(ctx, err)
		return req, false
	}
	return req, true
}

// QuoteDiscount godoc
// @Summary Quote the discount for an order
// @Tags promotions
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param discount body DiscountRequest false "Coupon"
// @Success 200 {object} services.DiscountQuote
// @Failure 400 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/orders/{id}/discount/quote [post]
func (c *promotionController) QuoteDiscount(ctx *gin.Context) {
	req, ok := bindDiscountRequest(ctx)
	if !ok {
		return
	}
	quote, err := c.promotions.QuoteDiscount(ctx.Request.Context(), ctx.Param("id"), req.CouponCode)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, quote)
}

// ApplyDiscount godoc
// @Summary Apply a discount to an order
// @Description An order takes at most one promotion
// @Tags promotions
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param discount body DiscountRequest false "Coupon"
// @Success 201 {object} models.PromotionUsage
// @Failure 400 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/orders/{id}/discount [post]
func (c *promotionController) ApplyDiscount(ctx *gin.Context) {
	req, ok := bindDiscountRequest(ctx)
	if !ok {
		return
	}
	usage, err := c.promotions.ApplyToOrder(ctx.Request.Context(), ctx.Param("id"), req.CouponCode)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, usage)
}

// UpdatePromotion godoc
// @Summary Replace a promotion's settings
// @Tags promotions
// @Accept json
// @Produce json
// @Param id path string true "Promotion ID"
// @Param promotion body services.PromotionUpdate true "Promotion"
// @Success 200 {object} models.Promotion
// @Failure 400 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/promotions/{id} [put]
func (c *promotionController) UpdatePromotion(ctx *gin.Context) {
	var input services.PromotionUpdate
	if err := ctx.ShouldBindJSON(&input); err != nil {
		respondBindError(ctx, err)
		return
	}
	promo, err := c.promotions.UpdatePromotion(ctx.Request.Context(), ctx.Param("id"), input)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, promo)
}

// DeletePromotion godoc
// @Summary Delete an unused promotion
// @Tags promotions
// @Param id path string true "Promotion ID"
// @Success 204
// @Failure 400 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/promotions/{id} [delete]
func (c *promotionController) DeletePromotion(ctx *gin.Context) {
	if err := c.promotions.DeletePromotion(ctx.Request.Context(), ctx.Param("id")); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

// ListUsage godoc
// @Summary List discounts applied to orders
// @Tags promotions
// @Produce json
// @Param promotion_id query string false "Only usage of this promotion"
// @Param limit query int false "Maximum number of rows"
// @Success 200 {array} models.PromotionUsage
// @Security BearerAuth
// @Router /api/v1/promotion-usage [get]
func (c *promotionController) ListUsage(ctx *gin.Context) {
	usages, err := c.promotions.ListUsage(ctx.Request.Context(), ctx.Query("promotion_id"), queryInt(ctx, "limit"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, usages)
}
