package controllers

import (
	"net/http"
	"strconv"

	"github.com/coffeepula/pos-api/internal/models"
	"github.com/coffeepula/pos-api/internal/services"
	"github.com/gin-gonic/gin"
)

// LoyaltyController handles members, points and rewards
type LoyaltyController interface {
	CreateMember(c *gin.Context)
	ListMembers(c *gin.Context)
	GetMember(c *gin.Context)
	UpdateMember(c *gin.Context)
	GetMemberByNumber(c *gin.Context)
	PointHistory(c *gin.Context)
	ListRewards(c *gin.Context)
	CreateReward(c *gin.Context)
	Redeem(c *gin.Context)
	ListPointRules(c *gin.Context)
	CreatePointRule(c *gin.Context)
	Stats(c *gin.Context)
	// ProcessPending retries accrual events that are still pending
	ProcessPending(c *gin.Context)
}

type loyaltyController struct {
	loyalty services.LoyaltyService
}

// NewLoyaltyController creates a new instance of LoyaltyController
func NewLoyaltyController(loyalty services.LoyaltyService) LoyaltyController {
	return &loyaltyController{loyalty: loyalty}
}

// MemberPage is one page of members
type MemberPage struct {
	Members []models.Member `json:"members"`
	Total   int64           `json:"total"`
}

// PointHistoryPage is one page of point history
type PointHistoryPage struct {
	History []models.PointHistory `json:"history"`
	Total   int64                 `json:"total"`
}

// RedeemRequest is the body of a reward redemption
type RedeemRequest struct {
	RewardID string  `json:"reward_id" binding:"required"`
	OrderID  *string `json:"order_id"`
}

// ProcessPendingResponse reports how many events were credited
type ProcessPendingResponse struct {
	Processed int `json:"processed"`
}

func queryInt(ctx *gin.Context, key string) int {
	n, _ := strconv.Atoi(ctx.Query(key))
	return n
}

// CreateMember godoc
// @Summary Enroll a member
// @Description Phone or email is required; a welcome bonus is credited
// @Tags loyalty
// @Accept json
// @Produce json
// @Param member body services.MemberInput true "Member"
// @Success 201 {object} models.Member
// @Failure 400 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/loyalty/members [post]
func (c *loyaltyController) CreateMember(ctx *gin.Context) {
	var input services.MemberInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		respondBindError(ctx, err)
		return
	}
	member, err := c.loyalty.CreateMember(ctx.Request.Context(), input)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, member)
}

// ListMembers godoc
// @Summary List members
// @Tags loyalty
// @Produce json
// @Param search query string false "Match name, phone, email or member number"
// @Param tier query string false "BRONZE, SILVER, GOLD or PLATINUM"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} MemberPage
// @Security BearerAuth
// @Router /api/v1/loyalty/members [get]
func (c *loyaltyController) ListMembers(ctx *gin.Context) {
	members, total, err := c.loyalty.ListMembers(ctx.Request.Context(), services.MemberFilter{
		Search: ctx.Query("search"),
		Tier:   models.Tier(ctx.Query("tier")),
		Limit:  queryInt(ctx, "limit"),
		Offset: queryInt(ctx, "offset"),
	})
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, MemberPage{Members: members, Total: total})
}

// GetMember godoc
// @Summary Get member by ID
// @Tags loyalty
// @Produce json
// @Param id path string true "Member ID"
// @Success 200 {object} models.Member
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/loyalty/members/{id} [get]
func (c *loyaltyController) GetMember(ctx *gin.Context) {
	member, err := c.loyalty.GetMember(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, member)
}

// UpdateMember godoc
// @Summary Update a member
// @Description Only the fields present in the body are changed
// @Tags loyalty
// @Accept json
// @Produce json
// @Param id path string true "Member ID"
// @Param member body services.MemberUpdate true "Member fields"
// @Success 200 {object} models.Member
// @Failure 400 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/loyalty/members/{id} [put]
func (c *loyaltyController) UpdateMember(ctx *gin.Context) {
	var input services.MemberUpdate
	if err := ctx.ShouldBindJSON(&input); err != nil {
		respondBindError(ctx, err)
		return
	}
	member, err := c.loyalty.UpdateMember(ctx.Request.Context(), ctx.Param("id"), input)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, member)
}

// GetMemberByNumber godoc
// @Summary Look up a member by card number
// @Tags loyalty
// @Produce json
// @Param number path string true "Member number"
// @Success 200 {object} models.Member
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/loyalty/member-numbers/{number} [get]
func (c *loyaltyController) GetMemberByNumber(ctx *gin.Context) {
	member, err := c.loyalty.GetMemberByNumber(ctx.Request.Context(), ctx.Param("number"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, member)
}

// PointHistory godoc
// @Summary List a member's point history
// @Tags loyalty
// @Produce json
// @Param id path string true "Member ID"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} PointHistoryPage
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/loyalty/members/{id}/history [get]
func (c *loyaltyController) PointHistory(ctx *gin.Context) {
	history, total, err := c.loyalty.PointHistory(ctx.Request.Context(), ctx.Param("id"), queryInt(ctx, "limit"), queryInt(ctx, "offset"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, PointHistoryPage{History: history, Total: total})
}

// ListRewards godoc
// @Summary List rewards
// @Tags loyalty
// @Produce json
// @Param active query bool false "Only active rewards"
// @Success 200 {array} models.Reward
// @Security BearerAuth
// @Router /api/v1/loyalty/rewards [get]
func (c *loyaltyController) ListRewards(ctx *gin.Context) {
	activeOnly, _ := strconv.ParseBool(ctx.Query("active"))
	rewards, err := c.loyalty.ListRewards(ctx.Request.Context(), activeOnly)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, rewards)
}

// CreateReward godoc
// @Summary Create a reward
// @Tags loyalty
// @Accept json
// @Produce json
// @Param reward body services.RewardInput true "Reward"
// @Success 201 {object} models.Reward
// @Failure 400 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/loyalty/rewards [post]
func (c *loyaltyController) CreateReward(ctx *gin.Context) {
	var input services.RewardInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		respondBindError(ctx, err)
		return
	}
	reward, err := c.loyalty.CreateReward(ctx.Request.Context(), input)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, reward)
}

// Redeem godoc
// @Summary Redeem a reward
// @Tags loyalty
// @Accept json
// @Produce json
// @Param id path string true "Member ID"
// @Param redemption body RedeemRequest true "Reward to redeem"
// @Success 201 {object} models.RewardRedemption
// @Failure 400 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/loyalty/members/{id}/redeem [post]
func (c *loyaltyController) Redeem(ctx *gin.Context) {
	var req RedeemRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondBindError(ctx, err)
		return
	}
	redemption, err := c.loyalty.Redeem(ctx.Request.Context(), ctx.Param("id"), req.RewardID, req.OrderID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, redemption)
}

// ListPointRules godoc
// @Summary List purchase point rules
// @Tags loyalty
// @Produce json
// @Param active query bool false "Only active rules"
// @Success 200 {array} models.PointRule
// @Security BearerAuth
// @Router /api/v1/loyalty/point-rules [get]
func (c *loyaltyController) ListPointRules(ctx *gin.Context) {
	activeOnly, _ := strconv.ParseBool(ctx.Query("active"))
	rules, err := c.loyalty.ListPointRules(ctx.Request.Context(), activeOnly)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, rules)
}

// CreatePointRule godoc
// @Summary Create a purchase point rule
// @Description Extra points per spend, optionally multiplied for some tiers
// @Tags loyalty
// @Accept json
// @Produce json
// @Param rule body services.PointRuleInput true "Point rule"
// @Success 201 {object} models.PointRule
// @Failure 400 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/loyalty/point-rules [post]
func (c *loyaltyController) CreatePointRule(ctx *gin.Context) {
	var input services.PointRuleInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		respondBindError(ctx, err)
		return
	}
	rule, err := c.loyalty.CreatePointRule(ctx.Request.Context(), input)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, rule)
}

// Stats godoc
// @Summary Loyalty program statistics
// @Tags loyalty
// @Produce json
// @Success 200 {object} services.LoyaltyStats
// @Security BearerAuth
// @Router /api/v1/loyalty/stats [get]
func (c *loyaltyController) Stats(ctx *gin.Context) {
	stats, err := c.loyalty.Stats(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, stats)
}

// ProcessPending godoc
// @Summary Credit pending loyalty events
// @Tags loyalty
// @Produce json
// @Param limit query int false "Maximum events to process"
// @Success 200 {object} ProcessPendingResponse
// @Security BearerAuth
// @Router /api/v1/loyalty/events/process [post]
func (c *loyaltyController) ProcessPending(ctx *gin.Context) {
	limit := queryInt(ctx, "limit")
	if limit <= 0 {
		limit = 100
	}
	processed, err := c.loyalty.ProcessPending(ctx.Request.Context(), limit)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, ProcessPendingResponse{Processed: processed})
}
