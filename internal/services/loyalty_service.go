package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coffeepula/pos-api/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	// WelcomeBonusPoints is credited to every new member
	WelcomeBonusPoints = 10
	// DefaultLoyaltyMaxAttempts is used when no retry limit is configured
	DefaultLoyaltyMaxAttempts = 5
)

var pointsDivisor = decimal.NewFromInt(100)

// pointValidityYears is how long earned points stay valid
const pointValidityYears = 1

// TierRule is the spend and order count needed to reach a tier
type TierRule struct {
	Tier        models.Tier     `json:"tier"`
	MinSpent    decimal.Decimal `json:"min_spent"`
	MinOrders   int             `json:"min_orders"`
	BonusPoints int             `json:"bonus_points"`
}

// TierRules is ordered from the highest tier down
var TierRules = []TierRule{
	{Tier: models.TierPlatinum, MinSpent: decimal.NewFromInt(50000), MinOrders: 100, BonusPoints: 200},
	{Tier: models.TierGold, MinSpent: decimal.NewFromInt(20000), MinOrders: 50, BonusPoints: 100},
	{Tier: models.TierSilver, MinSpent: decimal.NewFromInt(5000), MinOrders: 20, BonusPoints: 50},
}

// PointsForAmount is one point per full 100 of spend
func PointsForAmount(amount decimal.Decimal) int {
	if !amount.IsPositive() {
		return 0
	}
	return int(amount.Div(pointsDivisor).Floor().IntPart())
}

// NextTier returns the highest tier the member qualifies for when it ranks
// above the member's current tier. Members are never downgraded.
func NextTier(member models.Member) (TierRule, bool) {
	for _, rule := range TierRules {
		if member.TotalSpent.GreaterThanOrEqual(rule.MinSpent) && member.TotalOrders >= rule.MinOrders {
			if member.Tier.AtLeast(rule.Tier) {
				return TierRule{}, false
			}
			return rule, true
		}
	}
	return TierRule{}, false
}

// MemberInput holds the fields accepted when enrolling a member
type MemberInput struct {
	Name        string     `json:"name" binding:"required"`
	Phone       *string    `json:"phone"`
	Email       *string    `json:"email"`
	DateOfBirth *time.Time `json:"date_of_birth"`
}

// MemberUpdate changes a member's details; nil fields are left alone
type MemberUpdate struct {
	Name        *string    `json:"name"`
	Phone       *string    `json:"phone"`
	Email       *string    `json:"email"`
	DateOfBirth *time.Time `json:"date_of_birth"`
	IsActive    *bool      `json:"is_active"`
}

// PointRuleInput holds the fields accepted when creating a purchase point rule
type PointRuleInput struct {
	Name            string           `json:"name" binding:"required"`
	Description     *string          `json:"description"`
	SpendAmount     decimal.Decimal  `json:"spend_amount"`
	EarnPoints      int              `json:"earn_points"`
	BonusMultiplier *decimal.Decimal `json:"bonus_multiplier"`
	ApplicableTiers []models.Tier    `json:"applicable_tiers"`
	Priority        int              `json:"priority"`
}

// RulePoints is the extra points rule grants a member of tier for amount:
// EarnPoints per full SpendAmount, scaled by the multiplier when the tier
// qualifies
func RulePoints(rule models.PointRule, tier models.Tier, amount decimal.Decimal) int {
	if !rule.IsActive || !rule.SpendAmount.IsPositive() || rule.EarnPoints <= 0 || !amount.IsPositive() {
		return 0
	}
	points := amount.Div(rule.SpendAmount).Floor().Mul(decimal.NewFromInt(int64(rule.EarnPoints)))
	if rule.BonusMultiplier != nil && rule.AppliesTo(tier) {
		points = points.Mul(*rule.BonusMultiplier).Floor()
	}
	return int(points.IntPart())
}

// MemberFilter narrows a member listing
type MemberFilter struct {
	Search string
	Tier   models.Tier
	Limit  int
	Offset int
}

// RewardInput holds the fields accepted when creating a reward
type RewardInput struct {
	Name         string       `json:"name" binding:"required"`
	Description  *string      `json:"description"`
	PointCost    int          `json:"point_cost" binding:"required"`
	RequiredTier *models.Tier `json:"required_tier"`
}

// LoyaltyStats summarises the loyalty program
type LoyaltyStats struct {
	TotalMembers      int64                 `json:"total_members"`
	ActiveMembers     int64                 `json:"active_members"`
	MembersByTier     map[models.Tier]int64 `json:"members_by_tier"`
	OutstandingPoints int64                 `json:"outstanding_points"`
	TotalRedemptions  int64                 `json:"total_redemptions"`
	PendingEvents     int64                 `json:"pending_events"`
	FailedEvents      int64                 `json:"failed_events"`
}

// LoyaltyService manages members, point accrual and rewards
type LoyaltyService interface {
	CreateMember(ctx context.Context, input MemberInput) (models.Member, error)
	ListMembers(ctx context.Context, filter MemberFilter) ([]models.Member, int64, error)
	GetMember(ctx context.Context, id string) (models.Member, error)
	GetMemberByNumber(ctx context.Context, number string) (models.Member, error)
	UpdateMember(ctx context.Context, id string, input MemberUpdate) (models.Member, error)
	PointHistory(ctx context.Context, memberID string, limit, offset int) ([]models.PointHistory, int64, error)

	// ProcessEvent credits the points of one outbox event. It returns the
	// points credited, or zero when the event was already handled.
	ProcessEvent(ctx context.Context, eventID string) (int, error)
	// ProcessPending works through up to limit pending events and returns how
	// many were credited
	ProcessPending(ctx context.Context, limit int) (int, error)

	ListRewards(ctx context.Context, activeOnly bool) ([]models.Reward, error)
	CreateReward(ctx context.Context, input RewardInput) (models.Reward, error)
	// ListPointRules returns purchase rules by descending priority
	ListPointRules(ctx context.Context, activeOnly bool) ([]models.PointRule, error)
	CreatePointRule(ctx context.Context, input PointRuleInput) (models.PointRule, error)
	Redeem(ctx context.Context, memberID, rewardID string, orderID *string) (models.RewardRedemption, error)
	Stats(ctx context.Context) (LoyaltyStats, error)
}

type loyaltyService struct {
	db          *gorm.DB
	maxAttempts int
	now         func() time.Time
}

// NewLoyaltyService creates a new instance of LoyaltyService
func NewLoyaltyService(db *gorm.DB, maxAttempts int) LoyaltyService {
	if maxAttempts <= 0 {
		maxAttempts = DefaultLoyaltyMaxAttempts
	}
	return &loyaltyService{db: db, maxAttempts: maxAttempts, now: time.Now}
}

func newMemberNumber(now time.Time) string {
	return fmt.Sprintf("MEM%s%s", now.Format("20060102"), strings.ToUpper(uuid.NewString()[:6]))
}

func (s *loyaltyService) CreateMember(ctx context.Context, input MemberInput) (models.Member, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return models.Member{}, invalid("name", "is required")
	}
	if input.Phone == nil && input.Email == nil {
		return models.Member{}, invalid("phone", "phone or email is required")
	}

	member := models.Member{
		MemberNumber:    newMemberNumber(s.now()),
		Name:            input.Name,
		Phone:           input.Phone,
		Email:           input.Email,
		DateOfBirth:     input.DateOfBirth,
		TotalPoints:     WelcomeBonusPoints,
		AvailablePoints: WelcomeBonusPoints,
		TotalSpent:      decimal.Zero,
		Tier:            models.TierBronze,
		IsActive:        true,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkContactFree(tx, "", input.Phone, input.Email); err != nil {
			return err
		}
		if err := tx.Create(&member).Error; err != nil {
			return fmt.Errorf("create member: %w", err)
		}
		welcome := models.PointHistory{
			MemberID:    member.ID,
			Type:        models.PointBonus,
			Points:      WelcomeBonusPoints,
			Description: "Welcome bonus",
		}
		return tx.Create(&welcome).Error
	})
	if err != nil {
		return models.Member{}, err
	}

	log.WithFields(logrus.Fields{"member_id": member.ID, "member_number": member.MemberNumber}).Info("Member enrolled")
	return member, nil
}

// checkContactFree rejects a phone or email already held by another member.
// The unique indexes on both columns back this check under concurrency.
func checkContactFree(tx *gorm.DB, memberID string, phone, email *string) error {
	if phone == nil && email == nil {
		return nil
	}
	query := tx.Model(&models.Member{})
	switch {
	case phone != nil && email != nil:
		query = query.Where("phone = ? OR email = ?", *phone, *email)
	case phone != nil:
		query = query.Where("phone = ?", *phone)
	default:
		query = query.Where("email = ?", *email)
	}
	if memberID != "" {
		query = query.Where("id <> ?", memberID)
	}
	var existing int64
	if err := query.Count(&existing).Error; err != nil {
		return fmt.Errorf("check member contact: %w", err)
	}
	if existing > 0 {
		return invalid("phone", "a member with this phone or email already exists")
	}
	return nil
}

func (s *loyaltyService) UpdateMember(ctx context.Context, id string, input MemberUpdate) (models.Member, error) {
	updates := map[string]interface{}{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return models.Member{}, invalid("name", "must not be empty")
		}
		updates["name"] = name
	}
	if input.Phone != nil {
		updates["phone"] = *input.Phone
	}
	if input.Email != nil {
		updates["email"] = *input.Email
	}
	if input.DateOfBirth != nil {
		updates["date_of_birth"] = *input.DateOfBirth
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}

	var member models.Member
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&member, "id = ?", id).Error; err != nil {
			return notFoundOr(err, "member", id)
		}
		if len(updates) == 0 {
			return nil
		}
		if err := checkContactFree(tx, member.ID, input.Phone, input.Email); err != nil {
			return err
		}
		if err := tx.Model(&member).Updates(updates).Error; err != nil {
			return fmt.Errorf("update member: %w", err)
		}
		return tx.First(&member, "id = ?", id).Error
	})
	if err != nil {
		return models.Member{}, err
	}
	log.WithFields(logrus.Fields{"member_id": member.ID, "fields": len(updates)}).Info("Member updated")
	return member, nil
}

func (s *loyaltyService) ListMembers(ctx context.Context, filter MemberFilter) ([]models.Member, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Member{})
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("name LIKE ? OR phone LIKE ? OR email LIKE ? OR member_number LIKE ?", like, like, like, like)
	}
	if filter.Tier != "" {
		query = query.Where("tier = ?", filter.Tier)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count members: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var members []models.Member
	if err := query.Order("name").Limit(limit).Offset(filter.Offset).Find(&members).Error; err != nil {
		return nil, 0, fmt.Errorf("list members: %w", err)
	}
	return members, total, nil
}

func (s *loyaltyService) GetMember(ctx context.Context, id string) (models.Member, error) {
	var member models.Member
	if err := s.db.WithContext(ctx).First(&member, "id = ?", id).Error; err != nil {
		return models.Member{}, notFoundOr(err, "member", id)
	}
	return member, nil
}

func (s *loyaltyService) GetMemberByNumber(ctx context.Context, number string) (models.Member, error) {
	var member models.Member
	if err := s.db.WithContext(ctx).First(&member, "member_number = ?", number).Error; err != nil {
		return models.Member{}, notFoundOr(err, "member", number)
	}
	return member, nil
}

func (s *loyaltyService) PointHistory(ctx context.Context, memberID string, limit, offset int) ([]models.PointHistory, int64, error) {
	if _, err := s.GetMember(ctx, memberID); err != nil {
		return nil, 0, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := s.db.WithContext(ctx).Model(&models.PointHistory{}).Where("member_id = ?", memberID).Session(&gorm.Session{})
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count point history: %w", err)
	}
	var history []models.PointHistory
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&history).Error; err != nil {
		return nil, 0, fmt.Errorf("list point history: %w", err)
	}
	return history, total, nil
}

func (s *loyaltyService) ProcessEvent(ctx context.Context, eventID string) (int, error) {
	var credited int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var event models.LoyaltyEvent
		if err := tx.First(&event, "id = ?", eventID).Error; err != nil {
			return notFoundOr(err, "loyalty event", eventID)
		}
		if event.Status != models.LoyaltyEventPending {
			return nil
		}

		now := s.now()
		claim := tx.Model(&models.LoyaltyEvent{}).
			Where("id = ? AND status = ?", event.ID, models.LoyaltyEventPending).
			Updates(map[string]interface{}{
				"status":       models.LoyaltyEventProcessed,
				"processed_at": now,
				"attempts":     gorm.Expr("attempts + 1"),
				"last_error":   nil,
			})
		if claim.Error != nil {
			return fmt.Errorf("claim loyalty event: %w", claim.Error)
		}
		if claim.RowsAffected == 0 {
			return nil
		}

		points, err := s.accrue(tx, event, now)
		if err != nil {
			return err
		}
		credited = points
		return nil
	})
	if err != nil {
		s.recordFailure(ctx, eventID, err)
		return 0, err
	}
	return credited, nil
}

// accrue credits the member for one order and applies any tier upgrade
func (s *loyaltyService) accrue(tx *gorm.DB, event models.LoyaltyEvent, now time.Time) (int, error) {
	var member models.Member
	if err := lockForUpdate(tx).First(&member, "id = ?", event.MemberID).Error; err != nil {
		return 0, notFoundOr(err, "member", event.MemberID)
	}
	if !member.IsActive {
		return 0, invalid("member", "member %s is not active", member.MemberNumber)
	}

	var rules []models.PointRule
	if err := tx.Where("is_active = ?", true).Order("priority DESC").Find(&rules).Error; err != nil {
		return 0, fmt.Errorf("load point rules: %w", err)
	}
	points := PointsForAmount(event.Amount)
	for _, rule := range rules {
		points += RulePoints(rule, member.Tier, event.Amount)
	}

	err := tx.Model(&models.Member{}).Where("id = ?", member.ID).Updates(map[string]interface{}{
		"total_points":     gorm.Expr("total_points + ?", points),
		"available_points": gorm.Expr("available_points + ?", points),
		"total_spent":      gorm.Expr("total_spent + ?", event.Amount),
		"total_orders":     gorm.Expr("total_orders + 1"),
		"last_visit":       now,
	}).Error
	if err != nil {
		return 0, fmt.Errorf("credit member: %w", err)
	}

	if points > 0 {
		orderID := event.OrderID
		expires := now.AddDate(pointValidityYears, 0, 0)
		history := models.PointHistory{
			MemberID:      member.ID,
			OrderID:       &orderID,
			Type:          models.PointEarn,
			Points:        points,
			Description:   fmt.Sprintf("Earned from order total %s", event.Amount.StringFixed(2)),
			ReferenceType: models.StringPtr("ORDER"),
			ReferenceID:   &orderID,
			ExpiresAt:     &expires,
		}
		if err := tx.Create(&history).Error; err != nil {
			return 0, fmt.Errorf("record earned points: %w", err)
		}
	}

	if err := tx.First(&member, "id = ?", member.ID).Error; err != nil {
		return 0, fmt.Errorf("reload member: %w", err)
	}
	if err := applyTierUpgrade(tx, member); err != nil {
		return 0, err
	}

	log.WithFields(logrus.Fields{
		"member_id": member.ID,
		"order_id":  event.OrderID,
		"points":    points,
	}).Info("Loyalty points credited")
	return points, nil
}

func applyTierUpgrade(tx *gorm.DB, member models.Member) error {
	rule, ok := NextTier(member)
	if !ok {
		return nil
	}

	err := tx.Model(&models.Member{}).Where("id = ?", member.ID).Updates(map[string]interface{}{
		"tier":             rule.Tier,
		"total_points":     gorm.Expr("total_points + ?", rule.BonusPoints),
		"available_points": gorm.Expr("available_points + ?", rule.BonusPoints),
	}).Error
	if err != nil {
		return fmt.Errorf("upgrade member tier: %w", err)
	}

	upgrade := models.TierUpgrade{
		MemberID:       member.ID,
		FromTier:       member.Tier,
		ToTier:         rule.Tier,
		AchievedSpend:  member.TotalSpent,
		AchievedOrders: member.TotalOrders,
		BonusPoints:    rule.BonusPoints,
	}
	if err := tx.Create(&upgrade).Error; err != nil {
		return fmt.Errorf("record tier upgrade: %w", err)
	}
	bonus := models.PointHistory{
		MemberID:      member.ID,
		Type:          models.PointBonus,
		Points:        rule.BonusPoints,
		Description:   fmt.Sprintf("Tier upgrade bonus: %s", rule.Tier),
		ReferenceType: models.StringPtr("TIER_UPGRADE"),
		ReferenceID:   &upgrade.ID,
	}
	if err := tx.Create(&bonus).Error; err != nil {
		return fmt.Errorf("record tier bonus: %w", err)
	}

	log.WithFields(logrus.Fields{"member_id": member.ID, "from": member.Tier, "to": rule.Tier}).Info("Member tier upgraded")
	return nil
}

// recordFailure notes a failed attempt on the event, giving up once the
// attempt limit is reached
func (s *loyaltyService) recordFailure(ctx context.Context, eventID string, cause error) {
	var notFound *NotFoundError
	if errors.As(cause, &notFound) && notFound.Resource == "loyalty event" {
		return
	}

	message := cause.Error()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var event models.LoyaltyEvent
		if err := tx.First(&event, "id = ?", eventID).Error; err != nil {
			return err
		}
		attempts := event.Attempts + 1
		status := models.LoyaltyEventPending
		if attempts >= s.maxAttempts {
			status = models.LoyaltyEventFailed
		}
		return tx.Model(&event).Where("status = ?", models.LoyaltyEventPending).Updates(map[string]interface{}{
			"attempts":   attempts,
			"last_error": message,
			"status":     status,
		}).Error
	})
	if err != nil {
		log.WithError(err).WithField("event_id", eventID).Error("Failed to record loyalty event failure")
		return
	}
	log.WithError(cause).WithField("event_id", eventID).Warn("Loyalty accrual failed")
}

func (s *loyaltyService) ProcessPending(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.LoyaltyEvent{}).
		Where("status = ?", models.LoyaltyEventPending).
		Order("created_at").Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, fmt.Errorf("list pending loyalty events: %w", err)
	}

	processed := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		if _, err := s.ProcessEvent(ctx, id); err != nil {
			continue
		}
		processed++
	}
	return processed, nil
}

func (s *loyaltyService) ListRewards(ctx context.Context, activeOnly bool) ([]models.Reward, error) {
	query := s.db.WithContext(ctx).Order("point_cost")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	var rewards []models.Reward
	if err := query.Find(&rewards).Error; err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	return rewards, nil
}

func (s *loyaltyService) CreateReward(ctx context.Context, input RewardInput) (models.Reward, error) {
	if strings.TrimSpace(input.Name) == "" {
		return models.Reward{}, invalid("name", "is required")
	}
	if input.PointCost <= 0 {
		return models.Reward{}, invalid("point_cost", "must be greater than zero")
	}
	if input.RequiredTier != nil && !input.RequiredTier.Valid() {
		return models.Reward{}, invalid("required_tier", "unknown tier %q", *input.RequiredTier)
	}

	reward := models.Reward{
		Name:         strings.TrimSpace(input.Name),
		Description:  input.Description,
		PointCost:    input.PointCost,
		RequiredTier: input.RequiredTier,
		IsActive:     true,
	}
	if err := s.db.WithContext(ctx).Create(&reward).Error; err != nil {
		return models.Reward{}, fmt.Errorf("create reward: %w", err)
	}
	return reward, nil
}

func (s *loyaltyService) ListPointRules(ctx context.Context, activeOnly bool) ([]models.PointRule, error) {
	query := s.db.WithContext(ctx).Order("priority DESC, name")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	var rules []models.PointRule
	if err := query.Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("list point rules: %w", err)
	}
	return rules, nil
}

func (s *loyaltyService) CreatePointRule(ctx context.Context, input PointRuleInput) (models.PointRule, error) {
	name := strings.TrimSpace(input.Name)
	switch {
	case name == "":
		return models.PointRule{}, invalid("name", "is required")
	case !input.SpendAmount.IsPositive():
		return models.PointRule{}, invalid("spend_amount", "must be greater than zero")
	case input.EarnPoints <= 0:
		return models.PointRule{}, invalid("earn_points", "must be greater than zero")
	case input.BonusMultiplier != nil && !input.BonusMultiplier.IsPositive():
		return models.PointRule{}, invalid("bonus_multiplier", "must be greater than zero")
	}
	tiers := make([]string, 0, len(input.ApplicableTiers))
	for _, tier := range input.ApplicableTiers {
		if !tier.Valid() {
			return models.PointRule{}, invalid("applicable_tiers", "unknown tier %q", tier)
		}
		tiers = append(tiers, string(tier))
	}

	rule := models.PointRule{
		Name:            name,
		Description:     input.Description,
		SpendAmount:     input.SpendAmount,
		EarnPoints:      input.EarnPoints,
		BonusMultiplier: input.BonusMultiplier,
		ApplicableTiers: strings.Join(tiers, ","),
		Priority:        input.Priority,
		IsActive:        true,
	}
	if err := s.db.WithContext(ctx).Create(&rule).Error; err != nil {
		return models.PointRule{}, fmt.Errorf("create point rule: %w", err)
	}
	log.WithFields(logrus.Fields{"rule_id": rule.ID, "name": rule.Name}).Info("Point rule created")
	return rule, nil
}

func (s *loyaltyService) Redeem(ctx context.Context, memberID, rewardID string, orderID *string) (models.RewardRedemption, error) {
	var redemption models.RewardRedemption
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var member models.Member
		if err := lockForUpdate(tx).First(&member, "id = ?", memberID).Error; err != nil {
			return notFoundOr(err, "member", memberID)
		}
		if !member.IsActive {
			return invalid("member", "member %s is not active", member.MemberNumber)
		}

		var reward models.Reward
		if err := tx.First(&reward, "id = ?", rewardID).Error; err != nil {
			return notFoundOr(err, "reward", rewardID)
		}
		if !reward.IsActive {
			return invalid("reward", "%s is no longer available", reward.Name)
		}
		if reward.RequiredTier != nil && !member.Tier.AtLeast(*reward.RequiredTier) {
			return invalid("reward", "%s requires tier %s", reward.Name, *reward.RequiredTier)
		}

		debit := tx.Model(&models.Member{}).
			Where("id = ? AND available_points >= ?", member.ID, reward.PointCost).
			Updates(map[string]interface{}{
				"available_points": gorm.Expr("available_points - ?", reward.PointCost),
				"used_points":      gorm.Expr("used_points + ?", reward.PointCost),
			})
		if debit.Error != nil {
			return fmt.Errorf("debit points: %w", debit.Error)
		}
		if debit.RowsAffected == 0 {
			return invalid("points", "need %d points, have %d", reward.PointCost, member.AvailablePoints)
		}

		redemption = models.RewardRedemption{
			MemberID:   member.ID,
			RewardID:   reward.ID,
			OrderID:    orderID,
			PointsUsed: reward.PointCost,
			Status:     "REDEEMED",
		}
		if err := tx.Create(&redemption).Error; err != nil {
			return fmt.Errorf("create redemption: %w", err)
		}
		history := models.PointHistory{
			MemberID:      member.ID,
			OrderID:       orderID,
			Type:          models.PointRedeem,
			Points:        -reward.PointCost,
			Description:   fmt.Sprintf("Redeemed %s", reward.Name),
			ReferenceType: models.StringPtr("REWARD"),
			ReferenceID:   &redemption.ID,
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("record redeemed points: %w", err)
		}
		redemption.Reward = &reward
		return tx.Model(&reward).Update("total_redemptions", gorm.Expr("total_redemptions + 1")).Error
	})
	if err != nil {
		return models.RewardRedemption{}, err
	}

	log.WithFields(logrus.Fields{"member_id": memberID, "reward_id": rewardID, "points": redemption.PointsUsed}).Info("Reward redeemed")
	return redemption, nil
}

func (s *loyaltyService) Stats(ctx context.Context) (LoyaltyStats, error) {
	db := s.db.WithContext(ctx)
	stats := LoyaltyStats{MembersByTier: make(map[models.Tier]int64)}

	if err := db.Model(&models.Member{}).Count(&stats.TotalMembers).Error; err != nil {
		return LoyaltyStats{}, fmt.Errorf("count members: %w", err)
	}
	if err := db.Model(&models.Member{}).Where("is_active = ?", true).Count(&stats.ActiveMembers).Error; err != nil {
		return LoyaltyStats{}, fmt.Errorf("count active members: %w", err)
	}

	var tiers []struct {
		Tier  models.Tier
		Count int64
	}
	if err := db.Model(&models.Member{}).Select("tier, COUNT(*) AS count").Group("tier").Scan(&tiers).Error; err != nil {
		return LoyaltyStats{}, fmt.Errorf("count members by tier: %w", err)
	}
	for _, t := range tiers {
		stats.MembersByTier[t.Tier] = t.Count
	}

	if err := db.Model(&models.Member{}).Select("COALESCE(SUM(available_points), 0)").Scan(&stats.OutstandingPoints).Error; err != nil {
		return LoyaltyStats{}, fmt.Errorf("sum points: %w", err)
	}
	if err := db.Model(&models.RewardRedemption{}).Count(&stats.TotalRedemptions).Error; err != nil {
		return LoyaltyStats{}, fmt.Errorf("count redemptions: %w", err)
	}
	if err := db.Model(&models.LoyaltyEvent{}).Where("status = ?", models.LoyaltyEventPending).Count(&stats.PendingEvents).Error; err != nil {
		return LoyaltyStats{}, fmt.Errorf("count pending events: %w", err)
	}
	if err := db.Model(&models.LoyaltyEvent{}).Where("status = ?", models.LoyaltyEventFailed).Count(&stats.FailedEvents).Error; err != nil {
		return LoyaltyStats{}, fmt.Errorf("count failed events: %w", err)
	}
	return stats, nil
}
