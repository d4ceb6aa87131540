package services

import (
	"context"
	"testing"
	"time"

	"github.com/coffeepula/pos-api/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointsForAmount(t *testing.T) {
	tests := []struct {
		amount string
		want   int
	}{
		{"0", 0},
		{"-50", 0},
		{"99.99", 0},
		{"100", 1},
		{"165", 1},
		{"1999.50", 19},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			assert.Equal(t, tt.want, PointsForAmount(dec(tt.amount)))
		})
	}
}

func TestNextTier(t *testing.T) {
	tests := []struct {
		name   string
		member models.Member
		want   models.Tier
		ok     bool
	}{
		{"below silver", models.Member{Tier: models.TierBronze, TotalSpent: dec("4999"), TotalOrders: 40}, "", false},
		{"spend without orders", models.Member{Tier: models.TierBronze, TotalSpent: dec("9000"), TotalOrders: 19}, "", false},
		{"reaches silver", models.Member{Tier: models.TierBronze, TotalSpent: dec("5000"), TotalOrders: 20}, models.TierSilver, true},
		{"skips to gold", models.Member{Tier: models.TierBronze, TotalSpent: dec("25000"), TotalOrders: 60}, models.TierGold, true},
		{"already gold", models.Member{Tier: models.TierGold, TotalSpent: dec("25000"), TotalOrders: 60}, "", false},
		{"never downgraded", models.Member{Tier: models.TierPlatinum, TotalSpent: dec("5000"), TotalOrders: 20}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, ok := NextTier(tt.member)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, rule.Tier)
		})
	}
}

func TestCreateMember(t *testing.T) {
	s := newShop(t)
	ctx := context.Background()

	member, err := s.loyalty.CreateMember(ctx, MemberInput{Name: "  Dana ", Email: models.StringPtr("dana@example.com")})
	require.NoError(t, err)
	assert.Equal(t, "Dana", member.Name)
	assert.Regexp(t, `^MEM\d{8}[0-9A-F]{6}$`, member.MemberNumber)
	assert.Equal(t, models.TierBronze, member.Tier)
	assert.Equal(t, WelcomeBonusPoints, member.AvailablePoints)

	byNumber, err := s.loyalty.GetMemberByNumber(ctx, member.MemberNumber)
	require.NoError(t, err)
	assert.Equal(t, member.ID, byNumber.ID)

	_, err = s.loyalty.CreateMember(ctx, MemberInput{Name: "Someone", Email: models.StringPtr("dana@example.com")})
	var validation *ValidationError
	assert.ErrorAs(t, err, &validation)

	_, err = s.loyalty.CreateMember(ctx, MemberInput{Name: "No Contact"})
	assert.ErrorAs(t, err, &validation)
}

// placeMemberOrder places cups lattes for the member and returns the outbox event id
func placeMemberOrder(t *testing.T, s *shop, latte models.Product, memberID string, cups int) string {
	t.Helper()
	placed, err := s.orders.PlaceOrder(context.Background(), PlaceOrderRequest{
		Items:    []OrderLine{{ProductID: latte.ID, Quantity: cups}},
		MemberID: &memberID,
	})
	require.NoError(t, err)
	require.NotNil(t, placed.LoyaltyEventID)
	return *placed.LoyaltyEventID
}

func TestProcessEventCreditsOnce(t *testing.T) {
	s, latte, _, _ := latteShop(t, "5000")
	ctx := context.Background()

	member, err := s.loyalty.CreateMember(ctx, MemberInput{Name: "Dana", Phone: models.StringPtr("0812345678")})
	require.NoError(t, err)
	eventID := placeMemberOrder(t, s, latte, member.ID, 10)

	points, err := s.loyalty.ProcessEvent(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 5, points)

	points, err = s.loyalty.ProcessEvent(ctx, eventID)
	require.NoError(t, err)
	assert.Zero(t, points)

	reloaded, err := s.loyalty.GetMember(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, WelcomeBonusPoints+5, reloaded.AvailablePoints)
	assert.Equal(t, 1, reloaded.TotalOrders)
	assert.True(t, reloaded.TotalSpent.Equal(dec("550")))
	assert.NotNil(t, reloaded.LastVisit)

	history, total, err := s.loyalty.PointHistory(ctx, member.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, history, 2)

	var event models.LoyaltyEvent
	require.NoError(t, s.db.First(&event, "id = ?", eventID).Error)
	assert.Equal(t, models.LoyaltyEventProcessed, event.Status)
	assert.NotNil(t, event.ProcessedAt)
}

func TestProcessEventUpgradesTier(t *testing.T) {
	s, latte, _, _ := latteShop(t, "1000")
	ctx := context.Background()

	member, err := s.loyalty.CreateMember(ctx, MemberInput{Name: "Regular", Phone: models.StringPtr("0899999999")})
	require.NoError(t, err)
	require.NoError(t, s.db.Model(&models.Member{}).Where("id = ?", member.ID).Updates(map[string]interface{}{
		"total_spent":  decimal.NewFromInt(4950),
		"total_orders": 19,
	}).Error)

	eventID := placeMemberOrder(t, s, latte, member.ID, 1)
	points, err := s.loyalty.ProcessEvent(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 0, points)

	reloaded, err := s.loyalty.GetMember(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TierSilver, reloaded.Tier)
	assert.Equal(t, 20, reloaded.TotalOrders)
	assert.Equal(t, WelcomeBonusPoints+50, reloaded.AvailablePoints)

	var upgrades []models.TierUpgrade
	require.NoError(t, s.db.Find(&upgrades, "member_id = ?", member.ID).Error)
	require.Len(t, upgrades, 1)
	assert.Equal(t, models.TierBronze, upgrades[0].FromTier)
	assert.Equal(t, 20, upgrades[0].AchievedOrders)
}

func TestProcessEventFailureIsIsolated(t *testing.T) {
	s, latte, milk, _ := latteShop(t, "1000")
	ctx := context.Background()

	member, err := s.loyalty.CreateMember(ctx, MemberInput{Name: "Lapsed", Phone: models.StringPtr("0811111111")})
	require.NoError(t, err)
	eventID := placeMemberOrder(t, s, latte, member.ID, 1)
	require.NoError(t, s.db.Model(&models.Member{}).Where("id = ?", member.ID).Update("is_active", false).Error)

	for attempt := 1; attempt <= 3; attempt++ {
		_, err := s.loyalty.ProcessEvent(ctx, eventID)
		require.Error(t, err)

		var event models.LoyaltyEvent
		require.NoError(t, s.db.First(&event, "id = ?", eventID).Error)
		assert.Equal(t, attempt, event.Attempts)
		require.NotNil(t, event.LastError)
		if attempt < 3 {
			assert.Equal(t, models.LoyaltyEventPending, event.Status)
		} else {
			assert.Equal(t, models.LoyaltyEventFailed, event.Status)
		}
	}

	// A failed event is not retried
	points, err := s.loyalty.ProcessEvent(ctx, eventID)
	require.NoError(t, err)
	assert.Zero(t, points)

	// The sale itself is untouched
	var orders int64
	require.NoError(t, s.db.Model(&models.Order{}).Count(&orders).Error)
	assert.Equal(t, int64(1), orders)
	assert.True(t, s.stock(t, milk.ID).Equal(dec("800")))

	stats, err := s.loyalty.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.FailedEvents)
	assert.Zero(t, stats.PendingEvents)
}

func TestProcessPending(t *testing.T) {
	s, latte, _, _ := latteShop(t, "5000")
	ctx := context.Background()

	first, err := s.loyalty.CreateMember(ctx, MemberInput{Name: "First", Phone: models.StringPtr("0800000001")})
	require.NoError(t, err)
	second, err := s.loyalty.CreateMember(ctx, MemberInput{Name: "Second", Phone: models.StringPtr("0800000002")})
	require.NoError(t, err)
	placeMemberOrder(t, s, latte, first.ID, 2)
	placeMemberOrder(t, s, latte, second.ID, 4)

	processed, err := s.loyalty.ProcessPending(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, processed)

	processed, err = s.loyalty.ProcessPending(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, processed)

	reloaded, err := s.loyalty.GetMember(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, WelcomeBonusPoints+2, reloaded.AvailablePoints)
}

func TestRedeemReward(t *testing.T) {
	s := newShop(t)
	ctx := context.Background()

	member, err := s.loyalty.CreateMember(ctx, MemberInput{Name: "Dana", Phone: models.StringPtr("0812345678")})
	require.NoError(t, err)
	cookie, err := s.loyalty.CreateReward(ctx, RewardInput{Name: "Free Cookie", PointCost: 50})
	require.NoError(t, err)
	gold := models.TierGold
	lounge, err := s.loyalty.CreateReward(ctx, RewardInput{Name: "Lounge Pass", PointCost: 5, RequiredTier: &gold})
	require.NoError(t, err)

	var validation *ValidationError
	_, err = s.loyalty.Redeem(ctx, member.ID, cookie.ID, nil)
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "points", validation.Field)

	_, err = s.loyalty.Redeem(ctx, member.ID, lounge.ID, nil)
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "reward", validation.Field)

	require.NoError(t, s.db.Model(&models.Member{}).Where("id = ?", member.ID).Update("available_points", 120).Error)
	redemption, err := s.loyalty.Redeem(ctx, member.ID, cookie.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 50, redemption.PointsUsed)

	reloaded, err := s.loyalty.GetMember(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, 70, reloaded.AvailablePoints)
	assert.Equal(t, 50, reloaded.UsedPoints)

	rewards, err := s.loyalty.ListRewards(ctx, true)
	require.NoError(t, err)
	require.Len(t, rewards, 2)
	assert.Equal(t, "Lounge Pass", rewards[0].Name)
	assert.Equal(t, 1, rewards[1].TotalRedemptions)
}

func TestRulePoints(t *testing.T) {
	double := decPtr("2")
	tests := []struct {
		name   string
		rule   models.PointRule
		tier   models.Tier
		amount string
		want   int
	}{
		{"one per fifty", models.PointRule{SpendAmount: dec("50"), EarnPoints: 1, IsActive: true}, models.TierBronze, "175", 3},
		{"below threshold", models.PointRule{SpendAmount: dec("50"), EarnPoints: 1, IsActive: true}, models.TierBronze, "49.99", 0},
		{"inactive", models.PointRule{SpendAmount: dec("50"), EarnPoints: 1}, models.TierBronze, "500", 0},
		{"multiplier for every tier", models.PointRule{SpendAmount: dec("50"), EarnPoints: 1, BonusMultiplier: double, IsActive: true}, models.TierBronze, "100", 4},
		{"multiplier for listed tier", models.PointRule{SpendAmount: dec("50"), EarnPoints: 1, BonusMultiplier: double, ApplicableTiers: "GOLD,PLATINUM", IsActive: true}, models.TierGold, "100", 4},
		{"multiplier skips other tiers", models.PointRule{SpendAmount: dec("50"), EarnPoints: 1, BonusMultiplier: double, ApplicableTiers: "GOLD,PLATINUM", IsActive: true}, models.TierSilver, "100", 2},
		{"fractional multiplier floors", models.PointRule{SpendAmount: dec("100"), EarnPoints: 3, BonusMultiplier: decPtr("1.5"), IsActive: true}, models.TierBronze, "100", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RulePoints(tt.rule, tt.tier, dec(tt.amount)))
		})
	}
}

func TestProcessEventAppliesPointRules(t *testing.T) {
	s, latte, _, _ := latteShop(t, "5000")
	ctx := context.Background()

	_, err := s.loyalty.CreatePointRule(ctx, PointRuleInput{
		Name:            "Silver double",
		SpendAmount:     dec("50"),
		EarnPoints:      1,
		BonusMultiplier: decPtr("2"),
		ApplicableTiers: []models.Tier{models.TierSilver},
	})
	require.NoError(t, err)

	var validation *ValidationError
	_, err = s.loyalty.CreatePointRule(ctx, PointRuleInput{Name: "Broken", SpendAmount: dec("0"), EarnPoints: 1})
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "spend_amount", validation.Field)
	_, err = s.loyalty.CreatePointRule(ctx, PointRuleInput{Name: "Broken", SpendAmount: dec("50"), EarnPoints: 1, ApplicableTiers: []models.Tier{"DIAMOND"}})
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "applicable_tiers", validation.Field)

	rules, err := s.loyalty.ListPointRules(ctx, true)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "SILVER", rules[0].ApplicableTiers)

	member, err := s.loyalty.CreateMember(ctx, MemberInput{Name: "Dana", Phone: models.StringPtr("0812345678")})
	require.NoError(t, err)

	// 550 spent as BRONZE: 5 base + 11 from the rule
	points, err := s.loyalty.ProcessEvent(ctx, placeMemberOrder(t, s, latte, member.ID, 10))
	require.NoError(t, err)
	assert.Equal(t, 16, points)

	// 110 spent as SILVER: 1 base + 2 from the rule doubled
	require.NoError(t, s.db.Model(&models.Member{}).Where("id = ?", member.ID).Update("tier", models.TierSilver).Error)
	points, err = s.loyalty.ProcessEvent(ctx, placeMemberOrder(t, s, latte, member.ID, 2))
	require.NoError(t, err)
	assert.Equal(t, 5, points)
}

func TestEarnedPointsExpireAfterOneYear(t *testing.T) {
	s, latte, _, _ := latteShop(t, "5000")
	ctx := context.Background()
	processedAt := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	loyalty := &loyaltyService{db: s.db, maxAttempts: 3, now: func() time.Time { return processedAt }}

	member, err := loyalty.CreateMember(ctx, MemberInput{Name: "Dana", Phone: models.StringPtr("0812345678")})
	require.NoError(t, err)
	_, err = loyalty.ProcessEvent(ctx, placeMemberOrder(t, s, latte, member.ID, 4))
	require.NoError(t, err)

	var earned models.PointHistory
	require.NoError(t, s.db.First(&earned, "member_id = ? AND type = ?", member.ID, models.PointEarn).Error)
	require.NotNil(t, earned.ExpiresAt)
	assert.WithinDuration(t, processedAt.AddDate(1, 0, 0), *earned.ExpiresAt, time.Second)

	var welcome models.PointHistory
	require.NoError(t, s.db.First(&welcome, "member_id = ? AND type = ?", member.ID, models.PointBonus).Error)
	assert.Nil(t, welcome.ExpiresAt)
}

func TestAvailablePointsMatchHistory(t *testing.T) {
	s, latte, _, _ := latteShop(t, "5000")
	ctx := context.Background()

	member, err := s.loyalty.CreateMember(ctx, MemberInput{Name: "Regular", Phone: models.StringPtr("0899999999")})
	require.NoError(t, err)
	require.NoError(t, s.db.Model(&models.Member{}).Where("id = ?", member.ID).Updates(map[string]interface{}{
		"total_spent":  decimal.NewFromInt(4950),
		"total_orders": 19,
	}).Error)

	// earn 5, then the SILVER upgrade bonus of 50
	_, err = s.loyalty.ProcessEvent(ctx, placeMemberOrder(t, s, latte, member.ID, 10))
	require.NoError(t, err)
	_, err = s.loyalty.ProcessEvent(ctx, placeMemberOrder(t, s, latte, member.ID, 4))
	require.NoError(t, err)
	reward, err := s.loyalty.CreateReward(ctx, RewardInput{Name: "Free Latte", PointCost: 60})
	require.NoError(t, err)
	_, err = s.loyalty.Redeem(ctx, member.ID, reward.ID, nil)
	require.NoError(t, err)

	reloaded, err := s.loyalty.GetMember(ctx, member.ID)
	require.NoError(t, err)
	var sum int
	require.NoError(t, s.db.Model(&models.PointHistory{}).Where("member_id = ?", member.ID).
		Select("COALESCE(SUM(points), 0)").Scan(&sum).Error)
	assert.Equal(t, 10+5+50+2-60, sum)
	assert.Equal(t, sum, reloaded.AvailablePoints)
	assert.Equal(t, reloaded.TotalPoints-reloaded.UsedPoints, reloaded.AvailablePoints)
}

func TestUpdateMember(t *testing.T) {
	s := newShop(t)
	ctx := context.Background()

	dana, err := s.loyalty.CreateMember(ctx, MemberInput{Name: "Dana", Phone: models.StringPtr("0812345678")})
	require.NoError(t, err)
	_, err = s.loyalty.CreateMember(ctx, MemberInput{Name: "Sam", Email: models.StringPtr("sam@example.com")})
	require.NoError(t, err)

	off := false
	updated, err := s.loyalty.UpdateMember(ctx, dana.ID, MemberUpdate{
		Name:     models.StringPtr(" Dana K "),
		Email:    models.StringPtr("dana@example.com"),
		IsActive: &off,
	})
	require.NoError(t, err)
	assert.Equal(t, "Dana K", updated.Name)
	require.NotNil(t, updated.Email)
	assert.Equal(t, "dana@example.com", *updated.Email)
	assert.False(t, updated.IsActive)
	assert.Equal(t, dana.MemberNumber, updated.MemberNumber)

	// Keeping its own phone is not a conflict
	_, err = s.loyalty.UpdateMember(ctx, dana.ID, MemberUpdate{Phone: models.StringPtr("0812345678")})
	require.NoError(t, err)

	var validation *ValidationError
	_, err = s.loyalty.UpdateMember(ctx, dana.ID, MemberUpdate{Email: models.StringPtr("sam@example.com")})
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "phone", validation.Field)
	_, err = s.loyalty.UpdateMember(ctx, dana.ID, MemberUpdate{Name: models.StringPtr("  ")})
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "name", validation.Field)

	var notFound *NotFoundError
	_, err = s.loyalty.UpdateMember(ctx, "missing", MemberUpdate{Name: models.StringPtr("Ghost")})
	require.ErrorAs(t, err, &notFound)
}
