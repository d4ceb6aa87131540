package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Tier is a loyalty membership level
type Tier string

const (
	TierBronze   Tier = "BRONZE"
	TierSilver   Tier = "SILVER"
	TierGold     Tier = "GOLD"
	TierPlatinum Tier = "PLATINUM"
)

var tierRank = map[Tier]int{
	TierBronze:   1,
	TierSilver:   2,
	TierGold:     3,
	TierPlatinum: 4,
}

// Valid reports whether t is a known tier
func (t Tier) Valid() bool {
	_, ok := tierRank[t]
	return ok
}

// AtLeast reports whether t ranks the same as or above other
func (t Tier) AtLeast(other Tier) bool {
	return tierRank[t] >= tierRank[other]
}

// PointType is the kind of point history entry
type PointType string

const (
	PointEarn   PointType = "EARN"
	PointRedeem PointType = "REDEEM"
	PointBonus  PointType = "BONUS"
	PointAdjust PointType = "ADJUST"
	PointExpire PointType = "EXPIRE"
)

// Member is a loyalty program customer. AvailablePoints always equals the
// sum of the member's PointHistory deltas.
type Member struct {
	Base
	MemberNumber    string          `json:"member_number" gorm:"uniqueIndex;not null"`
	Name            string          `json:"name" gorm:"not null"`
	Phone           *string         `json:"phone" gorm:"uniqueIndex"`
	Email           *string         `json:"email" gorm:"uniqueIndex"`
	DateOfBirth     *time.Time      `json:"date_of_birth"`
	TotalPoints     int             `json:"total_points" gorm:"not null"`
	AvailablePoints int             `json:"available_points" gorm:"not null"`
	UsedPoints      int             `json:"used_points" gorm:"not null"`
	TotalSpent      decimal.Decimal `json:"total_spent" gorm:"type:decimal(14,2);not null"`
	TotalOrders     int             `json:"total_orders" gorm:"not null"`
	LastVisit       *time.Time      `json:"last_visit"`
	Tier            Tier            `json:"tier" gorm:"type:varchar(20);not null;index"`
	IsActive        bool            `json:"is_active" gorm:"not null"`
	PointHistories  []PointHistory  `json:"point_histories,omitempty" gorm:"foreignKey:MemberID"`
}

// PointHistory is an append-only ledger row of a point balance change
type PointHistory struct {
	Base
	MemberID      string     `json:"member_id" gorm:"type:varchar(36);not null;index"`
	OrderID       *string    `json:"order_id" gorm:"type:varchar(36);index"`
	Type          PointType  `json:"type" gorm:"type:varchar(10);not null;index"`
	Points        int        `json:"points" gorm:"not null"`
	Description   string     `json:"description"`
	ReferenceType *string    `json:"reference_type"`
	ReferenceID   *string    `json:"reference_id"`
	ExpiresAt     *time.Time `json:"expires_at"`
}

// TierUpgrade records a member moving up a tier
type TierUpgrade struct {
	Base
	MemberID       string          `json:"member_id" gorm:"type:varchar(36);not null;index"`
	FromTier       Tier            `json:"from_tier" gorm:"type:varchar(20)"`
	ToTier         Tier            `json:"to_tier" gorm:"type:varchar(20)"`
	AchievedSpend  decimal.Decimal `json:"achieved_spend" gorm:"type:decimal(14,2)"`
	AchievedOrders int             `json:"achieved_orders"`
	BonusPoints    int             `json:"bonus_points"`
}

// Reward is something a member can exchange points for
type Reward struct {
	Base
	Name             string  `json:"name" gorm:"not null"`
	Description      *string `json:"description"`
	PointCost        int     `json:"point_cost" gorm:"not null"`
	RequiredTier     *Tier   `json:"required_tier" gorm:"type:varchar(20)"`
	IsActive         bool    `json:"is_active" gorm:"not null"`
	TotalRedemptions int     `json:"total_redemptions" gorm:"not null"`
}

// RewardRedemption records a member exchanging points for a reward
type RewardRedemption struct {
	Base
	MemberID   string     `json:"member_id" gorm:"type:varchar(36);not null;index"`
	RewardID   string     `json:"reward_id" gorm:"type:varchar(36);not null;index"`
	Reward     *Reward    `json:"reward,omitempty" gorm:"foreignKey:RewardID"`
	OrderID    *string    `json:"order_id" gorm:"type:varchar(36)"`
	PointsUsed int        `json:"points_used" gorm:"not null"`
	Status     string     `json:"status" gorm:"type:varchar(20);not null"`
	ExpiresAt  *time.Time `json:"expires_at"`
	Notes      *string    `json:"notes"`
}

// LoyaltyEventStatus is the processing state of an outbox event
type LoyaltyEventStatus string

const (
	LoyaltyEventPending   LoyaltyEventStatus = "PENDING"
	LoyaltyEventProcessed LoyaltyEventStatus = "PROCESSED"
	LoyaltyEventFailed    LoyaltyEventStatus = "FAILED"
)

// LoyaltyEvent is an outbox row written in the same transaction as an order.
// Point accrual consumes it afterwards, so a loyalty failure never touches the order.
type LoyaltyEvent struct {
	Base
	OrderID     string             `json:"order_id" gorm:"type:varchar(36);uniqueIndex;not null"`
	MemberID    string             `json:"member_id" gorm:"type:varchar(36);not null;index"`
	Amount      decimal.Decimal    `json:"amount" gorm:"type:decimal(12,2);not null"`
	Status      LoyaltyEventStatus `json:"status" gorm:"type:varchar(20);not null;index"`
	Attempts    int                `json:"attempts" gorm:"not null"`
	LastError   *string            `json:"last_error"`
	ProcessedAt *time.Time         `json:"processed_at"`
}

// PointRule grants extra purchase points on top of the base rate: EarnPoints
// for every full SpendAmount. BonusMultiplier scales the rule's points for
// members in ApplicableTiers.
type PointRule struct {
	Base
	Name            string           `json:"name" gorm:"not null"`
	Description     *string          `json:"description"`
	SpendAmount     decimal.Decimal  `json:"spend_amount" gorm:"type:decimal(12,2);not null"`
	EarnPoints      int              `json:"earn_points" gorm:"not null"`
	BonusMultiplier *decimal.Decimal `json:"bonus_multiplier" gorm:"type:decimal(6,2)"`
	// ApplicableTiers is a comma separated tier list; empty means every tier
	ApplicableTiers string `json:"applicable_tiers"`
	Priority        int    `json:"priority" gorm:"not null"`
	IsActive        bool   `json:"is_active" gorm:"not null"`
}

// AppliesTo reports whether the multiplier covers members of tier
func (r PointRule) AppliesTo(tier Tier) bool {
	if strings.TrimSpace(r.ApplicableTiers) == "" {
		return true
	}
	for _, t := range strings.Split(r.ApplicableTiers, ",") {
		if Tier(strings.ToUpper(strings.TrimSpace(t))) == tier {
			return true
		}
	}
	return false
}
