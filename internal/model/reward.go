package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrRewardNotUsable = errors.New("奖励不可用")

type RewardType string

const (
	RewardTypeCashback          RewardType = "Cashback"
	RewardTypeBonusPoints       RewardType = "Bonus Points"
	RewardTypeLevelBonus        RewardType = "Level Bonus"
	RewardTypeStreakBonus       RewardType = "Streak Bonus"
	RewardTypeCategoryBonus     RewardType = "Category Bonus"
	RewardTypeMerchantSpecific  RewardType = "Merchant Specific"
	RewardTypePersonalizedOffer RewardType = "Personalized Offer"
)

// ParseRewardType 宽松解析，未知类型归为 Personalized Offer
func ParseRewardType(s string) RewardType {
	switch s {
	case "bonusPoints", "bonuspoints", "bonus_points", string(RewardTypeBonusPoints):
		return RewardTypeBonusPoints
	case "cashback", string(RewardTypeCashback):
		return RewardTypeCashback
	default:
		return RewardTypePersonalizedOffer
	}
}

// Reward 用户奖励
//
// 可用条件：IsActive && UsageCount < MaxUsages && now < ExpiresAt
// 过期是被动的，读取时判断
type Reward struct {
	ID                   int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	RewardNo             string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"reward_no"`
	UserID               int64           `gorm:"index:idx_user_title;not null" json:"user_id"`
	Title                string          `gorm:"type:varchar(128);index:idx_user_title;not null" json:"title"`
	Description          string          `gorm:"type:varchar(512)" json:"description"`
	RewardType           RewardType      `gorm:"type:varchar(32);not null" json:"reward_type"`
	CashbackPercentage   decimal.Decimal `gorm:"type:decimal(6,2);not null" json:"cashback_percentage"`
	MinTransactionAmount decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"min_transaction_amount"`
	MaxCashback          decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"max_cashback"`
	BonusPoints          int64           `gorm:"not null;default:0" json:"bonus_points"`
	Category             *string         `gorm:"type:varchar(64)" json:"category,omitempty"`
	MerchantName         *string         `gorm:"type:varchar(128)" json:"merchant_name,omitempty"`
	IsActive             bool            `gorm:"index;not null" json:"is_active"`
	IsPersonalized       bool            `gorm:"not null" json:"is_personalized"`
	ExpiresAt            time.Time       `gorm:"index;not null" json:"expires_at"`
	UsageCount           int             `gorm:"not null;default:0" json:"usage_count"`
	MaxUsages            int             `gorm:"not null;default:1" json:"max_usages"`
	CreatedAt            time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Reward) TableName() string {
	return "reward"
}

func (r *Reward) CanBeUsed(now time.Time) bool {
	return r.IsActive && r.UsageCount < r.MaxUsages && now.Before(r.ExpiresAt)
}

// Use 记录一次使用，用满后自动失效
func (r *Reward) Use(now time.Time) error {
	if !r.CanBeUsed(now) {
		return ErrRewardNotUsable
	}
	r.UsageCount++
	if r.UsageCount >= r.MaxUsages {
		r.IsActive = false
	}
	return nil
}

// CalculateCashback 金额未达门槛或奖励不可用时返回 0，结果不超过 MaxCashback
func (r *Reward) CalculateCashback(amount decimal.Decimal, now time.Time) decimal.Decimal {
	if !r.CanBeUsed(now) || amount.LessThan(r.MinTransactionAmount) {
		return decimal.Zero
	}
	cashback := amount.Mul(r.CashbackPercentage).Div(decimal.NewFromInt(100))
	return decimal.Min(cashback, r.MaxCashback)
}
