package model

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 会员等级
// ============================================================================

type LoyaltyLevel string

const (
	LevelBronze   LoyaltyLevel = "Bronze"
	LevelSilver   LoyaltyLevel = "Silver"
	LevelGold     LoyaltyLevel = "Gold"
	LevelPlatinum LoyaltyLevel = "Platinum"
)

// 等级门槛（累计积分）
const (
	SilverPoints   int64 = 1000
	GoldPoints     int64 = 5000
	PlatinumPoints int64 = 10000
)

const (
	MaxStreakMultiplier  = 3.0
	StreakMultiplierStep = 0.1
)

// PointsRequired 达到该等级所需的累计积分
func (l LoyaltyLevel) PointsRequired() int64 {
	switch l {
	case LevelSilver:
		return SilverPoints
	case LevelGold:
		return GoldPoints
	case LevelPlatinum:
		return PlatinumPoints
	default:
		return 0
	}
}

// CashbackRate 等级返现比例
func (l LoyaltyLevel) CashbackRate() decimal.Decimal {
	switch l {
	case LevelSilver:
		return decimal.RequireFromString("0.02")
	case LevelGold:
		return decimal.RequireFromString("0.03")
	case LevelPlatinum:
		return decimal.RequireFromString("0.05")
	default:
		return decimal.RequireFromString("0.01")
	}
}

// Rank 用于等级比较，Bronze=0
func (l LoyaltyLevel) Rank() int {
	switch l {
	case LevelSilver:
		return 1
	case LevelGold:
		return 2
	case LevelPlatinum:
		return 3
	default:
		return 0
	}
}

// LevelForPoints 根据累计积分计算等级和下一等级门槛，Platinum 的下一门槛为 0
func LevelForPoints(totalPoints int64) (LoyaltyLevel, int64) {
	switch {
	case totalPoints >= PlatinumPoints:
		return LevelPlatinum, 0
	case totalPoints >= GoldPoints:
		return LevelGold, PlatinumPoints
	case totalPoints >= SilverPoints:
		return LevelSilver, GoldPoints
	default:
		return LevelBronze, SilverPoints
	}
}

// StreakMultiplierFor min(3.0, 1.0 + 0.1*streakDays)，保留一位小数
func StreakMultiplierFor(streakDays int) float64 {
	m := 1.0 + float64(streakDays)*StreakMultiplierStep
	m = math.Round(m*10) / 10
	return math.Min(MaxStreakMultiplier, m)
}

// ============================================================================
// 会员档案
// ============================================================================

// LoyaltyProfile 会员积分档案，与 User 一一对应，首次交易或首次查询时创建
type LoyaltyProfile struct {
	ID               int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID           int64           `gorm:"uniqueIndex;not null" json:"user_id"`
	TotalPoints      int64           `gorm:"not null;default:0" json:"total_points"`
	CurrentLevel     LoyaltyLevel    `gorm:"type:varchar(16);not null" json:"current_level"`
	LevelProgress    float64         `gorm:"not null;default:0" json:"level_progress"`
	StreakDays       int             `gorm:"not null;default:0" json:"streak_days"`
	LastActivityDate *time.Time      `gorm:"index" json:"last_activity_date"`
	StreakMultiplier float64         `gorm:"not null;default:1" json:"streak_multiplier"`
	CashbackEarned   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"cashback_earned"`
	NextLevelPoints  int64           `gorm:"not null;default:1000" json:"next_level_points"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (LoyaltyProfile) TableName() string {
	return "loyalty_profile"
}

// NewLoyaltyProfile 新档案：Bronze，无连续记录
func NewLoyaltyProfile(userID int64) *LoyaltyProfile {
	return &LoyaltyProfile{
		UserID:           userID,
		CurrentLevel:     LevelBronze,
		StreakMultiplier: 1.0,
		CashbackEarned:   decimal.Zero,
		NextLevelPoints:  SilverPoints,
	}
}

// UpdateStreak 更新连续活跃天数
//
// 天数差按经过的整 24 小时计算：
//   - 0 天：不变
//   - 1 天：连续天数 +1，倍率随之上涨
//   - 大于 1 天：断签，重置为 1
func (p *LoyaltyProfile) UpdateStreak(now time.Time) {
	if p.LastActivityDate == nil {
		p.StreakDays = 1
		p.StreakMultiplier = 1.0
		p.LastActivityDate = &now
		return
	}

	days := int(now.Sub(*p.LastActivityDate) / (24 * time.Hour))
	switch {
	case days == 1:
		p.StreakDays++
		p.StreakMultiplier = StreakMultiplierFor(p.StreakDays)
	case days > 1:
		p.StreakDays = 1
		p.StreakMultiplier = 1.0
	}

	p.LastActivityDate = &now
}

// AddPoints 按 multiplier 折算后累加积分并重算等级，返回实际到账积分
func (p *LoyaltyProfile) AddPoints(points int64, multiplier float64) int64 {
	earned := decimal.NewFromInt(points).
		Mul(decimal.NewFromFloat(multiplier)).
		Floor().
		IntPart()
	p.TotalPoints += earned
	p.updateLevel()
	return earned
}

func (p *LoyaltyProfile) AddCashback(amount decimal.Decimal) {
	p.CashbackEarned = p.CashbackEarned.Add(amount)
}

func (p *LoyaltyProfile) updateLevel() {
	previous := p.CurrentLevel
	p.CurrentLevel, p.NextLevelPoints = LevelForPoints(p.TotalPoints)

	switch {
	case p.CurrentLevel != previous:
		p.LevelProgress = 0
	case p.CurrentLevel == LevelPlatinum:
		p.LevelProgress = 1
	default:
		start := p.CurrentLevel.PointsRequired()
		progress := float64(p.TotalPoints-start) / float64(p.NextLevelPoints-start)
		p.LevelProgress = math.Max(0, math.Min(1, progress))
	}
}
