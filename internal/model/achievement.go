package model

import (
	"time"
)

// ============================================================================
// 成就类型
// ============================================================================

type AchievementType string

const (
	AchievementFirstPayment          AchievementType = "First Payment"
	AchievementTenP2P                AchievementType = "10 P2P Transactions"
	AchievementTwentyFiveP2P         AchievementType = "25 P2P Transactions"
	AchievementFiftyP2P              AchievementType = "50 P2P Transactions"
	AchievementFirstMerchantPayment  AchievementType = "First Merchant Payment"
	AchievementTenMerchantPayments   AchievementType = "10 Merchant Payments"
	AchievementFiftyMerchantPayments AchievementType = "50 Merchant Payments"
	AchievementWeekStreak            AchievementType = "Week Streak"
	AchievementMonthStreak           AchievementType = "Month Streak"
	AchievementReachedSilver         AchievementType = "Silver Level"
	AchievementReachedGold           AchievementType = "Gold Level"
	AchievementReachedPlatinum       AchievementType = "Platinum Level"
	AchievementChampion              AchievementType = "Wero Champion"
	AchievementBigSpender            AchievementType = "Big Spender"
	AchievementSavingsGoal           AchievementType = "Savings Goal"
)

// AchievementSpec 成就定义：目标值、奖励积分、描述
type AchievementSpec struct {
	Type         AchievementType
	Target       int
	PointsReward int64
	Description  string
}

// AchievementCatalog 全部 15 种成就，检查时按此顺序遍历
var AchievementCatalog = []AchievementSpec{
	{AchievementFirstPayment, 1, 50, "Completed your first Wero payment"},
	{AchievementTenP2P, 10, 100, "Completed 10 person-to-person transfers"},
	{AchievementTwentyFiveP2P, 25, 250, "Completed 25 person-to-person transfers"},
	{AchievementFiftyP2P, 50, 500, "Completed 50 person-to-person transfers"},
	{AchievementFirstMerchantPayment, 1, 50, "Made your first merchant payment"},
	{AchievementTenMerchantPayments, 10, 100, "Completed 10 merchant payments"},
	{AchievementFiftyMerchantPayments, 50, 500, "Completed 50 merchant payments"},
	{AchievementWeekStreak, 7, 200, "Maintained a 7-day activity streak"},
	{AchievementMonthStreak, 30, 1000, "Maintained a 30-day activity streak"},
	{AchievementReachedSilver, 1, 300, "Reached Silver loyalty level"},
	{AchievementReachedGold, 1, 800, "Reached Gold loyalty level"},
	{AchievementReachedPlatinum, 1, 2000, "Reached Platinum loyalty level"},
	{AchievementChampion, 100, 1500, "Became a Wero Champion with 100+ transactions"},
	{AchievementBigSpender, 1, 400, "Completed a transaction over €500"},
	{AchievementSavingsGoal, 1, 300, "Maintained balance above €1000"},
}

func LookupAchievement(t AchievementType) (AchievementSpec, bool) {
	for _, spec := range AchievementCatalog {
		if spec.Type == t {
			return spec, true
		}
	}
	return AchievementSpec{}, false
}

// ============================================================================
// 用户成就
// ============================================================================

// Achievement 用户成就，每个 (UserID, Type) 一条
//
// 解锁前进度只增不减，解锁后不再变化
type Achievement struct {
	ID             int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         int64           `gorm:"uniqueIndex:uk_user_type;not null" json:"user_id"`
	Type           AchievementType `gorm:"type:varchar(64);uniqueIndex:uk_user_type;not null" json:"type"`
	IsUnlocked     bool            `gorm:"not null;default:false" json:"is_unlocked"`
	UnlockedAt     *time.Time      `json:"unlocked_at"`
	Progress       int             `gorm:"not null;default:0" json:"progress"`
	TargetProgress int             `gorm:"not null;default:1" json:"target_progress"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Achievement) TableName() string {
	return "achievement"
}

func NewAchievement(userID int64, spec AchievementSpec) *Achievement {
	return &Achievement{
		UserID:         userID,
		Type:           spec.Type,
		TargetProgress: spec.Target,
	}
}

// UpdateProgress 记录进度，达到目标时解锁。返回本次是否新解锁
func (a *Achievement) UpdateProgress(progress int, now time.Time) bool {
	if a.IsUnlocked {
		return false
	}
	if progress > a.Progress {
		a.Progress = progress
	}
	if progress >= a.TargetProgress {
		a.IsUnlocked = true
		a.UnlockedAt = &now
		return true
	}
	return false
}
