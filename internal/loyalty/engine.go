package loyalty

import (
	"fmt"
	"time"

	"loyaltypay/internal/model"

	"github.com/shopspring/decimal"
)

const (
	MinBasePoints = 10

	// 单笔大额消费门槛（Big Spender）
	BigSpenderAmount = 500
	// 储蓄目标余额门槛（Savings Goal）
	SavingsGoalBalance = 1000
)

// Engine 积分计算引擎
//
// 只做纯计算，不做持久化：调用方负责加载档案/流水/成就并在事务内保存结果
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// ProcessResult 单笔交易的积分结果
type ProcessResult struct {
	BasePoints   int64              `json:"base_points"`
	PointsEarned int64              `json:"points_earned"`
	Cashback     decimal.Decimal    `json:"cashback"`
	LevelBefore  model.LoyaltyLevel `json:"level_before"`
	LevelAfter   model.LoyaltyLevel `json:"level_after"`
	StreakDays   int                `json:"streak_days"`
	Multiplier   float64            `json:"multiplier"`
}

func (r *ProcessResult) LeveledUp() bool {
	return r.LevelAfter.Rank() > r.LevelBefore.Rank()
}

// BasePoints floor(amount*10) 乘以支付方式倍率后取整，最少 10 分
func BasePoints(amount decimal.Decimal, paymentType model.PaymentType) int64 {
	base := amount.Mul(decimal.NewFromInt(10)).Floor()
	points := base.Mul(paymentType.PointsMultiplier()).Floor().IntPart()
	if points < MinBasePoints {
		return MinBasePoints
	}
	return points
}

// ProcessTransaction 处理一笔交易对档案的影响
//
// 顺序固定：连续天数 -> 基础积分 -> 倍率折算并累计（可能升级）-> 按升级后的等级返现
func (e *Engine) ProcessTransaction(profile *model.LoyaltyProfile, amount decimal.Decimal, paymentType model.PaymentType, now time.Time) *ProcessResult {
	result := &ProcessResult{LevelBefore: profile.CurrentLevel}

	profile.UpdateStreak(now)

	result.BasePoints = BasePoints(amount, paymentType)
	result.PointsEarned = profile.AddPoints(result.BasePoints, profile.StreakMultiplier)

	result.Cashback = amount.Mul(profile.CurrentLevel.CashbackRate())
	profile.AddCashback(result.Cashback)

	result.LevelAfter = profile.CurrentLevel
	result.StreakDays = profile.StreakDays
	result.Multiplier = profile.StreakMultiplier
	return result
}

// AchievementInput 成就检查所需的全部状态
type AchievementInput struct {
	UserID       int64
	Profile      *model.LoyaltyProfile
	Transactions []*model.Transaction
	// Existing 已有的成就记录，缺失的类型会新建
	Existing map[model.AchievementType]*model.Achievement
	Balance  decimal.Decimal
	Now      time.Time
}

// Unlocked 本次新解锁的成就
type Unlocked struct {
	Achievement *model.Achievement
	BonusPoints int64
}

// AchievementResult Touched 为需要保存的记录（新建或进度变化），Unlocked 为新解锁
type AchievementResult struct {
	Touched  []*model.Achievement
	Unlocked []Unlocked
}

// CheckAndUnlockAchievements 按成就目录顺序逐个检查
//
// 解锁奖励积分直接累加（不乘连续倍率），并立即参与等级计算，
// 所以同一轮中靠后的等级成就能看到前面奖励带来的升级
func (e *Engine) CheckAndUnlockAchievements(in *AchievementInput) *AchievementResult {
	result := &AchievementResult{}
	stats := countTransactions(in.Transactions)

	for _, spec := range model.AchievementCatalog {
		achievement, ok := in.Existing[spec.Type]
		created := false
		if !ok || achievement == nil {
			achievement = model.NewAchievement(in.UserID, spec)
			created = true
		}

		if achievement.IsUnlocked {
			continue
		}

		before := achievement.Progress
		progress := e.progress(spec.Type, stats, in)
		if achievement.UpdateProgress(progress, in.Now) {
			bonus := in.Profile.AddPoints(spec.PointsReward, 1.0)
			result.Unlocked = append(result.Unlocked, Unlocked{Achievement: achievement, BonusPoints: bonus})
			result.Touched = append(result.Touched, achievement)
			continue
		}

		if created || achievement.Progress != before {
			result.Touched = append(result.Touched, achievement)
		}
	}

	return result
}

type transactionStats struct {
	total      int
	p2p        int
	merchant   int
	bigSpender bool
}

func countTransactions(transactions []*model.Transaction) transactionStats {
	var stats transactionStats
	bigSpender := decimal.NewFromInt(BigSpenderAmount)
	for _, t := range transactions {
		stats.total++
		if t.PaymentType == model.PaymentTypeP2P {
			stats.p2p++
		} else {
			stats.merchant++
		}
		if t.Amount.GreaterThanOrEqual(bigSpender) {
			stats.bigSpender = true
		}
	}
	return stats
}

func (e *Engine) progress(t model.AchievementType, stats transactionStats, in *AchievementInput) int {
	switch t {
	case model.AchievementFirstPayment:
		return boolToInt(stats.total > 0)
	case model.AchievementTenP2P, model.AchievementTwentyFiveP2P, model.AchievementFiftyP2P:
		return stats.p2p
	case model.AchievementFirstMerchantPayment:
		return boolToInt(stats.merchant > 0)
	case model.AchievementTenMerchantPayments, model.AchievementFiftyMerchantPayments:
		return stats.merchant
	case model.AchievementWeekStreak, model.AchievementMonthStreak:
		return in.Profile.StreakDays
	case model.AchievementReachedSilver:
		return reachedLevel(in.Profile, model.LevelSilver)
	case model.AchievementReachedGold:
		return reachedLevel(in.Profile, model.LevelGold)
	case model.AchievementReachedPlatinum:
		return reachedLevel(in.Profile, model.LevelPlatinum)
	case model.AchievementChampion:
		return stats.total
	case model.AchievementBigSpender:
		return boolToInt(stats.bigSpender)
	case model.AchievementSavingsGoal:
		return boolToInt(in.Balance.GreaterThanOrEqual(decimal.NewFromInt(SavingsGoalBalance)))
	default:
		panic(fmt.Sprintf("unknown achievement type: %s", t))
	}
}

// reachedLevel 比较的是档案当前等级，而不是累计积分，
// 所以成就奖励积分带来的升级要在 AddPoints 重算等级之后才可见
func reachedLevel(profile *model.LoyaltyProfile, target model.LoyaltyLevel) int {
	return boolToInt(profile.CurrentLevel.Rank() >= target.Rank())
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
