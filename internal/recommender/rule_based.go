package recommender

import (
	"context"
	"time"

	"loyaltypay/internal/model"

	"github.com/shopspring/decimal"
)

const (
	DefaultExpiry      = 30 * 24 * time.Hour
	WelcomeBonusPoints = 50
)

// RuleBased 规则推荐，结果确定，始终可用
type RuleBased struct {
	expiry time.Duration
}

func NewRuleBased(expiry time.Duration) *RuleBased {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &RuleBased{expiry: expiry}
}

func (r *RuleBased) Recommend(_ context.Context, req *Request) ([]*model.Reward, error) {
	return r.Rewards(req), nil
}

// Rewards 规则：
//   - P2P 笔数多于商户：P2P Bonus
//   - 商户笔数 >= 5：Merchant Master
//   - 平均金额 > 100：Big Spender Bonus
//   - 总是附带 Welcome Bonus
func (r *RuleBased) Rewards(req *Request) []*model.Reward {
	in := req.Insights
	expiresAt := req.Now.Add(r.expiry)
	var rewards []*model.Reward

	if in.P2PCount > in.MerchantCount {
		rewards = append(rewards, &model.Reward{
			UserID:               req.UserID,
			Title:                "P2P Bonus",
			Description:          "Get 5% cashback on your next P2P transfer",
			RewardType:           model.RewardTypePersonalizedOffer,
			CashbackPercentage:   decimal.NewFromInt(5),
			MinTransactionAmount: decimal.NewFromInt(10),
			MaxCashback:          decimal.NewFromInt(25),
			IsActive:             true,
			IsPersonalized:       true,
			ExpiresAt:            expiresAt,
			MaxUsages:            1,
		})
	}

	if in.MerchantCount >= 5 {
		rewards = append(rewards, &model.Reward{
			UserID:               req.UserID,
			Title:                "Merchant Master",
			Description:          "Earn 3% cashback on merchant payments this week",
			RewardType:           model.RewardTypePersonalizedOffer,
			CashbackPercentage:   decimal.NewFromInt(3),
			MinTransactionAmount: decimal.NewFromInt(20),
			MaxCashback:          decimal.NewFromInt(50),
			IsActive:             true,
			IsPersonalized:       true,
			ExpiresAt:            expiresAt,
			MaxUsages:            5,
		})
	}

	if in.AverageAmount.GreaterThan(decimal.NewFromInt(100)) {
		rewards = append(rewards, &model.Reward{
			UserID:               req.UserID,
			Title:                "Big Spender Bonus",
			Description:          "Extra 2% cashback on transactions over €100",
			RewardType:           model.RewardTypePersonalizedOffer,
			CashbackPercentage:   decimal.NewFromInt(2),
			MinTransactionAmount: decimal.NewFromInt(100),
			MaxCashback:          decimal.NewFromInt(100),
			IsActive:             true,
			IsPersonalized:       true,
			ExpiresAt:            expiresAt,
			MaxUsages:            3,
		})
	}

	rewards = append(rewards, &model.Reward{
		UserID:               req.UserID,
		Title:                "Welcome Bonus",
		Description:          "Complete any transaction and get 50 bonus points",
		RewardType:           model.RewardTypeBonusPoints,
		CashbackPercentage:   decimal.Zero,
		MinTransactionAmount: decimal.NewFromInt(1),
		MaxCashback:          decimal.NewFromInt(50),
		BonusPoints:          WelcomeBonusPoints,
		IsActive:             true,
		IsPersonalized:       false,
		ExpiresAt:            expiresAt,
		MaxUsages:            1,
	})

	return rewards
}
