package recommender

import (
	"context"
	"time"

	"loyaltypay/internal/model"

	"github.com/shopspring/decimal"
)

// Insights 用户交易行为统计
type Insights struct {
	P2PCount              int               `json:"p2p_count"`
	MerchantCount         int               `json:"merchant_count"`
	TotalSpent            decimal.Decimal   `json:"total_spent"`
	AverageAmount         decimal.Decimal   `json:"average_amount"`
	PreferredPaymentType  model.PaymentType `json:"preferred_payment_type"`
	MostFrequentRecipient string            `json:"most_frequent_recipient,omitempty"`
	TransactionCount      int               `json:"transaction_count"`
}

// Analyze 统计交易行为
//
// P2P 与商户笔数相同时偏好 P2P；最常见收款人次数相同时取先出现的
func Analyze(transactions []*model.Transaction) Insights {
	in := Insights{
		TotalSpent:           decimal.Zero,
		AverageAmount:        decimal.Zero,
		PreferredPaymentType: model.PaymentTypeP2P,
	}

	counts := make(map[string]int)
	best := 0
	for _, t := range transactions {
		if t.PaymentType == model.PaymentTypeP2P {
			in.P2PCount++
		} else {
			in.MerchantCount++
		}
		in.TotalSpent = in.TotalSpent.Add(t.Amount)

		counts[t.RecipientName]++
		if counts[t.RecipientName] > best {
			best = counts[t.RecipientName]
			in.MostFrequentRecipient = t.RecipientName
		}
	}

	in.TransactionCount = len(transactions)
	if in.TransactionCount > 0 {
		in.AverageAmount = in.TotalSpent.Div(decimal.NewFromInt(int64(in.TransactionCount)))
	}
	if in.MerchantCount > in.P2PCount {
		in.PreferredPaymentType = model.PaymentTypeMerchantContactless
	}

	return in
}

type Request struct {
	UserID   int64
	Insights Insights
	Now      time.Time
}

// Recommender 奖励推荐。返回的奖励尚未持久化
type Recommender interface {
	Recommend(ctx context.Context, req *Request) ([]*model.Reward, error)
}

// Select 根据可用性选择推荐器：AI 可用时 AI 优先、规则兜底，否则只用规则
func Select(ai *AIRecommender, rules *RuleBased) Recommender {
	if ai != nil && ai.Available() {
		return &fallbackRecommender{primary: ai, fallback: rules}
	}
	return rules
}
