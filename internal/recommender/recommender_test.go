package recommender

import (
	"context"
	"testing"
	"time"

	"loyaltypay/internal/model"

	"github.com/shopspring/decimal"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func txn(pt model.PaymentType, amount int64, recipient string) *model.Transaction {
	return &model.Transaction{
		Amount:        decimal.NewFromInt(amount),
		PaymentType:   pt,
		RecipientName: recipient,
		Timestamp:     testNow,
	}
}

func titles(rewards []*model.Reward) []string {
	out := make([]string, 0, len(rewards))
	for _, r := range rewards {
		out = append(out, r.Title)
	}
	return out
}

func TestAnalyze(t *testing.T) {
	in := Analyze([]*model.Transaction{
		txn(model.PaymentTypeP2P, 30, "Lisa"),
		txn(model.PaymentTypeMerchantQRCode, 60, "REWE"),
		txn(model.PaymentTypeP2P, 90, "Lisa"),
	})

	if in.P2PCount != 2 || in.MerchantCount != 1 || in.TransactionCount != 3 {
		t.Errorf("counts = %d/%d/%d", in.P2PCount, in.MerchantCount, in.TransactionCount)
	}
	if !in.TotalSpent.Equal(decimal.NewFromInt(180)) || !in.AverageAmount.Equal(decimal.NewFromInt(60)) {
		t.Errorf("total = %s average = %s", in.TotalSpent, in.AverageAmount)
	}
	if in.PreferredPaymentType != model.PaymentTypeP2P {
		t.Errorf("PreferredPaymentType = %s, want P2P", in.PreferredPaymentType)
	}
	if in.MostFrequentRecipient != "Lisa" {
		t.Errorf("MostFrequentRecipient = %q, want Lisa", in.MostFrequentRecipient)
	}
}

func TestAnalyzeTies(t *testing.T) {
	in := Analyze([]*model.Transaction{
		txn(model.PaymentTypeMerchantOnline, 10, "Amazon"),
		txn(model.PaymentTypeP2P, 10, "Tom"),
	})
	if in.PreferredPaymentType != model.PaymentTypeP2P {
		t.Errorf("tie PreferredPaymentType = %s, want P2P", in.PreferredPaymentType)
	}
	if in.MostFrequentRecipient != "Amazon" {
		t.Errorf("tie MostFrequentRecipient = %q, want first seen", in.MostFrequentRecipient)
	}

	empty := Analyze(nil)
	if empty.TransactionCount != 0 || !empty.AverageAmount.IsZero() {
		t.Errorf("empty insights = %+v", empty)
	}
}

func TestRuleBasedRewards(t *testing.T) {
	rules := NewRuleBased(0)

	tests := []struct {
		name string
		in   Insights
		want []string
	}{
		{
			name: "new user",
			in:   Insights{AverageAmount: decimal.Zero},
			want: []string{"Welcome Bonus"},
		},
		{
			name: "p2p heavy",
			in:   Insights{P2PCount: 3, MerchantCount: 1, AverageAmount: decimal.NewFromInt(20)},
			want: []string{"P2P Bonus", "Welcome Bonus"},
		},
		{
			name: "merchant heavy big spender",
			in:   Insights{P2PCount: 1, MerchantCount: 5, AverageAmount: decimal.NewFromInt(150)},
			want: []string{"Merchant Master", "Big Spender Bonus", "Welcome Bonus"},
		},
		{
			name: "average exactly 100",
			in:   Insights{MerchantCount: 2, AverageAmount: decimal.NewFromInt(100)},
			want: []string{"Welcome Bonus"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rewards := rules.Rewards(&Request{UserID: 7, Insights: tt.in, Now: testNow})
			got := titles(rewards)
			if len(got) != len(tt.want) {
				t.Fatalf("titles = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("titles = %v, want %v", got, tt.want)
				}
			}
			for _, r := range rewards {
				if r.UserID != 7 || !r.IsActive {
					t.Errorf("%s: user=%d active=%v", r.Title, r.UserID, r.IsActive)
				}
				if !r.ExpiresAt.Equal(testNow.Add(DefaultExpiry)) {
					t.Errorf("%s expires at %v", r.Title, r.ExpiresAt)
				}
			}
		})
	}
}

func TestWelcomeBonusIsGeneric(t *testing.T) {
	rewards := NewRuleBased(time.Hour).Rewards(&Request{UserID: 1, Now: testNow})
	welcome := rewards[len(rewards)-1]

	if welcome.IsPersonalized {
		t.Error("Welcome Bonus is personalized")
	}
	if welcome.RewardType != model.RewardTypeBonusPoints || welcome.BonusPoints != WelcomeBonusPoints {
		t.Errorf("Welcome Bonus = %s with %d points", welcome.RewardType, welcome.BonusPoints)
	}
	if !welcome.ExpiresAt.Equal(testNow.Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v", welcome.ExpiresAt)
	}
}

func TestSelectWithoutAI(t *testing.T) {
	rules := NewRuleBased(0)
	ai := NewAIRecommender(false, "http://127.0.0.1:1", "", time.Second, 0)

	if rec := Select(ai, rules); rec != Recommender(rules) {
		t.Errorf("Select() = %T, want *RuleBased", rec)
	}
	if rec := Select(nil, rules); rec != Recommender(rules) {
		t.Errorf("Select(nil) = %T, want *RuleBased", rec)
	}

	rewards, err := Select(ai, rules).Recommend(context.Background(), &Request{UserID: 1, Now: testNow})
	if err != nil || len(rewards) != 1 {
		t.Errorf("Recommend() = %v, %v", titles(rewards), err)
	}
}
