package recommender

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"loyaltypay/internal/logger"
	"loyaltypay/internal/model"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrUnavailable     = errors.New("推荐服务不可用")
	ErrInvalidResponse = errors.New("推荐结果不合法")
)

// 推荐结果的取值范围，超出范围的候选直接丢弃
var (
	minCashbackPct = decimal.NewFromInt(1)
	maxCashbackPct = decimal.NewFromInt(10)
	minMinAmount   = decimal.NewFromInt(1)
	maxMinAmount   = decimal.NewFromInt(1000)
	minCap         = decimal.NewFromInt(5)
	maxCap         = decimal.NewFromInt(200)
)

const (
	minUsages          = 1
	maxUsages          = 10
	minRecommendations = 2
	maxRecommendations = 4
	maxBonusPoints     = 500
)

const instructions = `You are a financial rewards expert specializing in personalized loyalty programs.
Your task is to analyze user transaction behavior and create compelling, personalized reward offers.

Guidelines:
- Recommend 2-4 relevant rewards based on the user's transaction patterns
- Focus on rewards that align with their spending habits
- Be creative but realistic with cashback percentages (1-10%)
- Ensure rewards are achievable and motivating
- Provide clear, engaging descriptions
- Consider both P2P and merchant transaction preferences
- Balance between bonusPoints, cashback, and personalizedOffer types`

type Constraints struct {
	MinRecommendations   int        `json:"min_recommendations"`
	MaxRecommendations   int        `json:"max_recommendations"`
	CashbackPercentage   [2]float64 `json:"cashback_percentage"`
	MinTransactionAmount [2]float64 `json:"min_transaction_amount"`
	MaxCashback          [2]float64 `json:"max_cashback"`
	MaxUsages            [2]int     `json:"max_usages"`
	BonusPoints          [2]int64   `json:"bonus_points"`
}

type generateRequest struct {
	Instructions string      `json:"instructions"`
	Prompt       string      `json:"prompt"`
	Constraints  Constraints `json:"constraints"`
}

type candidate struct {
	Title                string          `json:"title"`
	Description          string          `json:"description"`
	CashbackPercentage   decimal.Decimal `json:"cashback_percentage"`
	MinTransactionAmount decimal.Decimal `json:"min_transaction_amount"`
	MaxCashback          decimal.Decimal `json:"max_cashback"`
	MaxUsages            int             `json:"max_usages"`
	RewardType           string          `json:"reward_type"`
	BonusPoints          int64           `json:"bonus_points"`
}

type generateResponse struct {
	Recommendations []candidate `json:"recommendations"`
	Rationale       string      `json:"rationale"`
}

// AIRecommender 调用外部文本生成服务生成个性化奖励
//
// 调用方不能并发调用同一用户，由 RewardService 的用户锁保证
type AIRecommender struct {
	enabled  bool
	endpoint string
	apiKey   string
	timeout  time.Duration
	expiry   time.Duration
	client   *http.Client
}

func NewAIRecommender(enabled bool, endpoint, apiKey string, timeout, expiry time.Duration) *AIRecommender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &AIRecommender{
		enabled:  enabled,
		endpoint: endpoint,
		apiKey:   apiKey,
		timeout:  timeout,
		expiry:   expiry,
		client:   &http.Client{},
	}
}

func (a *AIRecommender) Available() bool {
	return a.enabled && a.endpoint != ""
}

func (a *AIRecommender) Recommend(ctx context.Context, req *Request) ([]*model.Reward, error) {
	if !a.Available() {
		return nil, ErrUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	body, err := json.Marshal(generateRequest{
		Instructions: instructions,
		Prompt:       buildPrompt(req.Insights),
		Constraints: Constraints{
			MinRecommendations:   minRecommendations,
			MaxRecommendations:   maxRecommendations,
			CashbackPercentage:   [2]float64{1, 10},
			MinTransactionAmount: [2]float64{1, 1000},
			MaxCashback:          [2]float64{5, 200},
			MaxUsages:            [2]int{minUsages, maxUsages},
			BonusPoints:          [2]int64{1, maxBonusPoints},
		},
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("调用推荐服务失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("推荐服务返回状态码 %d: %w", resp.StatusCode, ErrUnavailable)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("解析推荐结果失败: %w", err)
	}

	return a.toRewards(req, out.Recommendations)
}

func (a *AIRecommender) toRewards(req *Request, candidates []candidate) ([]*model.Reward, error) {
	if len(candidates) < minRecommendations || len(candidates) > maxRecommendations {
		return nil, fmt.Errorf("推荐数量 %d 不在 [%d, %d] 内: %w",
			len(candidates), minRecommendations, maxRecommendations, ErrInvalidResponse)
	}

	expiresAt := req.Now.Add(a.expiry)
	rewards := make([]*model.Reward, 0, len(candidates))
	for _, c := range candidates {
		if !c.valid() {
			logger.Log.Debug("丢弃越界的推荐", zap.String("title", c.Title))
			continue
		}
		rewardType := model.ParseRewardType(c.RewardType)
		rewards = append(rewards, &model.Reward{
			UserID:               req.UserID,
			Title:                c.Title,
			Description:          c.Description,
			RewardType:           rewardType,
			CashbackPercentage:   c.CashbackPercentage,
			MinTransactionAmount: c.MinTransactionAmount,
			MaxCashback:          c.MaxCashback,
			IsActive:             true,
			IsPersonalized:       true,
			ExpiresAt:            expiresAt,
			MaxUsages:            c.MaxUsages,
			BonusPoints:          c.points(rewardType),
		})
	}

	if len(rewards) == 0 {
		return nil, ErrInvalidResponse
	}
	return rewards, nil
}

func (c *candidate) valid() bool {
	return c.Title != "" &&
		between(c.CashbackPercentage, minCashbackPct, maxCashbackPct) &&
		between(c.MinTransactionAmount, minMinAmount, maxMinAmount) &&
		between(c.MaxCashback, minCap, maxCap) &&
		c.MaxUsages >= minUsages && c.MaxUsages <= maxUsages &&
		c.BonusPoints <= maxBonusPoints
}

// points 积分奖励未给出分值时使用欢迎奖励的分值，其他类型不发积分
func (c *candidate) points(rewardType model.RewardType) int64 {
	if rewardType != model.RewardTypeBonusPoints {
		return 0
	}
	if c.BonusPoints <= 0 {
		return WelcomeBonusPoints
	}
	return c.BonusPoints
}

func between(v, lo, hi decimal.Decimal) bool {
	return v.GreaterThanOrEqual(lo) && v.LessThanOrEqual(hi)
}

func buildPrompt(in Insights) string {
	var buf bytes.Buffer
	buf.WriteString("Analyze this user's transaction behavior and recommend personalized rewards:\n\n")
	buf.WriteString("Transaction Statistics:\n")
	fmt.Fprintf(&buf, "- P2P Transactions: %d\n", in.P2PCount)
	fmt.Fprintf(&buf, "- Merchant Transactions: %d\n", in.MerchantCount)
	fmt.Fprintf(&buf, "- Total Spent: €%s\n", in.TotalSpent.StringFixed(2))
	fmt.Fprintf(&buf, "- Average Transaction: €%s\n", in.AverageAmount.StringFixed(2))
	fmt.Fprintf(&buf, "- Preferred Payment Type: %s\n", in.PreferredPaymentType)
	fmt.Fprintf(&buf, "- Transaction Frequency: %d transactions\n", in.TransactionCount)
	if in.MostFrequentRecipient != "" {
		fmt.Fprintf(&buf, "- Most Frequent Recipient: %s\n", in.MostFrequentRecipient)
	}
	buf.WriteString("\nGenerate personalized reward recommendations that will motivate this user.")
	return buf.String()
}

// fallbackRecommender 主推荐器失败时静默降级到规则推荐
type fallbackRecommender struct {
	primary  Recommender
	fallback *RuleBased
}

func (f *fallbackRecommender) Recommend(ctx context.Context, req *Request) ([]*model.Reward, error) {
	rewards, err := f.primary.Recommend(ctx, req)
	if err == nil {
		return rewards, nil
	}

	logger.Log.Warn("AI 奖励推荐失败，使用规则推荐",
		zap.Int64("user_id", req.UserID),
		zap.Error(err),
	)
	return f.fallback.Rewards(req), nil
}
