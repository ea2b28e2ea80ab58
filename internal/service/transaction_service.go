package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"loyaltypay/internal/config"
	"loyaltypay/internal/infrastructure/lock"
	"loyaltypay/internal/logger"
	"loyaltypay/internal/loyalty"
	"loyaltypay/internal/model"
	"loyaltypay/internal/repository"
	"loyaltypay/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TransactionService 交易编排：扣款、记流水、积分、成就、奖励、事件在同一个事务内完成
type TransactionService struct {
	db              *gorm.DB
	redisClient     *redis.Client
	cfg             *config.Config
	engine          *loyalty.Engine
	userRepo        *repository.UserRepository
	transactionRepo *repository.TransactionRepository
	loyaltyRepo     *repository.LoyaltyRepository
	achievementRepo *repository.AchievementRepository
	rewardRepo      *repository.RewardRepository
	outboxRepo      *repository.OutboxRepository
	now             func() time.Time
}

func NewTransactionService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *TransactionService {
	return &TransactionService{
		db:              db,
		redisClient:     redisClient,
		cfg:             cfg,
		engine:          loyalty.NewEngine(),
		userRepo:        repository.NewUserRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		loyaltyRepo:     repository.NewLoyaltyRepository(db),
		achievementRepo: repository.NewAchievementRepository(db),
		rewardRepo:      repository.NewRewardRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
		now:             time.Now,
	}
}

type TransactionRequest struct {
	RequestID     string            `json:"request_id"`
	UserID        int64             `json:"-"`
	Amount        decimal.Decimal   `json:"amount"`
	RecipientName string            `json:"recipient_name" binding:"required"`
	RecipientID   string            `json:"recipient_id" binding:"required"`
	PaymentType   model.PaymentType `json:"payment_type" binding:"required"`
	Notes         *string           `json:"notes"`
	RewardID      *int64            `json:"reward_id"`
}

type TransactionResult struct {
	Transaction          *model.Transaction    `json:"transaction"`
	Balance              decimal.Decimal       `json:"balance"`
	PointsEarned         int64                 `json:"points_earned"`
	Cashback             decimal.Decimal       `json:"cashback"`
	RewardCashback       decimal.Decimal       `json:"reward_cashback"`
	RewardBonusPoints    int64                 `json:"reward_bonus_points"`
	LevelBefore          model.LoyaltyLevel    `json:"level_before"`
	LevelAfter           model.LoyaltyLevel    `json:"level_after"`
	LeveledUp            bool                  `json:"leveled_up"`
	UnlockedAchievements []*model.Achievement  `json:"unlocked_achievements"`
	Profile              *model.LoyaltyProfile `json:"profile,omitempty"`
	Duplicate            bool                  `json:"duplicate,omitempty"`
}

// PerformTransaction 执行一笔交易
//
// 任何一步失败整体回滚，包括扣款
func (s *TransactionService) PerformTransaction(ctx context.Context, req *TransactionRequest) (*TransactionResult, error) {
	if req.UserID <= 0 {
		return nil, ErrNoCurrentUser
	}
	if !validAmount(req.Amount) || !req.PaymentType.IsValid() {
		return nil, ErrInvalidAmount
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	// 幂等校验
	if result, err := s.findDuplicate(ctx, req); result != nil || err != nil {
		return result, err
	}

	payLock := lock.NewPayLock(s.redisClient, req.UserID, req.RequestID)
	if err := payLock.Lock(ctx, lock.DefaultRetryInterval, lock.DefaultMaxRetries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSystemBusy, err)
	}
	defer func() {
		if err := payLock.Unlock(context.Background()); err != nil {
			logger.Log.Warn("释放支付锁失败", zap.String("key", payLock.Key()), zap.Error(err))
		}
	}()

	// 获取锁后再次检查幂等
	if result, err := s.findDuplicate(ctx, req); result != nil || err != nil {
		return result, err
	}

	result := &TransactionResult{
		Cashback:       decimal.Zero,
		RewardCashback: decimal.Zero,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		user, err := s.userRepo.GetByIDForUpdate(ctx, tx, req.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return ErrNoCurrentUser
			}
			return fmt.Errorf("查询用户失败: %w", err)
		}

		if user.Balance.LessThan(req.Amount) {
			return ErrInsufficientBalance
		}

		if err := s.userRepo.Deduct(ctx, tx, user.ID, req.Amount, user.Version); err != nil {
			if errors.Is(err, repository.ErrBalanceNotEnough) {
				return ErrInsufficientBalance
			}
			if errors.Is(err, repository.ErrOptimisticLock) {
				return ErrSystemBusy
			}
			return fmt.Errorf("扣款失败: %w", err)
		}

		now := s.now()
		balanceAfter := user.Balance.Sub(req.Amount)
		transaction := &model.Transaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			RequestID:     req.RequestID,
			UserID:        user.ID,
			Amount:        req.Amount,
			RecipientName: req.RecipientName,
			RecipientID:   req.RecipientID,
			PaymentType:   req.PaymentType,
			BalanceBefore: user.Balance,
			BalanceAfter:  balanceAfter,
			Notes:         req.Notes,
			Timestamp:     now,
		}
		if err := s.transactionRepo.Create(ctx, tx, transaction); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		profile, err := s.loyaltyRepo.GetOrCreate(ctx, tx, user.ID)
		if err != nil {
			return fmt.Errorf("获取会员档案失败: %w", err)
		}

		processed := s.engine.ProcessTransaction(profile, req.Amount, req.PaymentType, now)

		unlocked, err := s.checkAchievements(ctx, tx, user.ID, profile, balanceAfter, now)
		if err != nil {
			return err
		}

		var applied *model.Reward
		if req.RewardID != nil {
			applied, err = s.applyReward(ctx, tx, user.ID, *req.RewardID, profile, req.Amount, now, result)
			if err != nil {
				return err
			}
		}

		if err := s.loyaltyRepo.Save(ctx, tx, profile); err != nil {
			return fmt.Errorf("保存会员档案失败: %w", err)
		}

		result.Transaction = transaction
		result.Balance = balanceAfter
		result.PointsEarned = processed.PointsEarned
		result.Cashback = processed.Cashback
		result.LevelBefore = processed.LevelBefore
		result.LevelAfter = profile.CurrentLevel
		result.LeveledUp = profile.CurrentLevel.Rank() > processed.LevelBefore.Rank()
		result.Profile = profile
		result.UnlockedAchievements = make([]*model.Achievement, 0, len(unlocked))
		for _, u := range unlocked {
			result.UnlockedAchievements = append(result.UnlockedAchievements, u.Achievement)
		}

		return s.writeEvents(ctx, tx, transaction, result, unlocked, applied)
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("交易成功",
		zap.String("transaction_no", result.Transaction.TransactionNo),
		zap.Int64("user_id", req.UserID),
		zap.String("amount", req.Amount.String()),
		zap.String("payment_type", string(req.PaymentType)),
		zap.Int64("points_earned", result.PointsEarned),
		zap.Int("achievements_unlocked", len(result.UnlockedAchievements)),
	)

	return result, nil
}

func (s *TransactionService) findDuplicate(ctx context.Context, req *TransactionRequest) (*TransactionResult, error) {
	existing, err := s.transactionRepo.GetByRequestID(ctx, nil, req.UserID, req.RequestID)
	if err != nil {
		return nil, fmt.Errorf("查询流水失败: %w", err)
	}
	if existing == nil {
		return nil, nil
	}

	user, err := s.userRepo.GetByID(ctx, nil, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	return &TransactionResult{
		Transaction:    existing,
		Balance:        user.Balance,
		Cashback:       decimal.Zero,
		RewardCashback: decimal.Zero,
		Duplicate:      true,
	}, nil
}

func (s *TransactionService) checkAchievements(ctx context.Context, tx *gorm.DB, userID int64, profile *model.LoyaltyProfile, balance decimal.Decimal, now time.Time) ([]loyalty.Unlocked, error) {
	transactions, err := s.transactionRepo.ListAllByUserID(ctx, tx, userID)
	if err != nil {
		return nil, fmt.Errorf("查询流水失败: %w", err)
	}

	existing, err := s.achievementRepo.EnsureAll(ctx, tx, userID)
	if err != nil {
		return nil, fmt.Errorf("查询成就失败: %w", err)
	}

	checked := s.engine.CheckAndUnlockAchievements(&loyalty.AchievementInput{
		UserID:       userID,
		Profile:      profile,
		Transactions: transactions,
		Existing:     existing,
		Balance:      balance,
		Now:          now,
	})

	for _, achievement := range checked.Touched {
		if err := s.achievementRepo.Save(ctx, tx, achievement); err != nil {
			return nil, fmt.Errorf("保存成就失败: %w", err)
		}
	}
	return checked.Unlocked, nil
}

// applyReward 使用奖励：积分类奖励直接加积分，其余按比例返现
func (s *TransactionService) applyReward(ctx context.Context, tx *gorm.DB, userID, rewardID int64, profile *model.LoyaltyProfile, amount decimal.Decimal, now time.Time, result *TransactionResult) (*model.Reward, error) {
	reward, err := s.rewardRepo.GetByIDForUpdate(ctx, tx, userID, rewardID)
	if err != nil {
		if errors.Is(err, repository.ErrRewardNotFound) {
			return nil, ErrRewardNotFound
		}
		return nil, fmt.Errorf("查询奖励失败: %w", err)
	}

	if !reward.CanBeUsed(now) {
		return nil, model.ErrRewardNotUsable
	}

	if reward.RewardType == model.RewardTypeBonusPoints {
		result.RewardBonusPoints = profile.AddPoints(reward.BonusPoints, 1.0)
	} else {
		result.RewardCashback = reward.CalculateCashback(amount, now)
		profile.AddCashback(result.RewardCashback)
	}

	if err := reward.Use(now); err != nil {
		return nil, err
	}
	if err := s.rewardRepo.Save(ctx, tx, reward); err != nil {
		return nil, fmt.Errorf("更新奖励失败: %w", err)
	}
	return reward, nil
}

func (s *TransactionService) writeEvents(ctx context.Context, tx *gorm.DB, transaction *model.Transaction, result *TransactionResult, unlocked []loyalty.Unlocked, reward *model.Reward) error {
	topic := s.cfg.Kafka.Topic.LoyaltyEvent
	txnNo := transaction.TransactionNo

	var messages []*model.OutboxMessage
	add := func(key, eventType string, payload interface{}) error {
		msg, err := model.NewOutboxMessage(topic, key, eventType, payload)
		if err != nil {
			return err
		}
		messages = append(messages, msg)
		return nil
	}

	err := add(txnNo, model.EventTransactionCompleted, map[string]interface{}{
		"transaction_no": txnNo,
		"user_id":        transaction.UserID,
		"amount":         transaction.Amount.String(),
		"payment_type":   transaction.PaymentType,
		"recipient_name": transaction.RecipientName,
		"points_earned":  result.PointsEarned,
		"cashback":       result.Cashback.String(),
		"timestamp":      transaction.Timestamp.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	for _, u := range unlocked {
		err := add(fmt.Sprintf("%s:achievement:%d", txnNo, u.Achievement.ID), model.EventAchievementUnlocked, map[string]interface{}{
			"user_id":      transaction.UserID,
			"achievement":  u.Achievement.Type,
			"bonus_points": u.BonusPoints,
		})
		if err != nil {
			return err
		}
	}

	if result.LeveledUp {
		err := add(txnNo+":level_up", model.EventLevelUp, map[string]interface{}{
			"user_id":      transaction.UserID,
			"level_before": result.LevelBefore,
			"level_after":  result.LevelAfter,
			"total_points": result.Profile.TotalPoints,
		})
		if err != nil {
			return err
		}
	}

	if reward != nil {
		err := add(txnNo+":reward", model.EventRewardApplied, map[string]interface{}{
			"user_id":      transaction.UserID,
			"reward_no":    reward.RewardNo,
			"title":        reward.Title,
			"cashback":     result.RewardCashback.String(),
			"bonus_points": result.RewardBonusPoints,
		})
		if err != nil {
			return err
		}
	}

	for _, msg := range messages {
		if err := s.outboxRepo.Create(ctx, tx, msg); err != nil {
			return fmt.Errorf("写入消息失败: %w", err)
		}
	}
	return nil
}
