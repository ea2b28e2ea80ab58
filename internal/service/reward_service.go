package service

import (
	"context"
	"fmt"
	"time"

	"loyaltypay/internal/infrastructure/lock"
	"loyaltypay/internal/logger"
	"loyaltypay/internal/model"
	"loyaltypay/internal/recommender"
	"loyaltypay/internal/repository"
	"loyaltypay/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type RewardService struct {
	db              *gorm.DB
	redisClient     *redis.Client
	recommender     recommender.Recommender
	userRepo        *repository.UserRepository
	transactionRepo *repository.TransactionRepository
	rewardRepo      *repository.RewardRepository
	now             func() time.Time
}

func NewRewardService(db *gorm.DB, redisClient *redis.Client, rec recommender.Recommender) *RewardService {
	return &RewardService{
		db:              db,
		redisClient:     redisClient,
		recommender:     rec,
		userRepo:        repository.NewUserRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		rewardRepo:      repository.NewRewardRepository(db),
		now:             time.Now,
	}
}

// RewardView 附带当前是否可用
type RewardView struct {
	*model.Reward
	CanBeUsed bool `json:"can_be_used"`
}

// GenerateRewards 根据交易行为生成奖励
//
// 同一用户同时只允许一个生成任务，已存在的同名奖励跳过
func (s *RewardService) GenerateRewards(ctx context.Context, userID int64) ([]*model.Reward, error) {
	if err := requireUser(ctx, s.userRepo, userID); err != nil {
		return nil, err
	}

	rewardLock := lock.NewRewardLock(s.redisClient, userID, uuid.NewString())
	ok, err := rewardLock.TryLock(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSystemBusy, err)
	}
	if !ok {
		return nil, ErrGenerationInProgress
	}
	defer func() {
		if err := rewardLock.Unlock(context.Background()); err != nil {
			logger.Log.Warn("释放奖励锁失败", zap.String("key", rewardLock.Key()), zap.Error(err))
		}
	}()

	transactions, err := s.transactionRepo.ListAllByUserID(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("查询流水失败: %w", err)
	}

	req := &recommender.Request{
		UserID:   userID,
		Insights: recommender.Analyze(transactions),
		Now:      s.now(),
	}
	candidates, err := s.recommender.Recommend(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("生成奖励失败: %w", err)
	}

	created := make([]*model.Reward, 0, len(candidates))
	err = s.db.Transaction(func(tx *gorm.DB) error {
		seen := make(map[string]bool, len(candidates))
		for _, reward := range candidates {
			if seen[reward.Title] {
				continue
			}
			seen[reward.Title] = true

			exists, err := s.rewardRepo.ExistsByTitle(ctx, tx, userID, reward.Title)
			if err != nil {
				return err
			}
			if exists {
				continue
			}

			reward.UserID = userID
			reward.RewardNo = idgen.GenerateRewardNo()
			if err := s.rewardRepo.Create(ctx, tx, reward); err != nil {
				return fmt.Errorf("保存奖励失败: %w", err)
			}
			created = append(created, reward)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("奖励生成完成",
		zap.Int64("user_id", userID),
		zap.Int("candidates", len(candidates)),
		zap.Int("created", len(created)),
	)
	return created, nil
}

func (s *RewardService) ListRewards(ctx context.Context, userID int64, activeOnly bool) ([]*RewardView, error) {
	rewards, err := s.rewardRepo.ListByUserID(ctx, userID, activeOnly)
	if err != nil {
		return nil, err
	}

	now := s.now()
	views := make([]*RewardView, 0, len(rewards))
	for _, r := range rewards {
		views = append(views, &RewardView{Reward: r, CanBeUsed: r.CanBeUsed(now)})
	}
	return views, nil
}
