package job

import (
	"context"
	"time"

	"loyaltypay/internal/logger"
	"loyaltypay/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RewardExpiryJob 定期把已过期的奖励置为失效
//
// 读取时仍按 ExpiresAt 判断可用性，这里只是让列表里的状态保持一致
type RewardExpiryJob struct {
	rewardRepo *repository.RewardRepository
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
	now        func() time.Time
}

func NewRewardExpiryJob(db *gorm.DB) *RewardExpiryJob {
	return &RewardExpiryJob{
		rewardRepo: repository.NewRewardRepository(db),
		stopCh:     make(chan struct{}),
		interval:   time.Minute,
		batchSize:  500,
		now:        time.Now,
	}
}

func (j *RewardExpiryJob) Start(ctx context.Context) {
	logger.Log.Info("[RewardExpiryJob] 奖励过期任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("[RewardExpiryJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			logger.Log.Info("[RewardExpiryJob] 任务停止")
			return
		case <-ticker.C:
			j.deactivateExpired(ctx)
		}
	}
}

func (j *RewardExpiryJob) Stop() {
	close(j.stopCh)
}

func (j *RewardExpiryJob) deactivateExpired(ctx context.Context) int64 {
	count, err := j.rewardRepo.DeactivateExpired(ctx, j.now(), j.batchSize)
	if err != nil {
		logger.Log.Error("[RewardExpiryJob] 失效过期奖励失败", zap.Error(err))
		return 0
	}
	if count > 0 {
		logger.Log.Info("[RewardExpiryJob] 本次失效过期奖励", zap.Int64("count", count))
	}
	return count
}
