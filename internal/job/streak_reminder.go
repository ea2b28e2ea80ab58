package job

import (
	"context"
	"fmt"
	"time"

	"loyaltypay/internal/config"
	"loyaltypay/internal/logger"
	"loyaltypay/internal/loyalty"
	"loyaltypay/internal/model"
	"loyaltypay/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// StreakReminderJob 扫描即将断签的会员，写入 streak_reminder 事件
//
// MessageKey 按 用户+最后活跃日 生成，同一活跃日只提醒一次
type StreakReminderJob struct {
	loyaltyRepo *repository.LoyaltyRepository
	outboxRepo  *repository.OutboxRepository
	cfg         *config.Config
	stopCh      chan struct{}
	interval    time.Duration
	batchSize   int
	now         func() time.Time
}

func NewStreakReminderJob(db *gorm.DB, cfg *config.Config) *StreakReminderJob {
	return &StreakReminderJob{
		loyaltyRepo: repository.NewLoyaltyRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
		cfg:         cfg,
		stopCh:      make(chan struct{}),
		interval:    10 * time.Minute,
		batchSize:   200,
		now:         time.Now,
	}
}

func (j *StreakReminderJob) Start(ctx context.Context) {
	logger.Log.Info("[StreakReminderJob] 连续活跃提醒任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("[StreakReminderJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			logger.Log.Info("[StreakReminderJob] 任务停止")
			return
		case <-ticker.C:
			j.remind(ctx)
		}
	}
}

func (j *StreakReminderJob) Stop() {
	close(j.stopCh)
}

func (j *StreakReminderJob) remind(ctx context.Context) int {
	now := j.now()
	// 与 loyalty.ShouldSendStreakReminder 使用同一个 [Start, End) 窗口
	profiles, err := j.loyaltyRepo.ListReminderCandidates(ctx,
		now.Add(-loyalty.ReminderWindowEnd), now.Add(-loyalty.ReminderWindowStart), j.batchSize)
	if err != nil {
		logger.Log.Error("[StreakReminderJob] 查询会员档案失败", zap.Error(err))
		return 0
	}

	sent := 0
	for _, profile := range profiles {
		reminder := loyalty.ShouldSendStreakReminder(profile, now)
		if !reminder.Should {
			continue
		}

		msg, err := model.NewOutboxMessage(
			j.cfg.Kafka.Topic.LoyaltyEvent,
			fmt.Sprintf("streak:%d:%s", profile.UserID, profile.LastActivityDate.Format("20060102")),
			model.EventStreakReminder,
			map[string]interface{}{
				"user_id":     profile.UserID,
				"streak_days": profile.StreakDays,
				"message":     reminder.Message,
			},
		)
		if err != nil {
			logger.Log.Error("[StreakReminderJob] 生成提醒事件失败", zap.Int64("user_id", profile.UserID), zap.Error(err))
			continue
		}
		created, err := j.outboxRepo.CreateIfAbsent(ctx, nil, msg)
		if err != nil {
			logger.Log.Error("[StreakReminderJob] 写入提醒事件失败", zap.Int64("user_id", profile.UserID), zap.Error(err))
			continue
		}
		if created {
			sent++
		}
	}

	if sent > 0 {
		logger.Log.Info("[StreakReminderJob] 本次发送提醒", zap.Int("count", sent))
	}
	return sent
}
