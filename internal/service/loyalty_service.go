package service

import (
	"context"
	"fmt"
	"time"

	"loyaltypay/internal/loyalty"
	"loyaltypay/internal/model"
	"loyaltypay/internal/repository"

	"gorm.io/gorm"
)

type LoyaltyService struct {
	userRepo        *repository.UserRepository
	loyaltyRepo     *repository.LoyaltyRepository
	achievementRepo *repository.AchievementRepository
	now             func() time.Time
}

func NewLoyaltyService(db *gorm.DB) *LoyaltyService {
	return &LoyaltyService{
		userRepo:        repository.NewUserRepository(db),
		loyaltyRepo:     repository.NewLoyaltyRepository(db),
		achievementRepo: repository.NewAchievementRepository(db),
		now:             time.Now,
	}
}

func (s *LoyaltyService) GetProfile(ctx context.Context, userID int64) (*model.LoyaltyProfile, error) {
	if err := requireUser(ctx, s.userRepo, userID); err != nil {
		return nil, err
	}
	return s.loyaltyRepo.GetOrCreate(ctx, nil, userID)
}

// GetAchievements 返回全部成就，缺失的记录补建，按目录顺序排列
func (s *LoyaltyService) GetAchievements(ctx context.Context, userID int64) ([]*model.Achievement, error) {
	if err := requireUser(ctx, s.userRepo, userID); err != nil {
		return nil, err
	}

	existing, err := s.achievementRepo.EnsureAll(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("查询成就失败: %w", err)
	}

	result := make([]*model.Achievement, 0, len(model.AchievementCatalog))
	for _, spec := range model.AchievementCatalog {
		result = append(result, existing[spec.Type])
	}
	return result, nil
}

func (s *LoyaltyService) StreakReminder(ctx context.Context, userID int64) (loyalty.StreakReminder, error) {
	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		return loyalty.StreakReminder{}, err
	}
	return loyalty.ShouldSendStreakReminder(profile, s.now()), nil
}
