package repository

import (
	"context"
	"time"

	"loyaltypay/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LoyaltyRepository struct {
	db *gorm.DB
}

func NewLoyaltyRepository(db *gorm.DB) *LoyaltyRepository {
	return &LoyaltyRepository{db: db}
}

// GetOrCreate 获取会员档案，不存在则创建
//
// 使用 INSERT ... ON CONFLICT DO NOTHING 避免并发重复创建
func (r *LoyaltyRepository) GetOrCreate(ctx context.Context, tx *gorm.DB, userID int64) (*model.LoyaltyProfile, error) {
	db := use(r.db, tx).WithContext(ctx)

	profile := model.NewLoyaltyProfile(userID)
	err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(profile).Error
	if err != nil {
		return nil, err
	}

	var existing model.LoyaltyProfile
	if err := db.Where("user_id = ?", userID).First(&existing).Error; err != nil {
		return nil, err
	}
	return &existing, nil
}

func (r *LoyaltyRepository) Save(ctx context.Context, tx *gorm.DB, profile *model.LoyaltyProfile) error {
	return use(r.db, tx).WithContext(ctx).Save(profile).Error
}

// ListReminderCandidates 最后活跃时间落在 (after, notAfter] 且有连续记录的档案
func (r *LoyaltyRepository) ListReminderCandidates(ctx context.Context, after, notAfter time.Time, limit int) ([]*model.LoyaltyProfile, error) {
	var profiles []*model.LoyaltyProfile
	err := r.db.WithContext(ctx).
		Where("streak_days > 0 AND last_activity_date > ? AND last_activity_date <= ?", after, notAfter).
		Order("id ASC").
		Limit(limit).
		Find(&profiles).Error
	return profiles, err
}
