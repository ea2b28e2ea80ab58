package repository

import (
	"context"

	"loyaltypay/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AchievementRepository struct {
	db *gorm.DB
}

func NewAchievementRepository(db *gorm.DB) *AchievementRepository {
	return &AchievementRepository{db: db}
}

func (r *AchievementRepository) ListByUserID(ctx context.Context, tx *gorm.DB, userID int64) ([]*model.Achievement, error) {
	var achievements []*model.Achievement
	err := use(r.db, tx).WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&achievements).Error
	return achievements, err
}

// MapByUserID 按成就类型索引
func (r *AchievementRepository) MapByUserID(ctx context.Context, tx *gorm.DB, userID int64) (map[model.AchievementType]*model.Achievement, error) {
	achievements, err := r.ListByUserID(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	m := make(map[model.AchievementType]*model.Achievement, len(achievements))
	for _, a := range achievements {
		m[a.Type] = a
	}
	return m, nil
}

// Save 新记录插入，已有记录更新
func (r *AchievementRepository) Save(ctx context.Context, tx *gorm.DB, achievement *model.Achievement) error {
	return use(r.db, tx).WithContext(ctx).Save(achievement).Error
}

// EnsureAll 补建缺失的成就记录并返回全部记录
//
// INSERT ... ON CONFLICT DO NOTHING 后重新读取，并发补建同一 (user_id, type) 不会失败
func (r *AchievementRepository) EnsureAll(ctx context.Context, tx *gorm.DB, userID int64) (map[model.AchievementType]*model.Achievement, error) {
	existing, err := r.MapByUserID(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if len(existing) == len(model.AchievementCatalog) {
		return existing, nil
	}

	db := use(r.db, tx).WithContext(ctx)
	for _, spec := range model.AchievementCatalog {
		if _, ok := existing[spec.Type]; ok {
			continue
		}
		err := db.Clauses(clause.OnConflict{DoNothing: true}).
			Create(model.NewAchievement(userID, spec)).Error
		if err != nil {
			return nil, err
		}
	}
	return r.MapByUserID(ctx, tx, userID)
}
