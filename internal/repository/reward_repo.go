package repository

import (
	"context"
	"errors"
	"time"

	"loyaltypay/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RewardRepository struct {
	db *gorm.DB
}

func NewRewardRepository(db *gorm.DB) *RewardRepository {
	return &RewardRepository{db: db}
}

func (r *RewardRepository) Create(ctx context.Context, tx *gorm.DB, reward *model.Reward) error {
	return use(r.db, tx).WithContext(ctx).Create(reward).Error
}

// ExistsByTitle 同一用户下是否已有同名奖励（不区分状态）
func (r *RewardRepository) ExistsByTitle(ctx context.Context, tx *gorm.DB, userID int64, title string) (bool, error) {
	var count int64
	err := use(r.db, tx).WithContext(ctx).
		Model(&model.Reward{}).
		Where("user_id = ? AND title = ?", userID, title).
		Count(&count).Error
	return count > 0, err
}

func (r *RewardRepository) ListByUserID(ctx context.Context, userID int64, activeOnly bool) ([]*model.Reward, error) {
	var rewards []*model.Reward
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Order("created_at DESC, id DESC").Find(&rewards).Error
	return rewards, err
}

// GetByIDForUpdate 事务内加行锁读取，奖励必须属于该用户
func (r *RewardRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, userID, rewardID int64) (*model.Reward, error) {
	var reward model.Reward
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND user_id = ?", rewardID, userID).
		First(&reward).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRewardNotFound
		}
		return nil, err
	}
	return &reward, nil
}

func (r *RewardRepository) Save(ctx context.Context, tx *gorm.DB, reward *model.Reward) error {
	return use(r.db, tx).WithContext(ctx).Save(reward).Error
}

// DeactivateExpired 将已过期但仍为启用状态的奖励批量置为失效，返回影响行数
func (r *RewardRepository) DeactivateExpired(ctx context.Context, now time.Time, limit int) (int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&model.Reward{}).
		Where("is_active = ? AND expires_at <= ?", true, now).
		Order("id ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil || len(ids) == 0 {
		return 0, err
	}

	result := r.db.WithContext(ctx).
		Model(&model.Reward{}).
		Where("id IN ? AND is_active = ?", ids, true).
		Update("is_active", false)
	return result.RowsAffected, result.Error
}
