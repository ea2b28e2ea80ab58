package repository

import (
	"context"
	"errors"

	"loyaltypay/internal/model"

	"gorm.io/gorm"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, trans *model.Transaction) error {
	return use(r.db, tx).WithContext(ctx).Create(trans).Error
}

// GetByRequestID 按 (用户, 幂等键) 查询，不存在返回 nil, nil
func (r *TransactionRepository) GetByRequestID(ctx context.Context, tx *gorm.DB, userID int64, requestID string) (*model.Transaction, error) {
	var trans model.Transaction
	err := use(r.db, tx).WithContext(ctx).
		Where("user_id = ? AND request_id = ?", userID, requestID).
		First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trans, nil
}

// ListAllByUserID 用户全部流水，按时间倒序
func (r *TransactionRepository) ListAllByUserID(ctx context.Context, tx *gorm.DB, userID int64) ([]*model.Transaction, error) {
	var transactions []*model.Transaction
	err := use(r.db, tx).WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp DESC, id DESC").
		Find(&transactions).Error
	return transactions, err
}

func (r *TransactionRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.Transaction, int64, error) {
	var transactions []*model.Transaction
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Transaction{}).Where("user_id = ?", userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("timestamp DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transactions).Error

	return transactions, total, err
}
