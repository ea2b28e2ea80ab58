package repository

import (
	"context"

	"loyaltypay/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DirectoryRepository 联系人与商户目录，只读数据，由种子文件初始化
type DirectoryRepository struct {
	db *gorm.DB
}

func NewDirectoryRepository(db *gorm.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

func (r *DirectoryRepository) ListContacts(ctx context.Context) ([]*model.Contact, error) {
	var contacts []*model.Contact
	err := r.db.WithContext(ctx).Order("name ASC").Find(&contacts).Error
	return contacts, err
}

func (r *DirectoryRepository) ListMerchants(ctx context.Context, category string) ([]*model.Merchant, error) {
	var merchants []*model.Merchant
	query := r.db.WithContext(ctx)
	if category != "" {
		query = query.Where("category = ?", category)
	}
	err := query.Order("name ASC").Find(&merchants).Error
	return merchants, err
}

// UpsertContacts 按 email 去重写入
func (r *DirectoryRepository) UpsertContacts(ctx context.Context, contacts []*model.Contact) error {
	if len(contacts) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&contacts).Error
}

// UpsertMerchants 按 name 去重写入
func (r *DirectoryRepository) UpsertMerchants(ctx context.Context, merchants []*model.Merchant) error {
	if len(merchants) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&merchants).Error
}
