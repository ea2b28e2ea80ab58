package service

import (
	"context"

	"loyaltypay/internal/model"
	"loyaltypay/internal/repository"

	"gorm.io/gorm"
)

// DirectoryService 联系人与商户查询
type DirectoryService struct {
	directoryRepo *repository.DirectoryRepository
}

func NewDirectoryService(db *gorm.DB) *DirectoryService {
	return &DirectoryService{directoryRepo: repository.NewDirectoryRepository(db)}
}

func (s *DirectoryService) Contacts(ctx context.Context) ([]*model.Contact, error) {
	return s.directoryRepo.ListContacts(ctx)
}

func (s *DirectoryService) Merchants(ctx context.Context, category string) ([]*model.Merchant, error) {
	return s.directoryRepo.ListMerchants(ctx, category)
}
