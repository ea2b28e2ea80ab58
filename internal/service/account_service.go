package service

import (
	"context"
	"errors"

	"loyaltypay/internal/model"
	"loyaltypay/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type AccountService struct {
	userRepo        *repository.UserRepository
	transactionRepo *repository.TransactionRepository
	db              *gorm.DB
}

func NewAccountService(db *gorm.DB) *AccountService {
	return &AccountService{
		userRepo:        repository.NewUserRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		db:              db,
	}
}

func (s *AccountService) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, nil, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrNoCurrentUser
		}
		return nil, err
	}
	return user, nil
}

func (s *AccountService) GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return user.Balance, nil
}

// TopUp 充值，返回充值后余额
func (s *AccountService) TopUp(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	if !validAmount(amount) {
		return decimal.Zero, ErrInvalidAmount
	}

	var balance decimal.Decimal
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.userRepo.Increase(ctx, tx, userID, amount); err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return ErrNoCurrentUser
			}
			return err
		}
		user, err := s.userRepo.GetByID(ctx, tx, userID)
		if err != nil {
			return err
		}
		balance = user.Balance
		return nil
	})
	return balance, err
}

// ListTransactions 分页查询交易记录，按时间倒序
func (s *AccountService) ListTransactions(ctx context.Context, userID int64, page, pageSize int) ([]*model.Transaction, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return s.transactionRepo.ListByUserID(ctx, userID, page, pageSize)
}
