package service

import (
	"context"
	"errors"

	"loyaltypay/internal/repository"

	"github.com/shopspring/decimal"
)

var (
	ErrNoCurrentUser        = errors.New("当前用户不存在")
	ErrInvalidAmount        = errors.New("交易金额或支付方式无效")
	ErrInsufficientBalance  = errors.New("余额不足")
	ErrSystemBusy           = errors.New("系统繁忙，请稍后重试")
	ErrEmailTaken           = errors.New("邮箱已注册")
	ErrInvalidCredentials   = errors.New("邮箱或密码错误")
	ErrInvalidToken         = errors.New("无效的令牌")
	ErrRewardNotFound       = errors.New("奖励不存在")
	ErrGenerationInProgress = errors.New("奖励正在生成中")
)

// validAmount 金额为正且最多两位小数，与 decimal(18,2) 列一致
func validAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Truncate(2))
}

// requireUser 用户不存在时返回 ErrNoCurrentUser
func requireUser(ctx context.Context, repo *repository.UserRepository, userID int64) error {
	if userID <= 0 {
		return ErrNoCurrentUser
	}
	if _, err := repo.GetByID(ctx, nil, userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrNoCurrentUser
		}
		return err
	}
	return nil
}
