package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrUserNotFound     = errors.New("用户不存在")
	ErrBalanceNotEnough = errors.New("余额不足")
	ErrOptimisticLock   = errors.New("乐观锁冲突，请重试")
	ErrEmailExists      = errors.New("邮箱已注册")
	ErrRewardNotFound   = errors.New("奖励不存在")
)

// use 事务内传入 tx，否则使用默认连接
func use(db, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return db
}
