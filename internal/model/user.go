package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// User 用户表
// 余额只能通过成功的交易扣减，Version 为乐观锁版本号
type User struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string          `gorm:"type:varchar(64);not null" json:"name"`
	Email        string          `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string          `gorm:"type:varchar(255);not null" json:"-"`
	Balance      decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"balance"`
	Version      int             `gorm:"not null;default:0" json:"-"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "user_account"
}

// Contact P2P 转账联系人
type Contact struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id" yaml:"-"`
	Name        string `gorm:"type:varchar(64);not null" json:"name" yaml:"name"`
	Email       string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email" yaml:"email"`
	PhoneNumber string `gorm:"type:varchar(32)" json:"phone_number" yaml:"phone_number"`
}

func (Contact) TableName() string {
	return "contact"
}

// Merchant 商户
type Merchant struct {
	ID       int64  `gorm:"primaryKey;autoIncrement" json:"id" yaml:"-"`
	Name     string `gorm:"type:varchar(128);uniqueIndex;not null" json:"name" yaml:"name"`
	Category string `gorm:"type:varchar(64);index" json:"category" yaml:"category"`
	Address  string `gorm:"type:varchar(256)" json:"address" yaml:"address"`
}

func (Merchant) TableName() string {
	return "merchant"
}
