package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 支付方式
// ============================================================================

type PaymentType string

const (
	PaymentTypeP2P                 PaymentType = "P2P"
	PaymentTypeMerchantContactless PaymentType = "Contactless"
	PaymentTypeMerchantQRCode      PaymentType = "QR-Code"
	PaymentTypeMerchantOnline      PaymentType = "Online"
)

func (p PaymentType) IsValid() bool {
	switch p {
	case PaymentTypeP2P, PaymentTypeMerchantContactless, PaymentTypeMerchantQRCode, PaymentTypeMerchantOnline:
		return true
	}
	return false
}

// IsMerchant 除 P2P 以外都算商户支付
func (p PaymentType) IsMerchant() bool {
	return p.IsValid() && p != PaymentTypeP2P
}

// PointsMultiplier 不同支付方式的积分倍率
func (p PaymentType) PointsMultiplier() decimal.Decimal {
	switch p {
	case PaymentTypeMerchantContactless:
		return decimal.RequireFromString("1.2")
	case PaymentTypeMerchantQRCode:
		return decimal.RequireFromString("1.3")
	case PaymentTypeMerchantOnline:
		return decimal.RequireFromString("1.1")
	default:
		return decimal.NewFromInt(1)
	}
}

// ============================================================================
// 交易流水
// ============================================================================

// Transaction 支付流水表
//
// 【重要】流水只追加，不修改，不删除
// RequestID 按用户唯一，不同用户可以使用相同的幂等键
type Transaction struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"`
	RequestID     string          `gorm:"type:varchar(64);uniqueIndex:uk_user_request,priority:2;not null" json:"request_id"`
	UserID        int64           `gorm:"uniqueIndex:uk_user_request,priority:1;not null" json:"user_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	RecipientName string          `gorm:"type:varchar(128);not null" json:"recipient_name"`
	RecipientID   string          `gorm:"type:varchar(64);not null" json:"recipient_id"`
	PaymentType   PaymentType     `gorm:"type:varchar(20);not null" json:"payment_type"`
	BalanceBefore decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"balance_before"`
	BalanceAfter  decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"balance_after"`
	Notes         *string         `gorm:"type:varchar(256)" json:"notes,omitempty"`
	Timestamp     time.Time       `gorm:"index;not null" json:"timestamp"`
}

func (Transaction) TableName() string {
	return "payment_transaction"
}
