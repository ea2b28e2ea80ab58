// Package testutil 提供测试用的内存数据库、Redis 和配置
package testutil

import (
	"context"
	"fmt"
	"testing"

	"loyaltypay/internal/config"
	"loyaltypay/internal/infrastructure/database"
	"loyaltypay/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB 每个测试独立的内存 SQLite，单连接保证事务内外看到同一份数据
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func NewRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func NewConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Mode: "test"},
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{LoyaltyEvent: "loyalty_event"},
		},
		JWT: config.JWTConfig{Secret: "test-secret", ExpireHours: 1},
		Business: config.BusinessConfig{
			InitialBalance:   "1000",
			RewardExpiryDays: 30,
			MaxRetryCount:    3,
		},
	}
}

// CreateUser 直接写入用户，密码哈希为占位值
func CreateUser(t *testing.T, db *gorm.DB, email, balance string) *model.User {
	t.Helper()
	user := &model.User{
		Name:         email,
		Email:        email,
		PasswordHash: "x",
		Balance:      decimal.RequireFromString(balance),
	}
	if err := db.WithContext(context.Background()).Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func Count(t *testing.T, db *gorm.DB, m interface{}) int64 {
	t.Helper()
	var n int64
	if err := db.Model(m).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func Balance(t *testing.T, db *gorm.DB, userID int64) decimal.Decimal {
	t.Helper()
	var user model.User
	if err := db.First(&user, userID).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	return user.Balance
}
