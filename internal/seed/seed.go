package seed

import (
	"context"
	"errors"
	"fmt"
	"os"

	"loyaltypay/internal/logger"
	"loyaltypay/internal/model"
	"loyaltypay/internal/repository"
	"loyaltypay/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// File 演示数据：用户、联系人、商户
type File struct {
	Users     []User            `yaml:"users"`
	Contacts  []*model.Contact  `yaml:"contacts"`
	Merchants []*model.Merchant `yaml:"merchants"`
}

type User struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Balance  string `yaml:"balance"`
}

func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("解析种子文件失败: %w", err)
	}
	return &f, nil
}

func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取种子文件失败: %w", err)
	}
	return Parse(data)
}

// Apply 写入种子数据，已存在的记录跳过，可重复执行
func Apply(ctx context.Context, db *gorm.DB, f *File) error {
	userRepo := repository.NewUserRepository(db)
	directoryRepo := repository.NewDirectoryRepository(db)

	created := 0
	for _, u := range f.Users {
		balance, err := decimal.NewFromString(u.Balance)
		if err != nil {
			return fmt.Errorf("用户 %s 余额无效: %w", u.Email, err)
		}
		hash, err := service.HashPassword(u.Password)
		if err != nil {
			return err
		}

		err = userRepo.Create(ctx, nil, &model.User{
			Name:         u.Name,
			Email:        u.Email,
			PasswordHash: hash,
			Balance:      balance,
		})
		if errors.Is(err, repository.ErrEmailExists) {
			continue
		}
		if err != nil {
			return fmt.Errorf("写入用户 %s 失败: %w", u.Email, err)
		}
		created++
	}

	if err := directoryRepo.UpsertContacts(ctx, f.Contacts); err != nil {
		return fmt.Errorf("写入联系人失败: %w", err)
	}
	if err := directoryRepo.UpsertMerchants(ctx, f.Merchants); err != nil {
		return fmt.Errorf("写入商户失败: %w", err)
	}

	logger.Log.Info("种子数据已加载",
		zap.Int("users_created", created),
		zap.Int("contacts", len(f.Contacts)),
		zap.Int("merchants", len(f.Merchants)),
	)
	return nil
}
