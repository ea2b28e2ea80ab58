package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// Redis 分布式锁
// ============================================================================
//
// 加锁：SET key value NX EX timeout，value 为持有者标识
// 释放：Lua 脚本先校验 value 再删除，避免删掉别人的锁
//
// ============================================================================

var ErrLockFailed = errors.New("获取分布式锁失败")

const (
	DefaultExpiration    = 30 * time.Second
	DefaultRetryInterval = 100 * time.Millisecond
	DefaultMaxRetries    = 30
)

var unlockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string
	expiration time.Duration
}

func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

func (l *DistributedLock) Key() string {
	return l.key
}

// TryLock 非阻塞加锁
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
}

// Lock 阻塞加锁，每隔 retryInterval 重试，最多 maxRetries 次
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

// Unlock 只释放自己持有的锁
func (l *DistributedLock) Unlock(ctx context.Context) error {
	return unlockScript.Run(ctx, l.client, []string{l.key}, l.value).Err()
}

// ============================================================================
// 按用户维度的业务锁
// ============================================================================

// NewPayLock 同一用户的交易串行执行
func NewPayLock(client *redis.Client, userID int64, requestID string) *DistributedLock {
	key := fmt.Sprintf("pay:lock:user:%d", userID)
	return NewDistributedLock(client, key, requestID, DefaultExpiration)
}

// NewRewardLock 同一用户的奖励生成串行执行
func NewRewardLock(client *redis.Client, userID int64, requestID string) *DistributedLock {
	key := fmt.Sprintf("reward:lock:user:%d", userID)
	return NewDistributedLock(client, key, requestID, DefaultExpiration)
}
