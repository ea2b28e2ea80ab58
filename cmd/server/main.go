package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"loyaltypay/internal/config"
	"loyaltypay/internal/handler"
	"loyaltypay/internal/infrastructure/cache"
	"loyaltypay/internal/infrastructure/database"
	"loyaltypay/internal/infrastructure/mq"
	"loyaltypay/internal/job"
	"loyaltypay/internal/logger"
	"loyaltypay/internal/recommender"
	"loyaltypay/internal/seed"
	"loyaltypay/pkg/idgen"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "配置文件路径")
	flag.Parse()

	// 加载配置
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Log.Level, cfg.Log.Development)
	defer logger.Sync()

	if err := idgen.Init(1); err != nil {
		logger.Log.Fatal("初始化 ID 生成器失败", zap.Error(err))
	}

	db, err := database.Open(&cfg.Database, gormlogger.Warn)
	if err != nil {
		logger.Log.Fatal("初始化数据库失败", zap.Error(err))
	}

	if cfg.Server.SeedFile != "" {
		seedFile, err := seed.LoadFile(cfg.Server.SeedFile)
		if err != nil {
			logger.Log.Fatal("加载种子数据失败", zap.Error(err))
		}
		if err := seed.Apply(context.Background(), db, seedFile); err != nil {
			logger.Log.Fatal("写入种子数据失败", zap.Error(err))
		}
	}

	redisClient, err := cache.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("初始化 Redis 失败", zap.Error(err))
	}
	defer redisClient.Close()

	publisher, err := mq.InitKafka(&cfg.Kafka)
	if err != nil {
		logger.Log.Fatal("初始化 Kafka 失败", zap.Error(err))
	}
	defer publisher.Close()

	expiry := time.Duration(cfg.Business.RewardExpiryDays) * 24 * time.Hour
	rec := recommender.Select(
		recommender.NewAIRecommender(
			cfg.Recommender.Enabled,
			cfg.Recommender.Endpoint,
			cfg.Recommender.APIKey,
			time.Duration(cfg.Recommender.TimeoutSeconds)*time.Second,
			expiry,
		),
		recommender.NewRuleBased(expiry),
	)

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动后台任务
	outboxSender := job.NewOutboxSender(db, publisher, cfg)
	go outboxSender.Start(ctx)

	rewardExpiryJob := job.NewRewardExpiryJob(db)
	go rewardExpiryJob.Start(ctx)

	streakReminderJob := job.NewStreakReminderJob(db, cfg)
	go streakReminderJob.Start(ctx)

	router := handler.SetupRouter(db, redisClient, cfg, rec)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Info("服务启动", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("服务启动失败", zap.Error(err))
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("正在关闭服务...")

	// 取消上下文，停止后台任务
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("服务关闭异常", zap.Error(err))
	}

	logger.Log.Info("服务已关闭")
}
