package handler

import (
	"loyaltypay/internal/config"
	"loyaltypay/internal/recommender"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config, rec recommender.Recommender) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	r := gin.New()

	r.Use(RecoveryMiddleware())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	h := NewHandler(db, rdb, cfg, rec)

	api := r.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", h.Register)
			auth.POST("/login", h.Login)
		}

		secured := api.Group("")
		secured.Use(AuthMiddleware(h.authService))

		account := secured.Group("/account")
		{
			account.GET("/balance", h.GetBalance)
			account.POST("/topup", h.TopUp)
		}

		transaction := secured.Group("/transaction")
		{
			transaction.POST("/execute", h.ExecuteTransaction)
			transaction.GET("/list", h.ListTransactions)
		}

		loyalty := secured.Group("/loyalty")
		{
			loyalty.GET("/profile", h.GetProfile)
			loyalty.GET("/achievements", h.GetAchievements)
			loyalty.GET("/streak-reminder", h.GetStreakReminder)
		}

		reward := secured.Group("/reward")
		{
			reward.POST("/generate", h.GenerateRewards)
			reward.GET("/list", h.ListRewards)
		}

		directory := secured.Group("/directory")
		{
			directory.GET("/contacts", h.ListContacts)
			directory.GET("/merchants", h.ListMerchants)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
