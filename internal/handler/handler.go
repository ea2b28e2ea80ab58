package handler

import (
	"errors"
	"strconv"

	"loyaltypay/internal/config"
	"loyaltypay/internal/logger"
	"loyaltypay/internal/model"
	"loyaltypay/internal/recommender"
	"loyaltypay/internal/service"
	"loyaltypay/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	authService        *service.AuthService
	accountService     *service.AccountService
	transactionService *service.TransactionService
	loyaltyService     *service.LoyaltyService
	rewardService      *service.RewardService
	directoryService   *service.DirectoryService
}

func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config, rec recommender.Recommender) *Handler {
	return &Handler{
		authService:        service.NewAuthService(db, cfg),
		accountService:     service.NewAccountService(db),
		transactionService: service.NewTransactionService(db, rdb, cfg),
		loyaltyService:     service.NewLoyaltyService(db),
		rewardService:      service.NewRewardService(db, rdb, rec),
		directoryService:   service.NewDirectoryService(db),
	}
}

// handleError 业务错误映射为错误码，其余按服务器错误处理
func handleError(c *gin.Context, err error) {
	var code int
	switch {
	case errors.Is(err, service.ErrNoCurrentUser):
		code = response.CodeNoCurrentUser
	case errors.Is(err, service.ErrInvalidAmount):
		code = response.CodeInvalidAmount
	case errors.Is(err, service.ErrInsufficientBalance):
		code = response.CodeBalanceNotEnough
	case errors.Is(err, service.ErrSystemBusy):
		code = response.CodeSystemBusy
	case errors.Is(err, service.ErrEmailTaken):
		code = response.CodeEmailTaken
	case errors.Is(err, service.ErrInvalidCredentials):
		code = response.CodeInvalidCredentials
	case errors.Is(err, service.ErrRewardNotFound):
		code = response.CodeRewardNotFound
	case errors.Is(err, model.ErrRewardNotUsable):
		code = response.CodeRewardNotUsable
	case errors.Is(err, service.ErrGenerationInProgress):
		code = response.CodeGenerationInProgress
	default:
		logger.Log.Error("请求处理失败", zap.String("path", c.FullPath()), zap.Error(err))
		response.ServerError(c, "服务器内部错误")
		return
	}
	response.BusinessError(c, code, err.Error())
}

// ============================================================
// 认证
// ============================================================

// Register POST /api/v1/auth/register
func (h *Handler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	user, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, user)
}

// Login POST /api/v1/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

// ============================================================
// 账户
// ============================================================

// GetBalance GET /api/v1/account/balance
func (h *Handler) GetBalance(c *gin.Context) {
	userID := currentUserID(c)
	balance, err := h.accountService.GetBalance(c.Request.Context(), userID)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, gin.H{
		"user_id": userID,
		"balance": balance,
	})
}

type TopUpRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// TopUp POST /api/v1/account/topup
func (h *Handler) TopUp(c *gin.Context) {
	var req TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	balance, err := h.accountService.TopUp(c.Request.Context(), currentUserID(c), req.Amount)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"balance": balance})
}

// ============================================================
// 交易
// ============================================================

// ExecuteTransaction POST /api/v1/transaction/execute
//
// 请求头 X-Request-ID 与 body 中的 request_id 均可作为幂等键
func (h *Handler) ExecuteTransaction(c *gin.Context) {
	var req service.TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	req.UserID = currentUserID(c)
	if req.RequestID == "" {
		req.RequestID = c.GetHeader("X-Request-ID")
	}

	result, err := h.transactionService.PerformTransaction(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

// ListTransactions GET /api/v1/transaction/list?page=1&page_size=20
func (h *Handler) ListTransactions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	list, total, err := h.accountService.ListTransactions(c.Request.Context(), currentUserID(c), page, pageSize)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      list,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ============================================================
// 会员积分
// ============================================================

// GetProfile GET /api/v1/loyalty/profile
func (h *Handler) GetProfile(c *gin.Context) {
	profile, err := h.loyaltyService.GetProfile(c.Request.Context(), currentUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, profile)
}

// GetAchievements GET /api/v1/loyalty/achievements
func (h *Handler) GetAchievements(c *gin.Context) {
	achievements, err := h.loyaltyService.GetAchievements(c.Request.Context(), currentUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, achievements)
}

// GetStreakReminder GET /api/v1/loyalty/streak-reminder
func (h *Handler) GetStreakReminder(c *gin.Context) {
	reminder, err := h.loyaltyService.StreakReminder(c.Request.Context(), currentUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, reminder)
}

// ============================================================
// 奖励
// ============================================================

// GenerateRewards POST /api/v1/reward/generate
func (h *Handler) GenerateRewards(c *gin.Context) {
	rewards, err := h.rewardService.GenerateRewards(c.Request.Context(), currentUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, rewards)
}

// ListRewards GET /api/v1/reward/list?active=true
func (h *Handler) ListRewards(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	rewards, err := h.rewardService.ListRewards(c.Request.Context(), currentUserID(c), activeOnly)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, rewards)
}

// ============================================================
// 目录
// ============================================================

// ListContacts GET /api/v1/directory/contacts
func (h *Handler) ListContacts(c *gin.Context) {
	contacts, err := h.directoryService.Contacts(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, contacts)
}

// ListMerchants GET /api/v1/directory/merchants?category=xxx
func (h *Handler) ListMerchants(c *gin.Context) {
	merchants, err := h.directoryService.Merchants(c.Request.Context(), c.Query("category"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, merchants)
}
