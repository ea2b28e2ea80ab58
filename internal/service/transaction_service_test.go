package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"loyaltypay/internal/model"
	"loyaltypay/internal/repository"
	"loyaltypay/internal/testutil"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTransactionService(t *testing.T) (*TransactionService, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	_, rdb := testutil.NewRedis(t)
	svc := NewTransactionService(db, rdb, testutil.NewConfig())
	svc.now = func() time.Time { return testNow }
	return svc, db
}

func p2pRequest(userID int64, amount string) *TransactionRequest {
	return &TransactionRequest{
		UserID:        userID,
		Amount:        decimal.RequireFromString(amount),
		RecipientName: "Lisa Müller",
		RecipientID:   "lisa@example.com",
		PaymentType:   model.PaymentTypeP2P,
	}
}

func TestPerformTransactionP2P(t *testing.T) {
	svc, db := newTransactionService(t)
	user := testutil.CreateUser(t, db, "max@example.com", "100")

	result, err := svc.PerformTransaction(context.Background(), p2pRequest(user.ID, "30"))
	if err != nil {
		t.Fatalf("PerformTransaction() error = %v", err)
	}

	if !result.Balance.Equal(decimal.NewFromInt(70)) {
		t.Errorf("result balance = %s, want 70", result.Balance)
	}
	if got := testutil.Balance(t, db, user.ID); !got.Equal(decimal.NewFromInt(70)) {
		t.Errorf("stored balance = %s, want 70", got)
	}
	if result.PointsEarned != 300 {
		t.Errorf("PointsEarned = %d, want 300", result.PointsEarned)
	}
	if !result.Cashback.Equal(decimal.RequireFromString("0.30")) {
		t.Errorf("Cashback = %s, want 0.30", result.Cashback)
	}
	if len(result.UnlockedAchievements) != 1 || result.UnlockedAchievements[0].Type != model.AchievementFirstPayment {
		t.Fatalf("unlocked = %+v, want [First Payment]", result.UnlockedAchievements)
	}

	txn := result.Transaction
	if txn.TransactionNo == "" || txn.RequestID == "" {
		t.Errorf("transaction numbers not assigned: %+v", txn)
	}
	if !txn.BalanceBefore.Equal(decimal.NewFromInt(100)) || !txn.BalanceAfter.Equal(decimal.NewFromInt(70)) {
		t.Errorf("balance before/after = %s/%s", txn.BalanceBefore, txn.BalanceAfter)
	}

	profile, err := repository.NewLoyaltyRepository(db).GetOrCreate(context.Background(), nil, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	// 300 交易积分 + 50 首笔支付成就
	if profile.TotalPoints != 350 || profile.StreakDays != 1 {
		t.Errorf("profile points = %d streak = %d, want 350 / 1", profile.TotalPoints, profile.StreakDays)
	}
	if !profile.CashbackEarned.Equal(decimal.RequireFromString("0.3")) {
		t.Errorf("CashbackEarned = %s, want 0.3", profile.CashbackEarned)
	}

	if n := testutil.Count(t, db, &model.Achievement{}); n != int64(len(model.AchievementCatalog)) {
		t.Errorf("achievement records = %d, want %d", n, len(model.AchievementCatalog))
	}

	var events []model.OutboxMessage
	if err := db.Order("id ASC").Find(&events).Error; err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 || events[0].EventType != model.EventTransactionCompleted || events[1].EventType != model.EventAchievementUnlocked {
		t.Errorf("outbox events = %+v", events)
	}
	for _, e := range events {
		if e.Topic != "loyalty_event" || e.Status != model.OutboxStatusPending {
			t.Errorf("event %s topic=%s status=%s", e.MessageKey, e.Topic, e.Status)
		}
	}
}

func TestPerformTransactionInsufficientBalance(t *testing.T) {
	svc, db := newTransactionService(t)
	user := testutil.CreateUser(t, db, "tom@example.com", "10")

	_, err := svc.PerformTransaction(context.Background(), p2pRequest(user.ID, "30"))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("error = %v, want ErrInsufficientBalance", err)
	}

	if got := testutil.Balance(t, db, user.ID); !got.Equal(decimal.NewFromInt(10)) {
		t.Errorf("balance = %s, want 10", got)
	}
	if n := testutil.Count(t, db, &model.Transaction{}); n != 0 {
		t.Errorf("transactions = %d, want 0", n)
	}
	if n := testutil.Count(t, db, &model.LoyaltyProfile{}); n != 0 {
		t.Errorf("profiles = %d, want 0", n)
	}
	if n := testutil.Count(t, db, &model.OutboxMessage{}); n != 0 {
		t.Errorf("outbox messages = %d, want 0", n)
	}
}

func TestPerformTransactionValidation(t *testing.T) {
	svc, db := newTransactionService(t)
	user := testutil.CreateUser(t, db, "anna@example.com", "100")

	tests := []struct {
		name string
		req  *TransactionRequest
		want error
	}{
		{"no user", p2pRequest(0, "10"), ErrNoCurrentUser},
		{"unknown user", p2pRequest(user.ID+100, "10"), ErrNoCurrentUser},
		{"zero amount", p2pRequest(user.ID, "0"), ErrInvalidAmount},
		{"negative amount", p2pRequest(user.ID, "-5"), ErrInvalidAmount},
		{"sub-cent amount", p2pRequest(user.ID, "0.001"), ErrInvalidAmount},
		{"more than two decimals", p2pRequest(user.ID, "10.005"), ErrInvalidAmount},
		{"unknown payment type", func() *TransactionRequest {
			r := p2pRequest(user.ID, "10")
			r.PaymentType = "Cheque"
			return r
		}(), ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.PerformTransaction(context.Background(), tt.req); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}

	if got := testutil.Balance(t, db, user.ID); !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("balance = %s, want 100", got)
	}
	if n := testutil.Count(t, db, &model.Transaction{}); n != 0 {
		t.Errorf("transactions = %d, want 0", n)
	}
	if n := testutil.Count(t, db, &model.LoyaltyProfile{}); n != 0 {
		t.Errorf("profiles = %d, want 0", n)
	}
}

func TestPerformTransactionAcceptsCents(t *testing.T) {
	svc, db := newTransactionService(t)
	user := testutil.CreateUser(t, db, "max@example.com", "100")

	result, err := svc.PerformTransaction(context.Background(), p2pRequest(user.ID, "0.01"))
	if err != nil {
		t.Fatalf("PerformTransaction(0.01) error = %v", err)
	}
	if !result.Balance.Equal(decimal.RequireFromString("99.99")) {
		t.Errorf("balance = %s, want 99.99", result.Balance)
	}
	// 不足 10 分按最低 10 分计
	if result.PointsEarned != 10 {
		t.Errorf("PointsEarned = %d, want 10", result.PointsEarned)
	}
}

func TestPerformTransactionRollsBackOnFailure(t *testing.T) {
	svc, db := newTransactionService(t)
	user := testutil.CreateUser(t, db, "max@example.com", "100")

	if err := db.Migrator().DropTable(&model.LoyaltyProfile{}); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.PerformTransaction(context.Background(), p2pRequest(user.ID, "30")); err == nil {
		t.Fatal("PerformTransaction() error = nil with missing profile table")
	}

	if got := testutil.Balance(t, db, user.ID); !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("balance = %s, want 100 after rollback", got)
	}
	if n := testutil.Count(t, db, &model.Transaction{}); n != 0 {
		t.Errorf("transactions = %d, want 0 after rollback", n)
	}
}

func TestPerformTransactionIdempotent(t *testing.T) {
	svc, db := newTransactionService(t)
	user := testutil.CreateUser(t, db, "max@example.com", "100")

	req := p2pRequest(user.ID, "30")
	req.RequestID = "req-fixed"
	first, err := svc.PerformTransaction(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}

	again := p2pRequest(user.ID, "30")
	again.RequestID = "req-fixed"
	second, err := svc.PerformTransaction(context.Background(), again)
	if err != nil {
		t.Fatalf("duplicate PerformTransaction() error = %v", err)
	}

	if !second.Duplicate || second.Transaction.TransactionNo != first.Transaction.TransactionNo {
		t.Errorf("duplicate result = %+v", second)
	}
	if got := testutil.Balance(t, db, user.ID); !got.Equal(decimal.NewFromInt(70)) {
		t.Errorf("balance = %s, want 70", got)
	}
	if n := testutil.Count(t, db, &model.Transaction{}); n != 1 {
		t.Errorf("transactions = %d, want 1", n)
	}
}

func TestPerformTransactionRequestIDScopedToUser(t *testing.T) {
	svc, db := newTransactionService(t)
	anna := testutil.CreateUser(t, db, "anna@example.com", "100")
	tom := testutil.CreateUser(t, db, "tom@example.com", "100")

	first := p2pRequest(anna.ID, "30")
	first.RequestID = "shared-1"
	annaResult, err := svc.PerformTransaction(context.Background(), first)
	if err != nil {
		t.Fatal(err)
	}

	second := p2pRequest(tom.ID, "20")
	second.RequestID = "shared-1"
	tomResult, err := svc.PerformTransaction(context.Background(), second)
	if err != nil {
		t.Fatalf("second user with same request id: %v", err)
	}
	if tomResult.Duplicate || tomResult.Transaction.TransactionNo == annaResult.Transaction.TransactionNo {
		t.Errorf("second user got the first user's transaction: %+v", tomResult.Transaction)
	}
	if got := testutil.Balance(t, db, tom.ID); !got.Equal(decimal.NewFromInt(80)) {
		t.Errorf("tom balance = %s, want 80", got)
	}
	if got := testutil.Balance(t, db, anna.ID); !got.Equal(decimal.NewFromInt(70)) {
		t.Errorf("anna balance = %s, want 70", got)
	}
	if n := testutil.Count(t, db, &model.Transaction{}); n != 2 {
		t.Errorf("transactions = %d, want 2", n)
	}
}

func TestPerformTransactionLevelAchievements(t *testing.T) {
	svc, db := newTransactionService(t)
	user := testutil.CreateUser(t, db, "anna@example.com", "2000")

	req := p2pRequest(user.ID, "600")
	req.PaymentType = model.PaymentTypeMerchantContactless
	req.RecipientName = "Media Markt"
	result, err := svc.PerformTransaction(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}

	unlocked := make(map[model.AchievementType]bool)
	for _, a := range result.UnlockedAchievements {
		unlocked[a.Type] = true
	}
	for _, want := range []model.AchievementType{
		model.AchievementFirstPayment,
		model.AchievementFirstMerchantPayment,
		model.AchievementReachedSilver,
		model.AchievementReachedGold,
		model.AchievementBigSpender,
		model.AchievementSavingsGoal,
	} {
		if !unlocked[want] {
			t.Errorf("%q not unlocked", want)
		}
	}
	if unlocked[model.AchievementReachedPlatinum] {
		t.Error("Platinum Level unlocked below 10000 points")
	}

	// 7200 + 50 + 50 + 300 + 800 + 400 + 300
	if result.Profile.TotalPoints != 9100 || result.LevelAfter != model.LevelGold || !result.LeveledUp {
		t.Errorf("profile = %d %s leveledUp=%v", result.Profile.TotalPoints, result.LevelAfter, result.LeveledUp)
	}
	if !result.Cashback.Equal(decimal.NewFromInt(18)) {
		t.Errorf("Cashback = %s, want 18", result.Cashback)
	}

	var levelUps int64
	db.Model(&model.OutboxMessage{}).Where("event_type = ?", model.EventLevelUp).Count(&levelUps)
	if levelUps != 1 {
		t.Errorf("level_up events = %d, want 1", levelUps)
	}
}

func createReward(t *testing.T, db *gorm.DB, reward *model.Reward) *model.Reward {
	t.Helper()
	if reward.RewardNo == "" {
		reward.RewardNo = "RWD-" + reward.Title
	}
	if err := repository.NewRewardRepository(db).Create(context.Background(), nil, reward); err != nil {
		t.Fatal(err)
	}
	return reward
}

func TestPerformTransactionAppliesCashbackReward(t *testing.T) {
	svc, db := newTransactionService(t)
	user := testutil.CreateUser(t, db, "max@example.com", "100")
	reward := createReward(t, db, &model.Reward{
		UserID:               user.ID,
		Title:                "P2P Bonus",
		RewardType:           model.RewardTypePersonalizedOffer,
		CashbackPercentage:   decimal.NewFromInt(5),
		MinTransactionAmount: decimal.NewFromInt(10),
		MaxCashback:          decimal.NewFromInt(25),
		IsActive:             true,
		IsPersonalized:       true,
		ExpiresAt:            testNow.Add(24 * time.Hour),
		MaxUsages:            1,
	})

	req := p2pRequest(user.ID, "30")
	req.RewardID = &reward.ID
	result, err := svc.PerformTransaction(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !result.RewardCashback.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("RewardCashback = %s, want 1.5", result.RewardCashback)
	}
	// 0.30 等级返现 + 1.5 奖励返现
	if !result.Profile.CashbackEarned.Equal(decimal.RequireFromString("1.8")) {
		t.Errorf("CashbackEarned = %s, want 1.8", result.Profile.CashbackEarned)
	}

	var stored model.Reward
	if err := db.First(&stored, reward.ID).Error; err != nil {
		t.Fatal(err)
	}
	if stored.UsageCount != 1 || stored.IsActive {
		t.Errorf("reward usage = %d active = %v", stored.UsageCount, stored.IsActive)
	}

	// 奖励已用完，整笔交易回滚
	again := p2pRequest(user.ID, "30")
	again.RewardID = &reward.ID
	if _, err := svc.PerformTransaction(context.Background(), again); !errors.Is(err, model.ErrRewardNotUsable) {
		t.Fatalf("error = %v, want ErrRewardNotUsable", err)
	}
	if got := testutil.Balance(t, db, user.ID); !got.Equal(decimal.NewFromInt(70)) {
		t.Errorf("balance = %s, want 70", got)
	}
}

func TestPerformTransactionAppliesBonusPointsReward(t *testing.T) {
	svc, db := newTransactionService(t)
	user := testutil.CreateUser(t, db, "max@example.com", "100")
	reward := createReward(t, db, &model.Reward{
		UserID:               user.ID,
		Title:                "Welcome Bonus",
		RewardType:           model.RewardTypeBonusPoints,
		CashbackPercentage:   decimal.Zero,
		MinTransactionAmount: decimal.NewFromInt(1),
		MaxCashback:          decimal.NewFromInt(50),
		BonusPoints:          50,
		IsActive:             true,
		ExpiresAt:            testNow.Add(24 * time.Hour),
		MaxUsages:            1,
	})

	req := p2pRequest(user.ID, "30")
	req.RewardID = &reward.ID
	result, err := svc.PerformTransaction(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if result.RewardBonusPoints != 50 || !result.RewardCashback.IsZero() {
		t.Errorf("reward bonus = %d cashback = %s", result.RewardBonusPoints, result.RewardCashback)
	}
	// 300 + 50 首笔支付 + 50 奖励
	if result.Profile.TotalPoints != 400 {
		t.Errorf("TotalPoints = %d, want 400", result.Profile.TotalPoints)
	}
}

func TestPerformTransactionForeignReward(t *testing.T) {
	svc, db := newTransactionService(t)
	owner := testutil.CreateUser(t, db, "anna@example.com", "100")
	other := testutil.CreateUser(t, db, "tom@example.com", "100")
	reward := createReward(t, db, &model.Reward{
		UserID:               owner.ID,
		Title:                "P2P Bonus",
		RewardType:           model.RewardTypeCashback,
		CashbackPercentage:   decimal.NewFromInt(5),
		MinTransactionAmount: decimal.NewFromInt(10),
		MaxCashback:          decimal.NewFromInt(25),
		IsActive:             true,
		ExpiresAt:            testNow.Add(time.Hour),
		MaxUsages:            1,
	})

	req := p2pRequest(other.ID, "30")
	req.RewardID = &reward.ID
	if _, err := svc.PerformTransaction(context.Background(), req); !errors.Is(err, ErrRewardNotFound) {
		t.Fatalf("error = %v, want ErrRewardNotFound", err)
	}
	if got := testutil.Balance(t, db, other.ID); !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("balance = %s, want 100", got)
	}
}

func TestPerformTransactionStreakAcrossDays(t *testing.T) {
	svc, db := newTransactionService(t)
	user := testutil.CreateUser(t, db, "max@example.com", "500")

	for day := 0; day < 3; day++ {
		now := testNow.Add(time.Duration(day) * 24 * time.Hour)
		svc.now = func() time.Time { return now }
		if _, err := svc.PerformTransaction(context.Background(), p2pRequest(user.ID, "10")); err != nil {
			t.Fatalf("day %d: %v", day, err)
		}
	}

	profile, err := repository.NewLoyaltyRepository(db).GetOrCreate(context.Background(), nil, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if profile.StreakDays != 3 || profile.StreakMultiplier != 1.3 {
		t.Errorf("streak = %d x%f, want 3 x1.3", profile.StreakDays, profile.StreakMultiplier)
	}
}
