package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"loyaltypay/internal/testutil"

	"github.com/shopspring/decimal"
)

func TestRegisterAndLogin(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewAuthService(db, testutil.NewConfig())

	user, err := svc.Register(context.Background(), &RegisterRequest{
		Name:     "Max Mustermann",
		Email:    " Max@Example.com ",
		Password: "secret123",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if user.Email != "max@example.com" {
		t.Errorf("Email = %q, want lower-cased", user.Email)
	}
	if !user.Balance.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("Balance = %s, want 1000", user.Balance)
	}
	if user.PasswordHash == "secret123" {
		t.Error("password stored in plain text")
	}

	_, err = svc.Register(context.Background(), &RegisterRequest{Name: "Dup", Email: "max@example.com", Password: "secret123"})
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate Register() error = %v, want ErrEmailTaken", err)
	}

	resp, err := svc.Login(context.Background(), &LoginRequest{Email: "MAX@example.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	userID, err := svc.ParseToken(resp.Token)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if userID != user.ID {
		t.Errorf("token user = %d, want %d", userID, user.ID)
	}

	if _, err := svc.Login(context.Background(), &LoginRequest{Email: "max@example.com", Password: "wrong"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password error = %v", err)
	}
	if _, err := svc.Login(context.Background(), &LoginRequest{Email: "nobody@example.com", Password: "secret123"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email error = %v", err)
	}
}

func TestParseTokenRejects(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, "max@example.com", "0")

	svc := NewAuthService(db, testutil.NewConfig())
	svc.now = func() time.Time { return testNow }
	token, _, err := svc.IssueToken(user)
	if err != nil {
		t.Fatal(err)
	}

	// 过期
	svc.now = func() time.Time { return testNow.Add(2 * time.Hour) }
	if _, err := svc.ParseToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token error = %v", err)
	}

	// 签名密钥不同
	otherCfg := testutil.NewConfig()
	otherCfg.JWT.Secret = "other-secret"
	other := NewAuthService(db, otherCfg)
	other.now = func() time.Time { return testNow }
	if _, err := other.ParseToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("foreign token error = %v", err)
	}

	if _, err := other.ParseToken("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage token error = %v", err)
	}
}
