package seed

import (
	"context"
	"testing"

	"loyaltypay/internal/model"
	"loyaltypay/internal/testutil"

	"github.com/shopspring/decimal"
)

const sample = `
users:
  - name: Max Mustermann
    email: max@example.com
    password: wero1234
    balance: "1500.50"
contacts:
  - name: Lisa Müller
    email: lisa@example.com
    phone_number: "+49 151 12345678"
merchants:
  - name: REWE
    category: Groceries
    address: Berlin
  - name: Café Central
    category: Food & Drink
`

func TestApplyIsRepeatable(t *testing.T) {
	db := testutil.NewDB(t)

	f, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(f.Users) != 1 || len(f.Contacts) != 1 || len(f.Merchants) != 2 {
		t.Fatalf("parsed %d users, %d contacts, %d merchants", len(f.Users), len(f.Contacts), len(f.Merchants))
	}
	if f.Contacts[0].PhoneNumber != "+49 151 12345678" {
		t.Errorf("PhoneNumber = %q", f.Contacts[0].PhoneNumber)
	}

	for i := 0; i < 2; i++ {
		// 每次重新解析，避免复用已写入的 ID
		f, _ := Parse([]byte(sample))
		if err := Apply(context.Background(), db, f); err != nil {
			t.Fatalf("Apply() run %d error = %v", i+1, err)
		}
	}

	if n := testutil.Count(t, db, &model.User{}); n != 1 {
		t.Errorf("users = %d, want 1", n)
	}
	if n := testutil.Count(t, db, &model.Contact{}); n != 1 {
		t.Errorf("contacts = %d, want 1", n)
	}
	if n := testutil.Count(t, db, &model.Merchant{}); n != 2 {
		t.Errorf("merchants = %d, want 2", n)
	}

	var user model.User
	if err := db.Where("email = ?", "max@example.com").First(&user).Error; err != nil {
		t.Fatal(err)
	}
	if !user.Balance.Equal(decimal.RequireFromString("1500.5")) {
		t.Errorf("Balance = %s, want 1500.5", user.Balance)
	}
}

func TestApplyRejectsBadBalance(t *testing.T) {
	db := testutil.NewDB(t)
	f := &File{Users: []User{{Name: "Bad", Email: "bad@example.com", Password: "x", Balance: "lots"}}}
	if err := Apply(context.Background(), db, f); err == nil {
		t.Error("Apply() error = nil for invalid balance")
	}
}

func TestLoadBundledSeed(t *testing.T) {
	f, err := LoadFile("../../config/seed.yaml")
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if len(f.Users) == 0 || len(f.Contacts) == 0 || len(f.Merchants) == 0 {
		t.Errorf("bundled seed incomplete: %d users, %d contacts, %d merchants", len(f.Users), len(f.Contacts), len(f.Merchants))
	}
	if _, err := LoadFile("missing.yaml"); err == nil {
		t.Error("LoadFile() error = nil for missing file")
	}
}
