package config

import (
	"os"
	"path/filepath"
	"testing"
)

const testYAML = `
server:
  port: 9090
database:
  driver: postgres
  host: db.local
kafka:
  brokers: ["k1:9092", "k2:9092"]
jwt:
  secret: file-secret
business:
  initial_balance: "250"
recommender:
  enabled: true
  endpoint: http://ai.local/recommend
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, testYAML))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != 9090 || cfg.Database.Driver != "postgres" || cfg.Database.Host != "db.local" {
		t.Errorf("server/database = %+v %+v", cfg.Server, cfg.Database)
	}
	if len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.Business.InitialBalance != "250" || !cfg.Recommender.Enabled {
		t.Errorf("business/recommender = %+v %+v", cfg.Business, cfg.Recommender)
	}

	// 默认值
	if cfg.Kafka.Topic.LoyaltyEvent != "loyalty_event" || cfg.JWT.ExpireHours != 72 {
		t.Errorf("defaults = %q %d", cfg.Kafka.Topic.LoyaltyEvent, cfg.JWT.ExpireHours)
	}
	if cfg.Business.RewardExpiryDays != 30 || cfg.Business.MaxRetryCount != 5 || cfg.Database.SSLMode != "disable" {
		t.Errorf("business defaults = %+v", cfg.Business)
	}
	if GlobalConfig != cfg {
		t.Error("GlobalConfig not set")
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("SERVER_PORT", "7070")

	cfg, err := LoadConfig(writeConfig(t, testYAML))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.JWT.Secret != "env-secret" || cfg.Server.Port != 7070 {
		t.Errorf("jwt.secret = %q server.port = %d", cfg.JWT.Secret, cfg.Server.Port)
	}
}

func TestLoadConfigRequiresSecret(t *testing.T) {
	if _, err := LoadConfig(writeConfig(t, "server:\n  port: 8080\n")); err == nil {
		t.Error("LoadConfig() without jwt.secret error = nil")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadConfig() with missing file error = nil")
	}
}
