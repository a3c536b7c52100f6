package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfig_UsesPortAlias(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "SERVER_PORT")
	setEnvWithCleanup(t, "PORT", "9090")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "9090" {
		t.Fatalf("expected ServerPort from PORT alias, got %q", cfg.ServerPort)
	}
}

func TestLoadConfig_ServerPortTakesPrecedenceOverAlias(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "SERVER_PORT", "8081")
	setEnvWithCleanup(t, "PORT", "9090")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "8081" {
		t.Fatalf("expected ServerPort to prioritize SERVER_PORT, got %q", cfg.ServerPort)
	}
}

func TestLoadConfig_UsesAppURLAlias(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "APP_BASE_URL")
	setEnvWithCleanup(t, "NEXT_PUBLIC_APP_URL", "https://storefront.example.com")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.AppBaseURL != "https://storefront.example.com" {
		t.Fatalf("expected AppBaseURL from NEXT_PUBLIC_APP_URL alias, got %q", cfg.AppBaseURL)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "SERVER_PORT")
	unsetEnvWithCleanup(t, "PORT")
	unsetEnvWithCleanup(t, "GENERATE_RATE_LIMIT_PER_MINUTE")
	unsetEnvWithCleanup(t, "TRANSACTION_HISTORY_LIMIT")
	unsetEnvWithCleanup(t, "CHECKOUT_MAPPING_RETENTION_DAYS")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.ServerPort)
	}
	if cfg.GenerateRateLimitPerMinute != 20 {
		t.Fatalf("expected default generate rate limit 20, got %d", cfg.GenerateRateLimitPerMinute)
	}
	if cfg.TransactionHistoryLimit != 10 {
		t.Fatalf("expected default history limit 10, got %d", cfg.TransactionHistoryLimit)
	}
	if cfg.CheckoutMappingRetentionDays != 30 {
		t.Fatalf("expected default retention 30 days, got %d", cfg.CheckoutMappingRetentionDays)
	}
}

func TestPlanForProduct(t *testing.T) {
	cfg := Config{
		CreemProductBasic: "prod_basic",
		CreemProductPro:   "prod_pro",
		CreemProductMax:   "prod_max",
	}

	tests := []struct {
		productID string
		want      string
	}{
		{productID: "prod_basic", want: "Basic"},
		{productID: "prod_pro", want: "Pro"},
		{productID: "prod_max", want: "Max"},
		{productID: "prod_retired", want: "Basic"},
		{productID: "", want: "Basic"},
	}

	for _, tt := range tests {
		if got := cfg.PlanForProduct(tt.productID); got != tt.want {
			t.Fatalf("PlanForProduct(%q): expected %q, got %q", tt.productID, tt.want, got)
		}
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}
