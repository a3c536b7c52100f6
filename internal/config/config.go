/**
 * @description
 * This package handles the configuration management for the billing-service.
 * It uses the Viper library to read configuration from environment variables
 * (with optional .env file support), providing a centralized way to manage
 * application settings. Components never read ambient environment state;
 * everything flows through the Config struct built here.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the billing-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`
	JWTSecret   string `mapstructure:"SUPABASE_JWT_SECRET"`
	AppBaseURL  string `mapstructure:"APP_BASE_URL"`

	CreemAPIURL        string `mapstructure:"CREEM_API_URL"`
	CreemAPIKey        string `mapstructure:"CREEM_API_KEY"`
	CreemWebhookSecret string `mapstructure:"CREEM_WEBHOOK_SECRET"`
	CreemProductBasic  string `mapstructure:"CREEM_PRODUCT_ID_BASIC"`
	CreemProductPro    string `mapstructure:"CREEM_PRODUCT_ID_PRO"`
	CreemProductMax    string `mapstructure:"CREEM_PRODUCT_ID_MAX"`

	OpenRouterAPIKey  string `mapstructure:"OPENROUTER_API_KEY"`
	OpenRouterBaseURL string `mapstructure:"OPENROUTER_BASE_URL"`

	RedisURL                   string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix       string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	GenerateRateLimitPerMinute int    `mapstructure:"GENERATE_RATE_LIMIT_PER_MINUTE"`

	RabbitMQURL          string `mapstructure:"RABBITMQ_URL"`
	BillingEventExchange string `mapstructure:"BILLING_EVENT_EXCHANGE"`

	CheckoutMappingRetentionDays int    `mapstructure:"CHECKOUT_MAPPING_RETENTION_DAYS"`
	CheckoutMappingGCSchedule    string `mapstructure:"CHECKOUT_MAPPING_GC_SCHEDULE"`

	RefundOutboxBatchSize   int `mapstructure:"REFUND_OUTBOX_BATCH_SIZE"`
	RefundOutboxPollSeconds int `mapstructure:"REFUND_OUTBOX_POLL_SECONDS"`

	TransactionHistoryLimit int `mapstructure:"TRANSACTION_HISTORY_LIMIT"`
}

// LoadConfig reads configuration from environment variables from the given
// path. It uses Viper to automatically bind environment variables to the
// Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("APP_BASE_URL", "http://localhost:3000")
	viper.SetDefault("CREEM_API_URL", "https://test-api.creem.io")
	viper.SetDefault("CREEM_PRODUCT_ID_BASIC", "prod_basic_monthly")
	viper.SetDefault("CREEM_PRODUCT_ID_PRO", "prod_pro_monthly")
	viper.SetDefault("CREEM_PRODUCT_ID_MAX", "prod_max_monthly")
	viper.SetDefault("OPENROUTER_BASE_URL", "https://openrouter.ai/api")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "nanobanana:rate_limit")
	viper.SetDefault("GENERATE_RATE_LIMIT_PER_MINUTE", 20)
	viper.SetDefault("BILLING_EVENT_EXCHANGE", "billing_events")
	viper.SetDefault("CHECKOUT_MAPPING_RETENTION_DAYS", 30)
	viper.SetDefault("CHECKOUT_MAPPING_GC_SCHEDULE", "0 3 * * *")
	viper.SetDefault("REFUND_OUTBOX_BATCH_SIZE", 50)
	viper.SetDefault("REFUND_OUTBOX_POLL_SECONDS", 5)
	viper.SetDefault("TRANSACTION_HISTORY_LIMIT", 10)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT", "SERVER_PORT", "PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("SUPABASE_JWT_SECRET")
	_ = viper.BindEnv("APP_BASE_URL", "APP_BASE_URL", "NEXT_PUBLIC_APP_URL")
	_ = viper.BindEnv("CREEM_API_URL")
	_ = viper.BindEnv("CREEM_API_KEY")
	_ = viper.BindEnv("CREEM_WEBHOOK_SECRET")
	_ = viper.BindEnv("CREEM_PRODUCT_ID_BASIC")
	_ = viper.BindEnv("CREEM_PRODUCT_ID_PRO")
	_ = viper.BindEnv("CREEM_PRODUCT_ID_MAX")
	_ = viper.BindEnv("OPENROUTER_API_KEY")
	_ = viper.BindEnv("OPENROUTER_BASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("GENERATE_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("BILLING_EVENT_EXCHANGE")
	_ = viper.BindEnv("CHECKOUT_MAPPING_RETENTION_DAYS")
	_ = viper.BindEnv("CHECKOUT_MAPPING_GC_SCHEDULE")
	_ = viper.BindEnv("REFUND_OUTBOX_BATCH_SIZE")
	_ = viper.BindEnv("REFUND_OUTBOX_POLL_SECONDS")
	_ = viper.BindEnv("TRANSACTION_HISTORY_LIMIT")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	config.CreemAPIKey = strings.TrimSpace(config.CreemAPIKey)
	config.CreemWebhookSecret = strings.TrimSpace(config.CreemWebhookSecret)
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RabbitMQURL = strings.TrimSpace(config.RabbitMQURL)

	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "nanobanana:rate_limit"
	}
	if config.GenerateRateLimitPerMinute <= 0 {
		config.GenerateRateLimitPerMinute = 20
	}
	if config.CheckoutMappingRetentionDays <= 0 {
		config.CheckoutMappingRetentionDays = 30
	}
	if config.RefundOutboxBatchSize <= 0 {
		config.RefundOutboxBatchSize = 50
	}
	if config.RefundOutboxPollSeconds <= 0 {
		config.RefundOutboxPollSeconds = 5
	}
	if config.TransactionHistoryLimit <= 0 {
		config.TransactionHistoryLimit = 10
	}

	return
}

// PlanProducts returns the plan-name to gateway-product-id mapping.
func (c Config) PlanProducts() map[string]string {
	return map[string]string{
		"Basic": c.CreemProductBasic,
		"Pro":   c.CreemProductPro,
		"Max":   c.CreemProductMax,
	}
}

// PlanForProduct resolves a gateway product id back to a plan name. Unknown
// product ids default to the lowest tier rather than rejecting the event.
func (c Config) PlanForProduct(productID string) string {
	for plan, id := range c.PlanProducts() {
		if id == productID {
			return plan
		}
	}
	return "Basic"
}
