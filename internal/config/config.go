/**
 * @description
 * This file handles the configuration management for the subscription-service.
 * It uses the 'viper' library to load configuration from environment variables,
 * providing a centralized and consistent way to manage application settings.
 */
package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	NetworkTestnet = "testnet"
	NetworkPublic  = "public"
)

// Config holds all configuration for the application.
type Config struct {
	ServerPort                 string `mapstructure:"SERVER_PORT"`
	DatabaseURL                string `mapstructure:"DATABASE_URL"`
	RedisURL                   string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix       string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	CheckoutRateLimitPerMinute int    `mapstructure:"CHECKOUT_RATE_LIMIT_PER_MINUTE"`
	RabbitMQURL                string `mapstructure:"RABBITMQ_URL"`
	EventsExchange             string `mapstructure:"EVENTS_EXCHANGE"`
	JWKSURL                    string `mapstructure:"JWKS_URL"`
	WalletAuthAudience         string `mapstructure:"WALLET_AUTH_AUDIENCE"`
	InternalAPIKey             string `mapstructure:"INTERNAL_API_KEY"`
	PlatformFeeBps             int64  `mapstructure:"PLATFORM_FEE_BPS"`
	CheckoutTTLMinutes         int    `mapstructure:"CHECKOUT_TTL_MINUTES"`
	StellarNetwork             string `mapstructure:"STELLAR_NETWORK"`
	ExplorerBaseURL            string `mapstructure:"EXPLORER_BASE_URL"`
	CheckoutRetentionDays      int    `mapstructure:"CHECKOUT_RETENTION_DAYS"`
	CheckoutRetentionSchedule  string `mapstructure:"CHECKOUT_RETENTION_SCHEDULE"`
}

// CheckoutTTL is the lifetime of a checkout session.
func (c Config) CheckoutTTL() time.Duration {
	return time.Duration(c.CheckoutTTLMinutes) * time.Minute
}

// CheckoutRetention is how long resolved checkouts are kept for audit reads.
func (c Config) CheckoutRetention() time.Duration {
	return time.Duration(c.CheckoutRetentionDays) * 24 * time.Hour
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (config Config, err error) {
	viper.SetDefault("SERVER_PORT", "8085")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "myfans:rate_limit")
	viper.SetDefault("CHECKOUT_RATE_LIMIT_PER_MINUTE", 20)
	viper.SetDefault("EVENTS_EXCHANGE", "myfans.events")
	viper.SetDefault("PLATFORM_FEE_BPS", 500)
	viper.SetDefault("CHECKOUT_TTL_MINUTES", 15)
	viper.SetDefault("STELLAR_NETWORK", NetworkTestnet)
	viper.SetDefault("EXPLORER_BASE_URL", "https://stellar.expert/explorer")
	viper.SetDefault("CHECKOUT_RETENTION_DAYS", 30)
	viper.SetDefault("CHECKOUT_RETENTION_SCHEDULE", "@daily")
	viper.AutomaticEnv()

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("CHECKOUT_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("EVENTS_EXCHANGE")
	_ = viper.BindEnv("JWKS_URL")
	_ = viper.BindEnv("WALLET_AUTH_AUDIENCE")
	_ = viper.BindEnv("INTERNAL_API_KEY")
	_ = viper.BindEnv("PLATFORM_FEE_BPS")
	_ = viper.BindEnv("CHECKOUT_TTL_MINUTES")
	_ = viper.BindEnv("STELLAR_NETWORK")
	_ = viper.BindEnv("EXPLORER_BASE_URL")
	_ = viper.BindEnv("CHECKOUT_RETENTION_DAYS")
	_ = viper.BindEnv("CHECKOUT_RETENTION_SCHEDULE")

	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.DatabaseURL = strings.TrimSpace(config.DatabaseURL)
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.InternalAPIKey = strings.TrimSpace(config.InternalAPIKey)
	config.ExplorerBaseURL = strings.TrimSuffix(strings.TrimSpace(config.ExplorerBaseURL), "/")

	if config.PlatformFeeBps < 0 {
		log.Printf("level=warn component=config msg=\"negative platform fee configured; coercing to zero\" fee_bps=%d", config.PlatformFeeBps)
		config.PlatformFeeBps = 0
	}
	if config.PlatformFeeBps > 10000 {
		log.Printf("level=warn component=config msg=\"platform fee too high; capping at 10000 bps\" fee_bps=%d", config.PlatformFeeBps)
		config.PlatformFeeBps = 10000
	}
	if config.CheckoutTTLMinutes <= 0 {
		config.CheckoutTTLMinutes = 15
	}
	if config.CheckoutRetentionDays <= 0 {
		config.CheckoutRetentionDays = 30
	}
	if config.CheckoutRateLimitPerMinute < 0 {
		config.CheckoutRateLimitPerMinute = 0
	}

	config.StellarNetwork = strings.ToLower(strings.TrimSpace(config.StellarNetwork))
	if config.StellarNetwork != NetworkTestnet && config.StellarNetwork != NetworkPublic {
		return config, fmt.Errorf("STELLAR_NETWORK must be %q or %q, got %q", NetworkTestnet, NetworkPublic, config.StellarNetwork)
	}

	return
}
