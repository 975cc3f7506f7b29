/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the commerce-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                string `mapstructure:"SERVER_PORT"`
	DatabaseURL               string `mapstructure:"DATABASE_URL"`
	RedisURL                  string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix      string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL               string `mapstructure:"RABBITMQ_URL"`
	EventsExchange            string `mapstructure:"EVENTS_EXCHANGE"`
	RazorpayAPIBaseURL        string `mapstructure:"RAZORPAY_API_BASE_URL"`
	RazorpayKeyID             string `mapstructure:"RAZORPAY_KEY_ID"`
	RazorpayKeySecret         string `mapstructure:"RAZORPAY_KEY_SECRET"`
	JWTSecret                 string `mapstructure:"JWT_SECRET"`
	Currency                  string `mapstructure:"CURRENCY"`
	CommissionRateBps         int    `mapstructure:"COMMISSION_RATE_BPS"`
	MinTemplatePricePaise     int64  `mapstructure:"MIN_TEMPLATE_PRICE_PAISE"`
	StarterPlanPricePaise     int64  `mapstructure:"STARTER_PLAN_PRICE_PAISE"`
	ProPlanPricePaise         int64  `mapstructure:"PRO_PLAN_PRICE_PAISE"`
	EnterprisePlanPricePaise  int64  `mapstructure:"ENTERPRISE_PLAN_PRICE_PAISE"`
	OrderRateLimitPerMinute   int    `mapstructure:"ORDER_RATE_LIMIT_PER_MINUTE"`
	VerifyRateLimitPerMinute  int    `mapstructure:"VERIFY_RATE_LIMIT_PER_MINUTE"`
	DiscountSweepSchedule     string `mapstructure:"DISCOUNT_SWEEP_SCHEDULE"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8086")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "celora:rate_limit")
	viper.SetDefault("EVENTS_EXCHANGE", "celora.events")
	viper.SetDefault("RAZORPAY_API_BASE_URL", "https://api.razorpay.com")
	viper.SetDefault("CURRENCY", "INR")
	viper.SetDefault("COMMISSION_RATE_BPS", 6500)
	viper.SetDefault("MIN_TEMPLATE_PRICE_PAISE", 1000)
	viper.SetDefault("STARTER_PLAN_PRICE_PAISE", 49900)
	viper.SetDefault("PRO_PLAN_PRICE_PAISE", 249900)
	viper.SetDefault("ENTERPRISE_PLAN_PRICE_PAISE", 999900)
	viper.SetDefault("ORDER_RATE_LIMIT_PER_MINUTE", 20)
	viper.SetDefault("VERIFY_RATE_LIMIT_PER_MINUTE", 30)
	viper.SetDefault("DISCOUNT_SWEEP_SCHEDULE", "@hourly")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "COMMERCE_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("EVENTS_EXCHANGE")
	_ = viper.BindEnv("RAZORPAY_API_BASE_URL")
	_ = viper.BindEnv("RAZORPAY_KEY_ID")
	_ = viper.BindEnv("RAZORPAY_KEY_SECRET")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("CURRENCY")
	_ = viper.BindEnv("COMMISSION_RATE_BPS")
	_ = viper.BindEnv("MIN_TEMPLATE_PRICE_PAISE")
	_ = viper.BindEnv("STARTER_PLAN_PRICE_PAISE")
	_ = viper.BindEnv("PRO_PLAN_PRICE_PAISE")
	_ = viper.BindEnv("ENTERPRISE_PLAN_PRICE_PAISE")
	_ = viper.BindEnv("ORDER_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("VERIFY_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("DISCOUNT_SWEEP_SCHEDULE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "celora:rate_limit"
	}
	config.Currency = strings.ToUpper(strings.TrimSpace(config.Currency))
	if config.Currency == "" {
		config.Currency = "INR"
	}

	if config.CommissionRateBps < 0 {
		log.Printf("level=warn component=config msg=\"negative commission rate configured; coercing to zero\" rate_bps=%d", config.CommissionRateBps)
		config.CommissionRateBps = 0
	}
	if config.CommissionRateBps > 10000 {
		log.Printf("level=warn component=config msg=\"commission rate above 100 percent; capping\" rate_bps=%d", config.CommissionRateBps)
		config.CommissionRateBps = 10000
	}
	if config.MinTemplatePricePaise < 0 {
		config.MinTemplatePricePaise = 0
	}

	if config.OrderRateLimitPerMinute <= 0 {
		config.OrderRateLimitPerMinute = 20
	}
	if config.VerifyRateLimitPerMinute <= 0 {
		config.VerifyRateLimitPerMinute = 30
	}
	if strings.TrimSpace(config.DiscountSweepSchedule) == "" {
		config.DiscountSweepSchedule = "@hourly"
	}

	return
}

// PlanPrices returns the configured subscription plan price table keyed by
// plan identifier.
func (c Config) PlanPrices() map[string]int64 {
	return map[string]int64{
		"starter":    c.StarterPlanPricePaise,
		"pro":        c.ProPlanPricePaise,
		"enterprise": c.EnterprisePlanPricePaise,
	}
}
