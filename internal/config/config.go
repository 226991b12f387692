/**
 * @description
 * This package handles the configuration management for the service. It uses
 * the Viper library to read configuration from environment variables,
 * providing a centralized and straightforward way to manage application
 * settings.
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

// Config holds all the configuration variables for the wallet-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort             string `mapstructure:"SERVER_PORT"`
	DatabaseURL            string `mapstructure:"DATABASE_URL"`
	RedisURL               string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix   string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL            string `mapstructure:"RABBITMQ_URL"`
	SyncRequestQueue       string `mapstructure:"SYNC_REQUEST_QUEUE"`
	AggregatorAPIBaseURL   string `mapstructure:"AGGREGATOR_API_BASE_URL"`
	AggregatorAPIKey       string `mapstructure:"AGGREGATOR_API_KEY"`
	AggregatorProviderName string `mapstructure:"AGGREGATOR_PROVIDER_NAME"`
	AuthJWKSURL            string `mapstructure:"AUTH_JWKS_URL"`
	InternalAPIKey         string `mapstructure:"INTERNAL_API_KEY"`
	CredentialKey          string `mapstructure:"CREDENTIAL_ENCRYPTION_KEY"`
	SyncRateLimitPerMinute int    `mapstructure:"SYNC_RATE_LIMIT_PER_MINUTE"`
	DefaultCurrency        string `mapstructure:"DEFAULT_CURRENCY"`
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
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SYNC_REQUEST_QUEUE", "wallet_service.sync_requests")
	viper.SetDefault("AGGREGATOR_PROVIDER_NAME", "testprovider")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "pennyflow:rate_limit")
	viper.SetDefault("SYNC_RATE_LIMIT_PER_MINUTE", 6)
	viper.SetDefault("DEFAULT_CURRENCY", "USD")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "WALLET_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("SYNC_REQUEST_QUEUE")
	_ = viper.BindEnv("AGGREGATOR_API_BASE_URL")
	_ = viper.BindEnv("AGGREGATOR_API_KEY")
	_ = viper.BindEnv("AGGREGATOR_PROVIDER_NAME")
	_ = viper.BindEnv("AUTH_JWKS_URL")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "WALLET_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("CREDENTIAL_ENCRYPTION_KEY")
	_ = viper.BindEnv("SYNC_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("DEFAULT_CURRENCY")

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
	if strings.TrimSpace(config.InternalAPIKey) == "" {
		config.InternalAPIKey = strings.TrimSpace(os.Getenv("WALLET_SERVICE_INTERNAL_API_KEY"))
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "pennyflow:rate_limit"
	}

	config.AggregatorProviderName = strings.ToLower(strings.TrimSpace(config.AggregatorProviderName))
	if config.AggregatorProviderName == "" {
		config.AggregatorProviderName = "testprovider"
	}

	config.DefaultCurrency = strings.ToUpper(strings.TrimSpace(config.DefaultCurrency))
	if len(config.DefaultCurrency) != 3 {
		log.Printf("level=warn component=config msg=\"invalid default currency; using USD\" value=%q", config.DefaultCurrency)
		config.DefaultCurrency = "USD"
	}

	if config.SyncRateLimitPerMinute < 0 {
		log.Printf("level=warn component=config msg=\"negative sync rate limit configured; disabling\" limit=%d", config.SyncRateLimitPerMinute)
		config.SyncRateLimitPerMinute = 0
	}

	return
}
