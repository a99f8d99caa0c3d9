package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"

	sharedConfig "github.com/natebag/Testsite-sub005/internal/shared/config"
	"github.com/natebag/Testsite-sub005/internal/shared/validation"
)

type Config struct {
	Server    sharedConfig.ServerConfig    `mapstructure:"server"`
	Database  sharedConfig.DatabaseConfig  `mapstructure:"database"`
	Mongo     sharedConfig.MongoConfig     `mapstructure:"mongo"`
	Redis     sharedConfig.RedisConfig     `mapstructure:"redis"`
	Logger    sharedConfig.LoggerConfig    `mapstructure:"logger"`
	Realtime  sharedConfig.RealtimeConfig  `mapstructure:"realtime"`
	RateLimit sharedConfig.RateLimitConfig `mapstructure:"ratelimit"`
	Query     sharedConfig.QueryConfig     `mapstructure:"query"`
	Memory    sharedConfig.MemoryConfig    `mapstructure:"memory"`
	Migration sharedConfig.MigrationConfig `mapstructure:"migration"`
	Privacy   sharedConfig.PrivacyConfig   `mapstructure:"privacy"`
	Email     sharedConfig.EmailConfig     `mapstructure:"email"`
}

var (
	appConfig   *Config
	appConfigMu sync.RWMutex
)

// Load loads configuration from file and environment variables.
func Load(env string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../configs")
	viper.AddConfigPath("../../configs")

	viper.SetEnvPrefix("TESTSITE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if env != "" && env != "default" {
		viper.Set("server.mode", env)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validation.ValidateStruct(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	appConfigMu.Lock()
	appConfig = &config
	appConfigMu.Unlock()

	return &config, nil
}

// Get returns the loaded configuration.
func Get() *Config {
	appConfigMu.RLock()
	defer appConfigMu.RUnlock()
	return appConfig
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 3306)
	viper.SetDefault("database.username", "root")
	viper.SetDefault("database.password", "password")
	viper.SetDefault("database.database", "testsite_dev")
	viper.SetDefault("database.max_idle_conns", 10)
	viper.SetDefault("database.max_open_conns", 100)
	viper.SetDefault("database.conn_max_lifetime", 60)
	viper.SetDefault("database.conn_timeout", 10)

	viper.SetDefault("mongo.uri", "mongodb://localhost:27017")
	viper.SetDefault("mongo.database", "testsite_dev")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")
	viper.SetDefault("logger.output_path", "stdout")

	viper.SetDefault("realtime.handshake_timeout", 10)
	viper.SetDefault("realtime.heartbeat_interval", 30)
	viper.SetDefault("realtime.heartbeat_timeout", 10)
	viper.SetDefault("realtime.reconnect_max_attempts", 10)
	viper.SetDefault("realtime.reconnect_max_interval", 30)
	viper.SetDefault("realtime.token_refresh_lead", 300)
	viper.SetDefault("realtime.auth_retry", true)
	viper.SetDefault("realtime.queue_capacity", 100)

	viper.SetDefault("ratelimit.global.points", 100)
	viper.SetDefault("ratelimit.global.duration", 60)
	viper.SetDefault("ratelimit.global.block_duration", 300)
	viper.SetDefault("ratelimit.user.points", 50)
	viper.SetDefault("ratelimit.user.duration", 60)
	viper.SetDefault("ratelimit.user.block_duration", 120)
	viper.SetDefault("ratelimit.fail_open", true)

	viper.SetDefault("query.cache_ttl", 300)
	viper.SetDefault("query.cache_max_rows", 1000)
	viper.SetDefault("query.prepare_threshold", 3)
	viper.SetDefault("query.prepared_capacity", 100)
	viper.SetDefault("query.slow_threshold_ms", 1000)
	viper.SetDefault("query.slow_log_capacity", 100)

	viper.SetDefault("memory.cache_capacity", 10000)
	viper.SetDefault("memory.sweep_interval", 60)
	viper.SetDefault("memory.sample_interval", 30)
	viper.SetDefault("memory.history_size", 100)
	viper.SetDefault("memory.warning_fraction", 0.75)
	viper.SetDefault("memory.critical_fraction", 0.9)
	viper.SetDefault("memory.leak_growth_per_min", 1000)

	viper.SetDefault("migration.sql_dir", "./migrations/sql")
	viper.SetDefault("migration.document_dir", "./migrations/document")
	viper.SetDefault("migration.shared_dir", "./migrations/shared")
	viper.SetDefault("migration.strategy", "sequential")
	viper.SetDefault("migration.worker_cap", 4)
	viper.SetDefault("migration.item_timeout", 1800)
	viper.SetDefault("migration.lock_ttl", 3600)
	viper.SetDefault("migration.backup_enabled", true)

	viper.SetDefault("privacy.anonymization_salt", "change-me-in-production")
	viper.SetDefault("privacy.consent_default_expiry", 365)
	viper.SetDefault("privacy.regulator_deadline", 72)
	viper.SetDefault("privacy.user_notify_deadline", 72)
	viper.SetDefault("privacy.retry_max_elapsed", 60)

	viper.SetDefault("email.smtp_host", "localhost")
	viper.SetDefault("email.smtp_port", 1025)
	viper.SetDefault("email.from_address", "privacy@testsite.local")
	viper.SetDefault("email.from_name", "Testsite Privacy Office")
}
