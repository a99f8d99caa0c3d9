package config

import (
	"fmt"
	"time"
)

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port" validate:"gte=1,lte=65535"`
	Mode string `mapstructure:"mode"`
}

func (s *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	ConnTimeout     int    `mapstructure:"conn_timeout"`
}

func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.Username, d.Password, d.Host, d.Port, d.Database)
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type LoggerConfig struct {
	Level      string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"omitempty,oneof=console json"`
	OutputPath string `mapstructure:"output_path"`
}

// RealtimeConfig controls the websocket client lifecycle.
type RealtimeConfig struct {
	ServerURL            string `mapstructure:"server_url"`
	HandshakeTimeout     int    `mapstructure:"handshake_timeout"`
	HeartbeatInterval    int    `mapstructure:"heartbeat_interval"`
	HeartbeatTimeout     int    `mapstructure:"heartbeat_timeout"`
	ReconnectMaxAttempts int    `mapstructure:"reconnect_max_attempts"`
	ReconnectMaxInterval int    `mapstructure:"reconnect_max_interval"`
	TokenRefreshLead     int    `mapstructure:"token_refresh_lead"`
	AuthRetry            bool   `mapstructure:"auth_retry"`
	QueueCapacity        int    `mapstructure:"queue_capacity"`
}

// BucketConfig describes a single rate-limit bucket quota.
type BucketConfig struct {
	Points        int  `mapstructure:"points"`
	Duration      int  `mapstructure:"duration"`
	BlockDuration int  `mapstructure:"block_duration"`
	ExecEvenly    bool `mapstructure:"exec_evenly"`
}

type RateLimitConfig struct {
	Global           BucketConfig            `mapstructure:"global"`
	User             BucketConfig            `mapstructure:"user"`
	Events           map[string]BucketConfig `mapstructure:"events"`
	RoleMultipliers  map[string]float64      `mapstructure:"role_multipliers"`
	Whitelist        []string                `mapstructure:"whitelist"`
	Blacklist        []string                `mapstructure:"blacklist"`
	FailOpen         bool                    `mapstructure:"fail_open"`
	FailClosedEvents []string                `mapstructure:"fail_closed_events"`
}

type QueryConfig struct {
	CacheTTL         int   `mapstructure:"cache_ttl"`
	CacheMaxRows     int   `mapstructure:"cache_max_rows"`
	PrepareThreshold int   `mapstructure:"prepare_threshold"`
	PreparedCapacity int   `mapstructure:"prepared_capacity"`
	SlowThresholdMs  int64 `mapstructure:"slow_threshold_ms"`
	SlowLogCapacity  int   `mapstructure:"slow_log_capacity"`
}

type MemoryConfig struct {
	CacheCapacity    int     `mapstructure:"cache_capacity"`
	SweepInterval    int     `mapstructure:"sweep_interval"`
	SampleInterval   int     `mapstructure:"sample_interval"`
	HistorySize      int     `mapstructure:"history_size"`
	WarningFraction  float64 `mapstructure:"warning_fraction" validate:"gte=0,lte=1"`
	CriticalFraction float64 `mapstructure:"critical_fraction" validate:"gte=0,lte=1"`
	LeakGrowthPerMin int     `mapstructure:"leak_growth_per_min"`
}

type MigrationConfig struct {
	SQLDir        string `mapstructure:"sql_dir"`
	DocumentDir   string `mapstructure:"document_dir"`
	SharedDir     string `mapstructure:"shared_dir"`
	Strategy      string `mapstructure:"strategy" validate:"omitempty,oneof=sequential parallel rolling blue-green shadow canary"`
	WorkerCap     int    `mapstructure:"worker_cap"`
	ItemTimeout   int    `mapstructure:"item_timeout"`
	LockTTL       int    `mapstructure:"lock_ttl"`
	BackupEnabled bool   `mapstructure:"backup_enabled"`
}

func (m *MigrationConfig) ItemTimeoutDuration() time.Duration {
	if m.ItemTimeout <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(m.ItemTimeout) * time.Second
}

type PrivacyConfig struct {
	AnonymizationSalt    string `mapstructure:"anonymization_salt"`
	ConsentDefaultExpiry int    `mapstructure:"consent_default_expiry"`
	RegulatorDeadline    int    `mapstructure:"regulator_deadline"`
	UserNotifyDeadline   int    `mapstructure:"user_notify_deadline"`
	RetryMaxElapsed      int    `mapstructure:"retry_max_elapsed"`
}

type EmailConfig struct {
	SMTPHost     string `mapstructure:"smtp_host"`
	SMTPPort     int    `mapstructure:"smtp_port"`
	SMTPUser     string `mapstructure:"smtp_user"`
	SMTPPassword string `mapstructure:"smtp_password"`
	FromAddress  string `mapstructure:"from_address"`
	FromName     string `mapstructure:"from_name"`
}
