package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Storage   StorageConfig   `yaml:"storage"`
	Vibe      VibeConfig      `yaml:"vibe"`
	Surfside  SurfsideConfig  `yaml:"surfside"`
	Upload    UploadConfig    `yaml:"upload"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Reports   ReportsConfig   `yaml:"reports"`
	Notify    NotifyConfig    `yaml:"notify"`
	CPM       CPMConfig       `yaml:"cpm"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_minutes"`
}

// RedisConfig holds the Redis connection used for the vibe creation quota
// and per-(source,client) run locks. When URL is empty the system falls
// back to Postgres advisory locks and an in-process quota counter.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// StorageConfig selects the object-store backend for batch drops and
// report artifacts.
type StorageConfig struct {
	Type       string `yaml:"type"` // "s3" or "local"
	LocalPath  string `yaml:"local_path"`
	S3Bucket   string `yaml:"s3_bucket"`
	AWSRegion  string `yaml:"aws_region"`
	AWSProfile string `yaml:"aws_profile"` // empty uses the default credential chain
}

// GetAWSProfile returns the AWS profile, with environment variable override
func (c StorageConfig) GetAWSProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return ""
		}
		return envProfile
	}
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "" // running on ECS or Lambda, use IAM role
	}
	return c.AWSProfile
}

// VibeConfig holds vibe reporting API settings. The hourly quota is
// enforced locally regardless of what the remote service would tolerate.
type VibeConfig struct {
	BaseURL             string `yaml:"base_url"`
	APIKey              string `yaml:"api_key"`
	AdvertiserID        string `yaml:"advertiser_id"`
	TimeoutSeconds      int    `yaml:"timeout_seconds"`
	RateLimitPerHour    int    `yaml:"rate_limit_per_hour"`
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
	MaxWaitSeconds      int    `yaml:"max_wait_seconds"`
	Enabled             bool   `yaml:"enabled"`
}

// Timeout returns the configured HTTP timeout as a duration
func (c VibeConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// PollInterval returns the minimum interval between status checks per report
func (c VibeConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// MaxWait returns the wall-clock budget for one report's polling phase
func (c VibeConfig) MaxWait() time.Duration {
	return time.Duration(c.MaxWaitSeconds) * time.Second
}

// SurfsideConfig holds settings for the S3 batch feed.
type SurfsideConfig struct {
	Enabled bool `yaml:"enabled"`
}

// UploadConfig constrains the manual upload path.
type UploadConfig struct {
	MaxSizeBytes      int64    `yaml:"max_size_bytes"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

// IngestionConfig holds orchestrator and scheduler settings.
type IngestionConfig struct {
	ScheduleHourUTC      int  `yaml:"schedule_hour_utc"`
	StagingRetentionDays int  `yaml:"staging_retention_days"`
	StuckRunMinutes      int  `yaml:"stuck_run_minutes"`
	RetryFailedRuns      bool `yaml:"retry_failed_runs"`
	RunLockTTLMinutes    int  `yaml:"run_lock_ttl_minutes"`
}

// RunLockTTL returns how long a run lock may be held before expiring.
func (c IngestionConfig) RunLockTTL() time.Duration {
	return time.Duration(c.RunLockTTLMinutes) * time.Minute
}

// ReportsConfig holds report generation settings.
type ReportsConfig struct {
	Workers int `yaml:"workers"`
}

// NotifyConfig holds SES alert settings. Disabled means a no-op mailer.
type NotifyConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Region      string   `yaml:"region"`
	FromAddress string   `yaml:"from_address"`
	AdminEmails []string `yaml:"admin_emails"`
}

// CPMConfig holds spend imputation settings. DefaultRate of 0 means spend
// stays zero when a client has no CPM setting for a source.
type CPMConfig struct {
	DefaultRate float64 `yaml:"default_rate"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 5
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "local"
	}
	if cfg.Storage.LocalPath == "" {
		cfg.Storage.LocalPath = "./data"
	}
	if cfg.Storage.AWSRegion == "" {
		cfg.Storage.AWSRegion = "us-east-1"
	}
	if cfg.Vibe.BaseURL == "" {
		cfg.Vibe.BaseURL = "https://api.vibe.co"
	}
	if cfg.Vibe.TimeoutSeconds == 0 {
		cfg.Vibe.TimeoutSeconds = 30
	}
	if cfg.Vibe.RateLimitPerHour == 0 {
		cfg.Vibe.RateLimitPerHour = 15
	}
	if cfg.Vibe.PollIntervalSeconds == 0 {
		cfg.Vibe.PollIntervalSeconds = 30
	}
	if cfg.Vibe.MaxWaitSeconds == 0 {
		cfg.Vibe.MaxWaitSeconds = 600
	}
	if cfg.Upload.MaxSizeBytes == 0 {
		cfg.Upload.MaxSizeBytes = 50 * 1024 * 1024
	}
	if len(cfg.Upload.AllowedExtensions) == 0 {
		cfg.Upload.AllowedExtensions = []string{".csv"}
	}
	if cfg.Ingestion.ScheduleHourUTC == 0 {
		cfg.Ingestion.ScheduleHourUTC = 6
	}
	if cfg.Ingestion.StagingRetentionDays == 0 {
		cfg.Ingestion.StagingRetentionDays = 7
	}
	if cfg.Ingestion.StuckRunMinutes == 0 {
		cfg.Ingestion.StuckRunMinutes = 120
	}
	if cfg.Ingestion.RunLockTTLMinutes == 0 {
		cfg.Ingestion.RunLockTTLMinutes = 60
	}
	if cfg.Reports.Workers == 0 {
		cfg.Reports.Workers = 4
	}
	if cfg.Notify.Region == "" {
		cfg.Notify.Region = "us-east-1"
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg.Redis.URL = redisURL
	}
	if apiKey := os.Getenv("VIBE_API_KEY"); apiKey != "" {
		cfg.Vibe.APIKey = apiKey
	}
	if baseURL := os.Getenv("VIBE_BASE_URL"); baseURL != "" {
		cfg.Vibe.BaseURL = baseURL
	}
	if advID := os.Getenv("VIBE_ADVERTISER_ID"); advID != "" {
		cfg.Vibe.AdvertiserID = advID
	}
	if bucket := os.Getenv("STORAGE_S3_BUCKET"); bucket != "" {
		cfg.Storage.S3Bucket = bucket
		cfg.Storage.Type = "s3"
	}
	if region := os.Getenv("STORAGE_AWS_REGION"); region != "" {
		cfg.Storage.AWSRegion = region
	}
	if from := os.Getenv("NOTIFY_FROM_ADDRESS"); from != "" {
		cfg.Notify.FromAddress = from
	}

	return cfg, nil
}
