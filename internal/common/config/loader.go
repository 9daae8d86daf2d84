// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges configs/config.<APP_ENVIRONMENT>.yaml
// over it and lets environment variables override any key.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// AutomaticEnv only applies to keys viper already knows about, so keys that
// are commonly absent from the yaml are bound explicitly.
func bindEnvKeys(v *viper.Viper) {
	for _, key := range []string{
		"genai.api_key",
		"github.token",
		"database.postgres.password",
		"database.redis.password",
		"notifications.sns.topic_arn",
		"jobstore.backend",
	} {
		_ = v.BindEnv(key)
	}
}

func loadEnvFile() {
	paths := []string{".env", "../.env", "../../.env"}
	if root := findProjectRoot(); root != "" {
		paths = append(paths, filepath.Join(root, ".env"))
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			if expanded := os.ExpandEnv(strVal); expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets from their conventional env names.
func overrideEmptyConfig(cfg *Config) {
	if cfg.GenAI.APIKey == "" {
		if val := os.Getenv("GEMINI_API_KEY"); val != "" {
			cfg.GenAI.APIKey = val
		} else if val := os.Getenv("GENAI_API_KEY"); val != "" {
			cfg.GenAI.APIKey = val
		}
	}
	if cfg.GitHub.Token == "" {
		if val := os.Getenv("GITHUB_TOKEN"); val != "" {
			cfg.GitHub.Token = val
		}
	}
	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "devmatch-workers"
	}

	// Camunda defaults
	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	// Database defaults
	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Postgres.QueryTimeout == 0 {
		cfg.Database.Postgres.QueryTimeout = 5000
	}

	// GenAI defaults
	if cfg.GenAI.Model == "" {
		cfg.GenAI.Model = "gemini-2.5-flash"
	}
	if cfg.GenAI.EmbeddingModel == "" {
		cfg.GenAI.EmbeddingModel = "text-embedding-004"
	}
	if cfg.GenAI.EmbedTimeout == 0 {
		cfg.GenAI.EmbedTimeout = 15000
	}

	// GitHub defaults
	if cfg.GitHub.APIURL == "" {
		cfg.GitHub.APIURL = "https://api.github.com"
	}
	if cfg.GitHub.Timeout == 0 {
		cfg.GitHub.Timeout = 10000
	}

	// Analysis defaults
	if cfg.Analysis.MaxWorkUnits == 0 {
		cfg.Analysis.MaxWorkUnits = 5
	}
	if cfg.Analysis.UnitTimeout == 0 {
		cfg.Analysis.UnitTimeout = 60000
	}
	if cfg.Analysis.Workers == 0 {
		cfg.Analysis.Workers = 4
	}
	if cfg.Analysis.QueueSize == 0 {
		cfg.Analysis.QueueSize = 100
	}
	if cfg.Analysis.RateLimitPerMinute == 0 {
		cfg.Analysis.RateLimitPerMinute = 30
	}

	// Job store defaults
	if cfg.JobStore.Backend == "" {
		cfg.JobStore.Backend = "memory"
	}
	if cfg.JobStore.KeyPrefix == "" {
		cfg.JobStore.KeyPrefix = "analysis"
	}
	if cfg.JobStore.RetentionHours == 0 {
		cfg.JobStore.RetentionHours = 24
	}
	if cfg.JobStore.EvictSchedule == "" {
		cfg.JobStore.EvictSchedule = "@every 1h"
	}

	// Matching and feed defaults
	if cfg.Matching.Workers == 0 {
		cfg.Matching.Workers = 2
	}
	if cfg.Matching.QueueSize == 0 {
		cfg.Matching.QueueSize = 256
	}
	if cfg.Feed.DefaultLimit == 0 {
		cfg.Feed.DefaultLimit = 20
	}
	if cfg.Feed.MaxLimit == 0 {
		cfg.Feed.MaxLimit = 100
	}
	if cfg.Feed.FreshWindowHours == 0 {
		cfg.Feed.FreshWindowHours = 7 * 24
	}
	if cfg.Feed.ExposureWorkers == 0 {
		cfg.Feed.ExposureWorkers = 2
	}
	if cfg.Feed.ExposureQueueSize == 0 {
		cfg.Feed.ExposureQueueSize = 256
	}

	if cfg.Notifications.Redis.Channel == "" {
		cfg.Notifications.Redis.Channel = "analysis.finished"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = ":8080"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = cfg.Camunda.MaxJobsActive
		}
		if worker.Timeout == 0 {
			worker.Timeout = cfg.Camunda.Timeout
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Camunda.Enabled && cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required when camunda is enabled")
	}

	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}

	switch cfg.JobStore.Backend {
	case "memory":
	case "redis":
		if cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required for the redis job store")
		}
	default:
		return fmt.Errorf("jobstore.backend must be memory or redis, got %q", cfg.JobStore.Backend)
	}

	if cfg.Notifications.Redis.Enabled && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required for redis notifications")
	}
	if cfg.Notifications.SNS.Enabled && cfg.Notifications.SNS.TopicARN == "" {
		return fmt.Errorf("notifications.sns.topic_arn is required when sns is enabled")
	}

	if cfg.Analysis.MaxWorkUnits < 1 {
		return fmt.Errorf("analysis.max_work_units must be positive")
	}
	if cfg.Analysis.Workers < 1 || cfg.Matching.Workers < 1 || cfg.Feed.ExposureWorkers < 1 {
		return fmt.Errorf("worker pool sizes must be positive")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// Hours converts an hour count from config to time.Duration.
func Hours(h int) time.Duration {
	return time.Duration(h) * time.Hour
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
