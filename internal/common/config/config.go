// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	GenAI         GenAIConfig             `mapstructure:"genai"`
	GitHub        GitHubConfig            `mapstructure:"github"`
	Analysis      AnalysisConfig          `mapstructure:"analysis"`
	JobStore      JobStoreConfig          `mapstructure:"jobstore"`
	Matching      MatchingConfig          `mapstructure:"matching"`
	Feed          FeedConfig              `mapstructure:"feed"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Metrics       MetricsConfig           `mapstructure:"metrics"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
	QueryTimeout   int    `mapstructure:"query_timeout"` // milliseconds
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// GenAIConfig configures the Gemini client used for repository analysis and embeddings.
type GenAIConfig struct {
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	EmbedTimeout   int    `mapstructure:"embed_timeout"` // milliseconds
}

// GitHubConfig points the repository inspector at the GitHub REST API.
// Without a token only public repositories can be read, at a lower rate limit.
type GitHubConfig struct {
	APIURL  string `mapstructure:"api_url"`
	Token   string `mapstructure:"token"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// AnalysisConfig drives the job runner.
type AnalysisConfig struct {
	MaxWorkUnits       int     `mapstructure:"max_work_units"`
	UnitTimeout        int     `mapstructure:"unit_timeout"` // milliseconds
	Workers            int     `mapstructure:"workers"`
	QueueSize          int     `mapstructure:"queue_size"`
	RateLimitPerMinute float64 `mapstructure:"rate_limit_per_minute"`
	CancelSuperseded   bool    `mapstructure:"cancel_superseded"`
}

type JobStoreConfig struct {
	Backend        string `mapstructure:"backend"` // memory | redis
	KeyPrefix      string `mapstructure:"key_prefix"`
	RetentionHours int    `mapstructure:"retention_hours"`
	EvictSchedule  string `mapstructure:"evict_schedule"`
}

type MatchingConfig struct {
	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queue_size"`
}

type FeedConfig struct {
	DefaultLimit      int `mapstructure:"default_limit"`
	MaxLimit          int `mapstructure:"max_limit"`
	FreshWindowHours  int `mapstructure:"fresh_window_hours"`
	ExposureWorkers   int `mapstructure:"exposure_workers"`
	ExposureQueueSize int `mapstructure:"exposure_queue_size"`
}

type NotificationConfig struct {
	Redis struct {
		Enabled bool   `mapstructure:"enabled"`
		Channel string `mapstructure:"channel"`
	} `mapstructure:"redis"`
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		Region   string `mapstructure:"region"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Address string `mapstructure:"address"`
}
