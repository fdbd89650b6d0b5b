package config

import "time"

// Config holds all configuration for the sync.
type Config struct {
	Google   GoogleConfig   `json:"google"`
	Sync     SyncConfig     `json:"sync"`
	Queue    QueueConfig    `json:"queue"`
	DynamoDB DynamoDBConfig `json:"dynamodb"`
	Metrics  MetricsConfig  `json:"metrics"`
	Log      LogConfig      `json:"log"`
	IsLambda bool           `json:"-"`
}

// GoogleConfig holds Directory API settings.
type GoogleConfig struct {
	// AdminEmail enables service-account impersonation. When empty the
	// credentials are treated as an authorized-user OAuth2 token.
	AdminEmail        string        `json:"admin_email,omitempty"`
	CredentialsFile   string        `json:"credentials_file,omitempty"`
	CredentialsSecret string        `json:"credentials_secret,omitempty"`
	CredentialsEnv    string        `json:"-"`
	PageSize          int64         `json:"page_size"`
	RequestTimeout    time.Duration `json:"request_timeout"`
	MaxRetries        int           `json:"max_retries"`
	RequestsPerSecond float64       `json:"requests_per_second"`
}

// SyncConfig holds sync behavior settings.
type SyncConfig struct {
	Enabled      bool   `json:"enabled"`
	DryRun       bool   `json:"dry_run"`
	Organization string `json:"organization,omitempty"`
	Workers      int    `json:"workers"`
	MaxDepth     int    `json:"max_depth"`
	Schedule     string `json:"schedule,omitempty"`
}

// QueueConfig selects the job transport between dispatcher and workers.
type QueueConfig struct {
	Backend  string `json:"backend"`
	RedisURL string `json:"redis_url,omitempty"`
	RedisKey string `json:"redis_key"`
	Buffer   int    `json:"buffer"`
}

// DynamoDBConfig holds canonical store and event table settings.
type DynamoDBConfig struct {
	TableName       string `json:"table_name"`
	EventsTableName string `json:"events_table_name"`
	// EventsBuffer is the number of audit events held before the mutator waits.
	EventsBuffer    int    `json:"events_buffer"`
	Region          string `json:"region"`
	Endpoint        string `json:"endpoint,omitempty"`
}

// MetricsConfig holds CloudWatch settings.
type MetricsConfig struct {
	Enabled   bool   `json:"enabled"`
	Namespace string `json:"namespace"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

const (
	QueueMemory = "memory"
	QueueRedis  = "redis"
)
