package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration from file, environment variables, and defaults.
// A .env file in the working directory is loaded first when present.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	v := viper.New()
	v.SetDefault("google.page_size", 200)
	v.SetDefault("google.request_timeout", "30s")
	v.SetDefault("google.max_retries", 3)
	v.SetDefault("google.requests_per_second", 10)
	v.SetDefault("sync.enabled", false)
	v.SetDefault("sync.dry_run", false)
	v.SetDefault("sync.workers", 4)
	v.SetDefault("sync.max_depth", 32)
	v.SetDefault("queue.backend", QueueMemory)
	v.SetDefault("queue.redis_key", "group-sync:jobs")
	v.SetDefault("queue.buffer", 256)
	v.SetDefault("dynamodb.table_name", "group-sync")
	v.SetDefault("dynamodb.events_table_name", "group-sync-events")
	v.SetDefault("dynamodb.events_buffer", 256)
	v.SetDefault("dynamodb.region", "eu-west-1")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.namespace", "GroupMembershipSync")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("google.admin_email", "GOOGLE_ADMIN_EMAIL")
	_ = v.BindEnv("google.credentials_file", "GOOGLE_CREDENTIALS_FILE")
	_ = v.BindEnv("google.credentials_secret", "GOOGLE_CREDENTIALS_SECRET")
	_ = v.BindEnv("google.credentials_env", "GOOGLE_OAUTH_TOKEN")
	_ = v.BindEnv("google.page_size", "GOOGLE_PAGE_SIZE")
	_ = v.BindEnv("google.request_timeout", "GOOGLE_REQUEST_TIMEOUT")
	_ = v.BindEnv("google.max_retries", "GOOGLE_MAX_RETRIES")
	_ = v.BindEnv("google.requests_per_second", "GOOGLE_REQUESTS_PER_SECOND")
	_ = v.BindEnv("sync.enabled", "GROUP_SYNC_ENABLED")
	_ = v.BindEnv("sync.dry_run", "DRY_RUN")
	_ = v.BindEnv("sync.organization", "SYNC_ORG")
	_ = v.BindEnv("sync.workers", "SYNC_WORKERS")
	_ = v.BindEnv("sync.max_depth", "SYNC_MAX_DEPTH")
	_ = v.BindEnv("sync.schedule", "SYNC_SCHEDULE")
	_ = v.BindEnv("queue.backend", "QUEUE_BACKEND")
	_ = v.BindEnv("queue.redis_url", "REDIS_URL")
	_ = v.BindEnv("queue.redis_key", "QUEUE_REDIS_KEY")
	_ = v.BindEnv("queue.buffer", "QUEUE_BUFFER")
	_ = v.BindEnv("dynamodb.table_name", "DYNAMODB_TABLE_NAME")
	_ = v.BindEnv("dynamodb.events_table_name", "DYNAMODB_EVENTS_TABLE_NAME")
	_ = v.BindEnv("dynamodb.events_buffer", "DYNAMODB_EVENTS_BUFFER")
	_ = v.BindEnv("dynamodb.region", "DYNAMODB_REGION")
	_ = v.BindEnv("dynamodb.endpoint", "DYNAMODB_ENDPOINT")
	_ = v.BindEnv("metrics.enabled", "METRICS_ENABLED")
	_ = v.BindEnv("metrics.namespace", "METRICS_NAMESPACE")
	_ = v.BindEnv("log.level", "LOG_LEVEL")
	_ = v.BindEnv("log.format", "LOG_FORMAT")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, err
			}
		}
	}

	cfg := &Config{}

	// Explicitly map values to avoid tag mismatch issues.
	cfg.Google.AdminEmail = v.GetString("google.admin_email")
	cfg.Google.CredentialsFile = v.GetString("google.credentials_file")
	cfg.Google.CredentialsSecret = v.GetString("google.credentials_secret")
	cfg.Google.CredentialsEnv = v.GetString("google.credentials_env")
	cfg.Google.PageSize = v.GetInt64("google.page_size")
	cfg.Google.RequestTimeout = v.GetDuration("google.request_timeout")
	cfg.Google.MaxRetries = v.GetInt("google.max_retries")
	cfg.Google.RequestsPerSecond = v.GetFloat64("google.requests_per_second")

	cfg.Sync.Enabled = v.GetBool("sync.enabled")
	cfg.Sync.DryRun = v.GetBool("sync.dry_run")
	cfg.Sync.Organization = v.GetString("sync.organization")
	cfg.Sync.Workers = v.GetInt("sync.workers")
	cfg.Sync.MaxDepth = v.GetInt("sync.max_depth")
	cfg.Sync.Schedule = v.GetString("sync.schedule")

	cfg.Queue.Backend = v.GetString("queue.backend")
	cfg.Queue.RedisURL = v.GetString("queue.redis_url")
	cfg.Queue.RedisKey = v.GetString("queue.redis_key")
	cfg.Queue.Buffer = v.GetInt("queue.buffer")

	cfg.DynamoDB.TableName = v.GetString("dynamodb.table_name")
	cfg.DynamoDB.EventsTableName = v.GetString("dynamodb.events_table_name")
	cfg.DynamoDB.EventsBuffer = v.GetInt("dynamodb.events_buffer")
	cfg.DynamoDB.Region = v.GetString("dynamodb.region")
	cfg.DynamoDB.Endpoint = v.GetString("dynamodb.endpoint")

	cfg.Metrics.Enabled = v.GetBool("metrics.enabled")
	cfg.Metrics.Namespace = v.GetString("metrics.namespace")

	cfg.Log.Level = v.GetString("log.level")
	cfg.Log.Format = v.GetString("log.format")

	cfg.IsLambda = os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""

	return cfg, nil
}
