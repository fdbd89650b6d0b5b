package config

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/robfig/cron/v3"
)

// MaxPageSize is the largest page the Directory API returns for members.list.
const MaxPageSize = 200

// Validate ensures configuration is complete and well-formed.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	var errs []string

	requireNonEmpty := func(value string, field string) {
		if value == "" {
			errs = append(errs, fmt.Sprintf("%s is required", field))
		}
	}

	if cfg.Google.AdminEmail != "" {
		if _, err := mail.ParseAddress(cfg.Google.AdminEmail); err != nil {
			errs = append(errs, "google.admin_email must be a valid email")
		}
	}
	if cfg.Google.CredentialsFile == "" && cfg.Google.CredentialsSecret == "" && cfg.Google.CredentialsEnv == "" {
		errs = append(errs, "one of google.credentials_file, google.credentials_secret or GOOGLE_OAUTH_TOKEN is required")
	}
	if cfg.IsLambda && cfg.Google.CredentialsFile != "" && cfg.Google.CredentialsSecret == "" && cfg.Google.CredentialsEnv == "" {
		errs = append(errs, "google.credentials_secret is required in Lambda")
	}
	if cfg.Google.PageSize <= 0 || cfg.Google.PageSize > MaxPageSize {
		errs = append(errs, fmt.Sprintf("google.page_size must be between 1 and %d", MaxPageSize))
	}
	if cfg.Google.RequestTimeout <= 0 {
		errs = append(errs, "google.request_timeout must be positive")
	}
	if cfg.Google.MaxRetries < 0 {
		errs = append(errs, "google.max_retries must not be negative")
	}
	if cfg.Google.RequestsPerSecond <= 0 {
		errs = append(errs, "google.requests_per_second must be positive")
	}

	if cfg.Sync.Workers <= 0 {
		errs = append(errs, "sync.workers must be positive")
	}
	if cfg.Sync.MaxDepth <= 0 {
		errs = append(errs, "sync.max_depth must be positive")
	}
	if cfg.Sync.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Sync.Schedule); err != nil {
			errs = append(errs, fmt.Sprintf("sync.schedule is invalid: %v", err))
		}
	}

	switch cfg.Queue.Backend {
	case QueueMemory:
		if cfg.Queue.Buffer <= 0 {
			errs = append(errs, "queue.buffer must be positive")
		}
	case QueueRedis:
		requireNonEmpty(cfg.Queue.RedisURL, "queue.redis_url")
		requireNonEmpty(cfg.Queue.RedisKey, "queue.redis_key")
	default:
		errs = append(errs, fmt.Sprintf("queue.backend must be %q or %q", QueueMemory, QueueRedis))
	}

	requireNonEmpty(cfg.DynamoDB.TableName, "dynamodb.table_name")
	requireNonEmpty(cfg.DynamoDB.EventsTableName, "dynamodb.events_table_name")
	requireNonEmpty(cfg.DynamoDB.Region, "dynamodb.region")

	if cfg.DynamoDB.EventsBuffer < 0 {
		errs = append(errs, "dynamodb.events_buffer must not be negative")
	}

	if cfg.Metrics.Enabled {
		requireNonEmpty(cfg.Metrics.Namespace, "metrics.namespace")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}
