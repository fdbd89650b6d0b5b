package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/daniloc96/google-group-membership-sync/cmd"
	"github.com/daniloc96/google-group-membership-sync/internal/config"
	store "github.com/daniloc96/google-group-membership-sync/internal/dynamodb"
	"github.com/daniloc96/google-group-membership-sync/internal/events"
	"github.com/daniloc96/google-group-membership-sync/internal/google"
	"github.com/daniloc96/google-group-membership-sync/internal/interfaces"
	"github.com/daniloc96/google-group-membership-sync/internal/log"
	"github.com/daniloc96/google-group-membership-sync/internal/metrics"
	"github.com/daniloc96/google-group-membership-sync/internal/models"
	"github.com/daniloc96/google-group-membership-sync/internal/queue"
	"github.com/daniloc96/google-group-membership-sync/internal/secrets"
	"github.com/daniloc96/google-group-membership-sync/internal/sync"
)

func main() {
	cmd.SetLambdaHandler(HandleRequest)
	cmd.SetRunSyncAll(runSyncAll)
	cmd.SetRunSyncGroup(runSyncGroup)
	cmd.SetRunWorker(runWorker)
	cmd.Execute()
}

// HandleRequest is the AWS Lambda handler. A scheduled event or an empty
// request runs sync-all; group_id with org_slug runs a single group.
func HandleRequest(ctx context.Context, request models.SyncRequest) (*models.SyncResponse, error) {
	if request.Source != "" || request.DetailType != "" {
		if !isScheduledEvent(request) {
			return models.NewErrorResponse(fmt.Errorf("unsupported event source")), nil
		}
	}
	if (request.GroupID != nil) != (request.OrgSlug != "") {
		return models.NewErrorResponse(fmt.Errorf("group_id and org_slug must be given together")), nil
	}

	cfg, err := config.Load("")
	if err != nil {
		return models.NewErrorResponse(err), nil
	}

	cfg.Sync.DryRun = request.IsDryRun(cfg.Sync.DryRun)
	if err := config.Validate(cfg); err != nil {
		return models.NewErrorResponse(err), nil
	}
	log.Configure(logrus.StandardLogger(), os.Stdout, cfg.Log.Level, cfg.Log.Format)

	if request.IsSingleGroup() {
		result, err := runSyncGroup(ctx, cfg, *request.GroupID, request.OrgSlug)
		if err != nil {
			return models.NewErrorResponse(err), nil
		}
		return models.NewGroupResponse(result), nil
	}

	summary, err := runSyncAll(ctx, cfg)
	if err != nil {
		return models.NewErrorResponse(err), nil
	}
	return models.NewSummaryResponse(*summary, cfg.Sync.DryRun), nil
}

func isScheduledEvent(request models.SyncRequest) bool {
	return request.Source == "aws.events" && request.DetailType == "Scheduled Event"
}

// runtime holds the services shared by every command.
type runtime struct {
	cfg       *config.Config
	engine    *sync.Engine
	queue     interfaces.JobQueue
	publisher *events.Publisher
	emitter   *metrics.Emitter
}

var newRuntime = func(ctx context.Context, cfg *config.Config) (*runtime, error) {
	creds, err := secrets.ResolveCredentials(cfg.Google.CredentialsEnv, cfg.Google.CredentialsSecret, cfg.Google.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("google credentials: %w", err)
	}
	directory, err := google.NewClient(ctx, creds, cfg.Google)
	if err != nil {
		return nil, err
	}

	awsCfg, err := store.LoadAWSConfig(ctx, cfg.DynamoDB)
	if err != nil {
		return nil, err
	}
	db := store.NewClient(awsCfg, cfg.DynamoDB)
	canonical := store.NewStore(db, cfg.DynamoDB.TableName)
	publisher := events.NewPublisher(store.NewEventWriter(db, cfg.DynamoDB.EventsTableName), cfg.DynamoDB.EventsBuffer)

	jobs, err := queue.New(cfg.Queue)
	if err != nil {
		publisher.Close()
		return nil, err
	}

	rt := &runtime{
		cfg:       cfg,
		engine:    sync.NewEngine(directory, canonical, publisher, jobs, cfg),
		queue:     jobs,
		publisher: publisher,
	}
	if cfg.Metrics.Enabled {
		rt.emitter = metrics.NewEmitter(awsCfg, cfg.Metrics.Namespace)
		logrus.WithField("namespace", cfg.Metrics.Namespace).Info("📈 CloudWatch metrics enabled")
	}
	logrus.WithFields(logrus.Fields{
		"table":   cfg.DynamoDB.TableName,
		"region":  cfg.DynamoDB.Region,
		"queue":   cfg.Queue.Backend,
		"workers": cfg.Sync.Workers,
		"dry_run": cfg.Sync.DryRun,
	}).Info("✅ Sync runtime ready")
	return rt, nil
}

// close flushes pending audit events and releases the queue.
func (rt *runtime) close() {
	rt.publisher.Close()
	if c, ok := rt.queue.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			logrus.WithError(err).Warn("⚠ Failed to close queue")
		}
	}
}

func (rt *runtime) observe(collector *sync.Collector) func(*models.GroupSyncResult) {
	return func(result *models.GroupSyncResult) {
		collector.Add(result)
		if rt.emitter == nil {
			return
		}
		if err := rt.emitter.EmitGroupResult(context.Background(), result); err != nil {
			logrus.WithError(err).Warn("⚠ Failed to emit group metrics")
		}
	}
}

func (rt *runtime) emitSummary(ctx context.Context, collector *sync.Collector) {
	if rt.emitter == nil {
		return
	}
	if err := rt.emitter.EmitSummary(ctx, collector.Summary(), collector.Errors()); err != nil {
		logrus.WithError(err).Warn("⚠ Failed to emit metrics")
	}
}

// runSyncAll dispatches every group. With the in-memory queue the units are
// also run here; with Redis they are left to the workers.
var runSyncAll = func(ctx context.Context, cfg *config.Config) (*models.SyncSummary, error) {
	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer rt.close()

	collector := &sync.Collector{}
	local, inProcess := rt.queue.(*queue.ChannelQueue)

	runErr := make(chan error, 1)
	if inProcess {
		go func() { runErr <- rt.engine.Run(ctx, rt.observe(collector)) }()
	}

	dispatch, err := rt.engine.SyncAll(ctx)
	if inProcess {
		_ = local.Close()
		if waitErr := <-runErr; waitErr != nil && err == nil {
			err = waitErr
		}
	}
	if errors.Is(err, sync.ErrNotConfigured) {
		logrus.Warn("⏸ Directory sync is disabled (sync.enabled=false)")
		summary := collector.Summary()
		return &summary, nil
	}
	if dispatch != nil {
		collector.AddDispatch(dispatch)
	}
	if err != nil {
		return nil, err
	}

	rt.emitSummary(ctx, collector)
	summary := collector.Summary()
	return &summary, nil
}

var runSyncGroup = func(ctx context.Context, cfg *config.Config, groupID int64, orgSlug string) (*models.GroupSyncResult, error) {
	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer rt.close()

	collector := &sync.Collector{}
	result := rt.engine.SyncGroup(ctx, groupID, orgSlug)
	rt.observe(collector)(result)
	rt.emitSummary(ctx, collector)
	return result, nil
}

// runWorker consumes the queue until ctx is done. When sync.schedule is set
// the worker also dispatches sync-all on that schedule.
var runWorker = func(ctx context.Context, cfg *config.Config) error {
	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	collector := &sync.Collector{}
	if cfg.Sync.Schedule != "" {
		c := cron.New()
		_, err := c.AddFunc(cfg.Sync.Schedule, func() {
			dispatch, err := rt.engine.SyncAll(ctx)
			if err != nil {
				logrus.WithError(err).Warn("⚠ Scheduled dispatch failed")
			}
			if dispatch != nil {
				collector.AddDispatch(dispatch)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid schedule %q: %w", cfg.Sync.Schedule, err)
		}
		c.Start()
		defer c.Stop()
		logrus.WithField("schedule", cfg.Sync.Schedule).Info("⏰ Sync-all scheduled")
	}

	err = rt.engine.Run(ctx, rt.observe(collector))
	logrus.Info(collector.Summary().String())
	rt.emitSummary(context.WithoutCancel(ctx), collector)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
