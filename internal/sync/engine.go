package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/daniloc96/google-group-membership-sync/internal/config"
	"github.com/daniloc96/google-group-membership-sync/internal/interfaces"
	applog "github.com/daniloc96/google-group-membership-sync/internal/log"
	"github.com/daniloc96/google-group-membership-sync/internal/models"
	"github.com/daniloc96/google-group-membership-sync/internal/queue"
)

// Engine dispatches and runs group-sync units.
type Engine struct {
	store     interfaces.Store
	publisher interfaces.EventPublisher
	queue     interfaces.JobQueue
	resolver  *Resolver
	cfg       *config.Config
}

var _ interfaces.SyncEngine = (*Engine)(nil)

// NewEngine creates a sync engine.
func NewEngine(directory interfaces.DirectoryClient, store interfaces.Store, publisher interfaces.EventPublisher, jobs interfaces.JobQueue, cfg *config.Config) *Engine {
	return &Engine{
		store:     store,
		publisher: publisher,
		queue:     jobs,
		resolver:  NewResolver(directory, cfg.Sync.MaxDepth),
		cfg:       cfg,
	}
}

// SyncAll enqueues one unit per directory-backed group. Other groups are
// reported as skipped. It does not wait for the units to run.
func (e *Engine) SyncAll(ctx context.Context) (*models.DispatchResult, error) {
	result := &models.DispatchResult{StartTime: time.Now()}
	defer func() { result.EndTime = time.Now() }()

	if !e.cfg.Sync.Enabled {
		logrus.Info("⏸ Directory sync disabled, nothing to dispatch")
		return result, ErrNotConfigured
	}

	orgs, err := e.organizations(ctx)
	if err != nil {
		return result, err
	}
	logrus.WithField("organizations", len(orgs)).Info("📋 [1/2] Organizations loaded")

	for i := range orgs {
		org := &orgs[i]
		if len(org.Domains) == 0 {
			logrus.WithField(applog.FieldOrg, org.Slug).Info("⏭ Organization has no allowed domains, skipping")
			result.Skipped = append(result.Skipped, org.Slug)
			continue
		}

		groups, err := e.store.ListGroups(ctx, org.ID)
		if err != nil {
			logrus.WithError(err).WithField(applog.FieldOrg, org.Slug).Error("❌ Failed to list groups")
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", org.Slug, err))
			continue
		}

		for _, group := range groups {
			fields := applog.UnitFields(org.Slug, group.Name)
			if !group.IsDirectoryBacked() {
				logrus.WithFields(fields).Debug("  Group is not directory backed, skipping")
				result.Skipped = append(result.Skipped, fmt.Sprintf("%s/%s", org.Slug, group.Name))
				continue
			}

			job := models.Job{GroupID: group.ID, OrgSlug: org.Slug}
			if err := e.queue.Enqueue(ctx, job); err != nil {
				logrus.WithError(err).WithFields(fields).Error("❌ Failed to dispatch group")
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", job, err))
				if ctx.Err() != nil {
					return result, ctx.Err()
				}
				continue
			}
			result.Dispatched = append(result.Dispatched, job)
			logrus.WithFields(fields).WithField("state", models.StateDispatched).Debug("  Group dispatched")
		}
	}

	logrus.WithFields(logrus.Fields{
		"dispatched": len(result.Dispatched),
		"skipped":    len(result.Skipped),
		"errors":     len(result.Errors),
	}).Info("📤 [2/2] Groups dispatched")
	return result, nil
}

func (e *Engine) organizations(ctx context.Context) ([]models.Organization, error) {
	if slug := e.cfg.Sync.Organization; slug != "" {
		org, err := e.store.GetOrganizationBySlug(ctx, slug)
		if err != nil {
			return nil, err
		}
		return []models.Organization{*org}, nil
	}
	return e.store.ListOrganizations(ctx)
}

// SyncGroup runs one unit: resolve, diff and mutate. Failures end up in the
// returned result; they never propagate to other units.
func (e *Engine) SyncGroup(ctx context.Context, groupID int64, orgSlug string) *models.GroupSyncResult {
	u := &unit{
		result: &models.GroupSyncResult{
			GroupID:   groupID,
			OrgSlug:   orgSlug,
			State:     models.StateDispatched,
			DryRun:    e.cfg.Sync.DryRun,
			StartTime: time.Now(),
		},
		log: logrus.WithFields(applog.UnitFields(orgSlug, fmt.Sprintf("#%d", groupID))),
	}
	defer u.finish()

	if !e.cfg.Sync.Enabled {
		u.skip(ErrNotConfigured.Error())
		return u.result
	}

	org, err := e.store.GetOrganizationBySlug(ctx, orgSlug)
	if err != nil {
		u.fail(err)
		return u.result
	}
	group, err := e.store.GetGroup(ctx, org.ID, groupID)
	if err != nil {
		u.fail(err)
		return u.result
	}
	u.result.GroupName = group.Name
	u.result.Domains = org.Domains
	u.log = logrus.WithFields(applog.UnitFields(orgSlug, group.Name))

	if !group.IsDirectoryBacked() {
		u.skip("group is not directory backed")
		return u.result
	}
	if len(org.Domains) == 0 {
		u.skip(fmt.Sprintf("%v: organization has no allowed domains", ErrNotConfigured))
		return u.result
	}

	u.transition(models.StateResolving)
	resolved, err := e.resolver.Resolve(ctx, group.Name, org.Domains)
	if err != nil {
		u.fail(err)
		return u.result
	}
	u.result.Resolved = resolved

	u.transition(models.StateDiffing)
	before, err := e.store.GroupMemberEmails(ctx, org.ID, group.ID)
	if err != nil {
		u.fail(err)
		return u.result
	}
	u.result.Before = before
	diff := CalculateDiff(before, resolved)
	u.log.WithFields(logrus.Fields{
		"resolved":  len(resolved),
		"canonical": len(before),
		"to_add":    len(diff.ToAdd),
		"to_remove": len(diff.ToRemove),
	}).Info("🔍 Diff calculated")

	if diff.InSync() {
		u.result.AlreadySynced = true
		u.result.After = before
		u.transition(models.StateDone)
		return u.result
	}
	if err := ctx.Err(); err != nil {
		u.fail(err)
		return u.result
	}

	u.transition(models.StateMutating)
	actions, err := ExecuteActions(ctx, e.store, e.publisher, org, group, diff, e.cfg.Sync.DryRun)
	u.result.Actions = actions
	for _, a := range actions {
		switch {
		case a.Error != nil:
			u.result.ActionsFailed++
		case !a.Executed:
		case a.Type == models.ActionAdd:
			u.result.Added++
		case a.Type == models.ActionRemove:
			u.result.Removed++
		}
		if a.UserCreated {
			u.result.UsersCreated++
		}
	}
	if err != nil {
		u.result.Errors = append(u.result.Errors, err.Error())
	}

	if e.cfg.Sync.DryRun {
		u.result.After = diff.Apply(before)
	} else if after, readErr := e.store.GroupMemberEmails(context.WithoutCancel(ctx), org.ID, group.ID); readErr != nil {
		u.log.WithError(readErr).Warn("⚠ Could not read membership after sync")
	} else {
		u.result.After = after
	}

	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		u.fail(ctx.Err())
		return u.result
	}
	u.transition(models.StateDone)
	return u.result
}

// Run consumes jobs from the queue with cfg.Sync.Workers concurrent units
// until ctx is done or a closed queue is drained. onResult, when set, is
// called from the worker goroutines.
func (e *Engine) Run(ctx context.Context, onResult func(*models.GroupSyncResult)) error {
	logrus.WithField("workers", e.cfg.Sync.Workers).Info("👷 Workers started")
	return queue.Consume(ctx, e.queue, e.cfg.Sync.Workers, func(ctx context.Context, job models.Job) {
		result := e.SyncGroup(ctx, job.GroupID, job.OrgSlug)
		if onResult != nil {
			onResult(result)
		}
	})
}

type unit struct {
	result *models.GroupSyncResult
	log    *logrus.Entry
}

func (u *unit) transition(state models.UnitState) {
	u.result.State = state
	u.log.WithField("state", state).Debug("  Unit state changed")
}

func (u *unit) skip(reason string) {
	u.result.State = models.StateSkipped
	u.result.SkipReason = reason
	u.log.WithFields(logrus.Fields{"state": models.StateSkipped, "reason": reason}).Info("⏭ Group skipped")
}

func (u *unit) fail(err error) {
	from := u.result.State
	u.result.State = models.StateFailed
	u.result.Errors = append(u.result.Errors, err.Error())
	u.log.WithError(err).WithFields(logrus.Fields{
		"state":     models.StateFailed,
		"failed_in": from,
		"directory": IsDirectoryUnavailable(err),
	}).Error("❌ Group sync failed")
}

func (u *unit) finish() {
	u.result.EndTime = time.Now()
	u.result.DurationMs = u.result.EndTime.Sub(u.result.StartTime).Milliseconds()
	if u.result.State != models.StateDone {
		return
	}
	u.log.WithFields(logrus.Fields{
		"added":          u.result.Added,
		"removed":        u.result.Removed,
		"users_created":  u.result.UsersCreated,
		"actions_failed": u.result.ActionsFailed,
		"already_synced": u.result.AlreadySynced,
		"dry_run":        u.result.DryRun,
		"duration_ms":    u.result.DurationMs,
	}).Info("✅ Group synced")
}

// Collector folds unit results into a summary. It is safe for concurrent use.
type Collector struct {
	mu      sync.Mutex
	summary models.SyncSummary
	errors  []string
}

// Add records one unit result.
func (c *Collector) Add(result *models.GroupSyncResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summary.Add(result)
	for _, e := range result.Errors {
		c.errors = append(c.errors, fmt.Sprintf("%s/%s: %s", result.OrgSlug, result.GroupName, e))
	}
}

// AddDispatch records a sync-all fan-out.
func (c *Collector) AddDispatch(dispatch *models.DispatchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summary.GroupsDispatched += len(dispatch.Dispatched)
	c.summary.GroupsSkipped += len(dispatch.Skipped)
	c.errors = append(c.errors, dispatch.Errors...)
}

// Summary returns the aggregate so far.
func (c *Collector) Summary() models.SyncSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summary
}

// Errors returns every error recorded so far.
func (c *Collector) Errors() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.errors...)
}
