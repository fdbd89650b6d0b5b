package main

import (
	"context"
	"strings"
	"testing"

	"github.com/daniloc96/google-group-membership-sync/internal/config"
	"github.com/daniloc96/google-group-membership-sync/internal/models"
)

func setTestEnv(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("GOOGLE_CREDENTIALS_FILE", "/tmp/creds.json")
	t.Setenv("GROUP_SYNC_ENABLED", "true")
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "")
}

func stubRunners(t *testing.T) (groupCalls *int, allCalls *int) {
	t.Helper()
	originalAll, originalGroup := runSyncAll, runSyncGroup
	t.Cleanup(func() {
		runSyncAll = originalAll
		runSyncGroup = originalGroup
	})

	groupCalls, allCalls = new(int), new(int)
	runSyncAll = func(ctx context.Context, cfg *config.Config) (*models.SyncSummary, error) {
		*allCalls++
		return &models.SyncSummary{GroupsDispatched: 2, GroupsSynced: 2, MembersAdded: 1}, nil
	}
	runSyncGroup = func(ctx context.Context, cfg *config.Config, groupID int64, orgSlug string) (*models.GroupSyncResult, error) {
		*groupCalls++
		return &models.GroupSyncResult{
			GroupID:   groupID,
			GroupName: "team@acme.com",
			OrgSlug:   orgSlug,
			State:     models.StateDone,
			DryRun:    cfg.Sync.DryRun,
			Added:     1,
		}, nil
	}
	return groupCalls, allCalls
}

func TestHandleRequestSyncAll(t *testing.T) {
	setTestEnv(t)
	groupCalls, allCalls := stubRunners(t)

	dryRun := false
	resp, err := HandleRequest(context.Background(), models.SyncRequest{DryRun: &dryRun})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected status 200, got %d (%s)", resp.StatusCode, resp.Message)
	}
	if *allCalls != 1 || *groupCalls != 0 {
		t.Fatalf("expected sync-all only, got all=%d group=%d", *allCalls, *groupCalls)
	}
	if resp.Summary == nil || resp.Summary.GroupsSynced != 2 {
		t.Fatalf("expected summary in response, got %#v", resp.Summary)
	}
}

func TestHandleRequestDryRunMessage(t *testing.T) {
	setTestEnv(t)
	stubRunners(t)

	dryRun := true
	resp, err := HandleRequest(context.Background(), models.SyncRequest{DryRun: &dryRun})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.HasPrefix(resp.Message, "[DRY RUN]") {
		t.Fatalf("expected dry-run message, got %s", resp.Message)
	}
}

func TestHandleRequestSingleGroup(t *testing.T) {
	setTestEnv(t)
	groupCalls, allCalls := stubRunners(t)

	groupID := int64(10)
	resp, err := HandleRequest(context.Background(), models.SyncRequest{GroupID: &groupID, OrgSlug: "acme"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if resp.StatusCode != 200 || resp.Group == nil || resp.Group.GroupID != 10 {
		t.Fatalf("unexpected response %#v", resp)
	}
	if *groupCalls != 1 || *allCalls != 0 {
		t.Fatalf("expected sync-one only, got all=%d group=%d", *allCalls, *groupCalls)
	}
}

func TestHandleRequestRejectsPartialGroupRequest(t *testing.T) {
	setTestEnv(t)
	groupCalls, allCalls := stubRunners(t)

	resp, _ := HandleRequest(context.Background(), models.SyncRequest{OrgSlug: "acme"})
	if resp.StatusCode != 500 {
		t.Fatalf("expected status 500, got %d", resp.StatusCode)
	}
	if *groupCalls != 0 || *allCalls != 0 {
		t.Fatalf("expected no runs")
	}
}

func TestHandleRequestScheduledEvent(t *testing.T) {
	setTestEnv(t)
	_, allCalls := stubRunners(t)

	resp, err := HandleRequest(context.Background(), models.SyncRequest{Source: "aws.events", DetailType: "Scheduled Event"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if resp.StatusCode != 200 || *allCalls != 1 {
		t.Fatalf("expected scheduled sync-all, got %d (%s)", resp.StatusCode, resp.Message)
	}
}

func TestHandleRequestUnsupportedSource(t *testing.T) {
	setTestEnv(t)
	_, allCalls := stubRunners(t)

	resp, _ := HandleRequest(context.Background(), models.SyncRequest{Source: "aws.s3"})
	if resp.StatusCode != 500 || *allCalls != 0 {
		t.Fatalf("expected rejected event, got %d", resp.StatusCode)
	}
}
