package models

import "fmt"

// SyncRequest is the input event for Lambda invocation.
// A request without group_id and org_slug triggers sync-all.
type SyncRequest struct {
	GroupID    *int64 `json:"group_id,omitempty"`
	OrgSlug    string `json:"org_slug,omitempty"`
	DryRun     *bool  `json:"dry_run,omitempty"`
	Source     string `json:"source,omitempty"`
	DetailType string `json:"detail-type,omitempty"`
}

// IsDryRun returns the effective dry-run setting.
func (e *SyncRequest) IsDryRun(defaultValue bool) bool {
	if e != nil && e.DryRun != nil {
		return *e.DryRun
	}
	return defaultValue
}

// IsSingleGroup reports whether the request targets one group.
func (e *SyncRequest) IsSingleGroup() bool {
	return e.GroupID != nil && e.OrgSlug != ""
}

// SyncResponse is the output from Lambda invocation.
type SyncResponse struct {
	StatusCode int              `json:"status_code"`
	Message    string           `json:"message"`
	Group      *GroupSyncResult `json:"group,omitempty"`
	Summary    *SyncSummary     `json:"summary,omitempty"`
}

// NewGroupResponse creates a response for a sync-one run.
func NewGroupResponse(result *GroupSyncResult) *SyncResponse {
	msg := fmt.Sprintf("Group %s %s: +%d / -%d", result.GroupName, result.State, result.Added, result.Removed)
	if result.DryRun {
		msg = "[DRY RUN] " + msg
	}
	status := 200
	if result.State == StateFailed {
		status = 500
	}
	return &SyncResponse{StatusCode: status, Message: msg, Group: result}
}

// NewSummaryResponse creates a response for a sync-all run.
func NewSummaryResponse(summary SyncSummary, dryRun bool) *SyncResponse {
	msg := summary.String()
	if dryRun {
		msg = "[DRY RUN] " + msg
	}
	return &SyncResponse{StatusCode: 200, Message: msg, Summary: &summary}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(err error) *SyncResponse {
	return &SyncResponse{
		StatusCode: 500,
		Message:    err.Error(),
	}
}
