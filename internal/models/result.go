package models

import (
	"fmt"
	"time"
)

// UnitState is the lifecycle state of one group-sync unit.
type UnitState string

const (
	StateDispatched UnitState = "dispatched"
	StateResolving  UnitState = "resolving"
	StateDiffing    UnitState = "diffing"
	StateMutating   UnitState = "mutating"
	StateDone       UnitState = "done"
	StateFailed     UnitState = "failed"
	StateSkipped    UnitState = "skipped"
)

// GroupSyncResult contains the outcome of one reconciliation unit.
type GroupSyncResult struct {
	GroupID       int64              `json:"group_id"`
	GroupName     string             `json:"group_name"`
	OrgSlug       string             `json:"org_slug"`
	Domains       []string           `json:"domains,omitempty"`
	State         UnitState          `json:"state"`
	DryRun        bool               `json:"dry_run"`
	AlreadySynced bool               `json:"already_synced"`
	Before        []string           `json:"before,omitempty"`
	Resolved      []string           `json:"resolved,omitempty"`
	After         []string           `json:"after,omitempty"`
	Actions       []MembershipAction `json:"actions,omitempty"`
	Added         int                `json:"added"`
	Removed       int                `json:"removed"`
	UsersCreated  int                `json:"users_created"`
	ActionsFailed int                `json:"actions_failed"`
	SkipReason    string             `json:"skip_reason,omitempty"`
	Errors        []string           `json:"errors,omitempty"`
	StartTime     time.Time          `json:"start_time"`
	EndTime       time.Time          `json:"end_time"`
	DurationMs    int64              `json:"duration_ms"`
}

// IsSuccess returns true if the unit finished without errors.
func (r *GroupSyncResult) IsSuccess() bool {
	return r.State != StateFailed && len(r.Errors) == 0 && r.ActionsFailed == 0
}

// DispatchResult describes a sync-all fan-out.
type DispatchResult struct {
	Dispatched []Job     `json:"dispatched,omitempty"`
	Skipped    []string  `json:"skipped,omitempty"`
	Errors     []string  `json:"errors,omitempty"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
}

// SyncSummary provides aggregate statistics over a set of units.
type SyncSummary struct {
	GroupsDispatched int `json:"groups_dispatched"`
	GroupsSkipped    int `json:"groups_skipped"`
	GroupsSynced     int `json:"groups_synced"`
	GroupsInSync     int `json:"groups_in_sync"`
	GroupsFailed     int `json:"groups_failed"`
	MembersAdded     int `json:"members_added"`
	MembersRemoved   int `json:"members_removed"`
	UsersCreated     int `json:"users_created"`
	ActionsFailed    int `json:"actions_failed"`
}

// Add folds a unit result into the summary.
func (s *SyncSummary) Add(r *GroupSyncResult) {
	switch r.State {
	case StateSkipped:
		s.GroupsSkipped++
		return
	case StateFailed:
		s.GroupsFailed++
	default:
		s.GroupsSynced++
	}
	if r.AlreadySynced {
		s.GroupsInSync++
	}
	s.MembersAdded += r.Added
	s.MembersRemoved += r.Removed
	s.UsersCreated += r.UsersCreated
	s.ActionsFailed += r.ActionsFailed
}

// String returns a human-readable representation of the sync summary.
func (s SyncSummary) String() string {
	return fmt.Sprintf(
		"sync completed: Groups: %d dispatched / %d skipped / %d synced (%d already in sync) / %d failed, "+
			"Members: %d added / %d removed, Users created: %d, Actions failed: %d",
		s.GroupsDispatched, s.GroupsSkipped, s.GroupsSynced, s.GroupsInSync, s.GroupsFailed,
		s.MembersAdded, s.MembersRemoved, s.UsersCreated, s.ActionsFailed,
	)
}
