package models

import "fmt"

// Job is one dispatched group-sync unit.
type Job struct {
	GroupID int64  `json:"group_id"`
	OrgSlug string `json:"org_slug"`
}

func (j Job) String() string {
	return fmt.Sprintf("%s/%d", j.OrgSlug, j.GroupID)
}
