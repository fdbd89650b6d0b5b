package sync

import (
	"sort"

	"github.com/daniloc96/google-group-membership-sync/internal/models"
)

// Diff is the set of membership changes that makes the canonical group
// equal to the resolved directory group.
type Diff struct {
	ToAdd    []string `json:"to_add,omitempty"`
	ToRemove []string `json:"to_remove,omitempty"`
}

// InSync reports whether no change is needed.
func (d Diff) InSync() bool {
	return len(d.ToAdd) == 0 && len(d.ToRemove) == 0
}

// CalculateDiff compares the canonical members with the resolved directory
// members. Emails are compared case-insensitively; outputs are sorted.
func CalculateDiff(canonical []string, resolved []string) Diff {
	current := toSet(canonical)
	desired := toSet(resolved)

	var diff Diff
	for email := range desired {
		if _, ok := current[email]; !ok {
			diff.ToAdd = append(diff.ToAdd, email)
		}
	}
	for email := range current {
		if _, ok := desired[email]; !ok {
			diff.ToRemove = append(diff.ToRemove, email)
		}
	}
	sort.Strings(diff.ToAdd)
	sort.Strings(diff.ToRemove)
	return diff
}

// Apply returns the membership that results from applying the diff to members.
func (d Diff) Apply(members []string) []string {
	set := toSet(members)
	for _, email := range d.ToAdd {
		set[email] = struct{}{}
	}
	for _, email := range d.ToRemove {
		delete(set, email)
	}
	out := make([]string, 0, len(set))
	for email := range set {
		out = append(out, email)
	}
	sort.Strings(out)
	return out
}

func toSet(emails []string) map[string]struct{} {
	set := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		if n := models.NormalizeEmail(e); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}
