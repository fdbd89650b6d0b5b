package sync

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/daniloc96/google-group-membership-sync/internal/interfaces"
	"github.com/daniloc96/google-group-membership-sync/internal/models"
)

const defaultMaxDepth = 32

// Resolver expands a directory group into the flat set of active user
// emails whose domain is allowed.
type Resolver struct {
	directory interfaces.DirectoryClient
	maxDepth  int
}

// NewResolver creates a Resolver. maxDepth <= 0 uses the default.
func NewResolver(directory interfaces.DirectoryClient, maxDepth int) *Resolver {
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}
	return &Resolver{directory: directory, maxDepth: maxDepth}
}

type resolution struct {
	allowed map[string]struct{}
	visited map[string]struct{}
	emails  map[string]struct{}
	pages   int
}

// Resolve returns the sorted, lowercased member emails of groupKey, nested
// groups included. Any fetch failure aborts the whole resolution.
func (r *Resolver) Resolve(ctx context.Context, groupKey string, domains []string) ([]string, error) {
	res := &resolution{
		allowed: make(map[string]struct{}, len(domains)),
		visited: map[string]struct{}{},
		emails:  map[string]struct{}{},
	}
	for _, d := range domains {
		res.allowed[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
	}

	if err := r.expand(ctx, res, groupKey, 0); err != nil {
		return nil, err
	}

	emails := make([]string, 0, len(res.emails))
	for email := range res.emails {
		emails = append(emails, email)
	}
	sort.Strings(emails)

	logrus.WithFields(logrus.Fields{
		"group_key": groupKey,
		"groups":    len(res.visited),
		"pages":     res.pages,
		"members":   len(emails),
	}).Debug("  Directory group resolved")
	return emails, nil
}

func (r *Resolver) expand(ctx context.Context, res *resolution, groupKey string, depth int) error {
	key := strings.ToLower(groupKey)
	if _, seen := res.visited[key]; seen {
		logrus.WithField("group_key", groupKey).Debug("  Nested group already expanded, skipping")
		return nil
	}
	if depth > r.maxDepth {
		return fmt.Errorf("group %s at depth %d: %w", groupKey, depth, ErrMaxDepth)
	}
	res.visited[key] = struct{}{}

	var nested []string
	cursor := ""
	for {
		members, next, err := r.directory.FetchMembersPage(ctx, groupKey, cursor)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return &DirectoryError{GroupKey: groupKey, Err: err}
		}
		res.pages++

		for _, m := range members {
			if !m.IsActive() {
				logrus.WithFields(logrus.Fields{"email": m.Email, "status": m.Status}).Debug("  Inactive directory member ignored")
				continue
			}
			if m.IsGroup() {
				nested = append(nested, m.Email)
				continue
			}
			if m.Type != models.MemberTypeUser {
				continue
			}
			if _, ok := res.allowed[m.Domain()]; ok {
				res.emails[models.NormalizeEmail(m.Email)] = struct{}{}
			}
		}

		if next == "" {
			break
		}
		cursor = next
	}

	for _, child := range nested {
		if err := r.expand(ctx, res, child, depth+1); err != nil {
			return err
		}
	}
	return nil
}
