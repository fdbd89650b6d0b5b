package models

import (
	"errors"
	"strings"
)

// Store lookups fail with these so callers can tell "absent" from transport errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrNotLinked     = errors.New("user is not a member of the group")
	ErrAlreadyExists = errors.New("already exists")
)

// Organization is the tenant boundary. Domains is the membership allowlist.
type Organization struct {
	ID      string   `dynamodbav:"id"`
	Slug    string   `dynamodbav:"slug"`
	Name    string   `dynamodbav:"name"`
	Domains []string `dynamodbav:"domains,stringset,omitempty"`
}

// Group is an internally managed group within one organization.
type Group struct {
	ID          int64    `dynamodbav:"group_id"`
	OrgID       string   `dynamodbav:"org_id"`
	Name        string   `dynamodbav:"name"`
	Permissions []string `dynamodbav:"permissions,stringset,omitempty"`
}

// IsDirectoryBacked reports whether the group mirrors a directory group.
// The name of such a group is the directory group's email address.
func (g *Group) IsDirectoryBacked() bool {
	return strings.Contains(g.Name, "@")
}

// User is a canonical user record. Email is unique per organization.
type User struct {
	ID       string  `dynamodbav:"user_id"`
	OrgID    string  `dynamodbav:"org_id"`
	Email    string  `dynamodbav:"email"`
	Name     string  `dynamodbav:"name"`
	GroupIDs []int64 `dynamodbav:"group_ids,numberset,omitempty"`
}

// HasGroup reports whether the user is linked to the given group.
func (u *User) HasGroup(groupID int64) bool {
	for _, id := range u.GroupIDs {
		if id == groupID {
			return true
		}
	}
	return false
}

// NormalizeEmail lowercases and trims an address for set comparisons.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
