package interfaces

import (
	"context"

	"github.com/daniloc96/google-group-membership-sync/internal/models"
)

// DirectoryClient defines the paginated member listing needed from the directory.
type DirectoryClient interface {
	// FetchMembersPage returns one page of a group's members and the cursor
	// for the next page. An empty cursor means the listing is exhausted.
	FetchMembersPage(ctx context.Context, groupKey string, cursor string) ([]models.DirectoryMember, string, error)
}

// Store defines the canonical store operations used by the sync.
type Store interface {
	// ListOrganizations returns every organization.
	ListOrganizations(ctx context.Context) ([]models.Organization, error)

	// GetOrganizationBySlug returns models.ErrNotFound when the slug is unknown.
	GetOrganizationBySlug(ctx context.Context, slug string) (*models.Organization, error)

	// ListGroups returns all groups of an organization.
	ListGroups(ctx context.Context, orgID string) ([]models.Group, error)

	// GetGroup returns models.ErrNotFound when the group does not exist in the org.
	GetGroup(ctx context.Context, orgID string, groupID int64) (*models.Group, error)

	// GroupMemberEmails returns the emails of every user linked to the group.
	GroupMemberEmails(ctx context.Context, orgID string, groupID int64) ([]string, error)

	// GetUserByEmail returns models.ErrNotFound when no user has the email in the org.
	GetUserByEmail(ctx context.Context, orgID string, email string) (*models.User, error)

	// CreateUser returns models.ErrAlreadyExists when the email is taken in the org.
	CreateUser(ctx context.Context, user models.User) error

	// AddUserToGroup links a user to a group. Linking twice is not an error.
	AddUserToGroup(ctx context.Context, orgID string, email string, groupID int64) error

	// RemoveUserFromGroup unlinks a user. Returns models.ErrNotLinked when the
	// user is not a member of the group.
	RemoveUserFromGroup(ctx context.Context, orgID string, email string, groupID int64) error
}

// EventPublisher accepts audit events without waiting for delivery.
type EventPublisher interface {
	Publish(ctx context.Context, event models.AuditEvent)
}

// EventWriter persists audit events for the external pipeline.
type EventWriter interface {
	WriteEvent(ctx context.Context, event models.AuditEvent) error
}

// JobQueue carries group-sync units from the dispatcher to the workers.
type JobQueue interface {
	Enqueue(ctx context.Context, job models.Job) error
	// Dequeue blocks until a job is available or ctx is done.
	Dequeue(ctx context.Context) (models.Job, error)
}

// SyncEngine defines sync orchestration.
type SyncEngine interface {
	SyncAll(ctx context.Context) (*models.DispatchResult, error)
	SyncGroup(ctx context.Context, groupID int64, orgSlug string) *models.GroupSyncResult
}
