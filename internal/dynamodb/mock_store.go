package dynamodb

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/daniloc96/google-group-membership-sync/internal/models"
)

// MockStore is an in-memory canonical store for tests. The Func hooks, when
// set, run before the in-memory behavior and short-circuit it on error.
type MockStore struct {
	GetUserByEmailFunc      func(ctx context.Context, orgID string, email string) error
	CreateUserFunc          func(ctx context.Context, user models.User) error
	AddUserToGroupFunc      func(ctx context.Context, orgID string, email string, groupID int64) error
	RemoveUserFromGroupFunc func(ctx context.Context, orgID string, email string, groupID int64) error
	GroupMemberEmailsFunc   func(ctx context.Context, orgID string, groupID int64) error

	// Track calls for assertions.
	CreatedUsers []models.User
	LinkCalls    []MembershipCall
	UnlinkCalls  []MembershipCall

	mu     sync.Mutex
	orgs   map[string]models.Organization
	groups map[string]map[int64]models.Group
	users  map[string]map[string]*models.User
}

// MembershipCall records a link or unlink.
type MembershipCall struct {
	OrgID   string
	Email   string
	GroupID int64
}

// NewMockStore returns an empty in-memory store.
func NewMockStore() *MockStore {
	return &MockStore{
		orgs:   map[string]models.Organization{},
		groups: map[string]map[int64]models.Group{},
		users:  map[string]map[string]*models.User{},
	}
}

// PutOrganization seeds an organization.
func (m *MockStore) PutOrganization(org models.Organization) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orgs[org.Slug] = org
}

// PutGroup seeds a group.
func (m *MockStore) PutGroup(group models.Group) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.groups[group.OrgID] == nil {
		m.groups[group.OrgID] = map[int64]models.Group{}
	}
	m.groups[group.OrgID][group.ID] = group
}

// PutUser seeds a user.
func (m *MockStore) PutUser(user models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putUserLocked(user)
}

func (m *MockStore) putUserLocked(user models.User) {
	if m.users[user.OrgID] == nil {
		m.users[user.OrgID] = map[string]*models.User{}
	}
	u := user
	u.Email = models.NormalizeEmail(u.Email)
	u.GroupIDs = append([]int64(nil), user.GroupIDs...)
	m.users[user.OrgID][u.Email] = &u
}

// Members returns the sorted member emails of a group without hooks.
func (m *MockStore) Members(orgID string, groupID int64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.membersLocked(orgID, groupID)
}

func (m *MockStore) membersLocked(orgID string, groupID int64) []string {
	var emails []string
	for email, u := range m.users[orgID] {
		if u.HasGroup(groupID) {
			emails = append(emails, email)
		}
	}
	sort.Strings(emails)
	return emails
}

func (m *MockStore) ListOrganizations(ctx context.Context) ([]models.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	orgs := make([]models.Organization, 0, len(m.orgs))
	for _, org := range m.orgs {
		orgs = append(orgs, org)
	}
	sort.Slice(orgs, func(i, j int) bool { return orgs[i].Slug < orgs[j].Slug })
	return orgs, nil
}

func (m *MockStore) GetOrganizationBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	org, ok := m.orgs[slug]
	if !ok {
		return nil, fmt.Errorf("organization %s: %w", slug, models.ErrNotFound)
	}
	return &org, nil
}

func (m *MockStore) ListGroups(ctx context.Context, orgID string) ([]models.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	groups := make([]models.Group, 0, len(m.groups[orgID]))
	for _, g := range m.groups[orgID] {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return groups, nil
}

func (m *MockStore) GetGroup(ctx context.Context, orgID string, groupID int64) (*models.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[orgID][groupID]
	if !ok {
		return nil, fmt.Errorf("group %d: %w", groupID, models.ErrNotFound)
	}
	return &g, nil
}

func (m *MockStore) GroupMemberEmails(ctx context.Context, orgID string, groupID int64) ([]string, error) {
	if m.GroupMemberEmailsFunc != nil {
		if err := m.GroupMemberEmailsFunc(ctx, orgID, groupID); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.membersLocked(orgID, groupID), nil
}

func (m *MockStore) GetUserByEmail(ctx context.Context, orgID string, email string) (*models.User, error) {
	if m.GetUserByEmailFunc != nil {
		if err := m.GetUserByEmailFunc(ctx, orgID, email); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[orgID][models.NormalizeEmail(email)]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", email, models.ErrNotFound)
	}
	copied := *u
	copied.GroupIDs = append([]int64(nil), u.GroupIDs...)
	return &copied, nil
}

func (m *MockStore) CreateUser(ctx context.Context, user models.User) error {
	if m.CreateUserFunc != nil {
		if err := m.CreateUserFunc(ctx, user); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[user.OrgID][models.NormalizeEmail(user.Email)]; exists {
		return fmt.Errorf("user %s: %w", user.Email, models.ErrAlreadyExists)
	}
	m.CreatedUsers = append(m.CreatedUsers, user)
	m.putUserLocked(user)
	return nil
}

func (m *MockStore) AddUserToGroup(ctx context.Context, orgID string, email string, groupID int64) error {
	if m.AddUserToGroupFunc != nil {
		if err := m.AddUserToGroupFunc(ctx, orgID, email, groupID); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[orgID][models.NormalizeEmail(email)]
	if !ok {
		return fmt.Errorf("user %s: %w", email, models.ErrNotFound)
	}
	m.LinkCalls = append(m.LinkCalls, MembershipCall{OrgID: orgID, Email: email, GroupID: groupID})
	if !u.HasGroup(groupID) {
		u.GroupIDs = append(u.GroupIDs, groupID)
	}
	return nil
}

func (m *MockStore) RemoveUserFromGroup(ctx context.Context, orgID string, email string, groupID int64) error {
	if m.RemoveUserFromGroupFunc != nil {
		if err := m.RemoveUserFromGroupFunc(ctx, orgID, email, groupID); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[orgID][models.NormalizeEmail(email)]
	if !ok || !u.HasGroup(groupID) {
		return fmt.Errorf("removing %s from group %d: %w", email, groupID, models.ErrNotLinked)
	}
	m.UnlinkCalls = append(m.UnlinkCalls, MembershipCall{OrgID: orgID, Email: email, GroupID: groupID})
	kept := u.GroupIDs[:0]
	for _, id := range u.GroupIDs {
		if id != groupID {
			kept = append(kept, id)
		}
	}
	u.GroupIDs = kept
	return nil
}
