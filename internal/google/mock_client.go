package google

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/daniloc96/google-group-membership-sync/internal/models"
)

// MockClient is a simple mock implementation of the directory client.
type MockClient struct {
	FetchMembersPageFunc func(ctx context.Context, groupKey string, cursor string) ([]models.DirectoryMember, string, error)
}

func (m *MockClient) FetchMembersPage(ctx context.Context, groupKey string, cursor string) ([]models.DirectoryMember, string, error) {
	if m.FetchMembersPageFunc == nil {
		return nil, "", nil
	}
	return m.FetchMembersPageFunc(ctx, groupKey, cursor)
}

// FakeDirectory serves canned pages per group key. Cursors are page indexes.
type FakeDirectory struct {
	// Pages maps lowercase group key to its pages of members.
	Pages map[string][][]models.DirectoryMember
	// Errors makes every fetch of the group key fail.
	Errors map[string]error

	mu    sync.Mutex
	calls map[string]int
}

// NewFakeDirectory returns an empty fake directory.
func NewFakeDirectory() *FakeDirectory {
	return &FakeDirectory{
		Pages:  map[string][][]models.DirectoryMember{},
		Errors: map[string]error{},
		calls:  map[string]int{},
	}
}

// SetGroup replaces the pages of a group.
func (f *FakeDirectory) SetGroup(groupKey string, pages ...[]models.DirectoryMember) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Pages[strings.ToLower(groupKey)] = pages
}

// Calls returns how many pages were fetched for the group key.
func (f *FakeDirectory) Calls(groupKey string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[strings.ToLower(groupKey)]
}

func (f *FakeDirectory) FetchMembersPage(ctx context.Context, groupKey string, cursor string) ([]models.DirectoryMember, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.ToLower(groupKey)
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[key]++
	if err, ok := f.Errors[key]; ok {
		return nil, "", err
	}
	pages, ok := f.Pages[key]
	if !ok {
		return nil, "", fmt.Errorf("googleapi: Error 404: Resource Not Found: groupKey %s", groupKey)
	}

	idx := 0
	if cursor != "" {
		parsed, err := strconv.Atoi(cursor)
		if err != nil || parsed >= len(pages) {
			return nil, "", fmt.Errorf("invalid page token %q", cursor)
		}
		idx = parsed
	}
	if len(pages) == 0 {
		return nil, "", nil
	}
	next := ""
	if idx+1 < len(pages) {
		next = strconv.Itoa(idx + 1)
	}
	return pages[idx], next, nil
}
