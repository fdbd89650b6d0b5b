package sync

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/daniloc96/google-group-membership-sync/internal/google"
	"github.com/daniloc96/google-group-membership-sync/internal/models"
)

func user(email string) models.DirectoryMember {
	return models.DirectoryMember{Email: email, Type: models.MemberTypeUser, Status: models.MemberStatusActive}
}

func group(email string) models.DirectoryMember {
	return models.DirectoryMember{Email: email, Type: models.MemberTypeGroup, Status: models.MemberStatusActive}
}

func assertEmails(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestResolveFiltersDomainsAndStatus(t *testing.T) {
	dir := google.NewFakeDirectory()
	dir.SetGroup("team@acme.com", []models.DirectoryMember{
		user("Alice@ACME.com"),
		user("bob@partner.com"),
		user("carol@sub.acme.com"),
		{Email: "dave@acme.com", Type: models.MemberTypeUser, Status: "SUSPENDED"},
		{Email: "svc@acme.com", Type: "CUSTOMER", Status: models.MemberStatusActive},
		user("no-at-sign"),
	})

	got, err := NewResolver(dir, 0).Resolve(context.Background(), "team@acme.com", []string{"ACME.com"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	assertEmails(t, got, "alice@acme.com")
}

func TestResolveSplitsOnFirstAt(t *testing.T) {
	dir := google.NewFakeDirectory()
	dir.SetGroup("team@acme.com", []models.DirectoryMember{user("odd@acme.com@evil.com")})

	got, err := NewResolver(dir, 0).Resolve(context.Background(), "team@acme.com", []string{"acme.com"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected domain after the first @ to be compared, got %v", got)
	}
}

func TestResolveExpandsNestedGroups(t *testing.T) {
	dir := google.NewFakeDirectory()
	dir.SetGroup("parent@acme.com", []models.DirectoryMember{user("a@acme.com"), group("child@acme.com")})
	dir.SetGroup("child@acme.com", []models.DirectoryMember{user("b@acme.com"), user("a@acme.com")})

	got, err := NewResolver(dir, 0).Resolve(context.Background(), "parent@acme.com", []string{"acme.com"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	assertEmails(t, got, "a@acme.com", "b@acme.com")
}

func TestResolveIgnoresInactiveNestedGroup(t *testing.T) {
	dir := google.NewFakeDirectory()
	dir.SetGroup("parent@acme.com", []models.DirectoryMember{
		{Email: "child@acme.com", Type: models.MemberTypeGroup, Status: "SUSPENDED"},
	})

	got, err := NewResolver(dir, 0).Resolve(context.Background(), "parent@acme.com", []string{"acme.com"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(got) != 0 || dir.Calls("child@acme.com") != 0 {
		t.Fatalf("expected inactive nested group not to be expanded")
	}
}

func TestResolveFollowsEveryPage(t *testing.T) {
	dir := google.NewFakeDirectory()
	var pages [][]models.DirectoryMember
	for p := 0; p < 3; p++ {
		page := make([]models.DirectoryMember, 0, 200)
		for i := 0; i < 200; i++ {
			page = append(page, user(fmt.Sprintf("user%03d-%d@acme.com", i, p)))
		}
		pages = append(pages, page)
	}
	dir.SetGroup("big@acme.com", pages...)

	got, err := NewResolver(dir, 0).Resolve(context.Background(), "big@acme.com", []string{"acme.com"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(got) != 600 {
		t.Fatalf("expected 600 members, got %d", len(got))
	}
	if dir.Calls("big@acme.com") != 3 {
		t.Fatalf("expected 3 page fetches, got %d", dir.Calls("big@acme.com"))
	}
}

func TestResolveTerminatesOnCycles(t *testing.T) {
	dir := google.NewFakeDirectory()
	dir.SetGroup("a@acme.com", []models.DirectoryMember{user("x@acme.com"), group("b@acme.com")})
	dir.SetGroup("b@acme.com", []models.DirectoryMember{user("y@acme.com"), group("A@acme.com")})

	got, err := NewResolver(dir, 0).Resolve(context.Background(), "a@acme.com", []string{"acme.com"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	assertEmails(t, got, "x@acme.com", "y@acme.com")
	if dir.Calls("a@acme.com") != 1 || dir.Calls("b@acme.com") != 1 {
		t.Fatalf("expected each group fetched once")
	}
}

func TestResolveMaxDepth(t *testing.T) {
	dir := google.NewFakeDirectory()
	for i := 0; i < 5; i++ {
		dir.SetGroup(fmt.Sprintf("g%d@acme.com", i), []models.DirectoryMember{group(fmt.Sprintf("g%d@acme.com", i+1))})
	}
	dir.SetGroup("g5@acme.com", []models.DirectoryMember{user("deep@acme.com")})

	_, err := NewResolver(dir, 3).Resolve(context.Background(), "g0@acme.com", []string{"acme.com"})
	if !errors.Is(err, ErrMaxDepth) {
		t.Fatalf("expected ErrMaxDepth, got %v", err)
	}

	got, err := NewResolver(dir, 5).Resolve(context.Background(), "g0@acme.com", []string{"acme.com"})
	if err != nil {
		t.Fatalf("expected depth 5 to be allowed, got %v", err)
	}
	assertEmails(t, got, "deep@acme.com")
}

func TestResolveFetchErrorAbortsResolution(t *testing.T) {
	dir := google.NewFakeDirectory()
	dir.SetGroup("parent@acme.com", []models.DirectoryMember{user("a@acme.com"), group("child@acme.com")})
	dir.Errors["child@acme.com"] = errors.New("googleapi: Error 503: backend error")

	got, err := NewResolver(dir, 0).Resolve(context.Background(), "parent@acme.com", []string{"acme.com"})
	if !IsDirectoryUnavailable(err) {
		t.Fatalf("expected directory unavailable, got %v", err)
	}
	if got != nil {
		t.Fatalf("expected no partial result, got %v", got)
	}
	var de *DirectoryError
	if !errors.As(err, &de) || de.GroupKey != "child@acme.com" {
		t.Fatalf("expected failing group key in error, got %v", err)
	}
}

func TestResolveFailsOnLaterPage(t *testing.T) {
	client := &google.MockClient{
		FetchMembersPageFunc: func(ctx context.Context, groupKey string, cursor string) ([]models.DirectoryMember, string, error) {
			if cursor == "" {
				return []models.DirectoryMember{user("a@acme.com")}, "next", nil
			}
			return nil, "", errors.New("timeout")
		},
	}

	_, err := NewResolver(client, 0).Resolve(context.Background(), "team@acme.com", []string{"acme.com"})
	if !IsDirectoryUnavailable(err) {
		t.Fatalf("expected directory unavailable, got %v", err)
	}
}
