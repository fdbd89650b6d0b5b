package sync

import "testing"

func TestCalculateDiff(t *testing.T) {
	diff := CalculateDiff(
		[]string{"a@x.com", "B@x.com", "c@x.com"},
		[]string{"b@x.com", "d@x.com", "D@X.com"},
	)

	assertEmails(t, diff.ToAdd, "d@x.com")
	assertEmails(t, diff.ToRemove, "a@x.com", "c@x.com")
	if diff.InSync() {
		t.Fatalf("expected diff not in sync")
	}
}

func TestCalculateDiffInSync(t *testing.T) {
	diff := CalculateDiff([]string{"a@x.com"}, []string{"A@x.com"})
	if !diff.InSync() {
		t.Fatalf("expected in sync, got %#v", diff)
	}
	if !CalculateDiff(nil, nil).InSync() {
		t.Fatalf("expected empty sets to be in sync")
	}
}

func TestDiffApply(t *testing.T) {
	before := []string{"a@x.com", "b@x.com"}
	resolved := []string{"b@x.com", "c@x.com"}
	after := CalculateDiff(before, resolved).Apply(before)
	assertEmails(t, after, "b@x.com", "c@x.com")
}
