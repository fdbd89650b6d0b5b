package sync

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is returned when sync is disabled or the organization
// has no allowed domains. Callers treat it as a no-op.
var ErrNotConfigured = errors.New("directory sync is not configured")

// ErrMaxDepth is returned when nested groups go deeper than sync.max_depth.
var ErrMaxDepth = errors.New("nested group depth limit exceeded")

// DirectoryError is returned when any page of a group listing cannot be
// fetched. The resolution it belongs to is abandoned.
type DirectoryError struct {
	GroupKey string
	Err      error
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("directory unavailable for group %s: %v", e.GroupKey, e.Err)
}

func (e *DirectoryError) Unwrap() error {
	return e.Err
}

// IsDirectoryUnavailable checks whether err came from a failed directory fetch.
func IsDirectoryUnavailable(err error) bool {
	var de *DirectoryError
	return errors.As(err, &de)
}

// ConsistencyError is returned when the canonical store contradicts the
// membership that was just read from it, e.g. a removal target that is no
// longer linked.
type ConsistencyError struct {
	Email   string
	GroupID int64
	Reason  string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("consistency violation for %s in group %d: %s", e.Email, e.GroupID, e.Reason)
}

// IsConsistencyViolation checks whether err reports a store inconsistency.
func IsConsistencyViolation(err error) bool {
	var ce *ConsistencyError
	return errors.As(err, &ce)
}
