package models

import "strings"

const (
	MemberTypeUser     = "USER"
	MemberTypeGroup    = "GROUP"
	MemberStatusActive = "ACTIVE"
)

// DirectoryMember is a single record of a directory group listing.
type DirectoryMember struct {
	Email  string `json:"email"`
	Type   string `json:"type"`
	Status string `json:"status"`
}

// IsActive returns true if the directory reports the member as active.
func (m *DirectoryMember) IsActive() bool {
	return m.Status == MemberStatusActive
}

// IsGroup returns true for nested groups that need expanding.
func (m *DirectoryMember) IsGroup() bool {
	return m.Type == MemberTypeGroup
}

// Domain returns the lowercase part of the email after the first '@'.
func (m *DirectoryMember) Domain() string {
	_, domain, ok := strings.Cut(m.Email, "@")
	if !ok {
		return ""
	}
	return strings.ToLower(domain)
}
