package models

import (
	"time"

	"github.com/google/uuid"
)

// EventAction is the action name consumed by the event pipeline.
type EventAction string

const (
	EventCreateUser   EventAction = "create"
	EventAddMember    EventAction = "add_member"
	EventRemoveMember EventAction = "remove_member"
)

// AuditEvent is an immutable record of a sync-sourced mutation.
type AuditEvent struct {
	PK         string      `dynamodbav:"pk"`
	SK         string      `dynamodbav:"sk"`
	ID         string      `dynamodbav:"event_id" json:"id"`
	OrgID      string      `dynamodbav:"org_id" json:"org_id"`
	Action     EventAction `dynamodbav:"action" json:"action"`
	Timestamp  int64       `dynamodbav:"timestamp" json:"timestamp"`
	ObjectType string      `dynamodbav:"object_type" json:"object_type"`
	ObjectID   string      `dynamodbav:"object_id" json:"object_id"`
	MemberID   string      `dynamodbav:"member_id,omitempty" json:"member_id,omitempty"`
}

// NewUserCreatedEvent records creation of a user by the sync.
func NewUserCreatedEvent(orgID string, userID string) AuditEvent {
	return newEvent(orgID, EventCreateUser, "user", userID, "")
}

// NewMemberAddedEvent records a user being linked to a group.
func NewMemberAddedEvent(orgID string, groupID int64, userID string) AuditEvent {
	return newEvent(orgID, EventAddMember, "group", formatInt64(groupID), userID)
}

// NewMemberRemovedEvent records a user being unlinked from a group.
func NewMemberRemovedEvent(orgID string, groupID int64, userID string) AuditEvent {
	return newEvent(orgID, EventRemoveMember, "group", formatInt64(groupID), userID)
}

func newEvent(orgID string, action EventAction, objectType string, objectID string, memberID string) AuditEvent {
	now := time.Now().UTC()
	id := uuid.NewString()
	return AuditEvent{
		PK:         "ORG#" + orgID,
		SK:         "EVENT#" + now.Format(time.RFC3339Nano) + "#" + id,
		ID:         id,
		OrgID:      orgID,
		Action:     action,
		Timestamp:  now.Unix(),
		ObjectType: objectType,
		ObjectID:   objectID,
		MemberID:   memberID,
	}
}
