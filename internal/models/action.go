package models

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// ActionType represents the type of membership mutation.
type ActionType string

const (
	ActionAdd    ActionType = "add"
	ActionRemove ActionType = "remove"
)

// MembershipAction represents a single planned or applied membership change.
type MembershipAction struct {
	Type        ActionType `json:"type"`
	Email       string     `json:"email"`
	UserID      string     `json:"user_id,omitempty"`
	UserCreated bool       `json:"user_created,omitempty"`
	Executed    bool       `json:"executed"`
	Error       *string    `json:"error,omitempty"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
}

// LogFields returns structured logging fields for this action.
func (a *MembershipAction) LogFields() logrus.Fields {
	fields := logrus.Fields{
		"action": a.Type,
		"email":  a.Email,
	}
	if a.UserID != "" {
		fields["user_id"] = a.UserID
	}
	if a.UserCreated {
		fields["user_created"] = true
	}
	if a.Error != nil {
		fields["error"] = *a.Error
	}
	return fields
}

// Fail records err on the action.
func (a *MembershipAction) Fail(err error) {
	msg := err.Error()
	a.Error = &msg
}

// Done marks the action as applied now.
func (a *MembershipAction) Done() {
	t := time.Now()
	a.Executed = true
	a.Timestamp = &t
}

func formatInt64(v int64) string {
	return fmt.Sprintf("%d", v)
}
