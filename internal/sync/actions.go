package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/daniloc96/google-group-membership-sync/internal/interfaces"
	"github.com/daniloc96/google-group-membership-sync/internal/models"
)

// PlanActions turns a diff into actions, additions first.
func PlanActions(diff Diff) []models.MembershipAction {
	actions := make([]models.MembershipAction, 0, len(diff.ToAdd)+len(diff.ToRemove))
	for _, email := range diff.ToAdd {
		actions = append(actions, models.MembershipAction{Type: models.ActionAdd, Email: email})
	}
	for _, email := range diff.ToRemove {
		actions = append(actions, models.MembershipAction{Type: models.ActionRemove, Email: email})
	}
	return actions
}

// ExecuteActions applies the diff to the group unless dry-run is enabled.
// Every email is committed on its own: a failure is recorded on its action
// and the remaining emails are still attempted. The returned error joins all
// failures. Cancellation is checked between emails.
func ExecuteActions(ctx context.Context, store interfaces.Store, publisher interfaces.EventPublisher, org *models.Organization, group *models.Group, diff Diff, dryRun bool) ([]models.MembershipAction, error) {
	actions := PlanActions(diff)
	if dryRun {
		for i := range actions {
			logrus.WithFields(actions[i].LogFields()).Info("  [DRY RUN] would execute")
		}
		return actions, nil
	}

	var errs []error
	for i := range actions {
		action := &actions[i]
		if err := ctx.Err(); err != nil {
			for j := i; j < len(actions); j++ {
				actions[j].Fail(err)
			}
			errs = append(errs, fmt.Errorf("%d actions not attempted: %w", len(actions)-i, err))
			break
		}

		var err error
		switch action.Type {
		case models.ActionAdd:
			err = addMember(ctx, store, publisher, org, group, action)
		case models.ActionRemove:
			err = removeMember(ctx, store, publisher, org, group, action)
		}
		if err != nil {
			action.Fail(err)
			errs = append(errs, fmt.Errorf("%s %s: %w", action.Type, action.Email, err))
			entry := logrus.WithError(err).WithFields(action.LogFields())
			if IsConsistencyViolation(err) {
				entry.Error("❌ Canonical store is inconsistent with its membership")
			} else {
				entry.Warn("⚠ Membership action failed")
			}
			continue
		}
		action.Done()
		logrus.WithFields(action.LogFields()).Info("  Membership action applied")
	}

	return actions, errors.Join(errs...)
}

func addMember(ctx context.Context, store interfaces.Store, publisher interfaces.EventPublisher, org *models.Organization, group *models.Group, action *models.MembershipAction) error {
	user, err := store.GetUserByEmail(ctx, org.ID, action.Email)
	if errors.Is(err, models.ErrNotFound) {
		user, err = createUser(ctx, store, publisher, org, action)
	}
	if err != nil {
		return err
	}
	action.UserID = user.ID

	if err := store.AddUserToGroup(ctx, org.ID, action.Email, group.ID); err != nil {
		return err
	}
	publisher.Publish(context.WithoutCancel(ctx), models.NewMemberAddedEvent(org.ID, group.ID, user.ID))
	return nil
}

// createUser creates a user named after its email. When another writer wins
// the race, the existing user is used instead.
func createUser(ctx context.Context, store interfaces.Store, publisher interfaces.EventPublisher, org *models.Organization, action *models.MembershipAction) (*models.User, error) {
	user := models.User{
		ID:    uuid.NewString(),
		OrgID: org.ID,
		Email: action.Email,
		Name:  action.Email,
	}
	err := store.CreateUser(ctx, user)
	if errors.Is(err, models.ErrAlreadyExists) {
		return store.GetUserByEmail(ctx, org.ID, action.Email)
	}
	if err != nil {
		return nil, err
	}

	action.UserCreated = true
	publisher.Publish(context.WithoutCancel(ctx), models.NewUserCreatedEvent(org.ID, user.ID))
	return &user, nil
}

func removeMember(ctx context.Context, store interfaces.Store, publisher interfaces.EventPublisher, org *models.Organization, group *models.Group, action *models.MembershipAction) error {
	user, err := store.GetUserByEmail(ctx, org.ID, action.Email)
	if errors.Is(err, models.ErrNotFound) {
		return &ConsistencyError{Email: action.Email, GroupID: group.ID, Reason: "member has no user record"}
	}
	if err != nil {
		return err
	}
	action.UserID = user.ID

	err = store.RemoveUserFromGroup(ctx, org.ID, action.Email, group.ID)
	if errors.Is(err, models.ErrNotLinked) {
		return &ConsistencyError{Email: action.Email, GroupID: group.ID, Reason: "user is no longer linked to the group"}
	}
	if err != nil {
		return err
	}
	publisher.Publish(context.WithoutCancel(ctx), models.NewMemberRemovedEvent(org.ID, group.ID, user.ID))
	return nil
}
