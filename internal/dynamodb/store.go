package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/daniloc96/google-group-membership-sync/internal/models"
)

// Key layout of the canonical table:
//
//	ORGS          / ORG#<slug>        organization
//	ORG#<org id>  / GROUP#<id>        group (id zero padded)
//	ORG#<org id>  / USER#<email>      user, group_ids is a number set
const (
	orgsPK      = "ORGS"
	orgPrefix   = "ORG#"
	groupPrefix = "GROUP#"
	userPrefix  = "USER#"
)

type orgItem struct {
	PK string `dynamodbav:"pk"`
	SK string `dynamodbav:"sk"`
	models.Organization
}

type groupItem struct {
	PK string `dynamodbav:"pk"`
	SK string `dynamodbav:"sk"`
	models.Group
}

type userItem struct {
	PK string `dynamodbav:"pk"`
	SK string `dynamodbav:"sk"`
	models.User
}

// Store implements the canonical store on a DynamoDB single table.
type Store struct {
	client    API
	tableName string
}

// NewStore creates a DynamoDB-backed canonical store.
func NewStore(client API, tableName string) *Store {
	return &Store{client: client, tableName: tableName}
}

func orgKey(slug string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: orgsPK},
		"sk": &types.AttributeValueMemberS{Value: orgPrefix + slug},
	}
}

func groupSK(groupID int64) string {
	return fmt.Sprintf("%s%020d", groupPrefix, groupID)
}

func userSK(email string) string {
	return userPrefix + models.NormalizeEmail(email)
}

func itemKey(orgID string, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: orgPrefix + orgID},
		"sk": &types.AttributeValueMemberS{Value: sk},
	}
}

// ListOrganizations returns every organization.
func (s *Store) ListOrganizations(ctx context.Context) ([]models.Organization, error) {
	var items []orgItem
	err := s.query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("pk = :pk AND begins_with(sk, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: orgsPK},
			":prefix": &types.AttributeValueMemberS{Value: orgPrefix},
		},
	}, func(page []map[string]types.AttributeValue) error {
		var batch []orgItem
		if err := attributevalue.UnmarshalListOfMaps(page, &batch); err != nil {
			return err
		}
		items = append(items, batch...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing organizations: %w", err)
	}

	orgs := make([]models.Organization, 0, len(items))
	for _, item := range items {
		orgs = append(orgs, item.Organization)
	}
	return orgs, nil
}

// GetOrganizationBySlug returns models.ErrNotFound when the slug is unknown.
func (s *Store) GetOrganizationBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       orgKey(slug),
	})
	if err != nil {
		return nil, fmt.Errorf("getting organization %s: %w", slug, err)
	}
	if result.Item == nil {
		return nil, fmt.Errorf("organization %s: %w", slug, models.ErrNotFound)
	}

	var item orgItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshaling organization: %w", err)
	}
	return &item.Organization, nil
}

// ListGroups returns all groups of an organization ordered by id.
func (s *Store) ListGroups(ctx context.Context, orgID string) ([]models.Group, error) {
	var groups []models.Group
	err := s.query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("pk = :pk AND begins_with(sk, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: orgPrefix + orgID},
			":prefix": &types.AttributeValueMemberS{Value: groupPrefix},
		},
	}, func(page []map[string]types.AttributeValue) error {
		var batch []groupItem
		if err := attributevalue.UnmarshalListOfMaps(page, &batch); err != nil {
			return err
		}
		for _, item := range batch {
			groups = append(groups, item.Group)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing groups: %w", err)
	}
	return groups, nil
}

// GetGroup returns models.ErrNotFound when the group does not exist in the org.
func (s *Store) GetGroup(ctx context.Context, orgID string, groupID int64) (*models.Group, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       itemKey(orgID, groupSK(groupID)),
	})
	if err != nil {
		return nil, fmt.Errorf("getting group %d: %w", groupID, err)
	}
	if result.Item == nil {
		return nil, fmt.Errorf("group %d: %w", groupID, models.ErrNotFound)
	}

	var item groupItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshaling group: %w", err)
	}
	return &item.Group, nil
}

// GroupMemberEmails returns the sorted emails of every user linked to the group.
func (s *Store) GroupMemberEmails(ctx context.Context, orgID string, groupID int64) ([]string, error) {
	var emails []string
	err := s.query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("pk = :pk AND begins_with(sk, :prefix)"),
		FilterExpression:       aws.String("contains(group_ids, :gid)"),
		ProjectionExpression:   aws.String("email"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: orgPrefix + orgID},
			":prefix": &types.AttributeValueMemberS{Value: userPrefix},
			":gid":    &types.AttributeValueMemberN{Value: strconv.FormatInt(groupID, 10)},
		},
	}, func(page []map[string]types.AttributeValue) error {
		var batch []models.User
		if err := attributevalue.UnmarshalListOfMaps(page, &batch); err != nil {
			return err
		}
		for _, u := range batch {
			emails = append(emails, models.NormalizeEmail(u.Email))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing members of group %d: %w", groupID, err)
	}
	sort.Strings(emails)
	return emails, nil
}

// GetUserByEmail returns models.ErrNotFound when no user has the email in the org.
func (s *Store) GetUserByEmail(ctx context.Context, orgID string, email string) (*models.User, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            itemKey(orgID, userSK(email)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("getting user %s: %w", email, err)
	}
	if result.Item == nil {
		return nil, fmt.Errorf("user %s: %w", email, models.ErrNotFound)
	}

	var item userItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshaling user: %w", err)
	}
	return &item.User, nil
}

// CreateUser stores a new user. Returns models.ErrAlreadyExists when the
// email is already taken within the organization.
func (s *Store) CreateUser(ctx context.Context, user models.User) error {
	user.Email = models.NormalizeEmail(user.Email)
	item, err := attributevalue.MarshalMap(userItem{
		PK:   orgPrefix + user.OrgID,
		SK:   userSK(user.Email),
		User: user,
	})
	if err != nil {
		return fmt.Errorf("marshaling user: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(pk)"),
	})
	if isConditionFailed(err) {
		return fmt.Errorf("user %s: %w", user.Email, models.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("creating user %s: %w", user.Email, err)
	}
	return nil
}

// AddUserToGroup adds the group to the user's number set. Adding an existing
// member leaves the set unchanged.
func (s *Store) AddUserToGroup(ctx context.Context, orgID string, email string, groupID int64) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 itemKey(orgID, userSK(email)),
		UpdateExpression:    aws.String("ADD group_ids :gids"),
		ConditionExpression: aws.String("attribute_exists(pk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":gids": &types.AttributeValueMemberNS{Value: []string{strconv.FormatInt(groupID, 10)}},
		},
	})
	if isConditionFailed(err) {
		return fmt.Errorf("user %s: %w", email, models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("adding %s to group %d: %w", email, groupID, err)
	}
	return nil
}

// RemoveUserFromGroup removes the group from the user's number set. The
// update is conditional on the membership existing.
func (s *Store) RemoveUserFromGroup(ctx context.Context, orgID string, email string, groupID int64) error {
	gid := strconv.FormatInt(groupID, 10)
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 itemKey(orgID, userSK(email)),
		UpdateExpression:    aws.String("DELETE group_ids :gids"),
		ConditionExpression: aws.String("contains(group_ids, :gid)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":gids": &types.AttributeValueMemberNS{Value: []string{gid}},
			":gid":  &types.AttributeValueMemberN{Value: gid},
		},
	})
	if isConditionFailed(err) {
		return fmt.Errorf("removing %s from group %d: %w", email, groupID, models.ErrNotLinked)
	}
	if err != nil {
		return fmt.Errorf("removing %s from group %d: %w", email, groupID, err)
	}
	return nil
}

func (s *Store) query(ctx context.Context, input *dynamodb.QueryInput, fn func(page []map[string]types.AttributeValue) error) error {
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return err
		}
		if err := fn(out.Items); err != nil {
			return err
		}
	}
	return nil
}

func isConditionFailed(err error) bool {
	if err == nil {
		return false
	}
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
