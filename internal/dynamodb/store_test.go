package dynamodb

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/daniloc96/google-group-membership-sync/internal/models"
)

type fakeAPI struct {
	getItem    map[string]types.AttributeValue
	queryPages []*dynamodb.QueryOutput
	putErr     error
	updateErr  error

	puts    []*dynamodb.PutItemInput
	updates []*dynamodb.UpdateItemInput
	queries []*dynamodb.QueryInput
}

func (f *fakeAPI) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{Item: f.getItem}, nil
}

func (f *fakeAPI) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.puts = append(f.puts, params)
	return &dynamodb.PutItemOutput{}, f.putErr
}

func (f *fakeAPI) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.updates = append(f.updates, params)
	return &dynamodb.UpdateItemOutput{}, f.updateErr
}

func (f *fakeAPI) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.queries = append(f.queries, params)
	if len(f.queryPages) == 0 {
		return &dynamodb.QueryOutput{}, nil
	}
	page := f.queryPages[0]
	f.queryPages = f.queryPages[1:]
	return page, nil
}

func marshal(t *testing.T, v interface{}) map[string]types.AttributeValue {
	t.Helper()
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return item
}

func TestGetUserByEmailNotFound(t *testing.T) {
	store := NewStore(&fakeAPI{}, "table")
	_, err := store.GetUserByEmail(context.Background(), "org-1", "a@x.com")
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetUserByEmailDecodesGroupSet(t *testing.T) {
	api := &fakeAPI{getItem: marshal(t, userItem{
		PK:   "ORG#org-1",
		SK:   "USER#a@x.com",
		User: models.User{ID: "u1", OrgID: "org-1", Email: "a@x.com", Name: "a@x.com", GroupIDs: []int64{3, 7}},
	})}
	store := NewStore(api, "table")

	user, err := store.GetUserByEmail(context.Background(), "org-1", "A@X.com")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.ID != "u1" || !user.HasGroup(7) {
		t.Fatalf("unexpected user: %#v", user)
	}
}

func TestCreateUserConflictMapsToAlreadyExists(t *testing.T) {
	api := &fakeAPI{putErr: &types.ConditionalCheckFailedException{Message: aws.String("exists")}}
	store := NewStore(api, "table")

	err := store.CreateUser(context.Background(), models.User{ID: "u1", OrgID: "org-1", Email: "A@x.com"})
	if !errors.Is(err, models.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if len(api.puts) != 1 || aws.ToString(api.puts[0].ConditionExpression) != "attribute_not_exists(pk)" {
		t.Fatalf("expected conditional put, got %#v", api.puts)
	}
	sk := api.puts[0].Item["sk"].(*types.AttributeValueMemberS).Value
	if sk != "USER#a@x.com" {
		t.Fatalf("expected normalized user key, got %s", sk)
	}
}

func TestAddUserToGroupUsesSetAdd(t *testing.T) {
	api := &fakeAPI{}
	store := NewStore(api, "table")

	if err := store.AddUserToGroup(context.Background(), "org-1", "a@x.com", 5); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	update := api.updates[0]
	if aws.ToString(update.UpdateExpression) != "ADD group_ids :gids" {
		t.Fatalf("unexpected update expression %s", aws.ToString(update.UpdateExpression))
	}
	ns := update.ExpressionAttributeValues[":gids"].(*types.AttributeValueMemberNS)
	if len(ns.Value) != 1 || ns.Value[0] != "5" {
		t.Fatalf("unexpected group set %v", ns.Value)
	}
}

func TestAddUserToGroupMissingUser(t *testing.T) {
	api := &fakeAPI{updateErr: &types.ConditionalCheckFailedException{}}
	store := NewStore(api, "table")

	err := store.AddUserToGroup(context.Background(), "org-1", "a@x.com", 5)
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRemoveUserFromGroupNotLinked(t *testing.T) {
	api := &fakeAPI{updateErr: &types.ConditionalCheckFailedException{}}
	store := NewStore(api, "table")

	err := store.RemoveUserFromGroup(context.Background(), "org-1", "a@x.com", 5)
	if !errors.Is(err, models.ErrNotLinked) {
		t.Fatalf("expected ErrNotLinked, got %v", err)
	}
	if aws.ToString(api.updates[0].ConditionExpression) != "contains(group_ids, :gid)" {
		t.Fatalf("expected membership condition, got %s", aws.ToString(api.updates[0].ConditionExpression))
	}
}

func TestRemoveUserFromGroupTransportError(t *testing.T) {
	api := &fakeAPI{updateErr: errors.New("throttled")}
	store := NewStore(api, "table")

	err := store.RemoveUserFromGroup(context.Background(), "org-1", "a@x.com", 5)
	if err == nil || errors.Is(err, models.ErrNotLinked) {
		t.Fatalf("expected plain transport error, got %v", err)
	}
}

func TestGroupMemberEmailsFollowsPages(t *testing.T) {
	api := &fakeAPI{queryPages: []*dynamodb.QueryOutput{
		{
			Items:            []map[string]types.AttributeValue{marshal(t, models.User{Email: "b@x.com"})},
			LastEvaluatedKey: map[string]types.AttributeValue{"pk": &types.AttributeValueMemberS{Value: "ORG#org-1"}},
		},
		{
			Items: []map[string]types.AttributeValue{marshal(t, models.User{Email: "A@x.com"})},
		},
	}}
	store := NewStore(api, "table")

	emails, err := store.GroupMemberEmails(context.Background(), "org-1", 9)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(emails) != 2 || emails[0] != "a@x.com" || emails[1] != "b@x.com" {
		t.Fatalf("unexpected emails %v", emails)
	}
	if len(api.queries) != 2 {
		t.Fatalf("expected 2 query pages, got %d", len(api.queries))
	}
	gid := api.queries[0].ExpressionAttributeValues[":gid"].(*types.AttributeValueMemberN)
	if gid.Value != "9" {
		t.Fatalf("expected group filter 9, got %s", gid.Value)
	}
}

func TestListOrganizations(t *testing.T) {
	api := &fakeAPI{queryPages: []*dynamodb.QueryOutput{{
		Items: []map[string]types.AttributeValue{marshal(t, orgItem{
			PK:           "ORGS",
			SK:           "ORG#acme",
			Organization: models.Organization{ID: "org-1", Slug: "acme", Domains: []string{"acme.com"}},
		})},
	}}}
	store := NewStore(api, "table")

	orgs, err := store.ListOrganizations(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(orgs) != 1 || orgs[0].Slug != "acme" || len(orgs[0].Domains) != 1 {
		t.Fatalf("unexpected orgs %#v", orgs)
	}
}

func TestEventWriterIgnoresDuplicates(t *testing.T) {
	api := &fakeAPI{putErr: &types.ConditionalCheckFailedException{}}
	writer := NewEventWriter(api, "events")

	event := models.NewMemberAddedEvent("org-1", 5, "u1")
	if err := writer.WriteEvent(context.Background(), event); err != nil {
		t.Fatalf("expected duplicate to be ignored, got %v", err)
	}
	action := api.puts[0].Item["action"].(*types.AttributeValueMemberS).Value
	if action != "add_member" {
		t.Fatalf("expected add_member action, got %s", action)
	}
}

func TestMockStoreStrictUnlink(t *testing.T) {
	store := NewMockStore()
	store.PutUser(models.User{ID: "u1", OrgID: "org-1", Email: "a@x.com"})

	ctx := t.Context()
	if err := store.AddUserToGroup(ctx, "org-1", "a@x.com", 1); err != nil {
		t.Fatalf("AddUserToGroup failed: %v", err)
	}
	if err := store.AddUserToGroup(ctx, "org-1", "a@x.com", 1); err != nil {
		t.Fatalf("second AddUserToGroup should be a no-op, got %v", err)
	}
	if got := store.Members("org-1", 1); len(got) != 1 {
		t.Fatalf("expected 1 member, got %v", got)
	}
	if err := store.RemoveUserFromGroup(ctx, "org-1", "a@x.com", 1); err != nil {
		t.Fatalf("RemoveUserFromGroup failed: %v", err)
	}
	if err := store.RemoveUserFromGroup(ctx, "org-1", "a@x.com", 1); !errors.Is(err, models.ErrNotLinked) {
		t.Fatalf("expected ErrNotLinked on second unlink, got %v", err)
	}
}
