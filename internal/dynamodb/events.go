package dynamodb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/daniloc96/google-group-membership-sync/internal/models"
)

// EventWriter appends audit events to the events table consumed by the
// event pipeline (via the table's stream).
type EventWriter struct {
	client    API
	tableName string
}

// NewEventWriter creates an EventWriter.
func NewEventWriter(client API, tableName string) *EventWriter {
	return &EventWriter{client: client, tableName: tableName}
}

// WriteEvent stores one event. Events are never updated, so a redelivered
// event with the same key is rejected by the condition and treated as success.
func (w *EventWriter) WriteEvent(ctx context.Context, event models.AuditEvent) error {
	item, err := attributevalue.MarshalMap(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	_, err = w.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(w.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(pk)"),
	})
	if isConditionFailed(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("writing event %s: %w", event.ID, err)
	}
	return nil
}
