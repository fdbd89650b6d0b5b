package metrics

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"github.com/daniloc96/google-group-membership-sync/internal/models"
)

type mockCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
}

func (m *mockCloudWatch) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.inputs = append(m.inputs, params)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func TestEmitSummary(t *testing.T) {
	client := &mockCloudWatch{}
	emitter := &Emitter{client: client, namespace: "TestNamespace"}

	summary := models.SyncSummary{
		GroupsDispatched: 3,
		GroupsSynced:     2,
		GroupsFailed:     1,
		MembersAdded:     4,
		MembersRemoved:   1,
		UsersCreated:     2,
	}

	err := emitter.EmitSummary(context.Background(), summary, []string{"err1"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(client.inputs) != 1 {
		t.Fatalf("expected metric input to be sent")
	}
	input := client.inputs[0]
	if *input.Namespace != "TestNamespace" {
		t.Fatalf("expected namespace TestNamespace, got %s", aws.ToString(input.Namespace))
	}
	if len(input.MetricData) != 10 {
		t.Fatalf("expected 10 metrics, got %d", len(input.MetricData))
	}
	for _, d := range input.MetricData {
		if aws.ToString(d.MetricName) == "MembersAdded" && aws.ToFloat64(d.Value) != 4 {
			t.Fatalf("expected MembersAdded 4, got %v", aws.ToFloat64(d.Value))
		}
	}
}

func TestEmitGroupResult(t *testing.T) {
	client := &mockCloudWatch{}
	emitter := &Emitter{client: client, namespace: "TestNamespace"}

	err := emitter.EmitGroupResult(context.Background(), &models.GroupSyncResult{
		OrgSlug:    "acme",
		State:      models.StateDone,
		Added:      2,
		DurationMs: 120,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(client.inputs) != 1 {
		t.Fatalf("expected one PutMetricData call, got %d", len(client.inputs))
	}
	for _, d := range client.inputs[0].MetricData {
		if len(d.Dimensions) != 1 || aws.ToString(d.Dimensions[0].Value) != "acme" {
			t.Fatalf("expected organization dimension on %s", aws.ToString(d.MetricName))
		}
	}
}

func TestEmitGroupResultSkipsSkippedUnits(t *testing.T) {
	client := &mockCloudWatch{}
	emitter := &Emitter{client: client, namespace: "TestNamespace"}

	if err := emitter.EmitGroupResult(context.Background(), &models.GroupSyncResult{State: models.StateSkipped}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(client.inputs) != 0 {
		t.Fatalf("expected no metrics for skipped unit")
	}
}
