package metrics

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/daniloc96/google-group-membership-sync/internal/models"
)

// CloudWatchAPI defines the CloudWatch client interface used for metrics.
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Emitter sends sync metrics to CloudWatch.
type Emitter struct {
	client    CloudWatchAPI
	namespace string
}

// NewEmitter creates a CloudWatch metrics emitter.
func NewEmitter(cfg aws.Config, namespace string) *Emitter {
	return &Emitter{
		client:    cloudwatch.NewFromConfig(cfg),
		namespace: namespace,
	}
}

// EmitSummary publishes run-level counters.
func (e *Emitter) EmitSummary(ctx context.Context, summary models.SyncSummary, errors []string) error {
	metrics := []types.MetricDatum{
		metricDatum("GroupsDispatched", summary.GroupsDispatched, nil),
		metricDatum("GroupsSkipped", summary.GroupsSkipped, nil),
		metricDatum("GroupsSynced", summary.GroupsSynced, nil),
		metricDatum("GroupsInSync", summary.GroupsInSync, nil),
		metricDatum("GroupsFailed", summary.GroupsFailed, nil),
		metricDatum("MembersAdded", summary.MembersAdded, nil),
		metricDatum("MembersRemoved", summary.MembersRemoved, nil),
		metricDatum("UsersCreated", summary.UsersCreated, nil),
		metricDatum("ActionsFailed", summary.ActionsFailed, nil),
		metricDatum("Errors", len(errors), nil),
	}

	_, err := e.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(e.namespace),
		MetricData: metrics,
	})
	return err
}

// EmitGroupResult publishes the counters of one unit, dimensioned by organization.
func (e *Emitter) EmitGroupResult(ctx context.Context, result *models.GroupSyncResult) error {
	if result == nil || result.State == models.StateSkipped {
		return nil
	}
	dims := []types.Dimension{{Name: aws.String("Organization"), Value: aws.String(result.OrgSlug)}}
	failed := 0
	if result.State == models.StateFailed {
		failed = 1
	}
	metrics := []types.MetricDatum{
		metricDatum("MembersAdded", result.Added, dims),
		metricDatum("MembersRemoved", result.Removed, dims),
		metricDatum("UsersCreated", result.UsersCreated, dims),
		metricDatum("ActionsFailed", result.ActionsFailed, dims),
		metricDatum("GroupsFailed", failed, dims),
		{
			MetricName: aws.String("GroupSyncDuration"),
			Unit:       types.StandardUnitMilliseconds,
			Value:      aws.Float64(float64(result.DurationMs)),
			Dimensions: dims,
		},
	}

	_, err := e.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(e.namespace),
		MetricData: metrics,
	})
	return err
}

func metricDatum(name string, value int, dims []types.Dimension) types.MetricDatum {
	return types.MetricDatum{
		MetricName: aws.String(name),
		Unit:       types.StandardUnitCount,
		Value:      aws.Float64(float64(value)),
		Dimensions: dims,
	}
}
