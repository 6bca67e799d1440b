package ecsmetrics

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/systmms/awsops/internal/config"
	dserrors "github.com/systmms/awsops/internal/errors"
	"github.com/systmms/awsops/internal/logging"
)

// CloudWatchAPI is the subset of the CloudWatch client the exporter calls.
// *cloudwatch.Client satisfies it.
type CloudWatchAPI interface {
	GetMetricStatistics(ctx context.Context, params *cloudwatch.GetMetricStatisticsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error)
}

// Exporter queries CloudWatch for each configured metric of one ECS service
type Exporter struct {
	cw      CloudWatchAPI
	cluster string
	service string
	period  time.Duration
	specs   []MetricSpec
	logger  *logging.Logger
}

// NewExporter creates an exporter for the cluster/service in cfg. A nil or
// empty specs slice selects DefaultMetrics.
func NewExporter(cw CloudWatchAPI, cfg config.MetricsConfig, specs []MetricSpec, logger *logging.Logger) *Exporter {
	if len(specs) == 0 {
		specs = DefaultMetrics
	}
	period := cfg.Period
	if period <= 0 {
		period = config.DefaultMetricsPeriod
	}
	return &Exporter{
		cw:      cw,
		cluster: cfg.Cluster,
		service: cfg.Service,
		period:  period,
		specs:   specs,
		logger:  logger,
	}
}

// Metrics returns the metric specs the exporter queries, in report order
func (e *Exporter) Metrics() []MetricSpec {
	return append([]MetricSpec(nil), e.specs...)
}

// Collect issues one GetMetricStatistics query per metric and keeps the
// value of the most recent datapoint. The first query error aborts the run.
func (e *Exporter) Collect(ctx context.Context, window Window) ([]Sample, error) {
	samples := make([]Sample, 0, len(e.specs))

	for _, spec := range e.specs {
		e.logger.Debug("Querying %s/%s (%s) for %s", Namespace, spec.Name, spec.Stat, window)

		out, err := e.cw.GetMetricStatistics(ctx, e.input(spec, window))
		if err != nil {
			return nil, dserrors.ProviderError("cloudwatch", fmt.Sprintf("get %s statistics", spec.Name), err)
		}

		var value *float64
		if out != nil {
			value = latestValue(out.Datapoints, spec.Stat)
		}
		if value == nil {
			e.logger.Debug("No datapoints for %s", spec.Name)
		}

		samples = append(samples, Sample{Metric: spec, Value: value, Window: window})
	}

	return samples, nil
}

func (e *Exporter) input(spec MetricSpec, window Window) *cloudwatch.GetMetricStatisticsInput {
	in := &cloudwatch.GetMetricStatisticsInput{
		Namespace:  aws.String(Namespace),
		MetricName: aws.String(spec.Name),
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(DimensionCluster), Value: aws.String(e.cluster)},
			{Name: aws.String(DimensionService), Value: aws.String(e.service)},
		},
		StartTime:  aws.Time(window.Start),
		EndTime:    aws.Time(window.End),
		Period:     aws.Int32(int32(e.period / time.Second)),
		Statistics: []cwtypes.Statistic{spec.Stat},
	}
	if spec.Unit != "" {
		in.Unit = spec.Unit
	}
	return in
}

// latestValue picks the datapoint with the greatest timestamp; CloudWatch
// does not order its response. On equal timestamps the later entry wins.
func latestValue(points []cwtypes.Datapoint, stat cwtypes.Statistic) *float64 {
	var latest *cwtypes.Datapoint
	for i := range points {
		p := &points[i]
		if p.Timestamp == nil {
			continue
		}
		if latest == nil || !p.Timestamp.Before(*latest.Timestamp) {
			latest = p
		}
	}
	if latest == nil {
		return nil
	}
	return statValue(*latest, stat)
}

func statValue(p cwtypes.Datapoint, stat cwtypes.Statistic) *float64 {
	switch stat {
	case cwtypes.StatisticSum:
		return p.Sum
	case cwtypes.StatisticMinimum:
		return p.Minimum
	case cwtypes.StatisticMaximum:
		return p.Maximum
	case cwtypes.StatisticSampleCount:
		return p.SampleCount
	default:
		return p.Average
	}
}
