package ecsmetrics_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/awsops/internal/config"
	"github.com/systmms/awsops/internal/ecsmetrics"
	"github.com/systmms/awsops/internal/logging"
	"github.com/systmms/awsops/tests/fakes"
)

var testWindow = ecsmetrics.Window{
	Start: time.Date(2025, 10, 5, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2025, 10, 7, 23, 59, 59, 0, time.UTC),
}

func metricsConfig() config.MetricsConfig {
	return config.MetricsConfig{
		Cluster: "prod",
		Service: "api",
		Period:  time.Hour,
	}
}

func TestCollectRequestsEachMetric(t *testing.T) {
	t.Parallel()

	cw := fakes.NewFakeCloudWatchClient()
	exp := ecsmetrics.NewExporter(cw, metricsConfig(), nil, logging.Discard())

	_, err := exp.Collect(context.Background(), testWindow)
	require.NoError(t, err)

	reqs := cw.Requests()
	require.Len(t, reqs, 3)

	for i, spec := range ecsmetrics.DefaultMetrics {
		req := reqs[i]
		assert.Equal(t, "AWS/ECS", aws.ToString(req.Namespace))
		assert.Equal(t, spec.Name, aws.ToString(req.MetricName))
		assert.Equal(t, []cwtypes.Statistic{cwtypes.StatisticAverage}, req.Statistics)
		assert.Equal(t, spec.Unit, req.Unit)
		assert.Equal(t, int32(3600), aws.ToInt32(req.Period))
		assert.Equal(t, testWindow.Start, aws.ToTime(req.StartTime))
		assert.Equal(t, testWindow.End, aws.ToTime(req.EndTime))

		require.Len(t, req.Dimensions, 2)
		assert.Equal(t, "ClusterName", aws.ToString(req.Dimensions[0].Name))
		assert.Equal(t, "prod", aws.ToString(req.Dimensions[0].Value))
		assert.Equal(t, "ServiceName", aws.ToString(req.Dimensions[1].Name))
		assert.Equal(t, "api", aws.ToString(req.Dimensions[1].Value))
	}
}

func TestCollectPicksLatestDatapoint(t *testing.T) {
	t.Parallel()

	t1 := time.Date(2025, 10, 6, 1, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	t3 := t2.Add(time.Hour)

	cw := fakes.NewFakeCloudWatchClient()
	// Deliberately out of order.
	cw.AddAverage("CPUUtilization", t2, 20, cwtypes.StandardUnitPercent)
	cw.AddAverage("CPUUtilization", t3, 30, cwtypes.StandardUnitPercent)
	cw.AddAverage("CPUUtilization", t1, 10, cwtypes.StandardUnitPercent)

	exp := ecsmetrics.NewExporter(cw, metricsConfig(), nil, logging.Discard())
	samples, err := exp.Collect(context.Background(), testWindow)
	require.NoError(t, err)
	require.Len(t, samples, 3)

	require.NotNil(t, samples[0].Value)
	assert.Equal(t, 30.0, *samples[0].Value)
	assert.True(t, samples[1].Missing())
	assert.True(t, samples[2].Missing())
}

func TestCollectSelectsConfiguredStatistic(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 10, 6, 1, 0, 0, 0, time.UTC)
	cw := fakes.NewFakeCloudWatchClient()
	cw.Datapoints["CPUUtilization"] = []cwtypes.Datapoint{{
		Timestamp: aws.Time(ts),
		Average:   aws.Float64(40),
		Maximum:   aws.Float64(97.5),
	}}

	specs := []ecsmetrics.MetricSpec{
		{Name: "CPUUtilization", Stat: cwtypes.StatisticMaximum, Unit: cwtypes.StandardUnitPercent},
	}
	exp := ecsmetrics.NewExporter(cw, metricsConfig(), specs, logging.Discard())

	samples, err := exp.Collect(context.Background(), testWindow)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	require.NotNil(t, samples[0].Value)
	assert.Equal(t, 97.5, *samples[0].Value)
	assert.Equal(t, []cwtypes.Statistic{cwtypes.StatisticMaximum}, cw.Requests()[0].Statistics)
}

func TestCollectIgnoresDatapointsWithoutTimestamp(t *testing.T) {
	t.Parallel()

	cw := fakes.NewFakeCloudWatchClient()
	cw.Datapoints["RunningTaskCount"] = []cwtypes.Datapoint{{Average: aws.Float64(4)}}

	exp := ecsmetrics.NewExporter(cw, metricsConfig(), nil, logging.Discard())
	samples, err := exp.Collect(context.Background(), testWindow)
	require.NoError(t, err)
	assert.True(t, samples[2].Missing())
}

func TestCollectWrapsErrors(t *testing.T) {
	t.Parallel()

	cw := fakes.NewFakeCloudWatchClient()
	cw.Errors["MemoryUtilization"] = &smithy.GenericAPIError{Code: "AccessDenied", Message: "not authorized"}

	exp := ecsmetrics.NewExporter(cw, metricsConfig(), nil, logging.Discard())
	samples, err := exp.Collect(context.Background(), testWindow)

	require.Error(t, err)
	assert.Nil(t, samples)
	assert.Contains(t, err.Error(), "cloudwatch error during get MemoryUtilization statistics")
	assert.Contains(t, err.Error(), "cloudwatch:GetMetricStatistics")
	// RunningTaskCount is never queried after the failure.
	assert.Len(t, cw.Requests(), 2)
}

func TestExportIsByteIdenticalAcrossRuns(t *testing.T) {
	t.Parallel()

	cw := fakes.NewFakeCloudWatchClient()
	cw.AddAverage("CPUUtilization", time.Date(2025, 10, 7, 22, 0, 0, 0, time.UTC), 12.5, cwtypes.StandardUnitPercent)
	cw.AddAverage("RunningTaskCount", time.Date(2025, 10, 7, 22, 0, 0, 0, time.UTC), 3, cwtypes.StandardUnitCount)

	exp := ecsmetrics.NewExporter(cw, metricsConfig(), nil, logging.Discard())

	run := func() []byte {
		samples, err := exp.Collect(context.Background(), testWindow)
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, ecsmetrics.WriteCSV(&buf, samples))
		return buf.Bytes()
	}

	first := run()
	second := run()
	assert.Equal(t, first, second)
	assert.Equal(t, "Metric,Value,TimeRange\r\n"+
		"CPUUtilization,12.5,2025-10-05T00:00:00 to 2025-10-07T23:59:59\r\n"+
		"MemoryUtilization,n/a,2025-10-05T00:00:00 to 2025-10-07T23:59:59\r\n"+
		"RunningTaskCount,3,2025-10-05T00:00:00 to 2025-10-07T23:59:59\r\n", string(first))
}

func TestNewExporterDefaults(t *testing.T) {
	t.Parallel()

	cw := fakes.NewFakeCloudWatchClient()
	exp := ecsmetrics.NewExporter(cw, config.MetricsConfig{Cluster: "prod", Service: "api"}, nil, logging.Discard())

	assert.Equal(t, ecsmetrics.DefaultMetrics, exp.Metrics())

	_, err := exp.Collect(context.Background(), testWindow)
	require.NoError(t, err)
	assert.Equal(t, int32(3600), aws.ToInt32(cw.Requests()[0].Period))
}
