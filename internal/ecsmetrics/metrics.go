// Package ecsmetrics exports the latest CloudWatch statistics of one ECS
// service to a small CSV report.
package ecsmetrics

import (
	"fmt"
	"time"

	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/systmms/awsops/internal/config"
)

// Namespace is the CloudWatch namespace ECS service metrics live in
const Namespace = "AWS/ECS"

// Dimension names used to scope every query to a single service
const (
	DimensionCluster = "ClusterName"
	DimensionService = "ServiceName"
)

// MetricSpec names one CloudWatch metric and how to read it
type MetricSpec struct {
	Name string
	Stat cwtypes.Statistic
	Unit cwtypes.StandardUnit
}

// DefaultMetrics is the report used when no definitions file is configured
var DefaultMetrics = []MetricSpec{
	{Name: "CPUUtilization", Stat: cwtypes.StatisticAverage, Unit: cwtypes.StandardUnitPercent},
	{Name: "MemoryUtilization", Stat: cwtypes.StatisticAverage, Unit: cwtypes.StandardUnitPercent},
	{Name: "RunningTaskCount", Stat: cwtypes.StatisticAverage, Unit: cwtypes.StandardUnitCount},
}

// Window is the closed time range a report covers
type Window struct {
	Start time.Time
	End   time.Time
}

// String renders the window the way it appears in the TimeRange column
func (w Window) String() string {
	return fmt.Sprintf("%s to %s", w.Start.UTC().Format(TimeLayout), w.End.UTC().Format(TimeLayout))
}

// ResolveWindow returns the fixed window from cfg when one is set, otherwise
// the rolling window of cfg.Window ending at now (to the second).
func ResolveWindow(cfg config.MetricsConfig, now func() time.Time) Window {
	if cfg.FixedWindow() {
		return Window{Start: cfg.Start.UTC(), End: cfg.End.UTC()}
	}

	end := now().UTC().Truncate(time.Second)
	return Window{Start: end.Add(-cfg.Window), End: end}
}

// Sample is the reading for one metric. Value is nil when CloudWatch returned
// no datapoints for the window.
type Sample struct {
	Metric MetricSpec
	Value  *float64
	Window Window
}

// Missing reports whether the sample has no value
func (s Sample) Missing() bool {
	return s.Value == nil
}
