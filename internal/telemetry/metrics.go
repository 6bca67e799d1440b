// Package telemetry records per-run Prometheus metrics and writes them to a
// node_exporter textfile when one is configured.
package telemetry

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/common/model"
)

// Rotation results used as the result label
const (
	ResultSuccess = "success"
	ResultGuard   = "guard"
	ResultFailure = "failure"
)

// Metric names written to the textfile
const (
	metricRotationRuns        = "awsops_rotation_runs_total"
	metricRotationLastSuccess = "awsops_rotation_last_success_timestamp_seconds"
	metricRowsWritten         = "awsops_metrics_rows_written"
	metricMissingSamples      = "awsops_metrics_missing_samples"
	metricRunDuration         = "awsops_run_duration_seconds"
)

// RunMetrics holds the metrics of an awsops invocation. Each instance owns
// its registry; state from earlier runs comes in through Restore.
type RunMetrics struct {
	registry *prometheus.Registry

	rotationRuns        *prometheus.CounterVec
	rotationLastSuccess prometheus.Gauge
	metricsRows         prometheus.Gauge
	metricsMissing      prometheus.Gauge
	runDuration         *prometheus.GaugeVec
}

// NewRunMetrics creates and registers all metrics on a fresh registry
func NewRunMetrics() *RunMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &RunMetrics{
		registry: reg,
		rotationRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricRotationRuns,
				Help: "Access key rotation runs by result",
			},
			[]string{"result"},
		),
		rotationLastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Name: metricRotationLastSuccess,
			Help: "Unix time of the last successful access key rotation",
		}),
		metricsRows: factory.NewGauge(prometheus.GaugeOpts{
			Name: metricRowsWritten,
			Help: "Rows written to the ECS metrics report",
		}),
		metricsMissing: factory.NewGauge(prometheus.GaugeOpts{
			Name: metricMissingSamples,
			Help: "Metrics in the ECS report that had no datapoints",
		}),
		runDuration: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricRunDuration,
				Help: "Wall time of the last run of each command",
			},
			[]string{"command"},
		),
	}
}

// Load creates RunMetrics seeded from the textfile at path, so counters keep
// counting and gauges a run does not touch keep their last value. A missing
// file or empty path yields fresh metrics.
func Load(path string) (*RunMetrics, error) {
	m := NewRunMetrics()
	if err := m.Restore(path); err != nil {
		return m, err
	}
	return m, nil
}

// Restore seeds m from a textfile previously written by WriteTextfile.
// Series that awsops does not write are ignored.
func (m *RunMetrics) Restore(path string) error {
	if path == "" {
		return nil
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read metrics textfile %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	parser := expfmt.NewTextParser(model.UTF8Validation)
	families, err := parser.TextToMetricFamilies(f)
	if err != nil {
		return fmt.Errorf("failed to parse metrics textfile %s: %w", path, err)
	}

	for _, metric := range families[metricRotationRuns].GetMetric() {
		if result := labelValue(metric.GetLabel(), "result"); result != "" {
			m.rotationRuns.WithLabelValues(result).Add(metric.GetCounter().GetValue())
		}
	}
	for _, metric := range families[metricRunDuration].GetMetric() {
		if command := labelValue(metric.GetLabel(), "command"); command != "" {
			m.runDuration.WithLabelValues(command).Set(metric.GetGauge().GetValue())
		}
	}
	gauges := map[string]prometheus.Gauge{
		metricRotationLastSuccess: m.rotationLastSuccess,
		metricRowsWritten:         m.metricsRows,
		metricMissingSamples:      m.metricsMissing,
	}
	for name, gauge := range gauges {
		for _, metric := range families[name].GetMetric() {
			gauge.Set(metric.GetGauge().GetValue())
		}
	}
	return nil
}

func labelValue(labels []*dto.LabelPair, name string) string {
	for _, l := range labels {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}

// RecordRotation counts a rotation run. A success also stamps the
// last-success gauge with at.
func (m *RunMetrics) RecordRotation(result string, at time.Time) {
	m.rotationRuns.WithLabelValues(result).Inc()
	if result == ResultSuccess {
		m.rotationLastSuccess.Set(float64(at.Unix()))
	}
}

// RecordMetricsExport records the size of a written report
func (m *RunMetrics) RecordMetricsExport(rows, missing int) {
	m.metricsRows.Set(float64(rows))
	m.metricsMissing.Set(float64(missing))
}

// ObserveDuration records how long command took
func (m *RunMetrics) ObserveDuration(command string, d time.Duration) {
	m.runDuration.WithLabelValues(command).Set(d.Seconds())
}

// WriteTextfile writes every metric to path in the text exposition format.
// An empty path is a no-op.
func (m *RunMetrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile %s: %w", path, err)
	}
	return nil
}
