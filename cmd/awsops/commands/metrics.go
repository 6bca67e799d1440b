package commands

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/systmms/awsops/internal/config"
	"github.com/systmms/awsops/internal/ecsmetrics"
	"github.com/systmms/awsops/internal/telemetry"
)

func NewMetricsCommand(cfg *config.Config, deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Export the latest ECS service metrics to CSV",
		Long: `Query CloudWatch for the metrics of ECS_SERVICE in ECS_CLUSTER and write the
most recent value of each to METRICS_OUTPUT (default ecs_metrics.csv).

The window is METRICS_START to METRICS_END when both are set, otherwise the
METRICS_WINDOW (default 24h) ending now. Metrics with no datapoints are
written as n/a.

METRICS_DEFINITIONS may name a YAML file replacing the default metric set:

  metrics:
    - name: CPUUtilization
      stat: Maximum
      unit: Percent`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			metrics := loadTelemetry(cfg)
			start := deps.now()

			err := runMetrics(cmd.Context(), cfg, deps, metrics)

			metrics.ObserveDuration("metrics", deps.now().Sub(start))
			writeTelemetry(cfg, metrics)
			return err
		},
	}

	return cmd
}

func runMetrics(ctx context.Context, cfg *config.Config, deps *Deps, metrics *telemetry.RunMetrics) error {
	if err := cfg.ValidateMetrics(); err != nil {
		return err
	}

	specs, err := ecsmetrics.LoadDefinitions(cfg.Metrics.DefinitionsPath)
	if err != nil {
		return err
	}

	cw, err := deps.CloudWatch(ctx, cfg)
	if err != nil {
		return err
	}

	window := ecsmetrics.ResolveWindow(cfg.Metrics, deps.now)
	exporter := ecsmetrics.NewExporter(cw, cfg.Metrics, specs, cfg.Logger)

	cfg.Logger.Info("Collecting %d metrics for %s/%s from %s", len(specs), cfg.Metrics.Cluster, cfg.Metrics.Service, window)
	samples, err := exporter.Collect(ctx, window)
	if err != nil {
		return err
	}

	if err := ecsmetrics.WriteFile(cfg.Metrics.Output, samples); err != nil {
		return err
	}

	missing := 0
	for _, s := range samples {
		if s.Missing() {
			missing++
		}
	}
	if missing > 0 {
		cfg.Logger.Warn("%d of %d metrics had no datapoints", missing, len(samples))
	}
	metrics.RecordMetricsExport(len(samples), missing)

	cfg.Logger.Info("Metrics written to %s", cfg.Metrics.Output)
	return nil
}
