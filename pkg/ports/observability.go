package ports

import "context"

// MetricsCollector records quantitative observability signals. The interface
// is intentionally generic so adapters can back onto Prometheus, StatsD, or
// vendor-specific SDKs. Standard metric names include:
//   - Counters:
//     flowline_pipeline_executions_total{pipeline="...", status="completed|failed|cancelled"}
//     flowline_step_executions_total{step="...", outcome="success|failed|skip|stop"}
//   - Gauges:
//     flowline_pipeline_active_runs
//   - Histograms:
//     flowline_pipeline_execution_duration_seconds{pipeline="..."}
//     flowline_step_execution_duration_seconds{step="..."}
type MetricsCollector interface {
	IncCounter(ctx context.Context, name string, labels map[string]string)
	SetGauge(ctx context.Context, name string, value float64, labels map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, labels map[string]string)
}
