package engine

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// runMetrics counts run lifecycle events. Instruments come from the global
// meter provider; without a configured SDK they are no-ops.
type runMetrics struct {
	started   metric.Int64Counter
	completed metric.Int64Counter
	failed    metric.Int64Counter
	paused    metric.Int64Counter
	resumed   metric.Int64Counter
	cancelled metric.Int64Counter
	steps     metric.Int64Counter
}

func newRunMetrics() *runMetrics {
	meter := otel.Meter("github.com/flowmesh-ai/flowmesh/internal/engine")
	m := &runMetrics{}
	m.started, _ = meter.Int64Counter("flowmesh.runs.started",
		metric.WithDescription("Runs started"))
	m.completed, _ = meter.Int64Counter("flowmesh.runs.completed",
		metric.WithDescription("Runs completed successfully"))
	m.failed, _ = meter.Int64Counter("flowmesh.runs.failed",
		metric.WithDescription("Runs ended in failure"))
	m.paused, _ = meter.Int64Counter("flowmesh.runs.paused",
		metric.WithDescription("Run suspensions"))
	m.resumed, _ = meter.Int64Counter("flowmesh.runs.resumed",
		metric.WithDescription("Run resumptions"))
	m.cancelled, _ = meter.Int64Counter("flowmesh.runs.cancelled",
		metric.WithDescription("Runs cancelled"))
	m.steps, _ = meter.Int64Counter("flowmesh.steps.executed",
		metric.WithDescription("Node executions"))
	return m
}

func (m *runMetrics) add(ctx context.Context, c metric.Int64Counter, workflowID string) {
	c.Add(ctx, 1, metric.WithAttributes(attribute.String("workflow_id", workflowID)))
}
