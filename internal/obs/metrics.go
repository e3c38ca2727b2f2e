// Package obs provides the Prometheus metrics surface for the Chat Actor
// and the tool pipeline: turn/provider-call counts and latencies, tool
// execution outcomes, compaction runs, and session gauges, all registered
// once at process startup and scraped over /metrics.
//
// Grounded on haasonsaas-nexus/internal/observability/metrics.go's
// Metrics struct (CounterVec/HistogramVec/GaugeVec fields plus small
// Record*/increment methods wrapping WithLabelValues), narrowed from the
// teacher's messaging-channel domain (Telegram/Discord/Slack, webhooks,
// database queries) to this repo's actor/tool/provider/compaction domain.
package obs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every metric the actor and tool pipeline record. Build
// one with NewMetrics at process startup and thread it through Deps;
// Actor/toolpipeline.Options treat a nil *Metrics as "metrics disabled"
// so tests never need a registry.
type Metrics struct {
	// TurnDuration measures one SendMessage turn end-to-end.
	// Labels: agent_type
	TurnDuration *prometheus.HistogramVec

	// TurnsTotal counts completed turns by agent and outcome.
	// Labels: agent_type, outcome (ok|error|cancelled)
	TurnsTotal *prometheus.CounterVec

	// ProviderRequestDuration measures one Converse call's latency.
	// Labels: model
	ProviderRequestDuration *prometheus.HistogramVec

	// ProviderRequestsTotal counts Converse calls by model and status.
	// Labels: model, status (success|error|input_too_long)
	ProviderRequestsTotal *prometheus.CounterVec

	// ProviderTokensTotal tracks token consumption by model and kind.
	// Labels: model, kind (input|output)
	ProviderTokensTotal *prometheus.CounterVec

	// ToolExecutionDuration measures one tool's Execute call.
	// Labels: tool_name
	ToolExecutionDuration *prometheus.HistogramVec

	// ToolExecutionsTotal counts tool executions by name and outcome.
	// Labels: tool_name, outcome (success|error)
	ToolExecutionsTotal *prometheus.CounterVec

	// ActiveSessions gauges the number of live Chat Actor sessions.
	ActiveSessions prometheus.Gauge

	// AgentStackDepth observes the agent stack depth reached by a turn.
	AgentStackDepth prometheus.Histogram

	// CompactionRunsTotal counts background compaction runs by outcome.
	// Labels: outcome (ok|error)
	CompactionRunsTotal *prometheus.CounterVec

	// CompactionDuration measures one compaction run's wall time.
	CompactionDuration prometheus.Histogram

	// MemoryEntriesAppended counts append_memory calls.
	MemoryEntriesAppended prometheus.Counter
}

// NewMetrics registers every metric against reg and returns the bundle.
// Pass prometheus.DefaultRegisterer for a normal process; tests should
// pass a fresh prometheus.NewRegistry() to avoid duplicate-registration
// panics across test runs.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		TurnDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tycode_turn_duration_seconds",
				Help:    "Duration of one SendMessage turn, in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"agent_type"},
		),
		TurnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tycode_turns_total",
				Help: "Total number of completed turns by agent type and outcome",
			},
			[]string{"agent_type", "outcome"},
		),
		ProviderRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tycode_provider_request_duration_seconds",
				Help:    "Duration of a single Converse call, in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"model"},
		),
		ProviderRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tycode_provider_requests_total",
				Help: "Total number of Converse calls by model and status",
			},
			[]string{"model", "status"},
		),
		ProviderTokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tycode_provider_tokens_total",
				Help: "Total tokens consumed by model and kind",
			},
			[]string{"model", "kind"},
		),
		ToolExecutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tycode_tool_execution_duration_seconds",
				Help:    "Duration of a tool's Execute call, in seconds",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),
		ToolExecutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tycode_tool_executions_total",
				Help: "Total number of tool executions by tool name and outcome",
			},
			[]string{"tool_name", "outcome"},
		),
		ActiveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tycode_active_sessions",
				Help: "Current number of live Chat Actor sessions",
			},
		),
		AgentStackDepth: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tycode_agent_stack_depth",
				Help:    "Agent stack depth observed during a turn",
				Buckets: prometheus.LinearBuckets(1, 1, 12),
			},
		),
		CompactionRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tycode_compaction_runs_total",
				Help: "Total number of background compaction runs by outcome",
			},
			[]string{"outcome"},
		),
		CompactionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tycode_compaction_duration_seconds",
				Help:    "Duration of a background compaction run, in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
		),
		MemoryEntriesAppended: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tycode_memory_entries_appended_total",
				Help: "Total number of append_memory calls",
			},
		),
	}
}

// RecordTurn records one completed turn's duration and outcome. Safe to
// call on a nil *Metrics (a no-op), so callers never need a feature-flag
// check of their own.
func (m *Metrics) RecordTurn(agentType, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.TurnsTotal.WithLabelValues(agentType, outcome).Inc()
	m.TurnDuration.WithLabelValues(agentType).Observe(duration.Seconds())
}

// RecordProviderRequest records one Converse call's latency, status, and
// token usage (tokens may be zero when the call failed before usage was
// known).
func (m *Metrics) RecordProviderRequest(model, status string, duration time.Duration, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	m.ProviderRequestsTotal.WithLabelValues(model, status).Inc()
	m.ProviderRequestDuration.WithLabelValues(model).Observe(duration.Seconds())
	if inputTokens > 0 {
		m.ProviderTokensTotal.WithLabelValues(model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		m.ProviderTokensTotal.WithLabelValues(model, "output").Add(float64(outputTokens))
	}
}

// RecordToolExecution records one tool's Execute outcome and latency.
func (m *Metrics) RecordToolExecution(toolName, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ToolExecutionsTotal.WithLabelValues(toolName, outcome).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(duration.Seconds())
}

// SessionStarted/SessionEnded track the active-sessions gauge across a
// Chat Actor's lifetime (New through Close).
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

func (m *Metrics) SessionEnded() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}

// ObserveAgentStackDepth records the stack depth reached during a turn.
func (m *Metrics) ObserveAgentStackDepth(depth int) {
	if m == nil {
		return
	}
	m.AgentStackDepth.Observe(float64(depth))
}

// RecordCompactionRun records one background compaction's outcome and
// duration.
func (m *Metrics) RecordCompactionRun(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.CompactionRunsTotal.WithLabelValues(outcome).Inc()
	m.CompactionDuration.Observe(duration.Seconds())
}

// RecordMemoryAppend records one append_memory call.
func (m *Metrics) RecordMemoryAppend() {
	if m == nil {
		return
	}
	m.MemoryEntriesAppended.Inc()
}
