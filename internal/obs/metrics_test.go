package obs

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewMetrics does not call NewMetrics against the default registry:
// promauto registers against whatever Registerer it's given, and the
// default registry is a process-global singleton that would collide
// across parallel test runs. Every test below builds its own registry.
func TestNewMetrics_RegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	require.NotNil(t, m)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, vec.WithLabelValues(labels...).Write(&m))
	return m.GetCounter().GetValue()
}

func TestRecordTurn_IncrementsCounterAndObservesDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordTurn("coordinator", "ok", 2*time.Second)

	assert.Equal(t, float64(1), counterValue(t, m.TurnsTotal, "coordinator", "ok"))

	var hist dto.Metric
	require.NoError(t, m.TurnDuration.WithLabelValues("coordinator").(prometheus.Histogram).Write(&hist))
	assert.Equal(t, uint64(1), hist.GetHistogram().GetSampleCount())
}

func TestRecordProviderRequest_SkipsZeroTokenBuckets(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordProviderRequest("claude-sonnet", "error", 100*time.Millisecond, 0, 0)
	assert.Equal(t, float64(1), counterValue(t, m.ProviderRequestsTotal, "claude-sonnet", "error"))
	assert.Equal(t, float64(0), counterValue(t, m.ProviderTokensTotal, "claude-sonnet", "input"))

	m.RecordProviderRequest("claude-sonnet", "success", 500*time.Millisecond, 120, 340)
	assert.Equal(t, float64(120), counterValue(t, m.ProviderTokensTotal, "claude-sonnet", "input"))
	assert.Equal(t, float64(340), counterValue(t, m.ProviderTokensTotal, "claude-sonnet", "output"))
}

func TestRecordToolExecution_LabelsByNameAndOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordToolExecution("write_file", "success", 10*time.Millisecond)
	m.RecordToolExecution("write_file", "error", 5*time.Millisecond)

	assert.Equal(t, float64(1), counterValue(t, m.ToolExecutionsTotal, "write_file", "success"))
	assert.Equal(t, float64(1), counterValue(t, m.ToolExecutionsTotal, "write_file", "error"))
}

func TestSessionStartedAndEnded_MovesGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.SessionStarted()
	m.SessionStarted()
	m.SessionEnded()

	var g dto.Metric
	require.NoError(t, m.ActiveSessions.Write(&g))
	assert.Equal(t, float64(1), g.GetGauge().GetValue())
}

func TestRecordCompactionRunAndMemoryAppend(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordCompactionRun("ok", time.Second)
	assert.Equal(t, float64(1), counterValue(t, m.CompactionRunsTotal, "ok"))

	m.RecordMemoryAppend()
	var c dto.Metric
	require.NoError(t, m.MemoryEntriesAppended.Write(&c))
	assert.Equal(t, float64(1), c.GetCounter().GetValue())
}

// A nil *Metrics must be a safe no-op everywhere: callers that construct
// Deps without a registry (every chatactor test) should never need a
// feature-flag check before recording.
func TestNilMetrics_AllMethodsAreNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordTurn("x", "ok", time.Second)
		m.RecordProviderRequest("x", "ok", time.Second, 1, 1)
		m.RecordToolExecution("x", "ok", time.Second)
		m.SessionStarted()
		m.SessionEnded()
		m.ObserveAgentStackDepth(3)
		m.RecordCompactionRun("ok", time.Second)
		m.RecordMemoryAppend()
	})
}
