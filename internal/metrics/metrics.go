package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// Turn metrics
	turnsTotal    *prometheus.CounterVec
	turnDuration  prometheus.Histogram
	turnsInFlight prometheus.Gauge

	// Agent metrics
	agentIterations    prometheus.Histogram
	toolCallsTotal     *prometheus.CounterVec
	reasoningFallbacks prometheus.Counter

	// Provider metrics
	providerRequestsTotal  *prometheus.CounterVec
	providerFallbacksTotal *prometheus.CounterVec

	// Memory metrics
	summarizationsTotal prometheus.Counter

	// LLM metrics
	llmRequestDuration *prometheus.HistogramVec
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		turnsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincopilot_turns_total",
				Help: "Total number of conversation turns",
			},
			[]string{"status"},
		),
		turnDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fincopilot_turn_duration_seconds",
				Help:    "End-to-end turn duration in seconds",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60},
			},
		),
		turnsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "fincopilot_turns_in_flight",
				Help: "Number of turns currently executing",
			},
		),
		agentIterations: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fincopilot_agent_iterations",
				Help:    "Reasoning-loop iterations per turn",
				Buckets: []float64{1, 2, 3, 4, 5},
			},
		),
		toolCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincopilot_tool_calls_total",
				Help: "Total number of tool invocations",
			},
			[]string{"tool", "status"},
		),
		reasoningFallbacks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fincopilot_reasoning_fallbacks_total",
				Help: "Turns degraded to a single non-tool completion",
			},
		),
		providerRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincopilot_provider_requests_total",
				Help: "Total number of market-data provider requests",
			},
			[]string{"provider", "op", "status"},
		),
		providerFallbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincopilot_provider_fallbacks_total",
				Help: "Requests that fell through to a secondary provider",
			},
			[]string{"op"},
		),
		summarizationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fincopilot_memory_summarizations_total",
				Help: "Total number of memory summarization collapses",
			},
		),
		llmRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fincopilot_llm_request_duration_seconds",
				Help:    "LLM request duration in seconds",
				Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"provider"},
		),
	}

	reg.MustRegister(r.turnsTotal)
	reg.MustRegister(r.turnDuration)
	reg.MustRegister(r.turnsInFlight)
	reg.MustRegister(r.agentIterations)
	reg.MustRegister(r.toolCallsTotal)
	reg.MustRegister(r.reasoningFallbacks)
	reg.MustRegister(r.providerRequestsTotal)
	reg.MustRegister(r.providerFallbacksTotal)
	reg.MustRegister(r.summarizationsTotal)
	reg.MustRegister(r.llmRequestDuration)

	return r
}

// Handler returns the Prometheus scrape handler for this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.Registry, promhttp.HandlerOpts{})
}

// RecordTurn records a completed turn.
func (r *Registry) RecordTurn(status string, duration float64) {
	r.turnsTotal.WithLabelValues(status).Inc()
	r.turnDuration.Observe(duration)
}

// TurnInFlightInc increments in-flight turns.
func (r *Registry) TurnInFlightInc() {
	r.turnsInFlight.Inc()
}

// TurnInFlightDec decrements in-flight turns.
func (r *Registry) TurnInFlightDec() {
	r.turnsInFlight.Dec()
}

// RecordIterations records the iteration count of one agent run.
func (r *Registry) RecordIterations(n int) {
	r.agentIterations.Observe(float64(n))
}

// RecordToolCall records a tool invocation.
func (r *Registry) RecordToolCall(tool, status string) {
	r.toolCallsTotal.WithLabelValues(tool, status).Inc()
}

// RecordReasoningFallback records a turn degraded to a single-shot response.
func (r *Registry) RecordReasoningFallback() {
	r.reasoningFallbacks.Inc()
}

// RecordProviderRequest records one upstream provider request.
func (r *Registry) RecordProviderRequest(provider, op, status string) {
	r.providerRequestsTotal.WithLabelValues(provider, op, status).Inc()
}

// RecordProviderFallback records a fall-through to a secondary provider.
func (r *Registry) RecordProviderFallback(op string) {
	r.providerFallbacksTotal.WithLabelValues(op).Inc()
}

// RecordSummarization records a memory collapse.
func (r *Registry) RecordSummarization() {
	r.summarizationsTotal.Inc()
}

// ObserveLLMRequest records an LLM request duration.
func (r *Registry) ObserveLLMRequest(provider string, duration float64) {
	r.llmRequestDuration.WithLabelValues(provider).Observe(duration)
}
