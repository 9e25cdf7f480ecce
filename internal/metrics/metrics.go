package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	workflowKind = "workflow_kind"
	activityName = "activity_name"
	errorKind    = "error_kind"
	status       = "status"
)

var (
	// EngineSteps counts replay-and-step iterations per workflow kind.
	EngineSteps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "loom_engine_steps_total",
		Help: "Number of replay and step iterations",
	}, []string{workflowKind})

	// ActivityLatency is how long a single activity attempt takes.
	ActivityLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "loom_activity_latency_seconds",
		Help:    "Latency of activity attempts in seconds",
		Buckets: []float64{0.01, 0.1, 1, 5, 10, 60, 300},
	}, []string{workflowKind, activityName})

	// ActivityErrors counts failed activity attempts by error kind.
	ActivityErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "loom_activity_error_count",
		Help: "Number of failed activity attempts",
	}, []string{workflowKind, activityName, errorKind})

	// FanOutSize observes the number of calls per fan-out set.
	FanOutSize = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "loom_fanout_size",
		Help:    "Number of activity calls per fan-out set",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
	}, []string{workflowKind})

	// InstancesTerminal counts instances reaching a terminal status.
	InstancesTerminal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "loom_instances_terminal_total",
		Help: "Number of instances reaching a terminal status",
	}, []string{workflowKind, status})
)

func init() {
	prometheus.MustRegister(
		EngineSteps,
		ActivityLatency,
		ActivityErrors,
		FanOutSize,
		InstancesTerminal,
	)
}

func Reset() {
	EngineSteps.Reset()
	ActivityLatency.Reset()
	ActivityErrors.Reset()
	FanOutSize.Reset()
	InstancesTerminal.Reset()
}
