package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "whale"

var (
	// Ticks counts completed update-loop iterations.
	Ticks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "update_ticks_total",
		Help:      "Total number of update ticks run by the game thread.",
	})

	// Frames counts completed render ticks.
	Frames = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "render_frames_total",
		Help:      "Total number of render ticks run by the render thread.",
	})

	CallbacksInvoked = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "callbacks_invoked_total",
		Help:      "Total number of per-tick callback invocations.",
	}, []string{"thread"})

	EventsDelivered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_delivered_total",
		Help:      "Total number of events drained and routed to handlers.",
	}, []string{"thread"})

	// CallbacksRegistered is the live callback count of each thread after its
	// latest flush.
	CallbacksRegistered = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "callbacks_registered",
		Help:      "Number of live per-tick callbacks.",
	}, []string{"thread"})

	TasksRun = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_run_total",
		Help:      "Total number of one-shot tasks executed.",
	}, []string{"thread"})

	// UnknownRemovals counts removals of an index that was not live at flush.
	UnknownRemovals = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "unknown_callback_removals_total",
		Help:      "Total number of removals that matched no live entry.",
	}, []string{"list"})

	LifecycleStage = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "lifecycle_stage",
		Help:      "Ordinal of the current lifecycle stage.",
	})
)

// Registry holds every engine collector. It is separate from the default
// registerer so tests and embedders can scrape only engine metrics.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		Ticks,
		Frames,
		CallbacksInvoked,
		CallbacksRegistered,
		EventsDelivered,
		TasksRun,
		UnknownRemovals,
		LifecycleStage,
	)
}
