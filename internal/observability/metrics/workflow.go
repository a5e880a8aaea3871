package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Workflow counts indicator value transitions for scraping.
type Workflow struct {
	transitions *prometheus.CounterVec
}

// NewWorkflow registers the workflow collectors on reg. A nil registerer uses
// the default prometheus registry.
func NewWorkflow(reg prometheus.Registerer) *Workflow {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "energyscope",
		Name:      "indicator_value_transitions_total",
		Help:      "Indicator value workflow transitions by action and resulting status.",
	}, []string{"action", "status"})

	if err := reg.Register(transitions); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			transitions = already.ExistingCollector.(*prometheus.CounterVec)
		} else {
			panic(err)
		}
	}
	return &Workflow{transitions: transitions}
}

// ProvideWorkflow wires the collectors on the default registry.
func ProvideWorkflow() *Workflow {
	return NewWorkflow(prometheus.DefaultRegisterer)
}

// Transition counts one transition.
func (w *Workflow) Transition(action, status string) {
	if w == nil {
		return
	}
	w.transitions.WithLabelValues(strings.TrimSpace(action), strings.TrimSpace(status)).Inc()
}
