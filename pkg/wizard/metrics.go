package wizard

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WizardEvents tracks dispatched events by outcome
	WizardEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_wizard_events_total",
			Help: "Total number of booking wizard events",
		},
		[]string{"event", "result"}, // result: "ok", "error"
	)

	// WizardTransitions tracks step changes
	WizardTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_wizard_transitions_total",
			Help: "Total number of booking wizard step transitions",
		},
		[]string{"from", "to"},
	)
)
