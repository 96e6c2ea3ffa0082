package bus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bus_events_emitted_total",
		Help: "The total number of events emitted on the session bus",
	}, []string{"type"})
	eventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bus_events_received_total",
		Help: "The total number of events received from other sessions",
	}, []string{"type"})
	eventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bus_events_dropped_total",
		Help: "The total number of events dropped because the publish queue was full",
	})
	handlerPanics = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bus_handler_panics_total",
		Help: "The total number of panics recovered from event handlers",
	})
)
