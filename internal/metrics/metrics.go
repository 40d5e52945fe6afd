package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CheckIns counts check-in attempts by target status and outcome.
	CheckIns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pjkr",
		Name:      "checkins_total",
		Help:      "Check-in attempts by status name and outcome.",
	}, []string{"status", "outcome"})

	// TemplateOps counts status template operations and the rows they touched.
	TemplateOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pjkr",
		Name:      "status_template_ops_total",
		Help:      "Status template operations by kind and result.",
	}, []string{"op", "result"})

	TemplateRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pjkr",
		Name:      "status_template_rows_total",
		Help:      "Status rows written by bulk template operations.",
	}, []string{"op"})

	// Registrations counts participant registrations and bus reassignments.
	Registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pjkr",
		Name:      "registrations_total",
		Help:      "Registrations and bus assignments by result.",
	}, []string{"kind", "result"})
)
