package services

import "github.com/prometheus/client_golang/prometheus"

var (
	admissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_admissions_total",
			Help: "Admission gate decisions by outcome",
		},
		[]string{"outcome"},
	)

	quotaReservationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_quota_reservations_total",
			Help: "Quota reservation attempts by outcome",
		},
		[]string{"outcome"},
	)

	quotaReleaseClampsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_quota_release_clamps_total",
			Help: "Releases that hit the zero floor, indicating accounting drift",
		},
	)

	compensationFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_compensation_failures_total",
			Help: "Compensating releases that themselves failed; requires manual reconciliation",
		},
	)
)

func init() {
	prometheus.MustRegister(admissionsTotal)
	prometheus.MustRegister(quotaReservationsTotal)
	prometheus.MustRegister(quotaReleaseClampsTotal)
	prometheus.MustRegister(compensationFailuresTotal)
}
