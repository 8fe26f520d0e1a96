package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

var (
	pledgesCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "founder_pass_pledges_created_total",
			Help: "Pledge creation attempts partitioned by outcome",
		},
		[]string{"outcome"},
	)

	pledgesCancelledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "founder_pass_pledges_cancelled_total",
			Help: "Pledge cancellation attempts partitioned by outcome",
		},
		[]string{"outcome"},
	)

	// Compensating actions run after a failed counter adjustment
	compensationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "founder_pass_compensations_total",
			Help: "Compensating actions partitioned by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	thresholdEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "founder_pass_threshold_events_total",
			Help: "Seat goal side effects partitioned by step and outcome",
		},
		[]string{"step", "outcome"},
	)

	vaultSeatsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "founder_pass_vault_seats",
			Help: "Reserved seats as last observed by this process",
		},
	)

	vaultPledgesGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "founder_pass_vault_pledges",
			Help: "Active pledges as last observed by this process",
		},
	)

	vaultDriftTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "founder_pass_vault_drift_detected_total",
			Help: "Reconciliation runs that found the aggregate out of sync",
		},
	)
)

func outcome(err error) string {
	if err != nil {
		return outcomeFailure
	}
	return outcomeSuccess
}

func observeVaultTotals(pledges, seats int64) {
	vaultPledgesGauge.Set(float64(pledges))
	vaultSeatsGauge.Set(float64(seats))
}
