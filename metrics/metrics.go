package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	InstructionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vestledger_instructions_total",
			Help: "Total number of submitted instructions",
		},
		[]string{"program", "status"},
	)

	InstructionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vestledger_instruction_duration_seconds",
			Help:    "Duration of instruction execution including commit",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~0.8s
		},
		[]string{"program"},
	)

	SchedulesCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vestledger_schedules_created_total",
			Help: "Total number of vesting schedules created",
		},
	)

	ClaimsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vestledger_claims_total",
			Help: "Total number of claim attempts",
		},
		[]string{"status"},
	)

	ReleasedAmountTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vestledger_released_amount_total",
			Help: "Total amount released from custody vaults to beneficiaries",
		},
	)

	FeesCollectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vestledger_fees_collected_total",
			Help: "Total creation fees paid to fee destinations",
		},
	)
)
