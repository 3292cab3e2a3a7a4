// internal/pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReferralsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "referrals_created_total",
			Help: "Total number of referrals created",
		},
	)

	Approvals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_approvals_total",
			Help: "Total number of referral approval attempts",
		},
		[]string{"result"},
	)

	Reassignments = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "referral_reassignments_total",
			Help: "Total number of referral reassignments",
		},
	)

	Closed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referrals_closed_total",
			Help: "Total number of referrals closed",
		},
		[]string{"outcome"},
	)

	CapacityConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "capacity_conflicts_total",
			Help: "Total number of approvals rejected because the rancher was at capacity",
		},
	)
)
