// Package metrics exposes the relayer's Prometheus counters. They are
// registered on the default registry and served only when the watch command
// enables the metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesRelayed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayer_messages_relayed_total",
		Help: "Cross-chain messages successfully relayed to the destination chain.",
	})

	AttestationTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayer_attestation_timeouts_total",
		Help: "Attestation polls that exhausted their retry budget.",
	})

	SubmissionsConfirmed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayer_submissions_confirmed_total",
		Help: "Destination transactions mined with a success status.",
	})

	SubmissionsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayer_submissions_failed_total",
		Help: "Submissions that ended in a failed outcome, by reason class.",
	}, []string{"reason"})
)

// Reason classes for SubmissionsFailed. Free-form error text stays out of
// label values.
const (
	ReasonNullifierUsed = "nullifier_used"
	ReasonGasPrice      = "gas_price"
	ReasonReverted      = "reverted"
	ReasonEncoding      = "encoding"
	ReasonTransport     = "transport"
)
