// internal/app/system/metrics/metrics.go

// Package metrics exposes Prometheus counters for the identity core. Only
// outcomes are counted; no per-user labels.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthFlowOutcomes counts terminal dispatcher states, labeled by state
	// (redirecting, errored, timed_out) and path (already_authenticated,
	// code_exchange, token_install, no_data, provider_error).
	AuthFlowOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tournhub",
		Subsystem: "authflow",
		Name:      "outcomes_total",
		Help:      "Terminal auth callback dispatcher outcomes.",
	}, []string{"state", "path"})

	// AuthFlowRetries counts whole-dispatch retries after aborted requests.
	AuthFlowRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tournhub",
		Subsystem: "authflow",
		Name:      "retries_total",
		Help:      "Auth dispatch retries triggered by aborted requests.",
	})

	// InviteRedemptions counts invitation redemption attempts by result
	// (ok, exhausted, expired, duplicate, forbidden).
	InviteRedemptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tournhub",
		Subsystem: "invites",
		Name:      "redemptions_total",
		Help:      "Invitation redemption attempts by result.",
	}, []string{"result"})

	// OwnershipTransfers counts transfer outcomes (ok, forbidden, partial,
	// repaired).
	OwnershipTransfers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tournhub",
		Subsystem: "memberships",
		Name:      "ownership_transfers_total",
		Help:      "Ownership transfer outcomes.",
	}, []string{"result"})

	// AccountMerges counts merge attempts by result (ok, partial, failed).
	AccountMerges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tournhub",
		Subsystem: "accountmerge",
		Name:      "merges_total",
		Help:      "Guest account merge attempts by result.",
	}, []string{"result"})
)
