package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "contacts_auth"

var (
	IdentityCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identity_cache_lookups_total",
			Help:      "Identity cache lookups by result",
		},
		[]string{"result"}, // hit, miss
	)

	IdentityCacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identity_cache_invalidations_total",
			Help:      "Identity cache invalidations by result",
		},
		[]string{"result"}, // ok, error
	)

	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Total number of login attempts",
		},
		[]string{"status"}, // success, invalid_credentials, error
	)

	MailDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mail_deliveries_total",
			Help:      "Outbound mail jobs by outcome",
		},
		[]string{"status"}, // sent, retried, failed, dropped
	)

	ConsumedTokensPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consumed_tokens_purged_total",
			Help:      "Expired consumed reset-token records removed by the janitor",
		},
	)
)
