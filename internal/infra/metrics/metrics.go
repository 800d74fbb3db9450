package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APIRequests tracks Discord REST requests by HTTP method and outcome.
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guildctl_api_requests_total",
			Help: "Total number of Discord API requests",
		},
		[]string{"method", "outcome"},
	)

	// RateLimits tracks 429 responses from the API.
	RateLimits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "guildctl_rate_limited_total",
			Help: "Total number of rate-limited API responses",
		},
	)

	// RetrySleeps tracks backoff sleeps performed by the retry executor.
	RetrySleeps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "guildctl_retry_sleeps_total",
			Help: "Total number of backoff sleeps before retrying",
		},
	)

	// ServersProvisioned tracks successfully provisioned servers.
	ServersProvisioned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "guildctl_servers_provisioned_total",
			Help: "Total number of servers provisioned",
		},
	)

	// GatewayEvents tracks dispatched gateway events by type.
	GatewayEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guildctl_gateway_events_total",
			Help: "Total number of gateway events dispatched",
		},
		[]string{"type"},
	)
)
