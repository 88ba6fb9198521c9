package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_fetch_cache_hits_total",
		Help: "Fetches answered from the asset cache after a network failure",
	})

	fetchCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_fetch_cache_misses_total",
		Help: "Offline fetches with no cached copy available",
	})

	fetchNetworkOK = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_fetch_network_total",
		Help: "Fetches served from the upstream network",
	})

	offlineFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_offline_fallbacks_total",
		Help: "Navigation requests answered with the offline page",
	})

	pushDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_push_deliveries_total",
			Help: "Push deliveries by outcome",
		},
		[]string{"outcome"},
	)
)
