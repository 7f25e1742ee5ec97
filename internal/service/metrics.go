package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checkoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_checkouts_total",
			Help: "Checkout attempts by outcome",
		},
		[]string{"result"},
	)

	checkoutDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pos_checkout_duration_seconds",
			Help:    "Time spent submitting a sale to the POS API",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20},
		},
	)

	skuCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_sku_cache_lookups_total",
			Help: "SKU lookups by cache outcome",
		},
		[]string{"outcome"},
	)
)

// Checkout result labels.
const (
	resultSucceeded = "succeeded"
	resultFailed    = "failed"
	resultRejected  = "rejected"
)
