package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// scenesProcessed tracks scenes materialized per sensor
	scenesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canopy_scenes_processed_total",
			Help: "Total number of catalog scenes materialized",
		},
		[]string{"sensor"},
	)

	// productsBuilt tracks finished product images
	productsBuilt = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canopy_products_built_total",
			Help: "Total number of product images built",
		},
		[]string{"sensor", "variable"},
	)

	// productBuildDuration tracks end-to-end product build latency
	productBuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "canopy_product_build_duration_seconds",
			Help:    "Product image build duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"sensor", "variable"},
	)

	// samplesWritten tracks sample rows written to the warehouse
	samplesWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canopy_samples_written_total",
			Help: "Total number of sample rows written",
		},
		[]string{"sensor", "variable"},
	)

	// shardsProcessed tracks shard task outcomes
	shardsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canopy_shards_total",
			Help: "Total number of processed job shards",
		},
		[]string{"kind", "status"},
	)

	// shardDuration tracks shard processing latency
	shardDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "canopy_shard_duration_seconds",
			Help:    "Shard processing duration in seconds",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"kind"},
	)

	// exportsProcessed tracks export task outcomes
	exportsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canopy_exports_total",
			Help: "Total number of processed exports",
		},
		[]string{"destination", "status"},
	)

	// tileFetchDuration tracks object store tile reads
	tileFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "canopy_tile_fetch_duration_seconds",
			Help:    "Tile payload fetch duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	// tileFetchErrors tracks failed tile reads
	tileFetchErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "canopy_tile_fetch_errors_total",
			Help: "Total number of failed tile payload fetches",
		},
	)
)

// RecordScene records one materialized scene
func RecordScene(sensor string) {
	scenesProcessed.WithLabelValues(sensor).Inc()
}

// RecordProduct records a finished product build
func RecordProduct(sensor, variable string, duration time.Duration) {
	productsBuilt.WithLabelValues(sensor, variable).Inc()
	productBuildDuration.WithLabelValues(sensor, variable).Observe(duration.Seconds())
}

// RecordSamples records sample rows written to the warehouse
func RecordSamples(sensor, variable string, count int) {
	samplesWritten.WithLabelValues(sensor, variable).Add(float64(count))
}

// RecordShard records a processed shard and its outcome
func RecordShard(kind, status string, duration time.Duration) {
	shardsProcessed.WithLabelValues(kind, status).Inc()
	shardDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordExport records a processed export and its outcome
func RecordExport(destination, status string) {
	exportsProcessed.WithLabelValues(destination, status).Inc()
}

// RecordTileFetch records a tile payload read
func RecordTileFetch(duration time.Duration, err error) {
	tileFetchDuration.Observe(duration.Seconds())
	if err != nil {
		tileFetchErrors.Inc()
	}
}
