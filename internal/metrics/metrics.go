package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	BuildsStarted  prometheus.Counter
	BuildsFinished prometheus.Counter
	BuildsFailed   prometheus.Counter
	BuildsRejected prometheus.Counter // another build already held the lock

	PositionsProcessed prometheus.Counter
	VesselsCreated     prometheus.Counter
	TripsOpened        prometheus.Counter
	TripsClosed        prometheus.Counter

	BuildDuration prometheus.Histogram
	QueryDuration *prometheus.HistogramVec // endpoint label

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		BuildsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ais_builds_started_total",
			Help: "Total trip build runs started.",
		}),
		BuildsFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ais_builds_finished_total",
			Help: "Total trip build runs completed successfully.",
		}),
		BuildsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ais_builds_failed_total",
			Help: "Total trip build runs aborted with an error.",
		}),
		BuildsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ais_builds_rejected_total",
			Help: "Total build requests rejected because a build was already running.",
		}),
		PositionsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ais_positions_processed_total",
			Help: "Total raw positions consumed by the trip builder.",
		}),
		VesselsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ais_vessels_created_total",
			Help: "Total merchant vessels registered by the trip builder.",
		}),
		TripsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ais_trips_opened_total",
			Help: "Total trips opened.",
		}),
		TripsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ais_trips_closed_total",
			Help: "Total trips closed.",
		}),
		BuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ais_build_duration_seconds",
			Help:    "Duration of full trip build runs.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ais_query_duration_seconds",
			Help:    "Duration of aggregation queries.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}, []string{"endpoint"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ais_cache_hits_total",
			Help: "Total aggregation payloads served from Redis.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ais_cache_misses_total",
			Help: "Total aggregation payloads computed from Postgres.",
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ais_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ais_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ais_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
	}

	// Register
	reg.MustRegister(
		c.BuildsStarted, c.BuildsFinished, c.BuildsFailed, c.BuildsRejected,
		c.PositionsProcessed, c.VesselsCreated, c.TripsOpened, c.TripsClosed,
		c.BuildDuration, c.QueryDuration,
		c.CacheHits, c.CacheMisses,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected,
	)

	return c
}

// NATSSetConnected implements the publisher's metrics hook
func (c *Collector) NATSSetConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}

// NATSPublishedInc implements the publisher's metrics hook
func (c *Collector) NATSPublishedInc() { c.NATSPublished.Inc() }

// NATSPublishErrInc implements the publisher's metrics hook
func (c *Collector) NATSPublishErrInc() { c.NATSPublishErrs.Inc() }

// ObserveQuery records one aggregation query duration
func (c *Collector) ObserveQuery(endpoint string, d time.Duration) {
	c.QueryDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}
