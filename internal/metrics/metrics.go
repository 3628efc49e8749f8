// Package metrics holds the Prometheus collectors for the notice board.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "noticeboard_http_requests_total",
			Help: "Total HTTP requests by route and status.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "noticeboard_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// PlaylistItems is the number of items in the current playlist.
	PlaylistItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "noticeboard_playlist_items",
		Help: "Items currently in the playlist.",
	})

	// PlaylistWrites counts playlist mutations by operation and result.
	PlaylistWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "noticeboard_playlist_writes_total",
			Help: "Playlist mutations by operation and result.",
		},
		[]string{"op", "result"},
	)

	// UploadedBytes counts bytes accepted into the blob store.
	UploadedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "noticeboard_uploaded_bytes_total",
		Help: "Bytes of media accepted by uploads.",
	})

	// Notifications counts change events handed to the notification bus.
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "noticeboard_notifications_total",
			Help: "Change notifications by result.",
		},
		[]string{"result"},
	)
)

// RegisterViewers exposes the live viewer count. Call once per process.
func RegisterViewers(count func() int) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "noticeboard_viewers",
			Help: "Connected display clients.",
		},
		func() float64 { return float64(count()) },
	))
}

// Middleware records request count and latency. Routes are labelled by
// their pattern so ids do not explode cardinality.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the Prometheus exposition format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// Result labels an outcome for the counters above.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
