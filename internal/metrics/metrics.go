// Package metrics handles Prometheus metrics initialization and system monitoring.
package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/sirupsen/logrus"
)

var log = logrus.New()

// SetLogger replaces the package-level logger.
func SetLogger(l *logrus.Logger) { log = l }

// Prometheus metrics - exported for use by other packages.
var (
	UploadDuration      prometheus.Histogram
	UploadErrorsTotal   prometheus.Counter
	UploadsTotal        prometheus.Counter
	DownloadDuration    prometheus.Histogram
	DownloadsTotal      prometheus.Counter
	DownloadErrorsTotal prometheus.Counter
	MemoryUsage         prometheus.Gauge
	CpuUsage            prometheus.Gauge
	Goroutines          prometheus.Gauge
	RequestsTotal       *prometheus.CounterVec
	UploadSizeBytes     prometheus.Histogram
	DownloadSizeBytes   prometheus.Histogram

	AuthSuccessTotal  prometheus.Counter
	AuthFailuresTotal prometheus.Counter
	ActiveSessions    prometheus.Gauge

	RealtimeConnections    prometheus.Gauge
	NotificationsSentTotal prometheus.Counter
	ConnectionsReapedTotal prometheus.Counter

	SharesTotal       prometheus.Counter
	DeletionsTotal    prometheus.Counter
	CompressionsTotal prometheus.Counter
	CompressionErrors prometheus.Counter
)

// InitMetrics registers all Prometheus metrics.
func InitMetrics() {
	UploadDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "upload_duration_seconds",
		Help:    "Duration of file uploads in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	UploadErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "upload_errors_total",
		Help: "Total number of upload errors.",
	})
	UploadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "uploads_total",
		Help: "Total number of successful uploads.",
	})
	DownloadDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "download_duration_seconds",
		Help:    "Duration of file downloads in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	DownloadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "downloads_total",
		Help: "Total number of successful downloads.",
	})
	DownloadErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "download_errors_total",
		Help: "Total number of download errors.",
	})
	MemoryUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "memory_usage_bytes",
		Help: "Current memory usage in bytes.",
	})
	CpuUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cpu_usage_percent",
		Help: "Current CPU usage percentage.",
	})
	Goroutines = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "goroutines",
		Help: "Number of running goroutines.",
	})
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "requests_total",
		Help: "Total number of HTTP requests.",
	}, []string{"method", "path"})
	UploadSizeBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "upload_size_bytes",
		Help:    "Size of uploaded files in bytes.",
		Buckets: prometheus.ExponentialBuckets(1024, 2, 20),
	})
	DownloadSizeBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "download_size_bytes",
		Help:    "Size of downloaded files in bytes.",
		Buckets: prometheus.ExponentialBuckets(1024, 2, 20),
	})
	AuthSuccessTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_success_total",
		Help: "Total number of successful authentications.",
	})
	AuthFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_failures_total",
		Help: "Total number of failed authentications.",
	})
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "active_sessions",
		Help: "Number of live (unexpired) sessions.",
	})
	RealtimeConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_connections",
		Help: "Number of registered realtime connections.",
	})
	NotificationsSentTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "Total number of notifications delivered.",
	})
	ConnectionsReapedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "connections_reaped_total",
		Help: "Total number of dead realtime connections reaped.",
	})
	SharesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shares_total",
		Help: "Total number of files shared into the shared pool.",
	})
	DeletionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "deletions_total",
		Help: "Total number of files deleted.",
	})
	CompressionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "compressions_total",
		Help: "Total number of successful archive creations.",
	})
	CompressionErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "compression_errors_total",
		Help: "Total number of failed archive creations.",
	})

	prometheus.MustRegister(
		UploadDuration,
		UploadErrorsTotal,
		UploadsTotal,
		DownloadDuration,
		DownloadsTotal,
		DownloadErrorsTotal,
		MemoryUsage,
		CpuUsage,
		Goroutines,
		RequestsTotal,
		UploadSizeBytes,
		DownloadSizeBytes,
		AuthSuccessTotal,
		AuthFailuresTotal,
		ActiveSessions,
		RealtimeConnections,
		NotificationsSentTotal,
		ConnectionsReapedTotal,
		SharesTotal,
		DeletionsTotal,
		CompressionsTotal,
		CompressionErrors,
	)

	log.Info("Prometheus metrics initialized")
}

// UpdateSystemMetrics updates memory, CPU, and goroutine metrics.
func UpdateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	MemoryUsage.Set(float64(m.Alloc))
	Goroutines.Set(float64(runtime.NumGoroutine()))

	cpuPercent, err := cpu.Percent(time.Second, false)
	if err == nil && len(cpuPercent) > 0 {
		CpuUsage.Set(cpuPercent[0])
	}
}
