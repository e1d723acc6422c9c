// Package metrics holds the Prometheus collectors shared by the API server,
// the content service client and the transcripts CLI.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sourcing"

// Label values for Status
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

func counter(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func histogram(subsystem, name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}, labels)
}

var (
	HTTPRequestsTotal   = counter("http", "requests_total", "Requests served by the content API.", "method", "endpoint", "status")
	HTTPRequestDuration = histogram("http", "request_duration_seconds", "Content API latency.", prometheus.DefBuckets, "method", "endpoint")

	ClientCallsTotal   = counter("client", "calls_total", "Calls made to the content service.", "operation", "status")
	ClientCallDuration = histogram("client", "call_duration_seconds", "Content service call latency.", prometheus.DefBuckets, "operation")

	TranscriptCommitsTotal   = counter("transcript", "commits_total", "Transcript commits by outcome.", "status")
	TranscriptBranchesTotal  = counter("transcript", "branches_total", "Per-language commit branches by kind and outcome.", "branch", "status")
	TranscriptCommitDuration = histogram("transcript", "commit_duration_seconds", "Wall time of a transcript commit.",
		prometheus.ExponentialBuckets(0.05, 2, 12))

	// 1KiB up to 16MiB
	BlobUploadSizeBytes = histogram("blob", "upload_size_bytes", "Transcript files uploaded to blob storage.",
		prometheus.ExponentialBuckets(1024, 4, 8))

	StorageOperationsTotal   = counter("storage", "operations_total", "Object storage operations.", "operation", "status")
	StorageOperationDuration = histogram("storage", "operation_duration_seconds", "Object storage latency.", prometheus.DefBuckets, "operation")

	DatabaseOperationsTotal   = counter("database", "operations_total", "Repository queries.", "operation", "status")
	DatabaseOperationDuration = histogram("database", "operation_duration_seconds", "Repository query latency.",
		[]float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1}, "operation")

	CacheAccessTotal = counter("cache", "access_total", "Cache lookups by result (hit or miss).", "cache_type", "result")

	ErrorsTotal = counter("", "errors_total", "Errors by component.", "component", "error_type")
)

func RecordHTTPRequest(method, endpoint, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

func RecordClientCall(operation, status string, duration float64) {
	ClientCallsTotal.WithLabelValues(operation, status).Inc()
	ClientCallDuration.WithLabelValues(operation).Observe(duration)
}

// RecordTranscriptCommit records the outcome and duration of a whole commit
func RecordTranscriptCommit(status string, duration float64) {
	TranscriptCommitsTotal.WithLabelValues(status).Inc()
	TranscriptCommitDuration.WithLabelValues().Observe(duration)
}

// RecordTranscriptBranch records one language's branch: upload or language_only
func RecordTranscriptBranch(branch, status string) {
	TranscriptBranchesTotal.WithLabelValues(branch, status).Inc()
}

func RecordBlobUpload(size int64) {
	BlobUploadSizeBytes.WithLabelValues().Observe(float64(size))
}

func RecordStorageOperation(operation, status string, duration float64) {
	StorageOperationsTotal.WithLabelValues(operation, status).Inc()
	StorageOperationDuration.WithLabelValues(operation).Observe(duration)
}

func RecordDatabaseOperation(operation, status string, duration float64) {
	DatabaseOperationsTotal.WithLabelValues(operation, status).Inc()
	DatabaseOperationDuration.WithLabelValues(operation).Observe(duration)
}

func RecordCacheAccess(cacheType string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheAccessTotal.WithLabelValues(cacheType, result).Inc()
}

func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// Status maps an error to a status label
func Status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}
