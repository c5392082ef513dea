package common

import (
	"io"

	"github.com/VictoriaMetrics/metrics"
)

// --------------------------------------------------------------------------
// Client Metrics
// --------------------------------------------------------------------------

// Package-level counters for client-side observability. Registered in the
// default metrics set and exposed via WriteMetrics.
var (
	// Discovery

	DiscoveryRefreshOK     = metrics.NewCounter(`cachelink_discovery_refresh_total{result="ok"}`)
	DiscoveryRefreshFailed = metrics.NewCounter(`cachelink_discovery_refresh_total{result="error"}`)
	DiscoveryGeneration    = metrics.NewCounter(`cachelink_discovery_generation`)

	// Unary transport

	ConnectionsOpened = metrics.NewCounter(`cachelink_connections_opened_total`)
	ConnectionsFailed = metrics.NewCounter(`cachelink_connections_failed_total`)
	UnaryRequests     = metrics.NewHistogram(`cachelink_unary_request_duration_seconds`)

	// Streaming

	StreamResubscribes      = metrics.NewCounter(`cachelink_stream_resubscribes_total`)
	StreamMalformedItems    = metrics.NewCounter(`cachelink_stream_malformed_items_total`)
	StreamAdmissionRejected = metrics.NewCounter(`cachelink_stream_admission_rejected_total`)
)

// WriteMetrics writes all client metrics in Prometheus text format.
func WriteMetrics(w io.Writer) {
	metrics.WritePrometheus(w, false)
}
