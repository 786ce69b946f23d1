// Package prometheus renders engine metrics in the Prometheus text
// exposition format.
//
// Counters are named wanderauth_*_total. The bootstrap latency histogram is
// wanderauth_bootstrap_latency_seconds and is only populated when latency
// histograms are enabled. Nothing is registered globally; callers mount
// [PrometheusExporter.Handler] themselves.
package prometheus
