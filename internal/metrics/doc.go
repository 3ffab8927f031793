// Package metrics records viewer protocol counters in a private Prometheus
// registry and optionally exposes them over HTTP.
package metrics
