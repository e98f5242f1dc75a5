// Package metrics exposes Prometheus counters for merge outcomes and Emby
// request latency on a private registry served at /metrics.
package metrics
