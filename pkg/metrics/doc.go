// Package metrics exposes Prometheus counters for credential operations.
//
// Services depend on the Recorder interface; Collector is the Prometheus
// implementation and Noop discards everything. Labels carry operation names
// and outcome classes only, never user identifiers or secrets.
//
//	reg := prometheus.NewRegistry()
//	rec := metrics.NewCollector(reg)
//	r.Handle("/metrics", metrics.Handler(reg))
package metrics
