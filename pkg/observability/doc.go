/*
Package observability turns runner lifecycle events into metrics and logs.

Metrics exports Prometheus counters and histograms for executed, skipped and
failed steps and for evaluated expectations. LogHooks writes one structured
record per event. Both return domain.LifecycleHooks that can be merged and
passed to runner.WithHooks.
*/
package observability
