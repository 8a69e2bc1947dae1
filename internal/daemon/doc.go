// Package daemon hosts the long-running lbfeed process.
//
// A Daemon takes the data-directory lock, starts the single resolver worker,
// and serves the HTTP API that turns feed requests into resolver batches. The
// lock guarantees one resolver, and therefore one rate-limited stream of
// metadata calls, per release store. CLI maintenance commands take the same
// lock and refuse to run while a daemon holds it.
//
// HTTP surface:
//
//	GET /feed?user=<name>&days=<n>   RSS 2.0 document
//	GET /healthz                     JSON runtime status
//	GET /metrics                     Prometheus exposition
package daemon
