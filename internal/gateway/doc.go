// Package gateway assembles the solace service: the SQLite store, the
// model client, the chat and diary services, the analysis worker pool,
// and the HTTP API, with one Run call that blocks until shutdown.
package gateway
