// Package server implements the websocket endpoint that accepts duplex
// streaming sessions and the HTTP monitoring surface. It bounds session
// concurrency, runs one relay session per connection, and exposes
// health, stats and Prometheus metrics endpoints.
package server
