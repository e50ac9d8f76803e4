// Package duplex provides the ordered, reliable, bidirectional message
// stream the session layer runs over. It defines the Stream interface with
// half-close semantics, a websocket-backed implementation for both the
// dialing and accepting side, and an in-memory pipe used in tests.
package duplex
