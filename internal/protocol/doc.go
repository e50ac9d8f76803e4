// Package protocol defines the session message envelope exchanged between
// initiator and responder. It implements the tagged-union wire format with
// JSON encoding, envelope validation, and the error codes surfaced to peers.
package protocol
