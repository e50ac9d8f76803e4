// Package session implements both ends of a streaming synthesis session.
//
// RelaySession is the responder-side state machine: it validates the
// opening config, forwards text fragments to the synthesis provider, and
// relays audio chunks back until the provider finishes. StreamingSession
// is the initiator-side driver: it sends the config and text, and routes
// inbound audio either to a bounded playback buffer or to a raw file.
//
// Failures are reported as *Error values carrying a Kind that identifies
// the failing subsystem.
package session
