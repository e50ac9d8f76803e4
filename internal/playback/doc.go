// Package playback implements the initiator's audio consumption pipeline:
// a bounded FIFO queue with an end-of-stream sentinel, the blocking audio
// sink abstraction with a PortAudio device implementation, the dedicated
// consumer loop, and the shared stop signal used for cooperative shutdown.
package playback
