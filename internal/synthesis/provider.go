package synthesis

import (
	"context"
)

// Request contains the parameters for one streaming synthesis exchange.
// They are fixed for the lifetime of the stream.
type Request struct {
	VoiceID      string
	ModelID      string
	OutputFormat string
}

// AudioStream is a pull-based sequence of synthesized audio chunks.
// Next blocks until a chunk is available and returns io.EOF once the
// provider has finished; any other error is terminal for the stream.
type AudioStream interface {
	Next() ([]byte, error)
	Close() error
}

// Provider converts a lazy sequence of text fragments into a lazy sequence
// of audio chunks. Consumption of text and production of audio overlap in
// time: audio may arrive before the text channel is exhausted. Closing the
// text channel signals end of input; the provider then drains whatever audio
// is still in flight.
type Provider interface {
	Synthesize(ctx context.Context, req Request, text <-chan string) (AudioStream, error)
}
