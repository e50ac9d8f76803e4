package server

import (
	"context"
	"errors"
	"io"

	"github.com/wti806/elevenlabs-tts/internal/metrics"
	"github.com/wti806/elevenlabs-tts/internal/synthesis"
)

// instrumentedProvider wraps a synthesis provider with connection and
// chunk metrics. Relay sessions see it as a plain provider.
type instrumentedProvider struct {
	inner   synthesis.Provider
	metrics *metrics.Metrics
}

func (p *instrumentedProvider) Synthesize(ctx context.Context, req synthesis.Request, text <-chan string) (synthesis.AudioStream, error) {
	stream, err := p.inner.Synthesize(ctx, req, text)
	if err != nil {
		p.metrics.RecordProviderConnectError()
		return nil, err
	}
	p.metrics.RecordProviderConnect()
	return &instrumentedStream{inner: stream, metrics: p.metrics}, nil
}

type instrumentedStream struct {
	inner   synthesis.AudioStream
	metrics *metrics.Metrics
}

func (s *instrumentedStream) Next() ([]byte, error) {
	chunk, err := s.inner.Next()
	switch {
	case err == nil:
		if len(chunk) > 0 {
			s.metrics.RecordChunkRelayed(len(chunk))
		}
	case !errors.Is(err, io.EOF):
		s.metrics.RecordProviderStreamFailure()
	}
	return chunk, err
}

func (s *instrumentedStream) Close() error {
	return s.inner.Close()
}
