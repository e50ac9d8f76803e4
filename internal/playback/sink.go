package playback

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gordonklaus/portaudio"
)

// Sink is the audio output device as the consumer loop sees it: a blocking
// byte writer with a reported output latency. Write may block for the
// duration of the written audio; it runs off the network path.
type Sink interface {
	Start() error
	Write(data []byte) error
	Latency() time.Duration
	Stop() error
	Close() error
}

// deviceBlockFrames is the number of frames written to the device per block.
const deviceBlockFrames = 2048

// DeviceSink plays PCM-16 little-endian audio on the default output device
// through PortAudio.
type DeviceSink struct {
	sampleRate int
	channels   int

	stream  *portaudio.Stream
	buf     []int16
	pending []byte
	started bool
	inited  bool
}

// NewDeviceSink creates a sink for the given PCM format.
func NewDeviceSink(sampleRate, channels int) *DeviceSink {
	return &DeviceSink{sampleRate: sampleRate, channels: channels}
}

// Start initializes PortAudio and opens the default output stream.
func (d *DeviceSink) Start() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize audio subsystem: %w", err)
	}
	d.inited = true

	d.buf = make([]int16, deviceBlockFrames*d.channels)
	stream, err := portaudio.OpenDefaultStream(0, d.channels, float64(d.sampleRate), deviceBlockFrames, &d.buf)
	if err != nil {
		return fmt.Errorf("failed to open output stream (%d Hz, %d ch): %w", d.sampleRate, d.channels, err)
	}
	d.stream = stream

	if err := stream.Start(); err != nil {
		return fmt.Errorf("failed to start output stream: %w", err)
	}
	d.started = true
	return nil
}

// Write plays the given PCM-16 bytes, blocking until the device has taken
// them. A trailing partial block is held back until more data arrives or
// Stop pads it out.
func (d *DeviceSink) Write(data []byte) error {
	if d.stream == nil {
		return fmt.Errorf("output stream not started")
	}

	d.pending = append(d.pending, data...)
	blockBytes := len(d.buf) * 2

	for len(d.pending) >= blockBytes {
		for i := range d.buf {
			d.buf[i] = int16(binary.LittleEndian.Uint16(d.pending[i*2:]))
		}
		d.pending = d.pending[blockBytes:]

		if err := d.stream.Write(); err != nil {
			return fmt.Errorf("failed to write to output stream: %w", err)
		}
	}
	return nil
}

// Latency returns the device's reported output latency.
func (d *DeviceSink) Latency() time.Duration {
	if d.stream == nil {
		return 0
	}
	return d.stream.Info().OutputLatency
}

// Stop flushes any held-back partial block padded with silence and stops
// the stream.
func (d *DeviceSink) Stop() error {
	if d.stream == nil || !d.started {
		return nil
	}

	if len(d.pending) > 0 {
		for i := range d.buf {
			d.buf[i] = 0
		}
		for i := 0; i*2+1 < len(d.pending); i++ {
			d.buf[i] = int16(binary.LittleEndian.Uint16(d.pending[i*2:]))
		}
		d.pending = nil
		if err := d.stream.Write(); err != nil {
			return fmt.Errorf("failed to flush output stream: %w", err)
		}
	}

	d.started = false
	if err := d.stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop output stream: %w", err)
	}
	return nil
}

// Close releases the stream and the audio subsystem.
func (d *DeviceSink) Close() error {
	var first error
	if d.stream != nil {
		if err := d.stream.Close(); err != nil && first == nil {
			first = fmt.Errorf("failed to close output stream: %w", err)
		}
		d.stream = nil
	}
	if d.inited {
		d.inited = false
		if err := portaudio.Terminate(); err != nil && first == nil {
			first = fmt.Errorf("failed to terminate audio subsystem: %w", err)
		}
	}
	return first
}

// ParseSampleRate extracts the sample rate from a raw PCM output format
// string such as "pcm_24000". The device sink interprets audio as 16-bit
// little-endian PCM, so compressed formats (ulaw, mp3, opus) are rejected
// here and must be written to a file instead.
func ParseSampleRate(outputFormat string) (int, error) {
	if !strings.HasPrefix(outputFormat, "pcm_") {
		return 0, fmt.Errorf("output format %q is not raw PCM", outputFormat)
	}
	idx := strings.LastIndex(outputFormat, "_")
	if idx == len(outputFormat)-1 {
		return 0, fmt.Errorf("output format %q has no sample rate suffix", outputFormat)
	}
	rate, err := strconv.Atoi(outputFormat[idx+1:])
	if err != nil || rate <= 0 {
		return 0, fmt.Errorf("output format %q has invalid sample rate suffix", outputFormat)
	}
	return rate, nil
}
