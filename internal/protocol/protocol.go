package protocol

import (
	"encoding/json"
	"fmt"
)

// Message types carried in the session envelope
const (
	// TypeConfig carries the session configuration. It must be the first
	// and only configuration message of a session.
	TypeConfig = "config"

	// TypeInput carries one text fragment from initiator to responder.
	TypeInput = "input"

	// TypeAudio carries one audio chunk from responder to initiator.
	TypeAudio = "audio"

	// TypeEOS signals that the sender will emit no further messages in
	// its direction. The opposite direction is unaffected.
	TypeEOS = "eos"

	// TypeError carries a terminal error to the peer before teardown.
	TypeError = "error"
)

// Error codes carried in an error envelope
const (
	CodeFailedPrecondition = "failed_precondition"
	CodeInternal           = "internal"
	CodeUnauthenticated    = "unauthenticated"
	CodeInvalidArgument    = "invalid_argument"
	CodeUnavailable        = "unavailable"
)

// SessionConfig contains the synthesis parameters for a session.
// Immutable once sent; exactly one config precedes any text/audio exchange.
type SessionConfig struct {
	VoiceID      string `json:"voice_id"`
	ModelID      string `json:"model_id"`
	OutputFormat string `json:"output_format"`
}

// TextFragment is one unit of synthesis input. Arrival order is the
// order of synthesis input.
type TextFragment struct {
	Text string `json:"text"`
}

// AudioChunk is one unit of synthesized audio. Non-empty by construction;
// arrival order on the wire is the required playback order.
type AudioChunk struct {
	Data []byte `json:"data"`
}

// ErrorDetail describes a terminal session error surfaced to the peer.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Message is the wire envelope: a tagged union where exactly one payload
// field matching Type is set. TypeEOS carries no payload.
type Message struct {
	Type   string         `json:"type"`
	Config *SessionConfig `json:"config,omitempty"`
	Input  *TextFragment  `json:"input,omitempty"`
	Audio  *AudioChunk    `json:"audio,omitempty"`
	Error  *ErrorDetail   `json:"error,omitempty"`
}

// NewConfigMessage builds a config envelope.
func NewConfigMessage(cfg SessionConfig) *Message {
	return &Message{Type: TypeConfig, Config: &cfg}
}

// NewInputMessage builds an input envelope for one text fragment.
func NewInputMessage(text string) *Message {
	return &Message{Type: TypeInput, Input: &TextFragment{Text: text}}
}

// NewAudioMessage builds an audio envelope. The chunk bytes are not copied.
func NewAudioMessage(data []byte) *Message {
	return &Message{Type: TypeAudio, Audio: &AudioChunk{Data: data}}
}

// NewEOSMessage builds a half-close envelope.
func NewEOSMessage() *Message {
	return &Message{Type: TypeEOS}
}

// NewErrorMessage builds a terminal error envelope.
func NewErrorMessage(code, message string) *Message {
	return &Message{Type: TypeError, Error: &ErrorDetail{Code: code, Message: message}}
}

// Encode serializes the message to its JSON wire form after validation.
func Encode(msg *Message) ([]byte, error) {
	if err := Validate(msg); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return data, nil
}

// Decode parses and validates a message from its JSON wire form.
func Decode(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}
	if err := Validate(&msg); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}
	return &msg, nil
}

// Validate checks the tagged-union invariant: a known type tag, the payload
// field matching the tag set, and all other payload fields unset.
func Validate(msg *Message) error {
	if msg == nil {
		return fmt.Errorf("message is nil")
	}

	var want string
	set := 0
	if msg.Config != nil {
		set++
		want = TypeConfig
	}
	if msg.Input != nil {
		set++
		want = TypeInput
	}
	if msg.Audio != nil {
		set++
		want = TypeAudio
	}
	if msg.Error != nil {
		set++
		want = TypeError
	}

	switch msg.Type {
	case TypeConfig, TypeInput, TypeAudio, TypeError:
		if set == 0 {
			return fmt.Errorf("message type %q has no payload", msg.Type)
		}
		if set > 1 {
			return fmt.Errorf("message has %d payload fields set, want exactly 1", set)
		}
		if want != msg.Type {
			return fmt.Errorf("message type %q does not match payload field %q", msg.Type, want)
		}
	case TypeEOS:
		if set != 0 {
			return fmt.Errorf("eos message must not carry a payload")
		}
	case "":
		return fmt.Errorf("message type is empty")
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}

	return nil
}

// Validate checks that all synthesis parameters are present.
func (c *SessionConfig) Validate() error {
	if c.VoiceID == "" {
		return fmt.Errorf("voice_id cannot be empty")
	}
	if c.ModelID == "" {
		return fmt.Errorf("model_id cannot be empty")
	}
	if c.OutputFormat == "" {
		return fmt.Errorf("output_format cannot be empty")
	}
	return nil
}

// String returns a human-readable representation of the message.
func (m *Message) String() string {
	switch m.Type {
	case TypeConfig:
		if m.Config != nil {
			return fmt.Sprintf("Message{Config voice=%q model=%q format=%q}",
				m.Config.VoiceID, m.Config.ModelID, m.Config.OutputFormat)
		}
	case TypeInput:
		if m.Input != nil {
			return fmt.Sprintf("Message{Input %q}", m.Input.Text)
		}
	case TypeAudio:
		if m.Audio != nil {
			return fmt.Sprintf("Message{Audio %d bytes}", len(m.Audio.Data))
		}
	case TypeEOS:
		return "Message{EOS}"
	case TypeError:
		if m.Error != nil {
			return fmt.Sprintf("Message{Error code=%q msg=%q}", m.Error.Code, m.Error.Message)
		}
	}
	return fmt.Sprintf("Message{type=%q}", m.Type)
}
