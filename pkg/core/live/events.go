package live

import "context"

// ServerEvent is one inbound message from the remote service. A single event
// may carry any combination of fields; the session processes them in a fixed
// order (interrupted before audio, so stale playback stops before new audio
// is queued).
type ServerEvent struct {
	// InputTranscription is partial speech-to-text of the user's audio.
	InputTranscription string
	// OutputTranscription is partial text of the model's spoken reply.
	OutputTranscription string
	// TurnComplete marks the end of a user/model exchange.
	TurnComplete bool
	// Interrupted signals the user spoke over playing model audio.
	Interrupted bool
	// Audio is a raw PCM wire chunk of synthesized speech, already
	// base64-unwrapped by the transport.
	Audio []byte
	// Err is a terminal protocol error. The transport closes Events after
	// delivering one.
	Err error
}

// Transport is one open bidirectional streaming connection to the remote
// service. Implementations deliver inbound events strictly in arrival order
// and close the Events channel when the remote ends the stream.
type Transport interface {
	// SendAudio forwards one PCM frame as a realtime media message.
	SendAudio(pcm []byte) error
	// SendText sends a realtime text message (used once, for the synthetic
	// start trigger).
	SendText(text string) error
	// Events returns the inbound event stream. Closed on remote close or
	// after a terminal Err event.
	Events() <-chan ServerEvent
	// Close tears the connection down. Idempotent.
	Close() error
}

// SetupParams configures the remote session at open time.
type SetupParams struct {
	Model             string
	SystemInstruction string
}

// ConnectFunc opens a Transport. Provided by a provider package such as
// geminilive.
type ConnectFunc func(ctx context.Context, params SetupParams) (Transport, error)

// Source is a live microphone stream. Read blocks until the next fixed-size
// block of mono float samples is available and returns io.EOF after Close.
// Acquisition is permission-gated; acquisition functions fail with an error
// wrapping ErrPermissionDenied when the device is refused.
type Source interface {
	Read() ([]float32, error)
	Close() error
}

// SourceFunc acquires a microphone Source. Provided by the host environment.
type SourceFunc func(ctx context.Context) (Source, error)
