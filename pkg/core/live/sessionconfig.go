package live

import (
	"log/slog"
	"net"
	"time"
)

const (
	// DefaultModel is the realtime speech model spoken to by default.
	DefaultModel = "gemini-2.5-flash-native-audio-preview-09-2025"

	// DefaultSilenceAfter is how long user transcription must stay quiet
	// before the session decides the student finished speaking.
	DefaultSilenceAfter = 1200 * time.Millisecond

	reachabilityAddr    = "generativelanguage.googleapis.com:443"
	reachabilityTimeout = 3 * time.Second
)

// Config wires a Session to its collaborators. Connect, Mic, and Sink are
// required; everything else has defaults.
type Config struct {
	// Connect opens the remote transport.
	Connect ConnectFunc

	// Mic acquires the microphone source. Permission failures must wrap
	// ErrPermissionDenied.
	Mic SourceFunc

	// Sink plays decoded model audio.
	Sink Sink

	// Consumer receives state snapshots. Called from the session's event
	// loop; implementations must return quickly. Nil disables projection.
	Consumer Consumer

	// Online reports network reachability, checked synchronously before any
	// transport dial. Nil uses a TCP probe of the remote endpoint.
	Online func() bool

	// Model overrides DefaultModel.
	Model string

	// SilenceAfter overrides DefaultSilenceAfter.
	SilenceAfter time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time

	Logger *slog.Logger
}

func (c *Config) withDefaults() Config {
	cfg := *c
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.SilenceAfter <= 0 {
		cfg.SilenceAfter = DefaultSilenceAfter
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Online == nil {
		cfg.Online = probeReachability
	}
	return cfg
}

func probeReachability() bool {
	conn, err := net.DialTimeout("tcp", reachabilityAddr, reachabilityTimeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
