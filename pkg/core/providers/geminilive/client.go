// Package geminilive implements the session transport against the Gemini
// BidiGenerateContent realtime websocket API.
package geminilive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vyakaran/tutorlive/pkg/core/audio"
	"github.com/vyakaran/tutorlive/pkg/core/live"
)

const (
	// DefaultBaseURL is the BidiGenerateContent websocket endpoint.
	DefaultBaseURL = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	inputMIMEType = "audio/pcm;rate=16000"

	defaultHandshakeTimeout = 15 * time.Second
	writeTimeout            = 5 * time.Second
	eventBuffer             = 32
)

// Config configures the transport dialer.
type Config struct {
	// APIKey authenticates against the Gemini API. Required.
	APIKey string

	// BaseURL overrides DefaultBaseURL, for tests and proxies.
	BaseURL string

	// HandshakeTimeout bounds the dial plus setup acknowledgment.
	HandshakeTimeout time.Duration

	// Dialer overrides the websocket dialer, for tests.
	Dialer *websocket.Dialer

	Logger *slog.Logger
}

// Connector returns a dial function suitable for live.Config.Connect.
func Connector(cfg Config) live.ConnectFunc {
	return func(ctx context.Context, params live.SetupParams) (live.Transport, error) {
		return Connect(ctx, cfg, params)
	}
}

// Connect dials the endpoint, sends the setup message, and waits for the
// server's setup acknowledgment before returning an open transport.
func Connect(ctx context.Context, cfg Config, params live.SetupParams) (live.Transport, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("geminilive: api key not valid (empty)")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("geminilive: parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("key", cfg.APIKey)
	u.RawQuery = q.Encode()

	dialer := cfg.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: timeout}
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, _, err := dialer.DialContext(dialCtx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("geminilive: dial: %w", err)
	}

	s := &Session{
		conn:   conn,
		logger: logger,
		events: make(chan live.ServerEvent, eventBuffer),
		done:   make(chan struct{}),
	}

	setup := clientMessage{Setup: &setupPayload{
		Model:                    modelPath(params.Model),
		GenerationConfig:         &generationConfig{ResponseModalities: []string{"AUDIO"}},
		InputAudioTranscription:  &struct{}{},
		OutputAudioTranscription: &struct{}{},
	}}
	if params.SystemInstruction != "" {
		setup.Setup.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: params.SystemInstruction}},
		}
	}
	if err := s.writeJSON(setup); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("geminilive: send setup: %w", err)
	}

	// The first server frame must acknowledge setup before any media flows.
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	var ack serverMessage
	if err := conn.ReadJSON(&ack); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("geminilive: await setup ack: %w", err)
	}
	if ack.Error != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("geminilive: setup rejected: %s", ack.Error.Message)
	}
	if ack.SetupComplete == nil {
		_ = conn.Close()
		return nil, fmt.Errorf("geminilive: unexpected first frame before setup ack")
	}
	_ = conn.SetReadDeadline(time.Time{})

	go s.readLoop()
	return s, nil
}

// modelPath normalizes a bare model id to the models/ resource form.
func modelPath(model string) string {
	if strings.HasPrefix(model, "models/") {
		return model
	}
	return "models/" + model
}

// Session is one open realtime connection. It implements live.Transport.
type Session struct {
	conn   *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex
	events  chan live.ServerEvent

	closeOnce sync.Once
	done      chan struct{}
}

// SendAudio forwards one PCM frame as a realtime media message.
func (s *Session) SendAudio(pcm []byte) error {
	return s.writeJSON(clientMessage{RealtimeInput: &realtimeInputPayload{
		Audio: &geminiBlob{MIMEType: inputMIMEType, Data: audio.EncodeBase64(pcm)},
	}})
}

// SendText sends a realtime text message.
func (s *Session) SendText(text string) error {
	return s.writeJSON(clientMessage{RealtimeInput: &realtimeInputPayload{Text: text}})
}

// Events returns the inbound event stream. Events arrive strictly in wire
// order; the channel closes on remote close or after a terminal error event.
func (s *Session) Events() <-chan live.ServerEvent {
	return s.events
}

// Close tears the connection down. Idempotent.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		deadline := time.Now().Add(writeTimeout)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = s.conn.Close()
	})
	return nil
}

func (s *Session) writeJSON(msg clientMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("geminilive: marshal: %w", err)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	select {
	case <-s.done:
		return fmt.Errorf("geminilive: connection closed")
	default:
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("geminilive: write: %w", err)
	}
	return nil
}

// readLoop delivers inbound messages in arrival order until the connection
// ends. A clean close just closes the event channel; anything else surfaces
// one terminal error event first.
func (s *Session) readLoop() {
	defer close(s.events)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			s.events <- live.ServerEvent{Err: fmt.Errorf("geminilive: read: %w", err)}
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn("skipping unparseable server frame", "err", err, "bytes", len(data))
			continue
		}

		if msg.Error != nil {
			s.events <- live.ServerEvent{Err: fmt.Errorf("geminilive: remote error %s: %s", msg.Error.Status, msg.Error.Message)}
			return
		}
		if msg.GoAway != nil {
			s.logger.Info("server announced shutdown", "time_left", msg.GoAway.TimeLeft)
			continue
		}
		if msg.ServerContent == nil {
			continue
		}

		ev, decodeErr := toServerEvent(msg.ServerContent)
		if decodeErr != nil {
			s.logger.Warn("dropping inline audio with bad base64", "err", decodeErr)
		}
		if !emptyEvent(ev) {
			s.events <- ev
		}
	}
}

func emptyEvent(ev live.ServerEvent) bool {
	return ev.InputTranscription == "" &&
		ev.OutputTranscription == "" &&
		!ev.TurnComplete &&
		!ev.Interrupted &&
		len(ev.Audio) == 0 &&
		ev.Err == nil
}

// toServerEvent flattens a serverContent frame into the session event shape.
// Inline audio is base64-unwrapped here; malformed base64 drops only the
// audio, never the rest of the frame.
func toServerEvent(sc *serverContent) (live.ServerEvent, error) {
	ev := live.ServerEvent{
		TurnComplete: sc.TurnComplete,
		Interrupted:  sc.Interrupted,
	}
	if sc.InputTranscription != nil {
		ev.InputTranscription = sc.InputTranscription.Text
	}
	if sc.OutputTranscription != nil {
		ev.OutputTranscription = sc.OutputTranscription.Text
	}

	var decodeErr error
	if sc.ModelTurn != nil {
		for _, part := range sc.ModelTurn.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			raw, err := audio.DecodeBase64(part.InlineData.Data)
			if err != nil {
				decodeErr = err
				continue
			}
			ev.Audio = append(ev.Audio, raw...)
		}
	}
	return ev, decodeErr
}
