package live

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vyakaran/tutorlive/pkg/core/audio"
)

// Session is the conversation state machine. It owns at most one live
// connection at a time; the active connection, the partial transcription
// accumulator, and the playback scheduler are mutated only behind the session
// mutex, with all inbound processing serialized on one event loop.
type Session struct {
	cfg Config

	mu       sync.Mutex
	active   *connection
	starting *startAttempt
	status   Status
	errMsg   string
	errCause Cause
	history  []Entry
	partial  Partial
}

// connection is one open realtime connection with its owned resources.
type connection struct {
	id        string
	transport Transport
	capture   *Capture
	scheduler *Scheduler
	cancel    context.CancelFunc
	createdAt time.Time
	closedAt  time.Time
	teardown  sync.Once
}

// startAttempt tracks an in-flight Start so Close can cancel it.
type startAttempt struct {
	cancel   context.CancelFunc
	canceled bool
}

// NewSession creates an idle session.
func NewSession(cfg Config) *Session {
	return &Session{cfg: cfg.withDefaults(), status: StatusIdle}
}

// Status returns the current conversation status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// History returns a copy of the committed transcript.
func (s *Session) History() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.history...)
}

// Partial returns the current in-progress transcription.
func (s *Session) Partial() Partial {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.partial
}

// ErrMessage returns the localized error text, empty unless status is Error.
func (s *Session) ErrMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// Start opens a new session for the named student. It validates the name and
// network reachability synchronously, then acquires the microphone, dials the
// transport, wires the capture pipeline, and sends the synthetic start
// trigger so the model greets first. Failures move the session to Error and
// are also returned.
func (s *Session) Start(ctx context.Context, name string, quizMode bool) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrNameRequired
	}

	s.mu.Lock()
	if s.active != nil || s.starting != nil {
		s.mu.Unlock()
		return ErrSessionActive
	}
	if !s.cfg.Online() {
		serr := newSessionError(CauseOffline, nil)
		s.failLocked(serr)
		s.mu.Unlock()
		return serr
	}

	startCtx, cancel := context.WithCancel(ctx)
	attempt := &startAttempt{cancel: cancel}
	s.starting = attempt
	s.status = StatusConnecting
	s.errMsg = ""
	s.errCause = ""
	s.partial = Partial{}
	s.notifyLocked("")
	s.mu.Unlock()

	mic, transport, err := s.open(startCtx, name, quizMode)
	if err != nil {
		cancel()
		s.mu.Lock()
		defer s.mu.Unlock()
		s.starting = nil
		if attempt.canceled || errors.Is(err, context.Canceled) {
			// Close won the race; it already reset the state.
			return nil
		}
		s.failLocked(classifyStartFailure(err))
		return s.sessionErrLocked()
	}

	s.mu.Lock()
	s.starting = nil
	if attempt.canceled {
		s.mu.Unlock()
		cancel()
		_ = mic.Close()
		_ = transport.Close()
		return nil
	}

	conn := &connection{
		id:        uuid.NewString(),
		transport: transport,
		scheduler: NewScheduler(s.cfg.Sink, s.cfg.Now),
		cancel:    cancel,
		createdAt: s.cfg.Now(),
	}
	conn.capture = StartCapture(mic, func(pcm []byte) error {
		// In-flight sends after close are no-ops, guarded by the active
		// connection handle rather than a flag.
		if !s.isActive(conn) {
			return nil
		}
		return transport.SendAudio(pcm)
	}, s.cfg.Logger)
	s.active = conn
	s.status = StatusListening
	s.notifyLocked(conn.id)
	s.mu.Unlock()

	// The silent trigger makes the model speak first; the student never
	// sees it and it is filtered out of the history if echoed back.
	if err := transport.SendText(startTrigger); err != nil {
		s.cfg.Logger.Warn("start trigger send failed", "err", err)
	}

	go s.run(startCtx, conn)
	return nil
}

// open acquires the microphone and dials the transport.
func (s *Session) open(ctx context.Context, name string, quizMode bool) (Source, Transport, error) {
	mic, err := s.cfg.Mic(ctx)
	if err != nil {
		return nil, nil, err
	}
	transport, err := s.cfg.Connect(ctx, SetupParams{
		Model:             s.cfg.Model,
		SystemInstruction: SystemInstruction(name, quizMode),
	})
	if err != nil {
		_ = mic.Close()
		return nil, nil, err
	}
	return mic, transport, nil
}

// Close ends the session gracefully. Idempotent; callable from any state,
// including while a Start is still connecting.
func (s *Session) Close() {
	s.mu.Lock()
	if s.starting != nil {
		s.starting.canceled = true
		s.starting.cancel()
		s.starting = nil
		s.status = StatusIdle
		s.errMsg = ""
		s.errCause = ""
		s.partial = Partial{}
		s.notifyLocked("")
		s.mu.Unlock()
		return
	}
	conn := s.active
	s.mu.Unlock()
	if conn == nil {
		return
	}
	s.teardown(conn, StatusIdle, nil)
}

// run is the session event loop. All inbound events, silence-timer fires,
// and the close signal serialize through this single goroutine.
func (s *Session) run(ctx context.Context, conn *connection) {
	silence := time.NewTimer(s.cfg.SilenceAfter)
	stopTimer(silence)
	defer stopTimer(silence)

	for {
		select {
		case ev, ok := <-conn.transport.Events():
			if !ok {
				s.teardown(conn, StatusIdle, nil)
				return
			}
			if ev.Err != nil {
				s.teardown(conn, StatusError, s.classifyRemoteFailure(ev.Err))
				return
			}
			s.handleEvent(conn, ev, silence)
		case <-silence.C:
			s.handleSilence(conn)
		case <-ctx.Done():
			s.teardown(conn, StatusIdle, nil)
			return
		}
	}
}

// handleEvent processes one inbound message. Field order is fixed: the
// interrupted flag stops stale playback before any audio in the same message
// is queued.
func (s *Session) handleEvent(conn *connection, ev ServerEvent, silence *time.Timer) {
	s.mu.Lock()
	if s.active != conn {
		s.mu.Unlock()
		return
	}

	if ev.InputTranscription != "" {
		// (Re)start the silence countdown: quiet for long enough with
		// accumulated text means the student finished speaking.
		resetTimer(silence, s.cfg.SilenceAfter)
		s.partial.User += ev.InputTranscription
		s.notifyLocked(conn.id)
	}

	if ev.OutputTranscription != "" {
		stopTimer(silence)
		s.partial.Model += ev.OutputTranscription
		s.status = StatusSpeaking
		s.notifyLocked(conn.id)
	}

	if ev.TurnComplete {
		stopTimer(silence)
		s.history = append(s.history, commitTurn(s.partial)...)
		s.partial = Partial{}
		s.status = StatusListening
		s.notifyLocked(conn.id)
	}

	if ev.Interrupted {
		stopTimer(silence)
		conn.scheduler.StopAll()
	}

	if len(ev.Audio) > 0 {
		buf, err := audio.DecodeWireAudio(ev.Audio, audio.OutputSampleRateHz, 1)
		if err != nil {
			// A malformed chunk is dropped; it does not end the session.
			s.cfg.Logger.Warn("dropping undecodable audio chunk", "err", err, "bytes", len(ev.Audio))
		} else if _, err := conn.scheduler.Enqueue(buf); err != nil {
			s.cfg.Logger.Warn("playback enqueue failed", "err", err)
		}
	}
	s.mu.Unlock()
}

// classifyRemoteFailure maps a terminal transport error onto a SessionError.
// A dropped network connection takes precedence: when the endpoint is no
// longer reachable the student sees the fixed offline message, not whatever
// text the failing read produced.
func (s *Session) classifyRemoteFailure(err error) *SessionError {
	if !s.cfg.Online() {
		return newSessionError(CauseOffline, err)
	}
	return newSessionError(ClassifyRemoteError(err.Error()), err)
}

func (s *Session) handleSilence(conn *connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != conn {
		return
	}
	if strings.TrimSpace(s.partial.User) == "" {
		return
	}
	s.status = StatusThinking
	s.notifyLocked(conn.id)
}

// teardown releases every resource of conn exactly once and publishes the
// final state. Used on user close, remote close, and remote error alike.
func (s *Session) teardown(conn *connection, final Status, serr *SessionError) {
	conn.teardown.Do(func() {
		conn.cancel()
		if conn.capture != nil {
			_ = conn.capture.Close()
		}
		conn.scheduler.StopAll()
		_ = conn.transport.Close()

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.active == conn {
			s.active = nil
		}
		conn.closedAt = s.cfg.Now()
		s.partial = Partial{}
		s.status = final
		if serr != nil {
			s.errMsg = serr.Message
			s.errCause = serr.Cause
			s.cfg.Logger.Error("session terminated", "cause", serr.Cause, "err", serr.Err)
		} else {
			s.errMsg = ""
			s.errCause = ""
		}
		s.notifyLocked(conn.id)
	})
}

func (s *Session) isActive(conn *connection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active == conn
}

// failLocked records a startup failure. Caller holds s.mu.
func (s *Session) failLocked(serr *SessionError) {
	s.status = StatusError
	s.errMsg = serr.Message
	s.errCause = serr.Cause
	s.partial = Partial{}
	s.cfg.Logger.Error("session start failed", "cause", serr.Cause, "err", serr.Err)
	s.notifyLocked("")
}

func (s *Session) sessionErrLocked() error {
	return &SessionError{Cause: s.errCause, Message: s.errMsg}
}

// notifyLocked pushes a snapshot to the consumer. Caller holds s.mu; the
// consumer contract requires Update to return quickly and never re-enter the
// session.
func (s *Session) notifyLocked(sessionID string) {
	if s.cfg.Consumer == nil {
		return
	}
	s.cfg.Consumer.Update(Snapshot{
		SessionID:  sessionID,
		Status:     s.status,
		ErrMessage: s.errMsg,
		ErrCause:   s.errCause,
		History:    append([]Entry(nil), s.history...),
		Partial:    s.partial,
	})
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	stopTimer(t)
	t.Reset(d)
}
