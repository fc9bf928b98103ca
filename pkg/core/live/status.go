package live

// Status represents the current state of the conversation session.
type Status int

const (
	// StatusIdle is the initial state before a session is started.
	StatusIdle Status = iota
	// StatusConnecting is while the transport handshake is in flight.
	StatusConnecting
	// StatusListening is when the session is capturing user speech.
	StatusListening
	// StatusThinking is after user speech went silent, awaiting a reply.
	StatusThinking
	// StatusSpeaking is while model audio is being received and played.
	StatusSpeaking
	// StatusError is terminal until the user starts a new session.
	StatusError
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "IDLE"
	case StatusConnecting:
		return "CONNECTING"
	case StatusListening:
		return "LISTENING"
	case StatusThinking:
		return "THINKING"
	case StatusSpeaking:
		return "SPEAKING"
	case StatusError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
