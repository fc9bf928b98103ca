package live

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSessionActive is returned by Start when a session is already open.
var ErrSessionActive = errors.New("live: session already active")

// ErrNameRequired is returned by Start when no student name was given.
var ErrNameRequired = errors.New("live: student name is required")

// ErrPermissionDenied is returned (possibly wrapped) by microphone sources
// when the OS or browser denies access to the device.
var ErrPermissionDenied = errors.New("live: microphone permission denied")

// Cause is the user-facing classification of a session failure.
type Cause string

const (
	CauseOffline           Cause = "offline"
	CausePermissionDenied  Cause = "permission_denied"
	CauseNetwork           Cause = "network"
	CauseUnavailable       Cause = "service_unavailable"
	CauseInvalidArgument   Cause = "invalid_argument"
	CauseInvalidCredential Cause = "invalid_credential"
	CauseGeneric           Cause = "generic"
)

// SessionError pairs a classified cause with the localized message shown to
// the student. It is delivered through the Consumer, never panicked across it.
type SessionError struct {
	Cause   Cause
	Message string // localized, user-facing
	Err     error  // underlying, for logs
}

func (e *SessionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("live: %s: %v", e.Cause, e.Err)
	}
	return fmt.Sprintf("live: %s", e.Cause)
}

func (e *SessionError) Unwrap() error { return e.Err }

// Localized Marathi messages shown to the student.
const (
	msgOffline           = "तुम्ही ऑफलाइन आहात. कृपया तुमचे इंटरनेट कनेक्शन तपासा."
	msgPermissionDenied  = "मायक्रोफोन वापरण्याची परवानगी आवश्यक आहे."
	msgNetwork           = "नेटवर्कमध्ये समस्या आहे. कृपया तुमचे इंटरनेट कनेक्शन, फायरवॉल किंवा प्रॉक्सी सेटिंग तपासा. API की चुकीची असल्यासही ही समस्या येऊ शकते."
	msgUnavailable       = "सेवा तात्पुरती अनुपलब्ध आहे. कृपया थोड्या वेळाने पुन्हा प्रयत्न करा."
	msgInvalidArgument   = "चुकीची विनंती पाठवली गेली. कृपया पुन्हा प्रयत्न करा."
	msgInvalidCredential = "तुमची API की चुकीची आहे. कृपया योग्य की वापरून पुन्हा प्रयत्न करा."
	msgGeneric           = "कनेक्शनमध्ये अडचण येत आहे. कृपया तुमचे इंटरनेट व्यवस्थित चालू आहे का ते तपासा आणि थोड्या वेळाने पुन्हा प्रयत्न करा."
	msgStartFailed       = "संभाषण सुरू करता आले नाही."
)

// classifierRule maps a lowercase message substring to a cause. Rules are
// checked in order; the first match wins, generic is the fallback.
type classifierRule struct {
	substr string
	cause  Cause
}

var classifierTable = []classifierRule{
	{"network error", CauseNetwork},
	{"service is currently unavailable", CauseUnavailable},
	{"invalid argument", CauseInvalidArgument},
	{"api key not valid", CauseInvalidCredential},
}

// ClassifyRemoteError maps a remote protocol error message onto a Cause by
// substring match.
func ClassifyRemoteError(message string) Cause {
	msg := strings.ToLower(message)
	for _, rule := range classifierTable {
		if strings.Contains(msg, rule.substr) {
			return rule.cause
		}
	}
	return CauseGeneric
}

// UserMessage returns the localized message for a cause.
func UserMessage(c Cause) string {
	switch c {
	case CauseOffline:
		return msgOffline
	case CausePermissionDenied:
		return msgPermissionDenied
	case CauseNetwork:
		return msgNetwork
	case CauseUnavailable:
		return msgUnavailable
	case CauseInvalidArgument:
		return msgInvalidArgument
	case CauseInvalidCredential:
		return msgInvalidCredential
	default:
		return msgGeneric
	}
}

func newSessionError(cause Cause, err error) *SessionError {
	return &SessionError{Cause: cause, Message: UserMessage(cause), Err: err}
}

// classifyStartFailure maps a failure during session startup (mic acquisition
// or transport open) onto a SessionError. Permission errors come from the
// microphone source; anything mentioning a bad key keeps its specific message;
// the rest get the generic start-failure text.
func classifyStartFailure(err error) *SessionError {
	var sessionErr *SessionError
	if errors.As(err, &sessionErr) {
		return sessionErr
	}
	if errors.Is(err, ErrPermissionDenied) {
		return newSessionError(CausePermissionDenied, err)
	}
	if cause := ClassifyRemoteError(err.Error()); cause == CauseInvalidCredential {
		return newSessionError(cause, err)
	}
	return &SessionError{Cause: CauseGeneric, Message: msgStartFailed, Err: err}
}
