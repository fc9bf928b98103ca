// Package live implements the realtime voice tutoring session core.
//
// A session streams microphone audio to a realtime speech model and plays the
// synthesized replies back while assembling a live transcript. The package is
// organized around a small set of components:
//
//   - Session: the conversation state machine owning the single active
//     connection, the partial transcription accumulator, and the transcript
//     history
//   - Capture: slices the microphone stream into fixed PCM frames and forwards
//     them to the transport
//   - Scheduler: queues returned audio chunks for gapless in-order playback
//     and supports immediate full stop on interruption
//   - Consumer: the UI-facing projection receiving status, history, and
//     partial-transcription snapshots
//
// # Data Flow
//
//	Mic → Capture → PCM frames → Transport (outbound)
//	Transport (inbound) → Session → {Scheduler → speaker, Consumer}
//
// # State Machine
//
// Idle → Connecting → Listening ⇄ Thinking ⇄ Speaking, with Error reachable
// from any state and Idle reachable from any state via close. All state
// mutation happens on the session's single event loop: inbound transport
// events, silence-timer fires, and close commands serialize through it.
package live
