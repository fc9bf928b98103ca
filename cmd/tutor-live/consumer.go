package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/vyakaran/tutorlive/pkg/core/live"
)

// consoleUI prints status transitions and committed transcript lines to the
// terminal and reports when the session has reached a terminal state.
type consoleUI struct {
	out io.Writer

	mu         sync.Mutex
	lastStatus live.Status
	printed    int
	started    bool
	errMessage string
	done       chan struct{}
	doneOnce   sync.Once
}

func newConsoleUI(out io.Writer) *consoleUI {
	return &consoleUI{out: out, lastStatus: live.StatusIdle, done: make(chan struct{})}
}

func (u *consoleUI) Update(snap live.Snapshot) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if snap.Status != u.lastStatus {
		u.lastStatus = snap.Status
		switch snap.Status {
		case live.StatusConnecting:
			u.started = true
			fmt.Fprintln(u.out, "-- connecting --")
		case live.StatusListening:
			fmt.Fprintln(u.out, "-- listening --")
		case live.StatusThinking:
			fmt.Fprintln(u.out, "-- thinking --")
		case live.StatusSpeaking:
			fmt.Fprintln(u.out, "-- speaking --")
		case live.StatusError:
			u.errMessage = snap.ErrMessage
			fmt.Fprintf(u.out, "!! %s\n", snap.ErrMessage)
		}
	}

	for ; u.printed < len(snap.History); u.printed++ {
		entry := snap.History[u.printed]
		label := "Tutor"
		if entry.Speaker == live.SpeakerUser {
			label = "You"
		}
		fmt.Fprintf(u.out, "%s: %s\n", label, entry.Text)
	}

	if u.started && (snap.Status == live.StatusIdle || snap.Status == live.StatusError) {
		u.doneOnce.Do(func() { close(u.done) })
	}
}

// Done is closed once a started session ends, normally or with an error.
func (u *consoleUI) Done() <-chan struct{} { return u.done }

// ErrMessage returns the localized error text, if the session failed.
func (u *consoleUI) ErrMessage() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.errMessage
}
