package live

import "strings"

// Speaker identifies who produced a transcript entry.
type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerModel Speaker = "model"
)

// Entry is one committed transcript line. Entries are appended at turn
// completion and never mutated afterward.
type Entry struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// Partial accumulates in-progress transcription text for the current turn.
// It is reset at session start and at every turn completion.
type Partial struct {
	User  string `json:"user"`
	Model string `json:"model"`
}

// startTrigger is the synthetic text sent once after the transport opens so
// the model greets the student first. If the service echoes it back as a user
// transcription it must never reach the history.
const startTrigger = "Start"

// commitTurn converts the accumulated partials into committed entries,
// suppressing blank text and the echoed start trigger. The returned slice is
// in user-then-model order.
func commitTurn(p Partial) []Entry {
	var entries []Entry
	user := strings.TrimSpace(p.User)
	if user != "" && !strings.EqualFold(user, startTrigger) {
		entries = append(entries, Entry{Speaker: SpeakerUser, Text: p.User})
	}
	if strings.TrimSpace(p.Model) != "" {
		entries = append(entries, Entry{Speaker: SpeakerModel, Text: p.Model})
	}
	return entries
}
