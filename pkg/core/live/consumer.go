package live

// Snapshot is the UI-facing projection of session state, pushed to the
// Consumer on every relevant transition. History is append-only; the slice is
// a copy the receiver may keep.
type Snapshot struct {
	SessionID string
	Status    Status
	// ErrMessage is the localized error text when Status is StatusError.
	ErrMessage string
	// ErrCause is the classified cause when Status is StatusError.
	ErrCause Cause
	History  []Entry
	Partial  Partial
}

// Consumer receives state projections. Update is called from the session's
// event loop; implementations must not block for long and must not call back
// into the session from within Update.
type Consumer interface {
	Update(Snapshot)
}

// ConsumerFunc adapts a function to the Consumer interface.
type ConsumerFunc func(Snapshot)

func (f ConsumerFunc) Update(s Snapshot) { f(s) }

// Consumers fans one snapshot out to several consumers in order.
type Consumers []Consumer

func (cs Consumers) Update(s Snapshot) {
	for _, c := range cs {
		if c != nil {
			c.Update(s)
		}
	}
}
