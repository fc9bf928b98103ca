package live

import (
	"sync"
	"time"

	"github.com/vyakaran/tutorlive/pkg/core/audio"
)

// Playback is a handle to one chunk the sink is playing or has scheduled.
type Playback interface {
	// Stop halts output immediately. Safe to call after natural end.
	Stop()
}

// Sink turns decoded buffers into audible output. Play must start the buffer
// at the given wall-clock time and invoke done exactly once when the chunk
// reaches its natural end (not when stopped).
type Sink interface {
	Play(buf *audio.Buffer, at time.Time, done func()) (Playback, error)
}

// Scheduler queues decoded model audio for gapless sequential playback.
// Chunks always start in enqueue order with non-decreasing start times;
// StopAll halts everything and resets the clock so the next chunk starts
// immediately.
type Scheduler struct {
	sink Sink
	now  func() time.Time

	mu        sync.Mutex
	nextStart time.Time
	playing   map[*scheduledChunk]struct{}
}

type scheduledChunk struct {
	handle Playback
}

// NewScheduler creates a scheduler driving the given sink. A nil now uses
// time.Now.
func NewScheduler(sink Sink, now func() time.Time) *Scheduler {
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		sink:    sink,
		now:     now,
		playing: make(map[*scheduledChunk]struct{}),
	}
}

// Enqueue schedules buf to start at max(now, end of the previous chunk) and
// returns the chosen start time. The chunk stays registered as playing until
// its natural end or StopAll.
func (s *Scheduler) Enqueue(buf *audio.Buffer) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	startAt := s.now()
	if s.nextStart.After(startAt) {
		startAt = s.nextStart
	}
	s.nextStart = startAt.Add(buf.Duration())

	chunk := &scheduledChunk{}
	handle, err := s.sink.Play(buf, startAt, func() { s.chunkEnded(chunk) })
	if err != nil {
		// The slot stays reserved so ordering is preserved for later chunks.
		return startAt, err
	}
	chunk.handle = handle
	s.playing[chunk] = struct{}{}
	return startAt, nil
}

// StopAll immediately halts every playing or scheduled chunk, clears the
// playing set, and resets the clock so the next Enqueue starts at "now".
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for chunk := range s.playing {
		if chunk.handle != nil {
			chunk.handle.Stop()
		}
		delete(s.playing, chunk)
	}
	s.nextStart = time.Time{}
}

// Playing returns the number of chunks currently playing or scheduled.
func (s *Scheduler) Playing() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.playing)
}

func (s *Scheduler) chunkEnded(chunk *scheduledChunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.playing, chunk)
}
