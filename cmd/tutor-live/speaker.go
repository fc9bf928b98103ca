package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/vyakaran/tutorlive/pkg/core/audio"
	"github.com/vyakaran/tutorlive/pkg/core/live"
)

// ffplaySink plays scheduled PCM buffers through a long-lived ffplay process.
// Stopping a chunk whose bytes were already written restarts ffplay, which is
// the only way to flush SDL's audio buffer.
type ffplaySink struct {
	path   string
	volume int
	logger *slog.Logger

	mu    sync.Mutex
	cmd   *exec.Cmd
	stdin io.WriteCloser
	// gen increments on every restart; chunks remember the generation their
	// bytes went to so only one of them flushes it.
	gen int
}

func newFFPlaySink(path string, volume int, logger *slog.Logger) *ffplaySink {
	if logger == nil {
		logger = slog.Default()
	}
	return &ffplaySink{path: path, volume: volume, logger: logger}
}

func (s *ffplaySink) Play(buf *audio.Buffer, at time.Time, done func()) (live.Playback, error) {
	if err := s.ensureRunning(); err != nil {
		return nil, err
	}
	chunk := &ffplayChunk{sink: s, stop: make(chan struct{}), wroteGen: -1}
	go chunk.run(buf, at, done)
	return chunk, nil
}

func (s *ffplaySink) ensureRunning() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked()
}

func (s *ffplaySink) startLocked() error {
	if s.cmd != nil && s.cmd.Process != nil {
		return nil
	}
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostats",
		"-volume", fmt.Sprintf("%d", s.volume),
		"-nodisp",
		"-f", "s16le",
		// ffplay does not accept ffmpeg-style `-ac`; use `-ch_layout`.
		"-ch_layout", "mono",
		"-ar", fmt.Sprintf("%d", audio.OutputSampleRateHz),
		"-i", "-",
	}
	cmd := exec.Command(s.path, args...)
	if runtime.GOOS == "darwin" && os.Getenv("SDL_AUDIODRIVER") == "" {
		// SDL sometimes selects a silent dummy backend on macOS.
		cmd.Env = append(os.Environ(), "SDL_AUDIODRIVER=coreaudio")
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	cmd.Stdout = io.Discard
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return fmt.Errorf("start %s: %w", s.path, err)
	}
	s.logger.Debug("ffplay started", "pid", cmd.Process.Pid)
	s.cmd = cmd
	s.stdin = stdin
	go func(c *exec.Cmd) {
		_ = c.Wait()
		s.mu.Lock()
		if s.cmd == c {
			s.cmd = nil
			s.stdin = nil
		}
		s.mu.Unlock()
	}(cmd)
	return nil
}

// write pushes PCM to ffplay and reports which process generation got it.
func (s *ffplaySink) write(pcm []byte) (int, error) {
	s.mu.Lock()
	stdin := s.stdin
	gen := s.gen
	s.mu.Unlock()
	if stdin == nil {
		return gen, fmt.Errorf("ffplay is not running")
	}
	_, err := stdin.Write(pcm)
	return gen, err
}

// flush restarts ffplay unless generation gen was already flushed by another
// stopped chunk.
func (s *ffplaySink) flush(gen int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.gen++
	s.closeLocked()
	if err := s.startLocked(); err != nil {
		s.logger.Warn("ffplay restart failed", "error", err)
	}
}

func (s *ffplaySink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *ffplaySink) closeLocked() {
	if s.stdin != nil {
		_ = s.stdin.Close()
	}
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	s.cmd = nil
	s.stdin = nil
}

type ffplayChunk struct {
	sink *ffplaySink

	mu       sync.Mutex
	stopped  bool
	wroteGen int
	stop     chan struct{}
}

func (c *ffplayChunk) run(buf *audio.Buffer, at time.Time, done func()) {
	if wait := time.Until(at); wait > 0 {
		select {
		case <-time.After(wait):
		case <-c.stop:
			return
		}
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	gen, err := c.sink.write(audio.EncodeFrame(buf.Samples))
	c.wroteGen = gen
	c.mu.Unlock()
	if err != nil {
		c.sink.logger.Warn("speaker write failed", "error", err)
	}

	select {
	case <-time.After(time.Until(at.Add(buf.Duration()))):
	case <-c.stop:
		return
	}
	c.mu.Lock()
	natural := !c.stopped
	c.mu.Unlock()
	if natural {
		done()
	}
}

func (c *ffplayChunk) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	close(c.stop)
	gen := c.wroteGen
	c.mu.Unlock()
	if gen >= 0 {
		c.sink.flush(gen)
	}
}

// nullSink simulates playback timing without spawning ffplay.
type nullSink struct{}

func (nullSink) Play(buf *audio.Buffer, at time.Time, done func()) (live.Playback, error) {
	chunk := &nullChunk{}
	chunk.timer = time.AfterFunc(time.Until(at.Add(buf.Duration())), func() {
		chunk.mu.Lock()
		natural := !chunk.stopped
		chunk.mu.Unlock()
		if natural {
			done()
		}
	})
	return chunk, nil
}

type nullChunk struct {
	mu      sync.Mutex
	stopped bool
	timer   *time.Timer
}

func (c *nullChunk) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
	c.timer.Stop()
}
