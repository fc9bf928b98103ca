package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/vyakaran/tutorlive/pkg/core/audio"
	"github.com/vyakaran/tutorlive/pkg/core/live"
)

const micFirstBlockTimeout = 5 * time.Second

type micConfig struct {
	// Device is the capture device index (macOS avfoundation) or ignored when
	// Command is set.
	Device int
	// Command overrides the capture command (runs via /bin/sh -lc). It must
	// write s16le mono 16000Hz PCM to stdout.
	Command string
	Logger  *slog.Logger
}

// openMic spawns ffmpeg reading the system microphone and returns once the
// first audio block has arrived, so device failures surface at acquisition
// time rather than mid-session.
func openMic(ctx context.Context, cfg micConfig) (live.Source, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var cmd *exec.Cmd
	if strings.TrimSpace(cfg.Command) != "" {
		cmd = exec.CommandContext(ctx, "/bin/sh", "-lc", cfg.Command)
	} else {
		cmd = exec.CommandContext(ctx, "ffmpeg", micArgs(cfg.Device)...)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start mic capture: %w", err)
	}

	m := &micSource{
		cmd:    cmd,
		blocks: make(chan []float32, 8),
		ready:  make(chan struct{}),
		dead:   make(chan struct{}),
		logger: logger,
	}
	go m.drainStderr(stderr)
	go m.pump(stdout)

	select {
	case <-m.ready:
		return m, nil
	case <-m.dead:
		return nil, m.acquisitionError()
	case <-time.After(micFirstBlockTimeout):
		_ = m.Close()
		return nil, fmt.Errorf("mic capture produced no audio within %s", micFirstBlockTimeout)
	case <-ctx.Done():
		_ = m.Close()
		return nil, ctx.Err()
	}
}

func micArgs(device int) []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	if runtime.GOOS == "darwin" {
		// `none:<index>` keeps ffmpeg away from video devices.
		args = append(args, "-f", "avfoundation", "-i", fmt.Sprintf("none:%d", device))
	} else {
		args = append(args, "-f", "alsa", "-i", "default")
	}
	return append(args, "-ac", "1", "-ar", "16000", "-f", "s16le", "-")
}

type micSource struct {
	cmd    *exec.Cmd
	blocks chan []float32
	ready  chan struct{}
	dead   chan struct{}
	logger *slog.Logger

	stderrMu  sync.Mutex
	stderrBuf bytes.Buffer

	closeOnce sync.Once
	readyOnce sync.Once
}

func (m *micSource) pump(stdout io.Reader) {
	defer close(m.dead)
	defer close(m.blocks)

	reader := bufio.NewReaderSize(stdout, 64*1024)
	blockBytes := make([]byte, audio.CaptureBlockSamples*2)
	for {
		if _, err := io.ReadFull(reader, blockBytes); err != nil {
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				m.logger.Warn("mic read failed", "error", err)
			}
			return
		}
		buf, err := audio.DecodeWireAudio(blockBytes, audio.InputSampleRateHz, 1)
		if err != nil {
			m.logger.Warn("mic produced a misaligned block", "error", err)
			continue
		}
		m.readyOnce.Do(func() { close(m.ready) })
		m.blocks <- buf.Samples
	}
}

func (m *micSource) drainStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := scanner.Text()
		m.stderrMu.Lock()
		if m.stderrBuf.Len() < 8*1024 {
			m.stderrBuf.WriteString(line)
			m.stderrBuf.WriteByte('\n')
		}
		m.stderrMu.Unlock()
		m.logger.Debug("mic capture stderr", "line", line)
	}
}

// acquisitionError classifies an early capture-process exit. OS microphone
// refusals show up as permission wording on ffmpeg's stderr.
func (m *micSource) acquisitionError() error {
	m.stderrMu.Lock()
	detail := strings.TrimSpace(m.stderrBuf.String())
	m.stderrMu.Unlock()

	lower := strings.ToLower(detail)
	for _, marker := range []string{"permission denied", "not permitted", "not authorized"} {
		if strings.Contains(lower, marker) {
			return fmt.Errorf("mic capture: %s: %w", detail, live.ErrPermissionDenied)
		}
	}
	if detail == "" {
		return fmt.Errorf("mic capture exited before producing audio")
	}
	return fmt.Errorf("mic capture exited before producing audio: %s", detail)
}

// Read blocks until the next capture block is available. It returns io.EOF
// once the capture process has ended, whether by Close or on its own.
func (m *micSource) Read() ([]float32, error) {
	block, ok := <-m.blocks
	if !ok {
		return nil, io.EOF
	}
	return block, nil
}

func (m *micSource) Close() error {
	m.closeOnce.Do(func() {
		if m.cmd.Process != nil {
			_ = m.cmd.Process.Kill()
			_, _ = m.cmd.Process.Wait()
		}
		go func() {
			for range m.blocks {
			}
		}()
	})
	return nil
}
