package live

import (
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/vyakaran/tutorlive/pkg/core/audio"
)

// Capture pumps fixed-size microphone blocks through the PCM encoder to the
// transport. One block in, one frame out; a failed send is logged and the
// next block proceeds independently, so the pipeline never buffers more than
// one frame.
type Capture struct {
	src    Source
	send   func(pcm []byte) error
	logger *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
	stopped   sync.WaitGroup
}

// StartCapture wires src to send and begins pumping frames. The returned
// Capture must be closed to release the source.
func StartCapture(src Source, send func(pcm []byte) error, logger *slog.Logger) *Capture {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Capture{
		src:    src,
		send:   send,
		logger: logger,
		done:   make(chan struct{}),
	}
	c.stopped.Add(1)
	go c.run()
	return c
}

func (c *Capture) run() {
	defer c.stopped.Done()
	var blocks int
	for {
		samples, err := c.src.Read()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				select {
				case <-c.done:
				default:
					c.logger.Warn("mic read failed", "err", err)
				}
			}
			return
		}
		select {
		case <-c.done:
			return
		default:
		}

		frame := audio.EncodeFrame(samples)
		if err := c.send(frame); err != nil {
			c.logger.Debug("frame send dropped", "err", err)
			continue
		}
		blocks++
		if blocks%32 == 0 {
			c.logger.Debug("mic capture",
				"blocks", blocks,
				"rms", audio.RMSEnergy(samples),
				"peak", audio.PeakAmplitude(samples))
		}
	}
}

// Close stops frame production synchronously and releases the source.
// Idempotent.
func (c *Capture) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.src.Close()
		c.stopped.Wait()
	})
	return err
}
