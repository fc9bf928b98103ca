// Package audio provides the PCM wire codec and audio format math shared by
// the capture and playback pipelines.
package audio

import "time"

const (
	// InputSampleRateHz is the microphone capture rate.
	InputSampleRateHz = 16000
	// OutputSampleRateHz is the rate of audio returned by the remote service.
	OutputSampleRateHz = 24000

	// CaptureBlockSamples is the number of samples in one capture block
	// (~256ms at 16 kHz).
	CaptureBlockSamples = 4096

	bytesPerSample = 2
)

// Config specifies audio format parameters.
type Config struct {
	// SampleRate in Hz. Common values: 16000, 24000.
	SampleRate int

	// Channels: 1 for mono, 2 for stereo.
	Channels int

	// BitsPerSample: typically 16 for PCM.
	BitsPerSample int
}

// InputConfig returns the capture-side audio configuration.
func InputConfig() Config {
	return Config{SampleRate: InputSampleRateHz, Channels: 1, BitsPerSample: 16}
}

// OutputConfig returns the playback-side audio configuration.
func OutputConfig() Config {
	return Config{SampleRate: OutputSampleRateHz, Channels: 1, BitsPerSample: 16}
}

// BytesPerSecond returns the audio byte rate.
func (c Config) BytesPerSecond() int {
	return c.SampleRate * c.Channels * (c.BitsPerSample / 8)
}

// Duration returns the playback duration of the given byte count.
func (c Config) Duration(bytes int) time.Duration {
	bps := c.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(bytes) * time.Second / time.Duration(bps)
}

// BytesForDuration returns the byte count covering the given duration.
func (c Config) BytesForDuration(d time.Duration) int {
	return int(time.Duration(c.BytesPerSecond()) * d / time.Second)
}
