package audio

import (
	"encoding/base64"
	"fmt"
	"time"
)

// DecodeError reports malformed inbound wire audio. A chunk failing to decode
// is dropped; it does not terminate the session.
type DecodeError struct {
	ByteLen   int
	FrameSize int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("audio: %d wire bytes is not a multiple of the %d-byte sample frame", e.ByteLen, e.FrameSize)
}

// Buffer is a decoded chunk of playable audio.
type Buffer struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Duration returns the playback duration of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 || b.Channels <= 0 {
		return 0
	}
	frames := len(b.Samples) / b.Channels
	return time.Duration(frames) * time.Second / time.Duration(b.SampleRate)
}

// EncodeFrame converts float samples in [-1, 1] to 16-bit little-endian PCM.
// Out-of-range samples are clamped. Deterministic, no side effects.
func EncodeFrame(samples []float32) []byte {
	out := make([]byte, len(samples)*bytesPerSample)
	for i, s := range samples {
		v := int32(s * 32768)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		out[i*2] = byte(uint16(v))
		out[i*2+1] = byte(uint16(v) >> 8)
	}
	return out
}

// DecodeWireAudio converts little-endian PCM wire bytes into a playable buffer
// of the declared rate and channel count. It fails with a DecodeError when the
// byte length is not a multiple of the sample frame size.
func DecodeWireAudio(data []byte, sampleRate, channels int) (*Buffer, error) {
	if channels <= 0 {
		channels = 1
	}
	frameSize := bytesPerSample * channels
	if len(data)%frameSize != 0 {
		return nil, &DecodeError{ByteLen: len(data), FrameSize: frameSize}
	}

	samples := make([]float32, len(data)/bytesPerSample)
	for i := range samples {
		// Little-endian 16-bit signed integer, normalized to -1.0..1.0.
		v := int16(data[i*2]) | int16(data[i*2+1])<<8
		samples[i] = float32(v) / 32768.0
	}
	return &Buffer{Samples: samples, SampleRate: sampleRate, Channels: channels}, nil
}

// EncodeBase64 wraps wire bytes for JSON transport.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64 is the exact inverse of EncodeBase64.
func DecodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
