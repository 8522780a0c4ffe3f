// Package audio adapts platform capture facilities to a common stream
// interface. Every backend delivers mono signed 16-bit little-endian PCM.
package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/petems/clip-recorder/internal/config"
)

// ErrDeviceNotFound is returned by Open when the requested input does not exist.
var ErrDeviceNotFound = errors.New("audio device not found")

// DataCallback receives one captured fragment. The slice is owned by the
// receiver once the call is made.
type DataCallback func(chunk []byte)

// Backend grants exclusive capture streams on input devices.
type Backend interface {
	// Open acquires the device identified by deviceID ("" for the system
	// default). Data is delivered to cb once the stream is started.
	Open(ctx context.Context, deviceID string, cfg StreamConfig, cb DataCallback) (Stream, error)
	ListDevices() ([]AudioDevice, error)
	Close() error
}

// Stream is a held device handle.
type Stream interface {
	Start() error
	// Stop halts capture. Once it returns no further callbacks are made.
	Stop() error
	// Close releases the device. It stops the stream first if needed.
	Close() error
}

// StreamConfig describes the capture format requested from the device.
type StreamConfig struct {
	SampleRate      int
	Channels        int
	FramesPerBuffer int
}

// BytesPerSample is the width of one delivered PCM sample.
const BytesPerSample = 2

// DefaultStreamConfig is 16 kHz mono with 512-frame reads.
var DefaultStreamConfig = StreamConfig{SampleRate: 16000, Channels: 1, FramesPerBuffer: 512}

// StreamConfigFrom converts the user config, filling gaps from the defaults.
func StreamConfigFrom(cfg config.AudioConfig) StreamConfig {
	sc := StreamConfig{
		SampleRate:      cfg.SampleRate,
		Channels:        cfg.Channels,
		FramesPerBuffer: cfg.FramesPerBuffer,
	}
	return sc.WithDefaults()
}

// WithDefaults fills zero fields from DefaultStreamConfig.
func (c StreamConfig) WithDefaults() StreamConfig {
	if c.SampleRate <= 0 {
		c.SampleRate = DefaultStreamConfig.SampleRate
	}
	if c.Channels <= 0 {
		c.Channels = DefaultStreamConfig.Channels
	}
	if c.FramesPerBuffer <= 0 {
		c.FramesPerBuffer = DefaultStreamConfig.FramesPerBuffer
	}
	return c
}

// AudioDevice represents an audio input device
type AudioDevice struct {
	ID      string
	Name    string
	Default bool
}

// New creates the backend named in cfg.
func New(cfg config.AudioConfig) (Backend, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", config.BackendPortAudio:
		return newPortAudio()
	case config.BackendMalgo:
		return newMalgo()
	case config.BackendPulse:
		return newPulse()
	case config.BackendFake:
		f := NewFake()
		f.ToneInterval = DefaultToneInterval
		return f, nil
	default:
		return nil, fmt.Errorf("unknown audio backend %q", cfg.Backend)
	}
}
