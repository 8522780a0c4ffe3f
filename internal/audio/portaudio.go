package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

type portAudioBackend struct{}

// newPortAudio initializes PortAudio; Close terminates it.
func newPortAudio() (Backend, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &portAudioBackend{}, nil
}

func (p *portAudioBackend) Open(ctx context.Context, deviceID string, cfg StreamConfig, cb DataCallback) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg = cfg.WithDefaults()

	device, err := p.findDevice(deviceID)
	if err != nil {
		return nil, err
	}

	channels := cfg.Channels
	if device.MaxInputChannels > 0 && channels > device.MaxInputChannels {
		channels = device.MaxInputChannels
	}

	// Interleaved float32, downmixed to mono on delivery
	buffer := make([]float32, cfg.FramesPerBuffer*channels)
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: channels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      float64(cfg.SampleRate),
		FramesPerBuffer: cfg.FramesPerBuffer,
	}, buffer)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio stream on %q: %w", device.Name, err)
	}

	return &portAudioStream{
		stream:   stream,
		buffer:   buffer,
		channels: channels,
		frames:   cfg.FramesPerBuffer,
		gate:     newGate(cb),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

func (p *portAudioBackend) findDevice(deviceID string) (*portaudio.DeviceInfo, error) {
	if deviceID == "" {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("failed to get default input device: %w", err)
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	for _, d := range devices {
		if d.Name == deviceID && d.MaxInputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
}

func (p *portAudioBackend) ListDevices() ([]AudioDevice, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	result := make([]AudioDevice, 0, len(devices))
	defaultDevice, _ := portaudio.DefaultInputDevice()

	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			result = append(result, AudioDevice{
				ID:      d.Name,
				Name:    d.Name,
				Default: d == defaultDevice,
			})
		}
	}

	return result, nil
}

func (p *portAudioBackend) Close() error {
	return portaudio.Terminate()
}

type portAudioStream struct {
	stream   *portaudio.Stream
	buffer   []float32
	channels int
	frames   int
	gate     *gate

	mu      sync.Mutex
	started bool
	stopped bool
	closed  bool
	stop    chan struct{}
	done    chan struct{}
}

func (s *portAudioStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.stopped {
		return nil
	}
	if err := s.stream.Start(); err != nil {
		return fmt.Errorf("failed to start audio stream: %w", err)
	}
	s.started = true

	go s.readLoop()
	return nil
}

func (s *portAudioStream) readLoop() {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			return
		default:
		}

		if err := s.stream.Read(); err != nil && err != portaudio.InputOverflowed {
			return
		}
		mono := downmixInterleaved(s.buffer, s.channels, s.frames)
		s.gate.deliver(float32ToPCM16(mono))
	}
}

func (s *portAudioStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

func (s *portAudioStream) stopLocked() error {
	if s.stopped {
		return nil
	}
	s.stopped = true
	s.gate.shut()
	close(s.stop)

	if !s.started {
		return nil
	}
	// The read loop exits after its current buffer
	<-s.done
	if err := s.stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop audio stream: %w", err)
	}
	return nil
}

func (s *portAudioStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	stopErr := s.stopLocked()
	if err := s.stream.Close(); err != nil {
		return fmt.Errorf("failed to close audio stream: %w", err)
	}
	return stopErr
}
