package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/jfreymuth/pulse"
)

type pulseBackend struct {
	client *pulse.Client
}

func newPulse() (Backend, error) {
	c, err := pulse.NewClient()
	if err != nil {
		return nil, fmt.Errorf("pulse: %w", err)
	}
	return &pulseBackend{client: c}, nil
}

func (p *pulseBackend) ListDevices() ([]AudioDevice, error) {
	sources, err := p.client.ListSources()
	if err != nil {
		return nil, fmt.Errorf("pulse list sources: %w", err)
	}
	var defaultID string
	if def, err := p.client.DefaultSource(); err == nil && def != nil {
		defaultID = def.ID()
	}

	devices := make([]AudioDevice, 0, len(sources))
	for _, s := range sources {
		devices = append(devices, AudioDevice{
			ID:      s.ID(),
			Name:    s.Name(),
			Default: s.ID() == defaultID,
		})
	}
	return devices, nil
}

func (p *pulseBackend) Open(ctx context.Context, deviceID string, cfg StreamConfig, cb DataCallback) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg = cfg.WithDefaults()

	g := newGate(cb)
	writer := pulse.Int16Writer(func(buf []int16) (int, error) {
		g.deliver(int16ToPCM16(buf))
		return len(buf), nil
	})

	opts := []pulse.RecordOption{
		pulse.RecordMono,
		pulse.RecordSampleRate(cfg.SampleRate),
		pulse.RecordLatency(float64(cfg.FramesPerBuffer) / float64(cfg.SampleRate)),
	}
	if deviceID != "" {
		source, err := p.client.SourceByID(deviceID)
		if err != nil || source == nil {
			return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
		}
		opts = append(opts, pulse.RecordSource(source))
	}

	stream, err := p.client.NewRecord(writer, opts...)
	if err != nil {
		return nil, fmt.Errorf("pulse record: %w", err)
	}
	return &pulseStream{stream: stream, gate: g}, nil
}

func (p *pulseBackend) Close() error {
	p.client.Close()
	return nil
}

type pulseStream struct {
	stream *pulse.RecordStream
	gate   *gate

	mu      sync.Mutex
	started bool
	stopped bool
	closed  bool
}

func (s *pulseStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return nil
	}
	s.stream.Start()
	s.started = true
	return nil
}

func (s *pulseStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	return nil
}

func (s *pulseStream) stopLocked() {
	if s.stopped {
		return
	}
	s.stopped = true
	s.gate.shut()
	if s.started {
		s.stream.Stop()
	}
}

func (s *pulseStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.stopLocked()
	s.stream.Close()
	return nil
}
