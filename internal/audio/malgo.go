package audio

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

type malgoBackend struct {
	ctx *malgo.AllocatedContext
}

func newMalgo() (Backend, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("malgo init: %w", err)
	}
	return &malgoBackend{ctx: ctx}, nil
}

func (m *malgoBackend) ListDevices() ([]AudioDevice, error) {
	devices, err := m.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("malgo devices: %w", err)
	}
	result := make([]AudioDevice, 0, len(devices))
	for _, d := range devices {
		result = append(result, AudioDevice{
			ID:      hex.EncodeToString(d.ID[:]),
			Name:    d.Name(),
			Default: d.IsDefault != 0,
		})
	}
	return result, nil
}

// resolve accepts either the hex ID reported by ListDevices or a device name.
func (m *malgoBackend) resolve(deviceID string) (*malgo.DeviceID, error) {
	devices, err := m.ListDevices()
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		if d.ID != deviceID && d.Name != deviceID {
			continue
		}
		idBytes, err := hex.DecodeString(d.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid device ID: %w", err)
		}
		var devID malgo.DeviceID
		copy(devID[:], idBytes)
		return &devID, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
}

func (m *malgoBackend) Open(ctx context.Context, deviceID string, cfg StreamConfig, cb DataCallback) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg = cfg.WithDefaults()

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(cfg.FramesPerBuffer)

	s := &malgoStream{gate: newGate(cb)}
	if deviceID != "" {
		devID, err := m.resolve(deviceID)
		if err != nil {
			return nil, err
		}
		s.id = devID
		deviceConfig.Capture.DeviceID = s.id.Pointer()
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			// miniaudio reuses its buffer
			chunk := make([]byte, len(input))
			copy(chunk, input)
			s.gate.deliver(chunk)
		},
	}

	dev, err := malgo.InitDevice(m.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("malgo init device: %w", err)
	}
	s.device = dev
	return s, nil
}

func (m *malgoBackend) Close() error {
	err := m.ctx.Uninit()
	m.ctx.Free()
	return err
}

type malgoStream struct {
	device *malgo.Device
	id     *malgo.DeviceID
	gate   *gate

	mu      sync.Mutex
	started bool
	stopped bool
	closed  bool
}

func (s *malgoStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return nil
	}
	if err := s.device.Start(); err != nil {
		return fmt.Errorf("malgo start: %w", err)
	}
	s.started = true
	return nil
}

func (s *malgoStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

func (s *malgoStream) stopLocked() error {
	if s.stopped {
		return nil
	}
	s.stopped = true
	s.gate.shut()
	if !s.started {
		return nil
	}
	if err := s.device.Stop(); err != nil {
		return fmt.Errorf("malgo stop: %w", err)
	}
	return nil
}

func (s *malgoStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.stopLocked()
	s.device.Uninit()
	return err
}
