package audio

import (
	"context"
	"math"
	"sync"
	"time"
)

// DefaultToneInterval is how often the fake backend emits a tone fragment
// when selected from config.
const DefaultToneInterval = 100 * time.Millisecond

// Fake is an in-process Backend. Tests push fragments through the returned
// streams; with ToneInterval set, started streams also emit a 440 Hz tone.
type Fake struct {
	// OpenFunc, when set, runs before a grant and can block or fail it.
	OpenFunc func(ctx context.Context) error
	// BeforeStop runs at the top of Stream.Stop while the stream still delivers.
	BeforeStop func(s *FakeStream)

	StartErr     error
	StopErr      error
	CloseErr     error
	ToneInterval time.Duration

	mu        sync.Mutex
	streams   []*FakeStream
	opened    int
	active    int
	maxActive int
}

// NewFake returns a fake backend with no scripted failures.
func NewFake() *Fake {
	return &Fake{}
}

func (f *Fake) Open(ctx context.Context, deviceID string, cfg StreamConfig, cb DataCallback) (Stream, error) {
	if f.OpenFunc != nil {
		if err := f.OpenFunc(ctx); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := &FakeStream{
		backend:  f,
		deviceID: deviceID,
		cfg:      cfg.WithDefaults(),
		gate:     newGate(cb),
	}

	f.mu.Lock()
	f.streams = append(f.streams, s)
	f.opened++
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	f.mu.Unlock()
	return s, nil
}

func (f *Fake) ListDevices() ([]AudioDevice, error) {
	return []AudioDevice{{ID: "fake", Name: "Fake Microphone", Default: true}}, nil
}

func (f *Fake) Close() error { return nil }

// Opened is the number of grants handed out.
func (f *Fake) Opened() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened
}

// Active is the number of granted streams not yet closed.
func (f *Fake) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

// MaxActive is the highest number of simultaneously held streams seen.
func (f *Fake) MaxActive() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxActive
}

// Last returns the most recently opened stream, or nil.
func (f *Fake) Last() *FakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.streams) == 0 {
		return nil
	}
	return f.streams[len(f.streams)-1]
}

func (f *Fake) released() {
	f.mu.Lock()
	f.active--
	f.mu.Unlock()
}

// FakeStream is a stream handed out by Fake.
type FakeStream struct {
	backend  *Fake
	deviceID string
	cfg      StreamConfig
	gate     *gate

	mu      sync.Mutex
	started bool
	stopped bool
	closes  int
	toneEnd chan struct{}
	toneWG  sync.WaitGroup
}

// DeviceID is the device the stream was opened on.
func (s *FakeStream) DeviceID() string { return s.deviceID }

// Emit delivers a fragment as if the device produced it.
func (s *FakeStream) Emit(chunk []byte) {
	s.gate.deliver(chunk)
}

func (s *FakeStream) Start() error {
	if err := s.backend.StartErr; err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return nil
	}
	s.started = true

	if interval := s.backend.ToneInterval; interval > 0 {
		s.toneEnd = make(chan struct{})
		s.toneWG.Add(1)
		go s.tone(interval, s.toneEnd)
	}
	return nil
}

func (s *FakeStream) tone(interval time.Duration, end <-chan struct{}) {
	defer s.toneWG.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	frames := int(time.Duration(s.cfg.SampleRate) * interval / time.Second)
	phase := 0
	for {
		select {
		case <-end:
			return
		case <-ticker.C:
			samples := make([]float32, frames)
			for i := range samples {
				samples[i] = 0.2 * float32(math.Sin(2*math.Pi*440*float64(phase)/float64(s.cfg.SampleRate)))
				phase++
			}
			s.gate.deliver(float32ToPCM16(samples))
		}
	}
}

func (s *FakeStream) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	end := s.toneEnd
	s.mu.Unlock()

	if hook := s.backend.BeforeStop; hook != nil {
		hook(s)
	}

	if end != nil {
		close(end)
		s.toneWG.Wait()
	}
	s.gate.shut()
	return s.backend.StopErr
}

func (s *FakeStream) Close() error {
	s.mu.Lock()
	s.closes++
	first := s.closes == 1
	s.mu.Unlock()

	if !first {
		return nil
	}
	s.Stop()
	s.backend.released()
	return s.backend.CloseErr
}

// Started reports whether Start succeeded.
func (s *FakeStream) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Stopped reports whether Stop has run.
func (s *FakeStream) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Closes is the number of Close calls the stream received.
func (s *FakeStream) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}
