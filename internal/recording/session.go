// Package recording drives a single bounded capture session: it acquires an
// input device, accumulates the fragments it delivers while recording, and on
// stop assembles them into one Artifact for the caller. The device handle and
// the elapsed-time ticker are released on every exit path.
package recording

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/petems/clip-recorder/internal/audio"
)

// ErrBusy is returned by SetDevice while a session is in progress.
var ErrBusy = errors.New("recording in progress")

// Handler receives the outcome of a session.
type Handler interface {
	// OnRecordingComplete is called once per successful Stop.
	OnRecordingComplete(a Artifact)
	// OnError receives a *Error when the device cannot be acquired or finalized.
	OnError(err error)
}

// StatusUpdater receives observable state for a presentation layer.
// SetElapsed runs on the ticker goroutine and must not call Stop or
// Teardown synchronously. SetState(Stopping) runs inside Stop, so a
// synchronous Teardown from it waits on that same Stop and never returns.
type StatusUpdater interface {
	SetState(state State)
	SetElapsed(seconds int)
}

type Config struct {
	Backend      audio.Backend
	DeviceID     string
	Stream       audio.StreamConfig
	Handler      Handler
	Status       StatusUpdater // Optional - can be nil
	Logger       zerolog.Logger
	Clock        Clock         // Optional - wall clock
	TickInterval time.Duration // Optional - one second
	NewID        func() string // Optional - random UUID
}

// Session is the recording state machine. Start, Stop and Teardown may be
// called from any goroutine.
type Session struct {
	backend   audio.Backend
	streamCfg audio.StreamConfig
	handler   Handler
	status    StatusUpdater
	log       zerolog.Logger
	clock     Clock
	interval  time.Duration
	newID     func() string

	mu        sync.Mutex
	state     State
	gen       uint64
	id        string
	deviceID  string
	stream    audio.Stream
	ticks     *tickLoop
	chunks    [][]byte
	elapsed   int
	closed    bool
	releasing sync.WaitGroup
}

func New(cfg Config) *Session {
	s := &Session{
		backend:   cfg.Backend,
		streamCfg: cfg.Stream.WithDefaults(),
		handler:   cfg.Handler,
		status:    cfg.Status,
		log:       cfg.Logger.With().Str("component", "recording").Logger(),
		clock:     cfg.Clock,
		interval:  cfg.TickInterval,
		newID:     cfg.NewID,
		deviceID:  cfg.DeviceID,
	}
	if s.handler == nil {
		s.handler = nopHandler{}
	}
	if s.clock == nil {
		s.clock = wallClock{}
	}
	if s.interval <= 0 {
		s.interval = time.Second
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// Start acquires the input device and begins recording. It blocks only while
// the backend grants the device; ctx bounds that wait. Calls made while the
// session is not Idle are ignored.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.closed || s.state != Idle {
		state := s.state
		s.mu.Unlock()
		s.log.Debug().Stringer("state", state).Msg("Start ignored")
		return
	}
	s.gen++
	gen := s.gen
	s.id = s.newID()
	s.chunks = nil
	s.elapsed = 0
	s.state = Acquiring
	deviceID := s.deviceID
	log := s.log.With().Str("session", s.id).Logger()
	s.mu.Unlock()

	s.notifyState(Acquiring)
	s.notifyElapsed(0)

	stream, err := s.acquire(ctx, gen, deviceID, log)
	if err != nil {
		s.fail(gen, log, deviceUnavailable("could not access microphone", err))
		return
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		log.Debug().Msg("Releasing device granted after teardown")
		if err := stream.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to release audio device")
		}
		return
	}
	s.stream = stream
	s.state = Recording
	s.ticks = s.startTicks(gen)
	s.mu.Unlock()

	log.Info().Str("device", deviceLabel(deviceID)).Msg("Recording started")
	s.notifyState(Recording)
}

func (s *Session) acquire(ctx context.Context, gen uint64, deviceID string, log zerolog.Logger) (audio.Stream, error) {
	stream, err := s.backend.Open(ctx, deviceID, s.streamCfg, func(chunk []byte) {
		s.deliver(gen, chunk)
	})
	if err != nil {
		return nil, err
	}
	if err := stream.Start(); err != nil {
		if cerr := stream.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("Failed to release audio device")
		}
		return nil, err
	}
	return stream, nil
}

// deliver appends a fragment from the device. Fragments arriving outside
// Recording, including those racing a Stop, are dropped.
func (s *Session) deliver(gen uint64, chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || s.state != Recording {
		return
	}
	s.chunks = append(s.chunks, chunk)
}

// Stop ends recording, releases the device and hands the assembled artifact
// to the handler. Calls made while not Recording are ignored.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state != Recording {
		state := s.state
		s.mu.Unlock()
		s.log.Debug().Stringer("state", state).Msg("Stop ignored")
		return
	}
	s.state = Stopping
	gen := s.gen
	id := s.id
	stream := s.stream
	s.stream = nil
	ticks := s.ticks
	s.ticks = nil
	elapsed := s.elapsed
	s.releasing.Add(1)
	log := s.log.With().Str("session", id).Logger()
	s.mu.Unlock()

	ticks.halt()
	s.notifyState(Stopping)

	stopErr := stream.Stop()

	// No fragment is appended once the state left Recording
	s.mu.Lock()
	chunks := s.chunks
	s.mu.Unlock()
	artifact := assemble(id, chunks, elapsed, s.streamCfg)

	closeErr := stream.Close()
	s.releasing.Done()

	s.mu.Lock()
	current := s.gen == gen
	if current {
		if stopErr != nil {
			s.state = Failed
		} else {
			s.state = Idle
		}
	}
	s.mu.Unlock()

	if !current {
		log.Debug().Msg("Session torn down while stopping, artifact discarded")
		return
	}
	if closeErr != nil {
		log.Warn().Err(closeErr).Msg("Failed to release audio device")
	}
	if stopErr != nil {
		s.report(gen, log, deviceUnavailable("could not finalize recording", stopErr))
		return
	}

	log.Info().
		Int("chunks", artifact.Chunks).
		Int("bytes", artifact.Size()).
		Int("elapsed_s", elapsed).
		Msg("Recording complete")
	s.notifyState(Idle)
	s.handler.OnRecordingComplete(artifact)
}

// Teardown cancels the ticker and releases the device if held, without
// delivering an artifact or reporting an error. The session accepts no
// further Start calls. Safe to call more than once.
func (s *Session) Teardown() {
	s.mu.Lock()
	first := !s.closed
	s.closed = true
	s.gen++
	prev := s.state
	stream := s.stream
	s.stream = nil
	ticks := s.ticks
	s.ticks = nil
	s.state = Idle
	s.mu.Unlock()

	ticks.halt()
	if stream != nil {
		if err := stream.Close(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to release audio device")
		}
	}
	// A concurrent Stop owns its stream until it has released it
	s.releasing.Wait()

	if first {
		s.log.Debug().Stringer("state", prev).Msg("Session torn down")
	}
}

func (s *Session) fail(gen uint64, log zerolog.Logger, err *Error) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.state = Failed
	s.mu.Unlock()

	s.report(gen, log, err)
}

// report delivers err from Failed and then returns the session to Idle.
func (s *Session) report(gen uint64, log zerolog.Logger, err *Error) {
	log.Error().Err(err.Err).Str("kind", err.Kind.String()).Msg(err.Message)
	s.notifyState(Failed)
	s.handler.OnError(err)

	s.mu.Lock()
	reset := s.gen == gen && s.state == Failed
	if reset {
		s.state = Idle
	}
	s.mu.Unlock()

	if reset {
		s.notifyState(Idle)
	}
}

// SetDevice selects the input used by the next Start.
func (s *Session) SetDevice(deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Idle {
		return ErrBusy
	}
	s.deviceID = deviceID
	return nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) IsRecording() bool {
	return s.State() == Recording
}

// Elapsed returns the whole seconds counted while recording. It freezes on
// Stop and resets on the next Start.
func (s *Session) Elapsed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed
}

// ElapsedString is Elapsed formatted as m:ss.
func (s *Session) ElapsedString() string {
	return FormatElapsed(s.Elapsed())
}

// ID returns the identifier of the current or most recent session.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

func (s *Session) notifyState(state State) {
	if s.status != nil {
		s.status.SetState(state)
	}
}

func (s *Session) notifyElapsed(seconds int) {
	if s.status != nil {
		s.status.SetElapsed(seconds)
	}
}

func deviceLabel(deviceID string) string {
	if deviceID == "" {
		return "system default"
	}
	return deviceID
}

type nopHandler struct{}

func (nopHandler) OnRecordingComplete(Artifact) {}
func (nopHandler) OnError(error)                {}
