package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/petems/clip-recorder/internal/audio"
	"github.com/petems/clip-recorder/internal/config"
	"github.com/petems/clip-recorder/internal/output"
	"github.com/petems/clip-recorder/internal/recording"
)

type Mode int

const (
	PushToTalk Mode = iota
	Toggle
)

// StatusUpdater is an interface for updating status (e.g., tray icon)
type StatusUpdater interface {
	SetIdle()
	SetRecording()
	SetProcessing()
	SetError()
	SetElapsed(seconds int)
}

type Config struct {
	Backend       audio.Backend
	Sink          output.Sink // Optional - artifacts are only logged when nil
	Config        *config.Config
	Logger        zerolog.Logger
	StatusUpdater StatusUpdater                           // Optional - can be nil
	Clock         recording.Clock                         // Optional
	Persist       func(change func(*config.Config)) error // Optional - defaults to config.Update on config.Path
}

// App binds hotkey and menu input to one recording session and forwards the
// session's results to the output sink and status display.
type App struct {
	backend audio.Backend
	sink    output.Sink
	log     zerolog.Logger
	status  StatusUpdater
	persist func(change func(*config.Config)) error
	session *recording.Session

	mu        sync.Mutex
	cfg       *config.Config
	lastState recording.State
}

func New(cfg Config) *App {
	a := &App{
		backend: cfg.Backend,
		sink:    cfg.Sink,
		cfg:     cfg.Config,
		log:     cfg.Logger,
		status:  cfg.StatusUpdater,
		persist: cfg.Persist,
	}
	if a.persist == nil {
		a.persist = func(change func(*config.Config)) error {
			return config.Update(config.Path(), change)
		}
	}
	a.session = recording.New(recording.Config{
		Backend:  cfg.Backend,
		DeviceID: cfg.Config.Audio.DeviceID,
		Stream:   audio.StreamConfigFrom(cfg.Config.Audio),
		Handler:  a,
		Status:   a,
		Logger:   cfg.Logger,
		Clock:    cfg.Clock,
	})
	return a
}

func (a *App) mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cfg.Mode == config.ModeToggle {
		return Toggle
	}
	return PushToTalk
}

func (a *App) OnHotkey(pressed bool) {
	switch a.mode() {
	case PushToTalk:
		if pressed {
			a.StartRecording(context.Background())
		} else {
			a.StopRecording()
		}
	case Toggle:
		if pressed {
			a.Toggle(context.Background())
		}
	}
}

// Toggle starts a session when idle and stops the running one otherwise.
func (a *App) Toggle(ctx context.Context) {
	if a.session.IsRecording() {
		a.StopRecording()
		return
	}
	a.StartRecording(ctx)
}

func (a *App) StartRecording(ctx context.Context) {
	a.log.Debug().Msg("Start requested")
	a.session.Start(ctx)
}

func (a *App) StopRecording() {
	a.log.Debug().Msg("Stop requested")
	a.session.Stop()
}

// recording.Handler

func (a *App) OnRecordingComplete(art recording.Artifact) {
	a.log.Info().
		Str("session", art.SessionID).
		Str("size", humanize.Bytes(uint64(art.Size()))).
		Str("elapsed", recording.FormatElapsed(art.Elapsed)).
		Msg("Recording complete")

	if a.sink == nil {
		return
	}
	if err := a.sink.Deliver(context.Background(), art); err != nil {
		a.log.Error().Err(err).Msg("Deliver error")
		if a.status != nil {
			a.status.SetError()
		}
	}
}

func (a *App) OnError(err error) {
	var recErr *recording.Error
	if errors.As(err, &recErr) {
		a.log.Error().Err(recErr.Err).Stringer("kind", recErr.Kind).Msg(recErr.Message)
	} else {
		a.log.Error().Err(err).Msg("Recording error")
	}
	if a.status != nil {
		a.status.SetError()
	}
}

// recording.StatusUpdater

func (a *App) SetState(state recording.State) {
	a.mu.Lock()
	prev := a.lastState
	a.lastState = state
	a.mu.Unlock()

	if a.status == nil {
		return
	}
	switch state {
	case recording.Recording:
		a.status.SetRecording()
	case recording.Stopping:
		a.status.SetProcessing()
	case recording.Failed:
		a.status.SetError()
	case recording.Idle:
		// A failure stays visible until the next session begins.
		if prev != recording.Failed {
			a.status.SetIdle()
		}
	}
}

func (a *App) SetElapsed(seconds int) {
	if a.status != nil {
		a.status.SetElapsed(seconds)
	}

	a.mu.Lock()
	limit := a.cfg.Recording.MaxSeconds
	a.mu.Unlock()
	if limit > 0 && seconds >= limit {
		a.log.Info().Int("max_seconds", limit).Msg("Maximum duration reached")
		// Runs on the ticker goroutine; Stop waits for it to exit.
		go a.session.Stop()
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.session.Teardown()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown: %w", ctx.Err())
	}
}

// Tray actions

func (a *App) Mode() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg.Mode
}

func (a *App) SetMode(mode string) error {
	if mode != config.ModePushToTalk && mode != config.ModeToggle {
		return fmt.Errorf("unknown mode %q", mode)
	}

	a.mu.Lock()
	a.cfg.Mode = mode
	a.mu.Unlock()

	// Only the changed setting is stored; run-time overrides stay in memory.
	return a.persist(func(c *config.Config) { c.Mode = mode })
}

func (a *App) SetDevice(id string) error {
	if err := a.session.SetDevice(id); err != nil {
		return fmt.Errorf("cannot change while recording: %w", err)
	}

	a.mu.Lock()
	a.cfg.Audio.DeviceID = id
	a.mu.Unlock()

	return a.persist(func(c *config.Config) { c.Audio.DeviceID = id })
}

func (a *App) DeviceID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg.Audio.DeviceID
}

func (a *App) IsRecording() bool {
	return a.session.IsRecording()
}

func (a *App) State() recording.State {
	return a.session.State()
}

func (a *App) Elapsed() int {
	return a.session.Elapsed()
}

func (a *App) ListDevices() ([]audio.AudioDevice, error) {
	return a.backend.ListDevices()
}
