package recording

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/petems/clip-recorder/internal/audio"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// ============================================================================
// Test helpers
// ============================================================================

type manualClock struct {
	mu      sync.Mutex
	tickers []*manualTicker
}

func (c *manualClock) NewTicker(time.Duration) Ticker {
	t := &manualTicker{ch: make(chan time.Time), stopped: make(chan struct{})}
	c.mu.Lock()
	c.tickers = append(c.tickers, t)
	c.mu.Unlock()
	return t
}

func (c *manualClock) last(t *testing.T) *manualTicker {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.tickers, "no ticker created")
	return c.tickers[len(c.tickers)-1]
}

type manualTicker struct {
	ch      chan time.Time
	once    sync.Once
	stopped chan struct{}
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               { m.once.Do(func() { close(m.stopped) }) }

// fire hands one tick to the session loop. It reports false once the ticker
// has been stopped.
func (m *manualTicker) fire() bool {
	select {
	case m.ch <- time.Now():
		return true
	case <-m.stopped:
		return false
	}
}

type handlerLog struct {
	mu        sync.Mutex
	artifacts []Artifact
	errs      []error
}

func (h *handlerLog) OnRecordingComplete(a Artifact) {
	h.mu.Lock()
	h.artifacts = append(h.artifacts, a)
	h.mu.Unlock()
}

func (h *handlerLog) OnError(err error) {
	h.mu.Lock()
	h.errs = append(h.errs, err)
	h.mu.Unlock()
}

func (h *handlerLog) results() ([]Artifact, []error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Artifact(nil), h.artifacts...), append([]error(nil), h.errs...)
}

type statusLog struct {
	mu      sync.Mutex
	states  []State
	elapsed []int
}

func (s *statusLog) SetState(state State) {
	s.mu.Lock()
	s.states = append(s.states, state)
	s.mu.Unlock()
}

func (s *statusLog) SetElapsed(seconds int) {
	s.mu.Lock()
	s.elapsed = append(s.elapsed, seconds)
	s.mu.Unlock()
}

func (s *statusLog) seen() []State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]State(nil), s.states...)
}

type fixture struct {
	backend *audio.Fake
	clock   *manualClock
	handler *handlerLog
	status  *statusLog
	session *Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		backend: audio.NewFake(),
		clock:   &manualClock{},
		handler: &handlerLog{},
		status:  &statusLog{},
	}
	ids := 0
	f.session = New(Config{
		Backend: f.backend,
		Stream:  audio.StreamConfig{SampleRate: 8000},
		Handler: f.handler,
		Status:  f.status,
		Logger:  zerolog.Nop(),
		Clock:   f.clock,
		NewID: func() string {
			ids++
			return "session-" + string(rune('0'+ids))
		},
	})
	t.Cleanup(f.session.Teardown)
	return f
}

func (f *fixture) advance(t *testing.T, ticks int) {
	t.Helper()
	ticker := f.clock.last(t)
	want := f.session.Elapsed() + ticks
	for i := 0; i < ticks; i++ {
		require.True(t, ticker.fire(), "ticker stopped early")
	}
	require.Eventually(t, func() bool { return f.session.Elapsed() == want },
		time.Second, time.Millisecond, "elapsed should reach %d", want)
}

// ============================================================================
// Start / Stop
// ============================================================================

func TestStopAssemblesChunksInArrivalOrder(t *testing.T) {
	f := newFixture(t)

	f.session.Start(context.Background())
	require.Equal(t, Recording, f.session.State())
	require.True(t, f.session.IsRecording())

	stream := f.backend.Last()
	stream.Emit([]byte("c1-"))
	stream.Emit([]byte("c2-"))
	stream.Emit([]byte("c3"))
	f.session.Stop()

	artifacts, errs := f.handler.results()
	require.Empty(t, errs)
	require.Len(t, artifacts, 1)

	a := artifacts[0]
	assert.Equal(t, []byte("c1-c2-c3"), a.Data)
	assert.Equal(t, MediaType, a.MediaType)
	assert.Equal(t, Filename, a.Filename)
	assert.Equal(t, 3, a.Chunks)
	assert.Equal(t, "session-1", a.SessionID)
	assert.Equal(t, Format{SampleRate: 8000, Channels: 1, BytesPerSample: 2}, a.Format)

	assert.Equal(t, Idle, f.session.State())
	assert.Equal(t, 0, f.backend.Active(), "device should be released")
	assert.Equal(t, 1, stream.Closes(), "device should be released exactly once")
	assert.Equal(t, []State{Acquiring, Recording, Stopping, Idle}, f.status.seen())
}

func TestStartIgnoredWhileRecording(t *testing.T) {
	f := newFixture(t)

	f.session.Start(context.Background())
	f.session.Start(context.Background())
	f.session.Start(context.Background())

	assert.Equal(t, 1, f.backend.Opened(), "only one device grant expected")
	assert.Equal(t, 1, f.backend.MaxActive())
	assert.Equal(t, Recording, f.session.State())
}

func TestStartIgnoredWhileAcquiring(t *testing.T) {
	f := newFixture(t)
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	f.backend.OpenFunc = func(ctx context.Context) error {
		entered <- struct{}{}
		<-release
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.session.Start(context.Background())
	}()
	<-entered
	require.Equal(t, Acquiring, f.session.State())

	f.session.Start(context.Background())
	f.session.Stop()
	close(release)
	<-done

	assert.Equal(t, 1, f.backend.Opened())
	assert.Equal(t, 1, f.backend.MaxActive())
	assert.Equal(t, Recording, f.session.State())
}

func TestSequentialSessionsNeverOverlap(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 3; i++ {
		f.session.Start(context.Background())
		f.backend.Last().Emit([]byte{byte(i)})
		f.session.Stop()
	}

	artifacts, _ := f.handler.results()
	require.Len(t, artifacts, 3)
	for i, a := range artifacts {
		assert.Equal(t, []byte{byte(i)}, a.Data, "session %d payload", i)
	}
	assert.Equal(t, 3, f.backend.Opened())
	assert.Equal(t, 1, f.backend.MaxActive())
	assert.Equal(t, 0, f.backend.Active())
}

func TestStopIgnoredWhenNotRecording(t *testing.T) {
	f := newFixture(t)

	f.session.Stop()
	f.session.Start(context.Background())
	f.session.Stop()
	f.session.Stop()

	artifacts, errs := f.handler.results()
	assert.Len(t, artifacts, 1)
	assert.Empty(t, errs)
}

func TestChunkAfterStopIsDropped(t *testing.T) {
	f := newFixture(t)
	f.backend.BeforeStop = func(s *audio.FakeStream) {
		s.Emit([]byte("late"))
	}

	f.session.Start(context.Background())
	f.backend.Last().Emit([]byte("kept"))
	f.session.Stop()

	artifacts, _ := f.handler.results()
	require.Len(t, artifacts, 1)
	assert.Equal(t, []byte("kept"), artifacts[0].Data)
	assert.Equal(t, 1, artifacts[0].Chunks)
}

func TestEmptyFragmentsAreIgnored(t *testing.T) {
	f := newFixture(t)

	f.session.Start(context.Background())
	stream := f.backend.Last()
	stream.Emit(nil)
	stream.Emit([]byte{})
	stream.Emit([]byte("x"))
	f.session.Stop()

	artifacts, _ := f.handler.results()
	require.Len(t, artifacts, 1)
	assert.Equal(t, 1, artifacts[0].Chunks)
}

func TestZeroLengthCaptureProducesEmptyArtifact(t *testing.T) {
	f := newFixture(t)

	f.session.Start(context.Background())
	f.session.Stop()

	artifacts, errs := f.handler.results()
	require.Empty(t, errs)
	require.Len(t, artifacts, 1)
	assert.NotNil(t, artifacts[0].Data)
	assert.Empty(t, artifacts[0].Data)
	assert.Equal(t, 0, artifacts[0].Elapsed)
	assert.Equal(t, time.Duration(0), artifacts[0].Duration())
}

// ============================================================================
// Failures
// ============================================================================

func TestAcquisitionFailureReturnsToIdle(t *testing.T) {
	f := newFixture(t)
	denied := errors.New("permission denied")
	f.backend.OpenFunc = func(context.Context) error { return denied }

	f.session.Start(context.Background())

	artifacts, errs := f.handler.results()
	assert.Empty(t, artifacts)
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], ErrDeviceUnavailable))
	assert.True(t, errors.Is(errs[0], denied))

	var rerr *Error
	require.True(t, errors.As(errs[0], &rerr))
	assert.Equal(t, DeviceUnavailable, rerr.Kind)

	assert.Equal(t, Idle, f.session.State())
	assert.Equal(t, []State{Acquiring, Failed, Idle}, f.status.seen())

	// Retry succeeds
	f.backend.OpenFunc = nil
	f.session.Start(context.Background())
	assert.Equal(t, Recording, f.session.State())
	_, errs = f.handler.results()
	assert.Len(t, errs, 1)
}

func TestStreamStartFailureReleasesDevice(t *testing.T) {
	f := newFixture(t)
	f.backend.StartErr = errors.New("device busy")

	f.session.Start(context.Background())

	_, errs := f.handler.results()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrDeviceUnavailable)
	assert.Equal(t, 1, f.backend.Opened())
	assert.Equal(t, 0, f.backend.Active())
	assert.Equal(t, Idle, f.session.State())
}

func TestCancelledAcquisitionIsReported(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f.session.Start(ctx)

	_, errs := f.handler.results()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], context.Canceled)
	assert.Equal(t, Idle, f.session.State())
}

func TestFinalizeFailureIsReportedWithoutArtifact(t *testing.T) {
	f := newFixture(t)
	f.backend.StopErr = errors.New("stream lost")

	f.session.Start(context.Background())
	f.backend.Last().Emit([]byte("data"))
	f.session.Stop()

	artifacts, errs := f.handler.results()
	assert.Empty(t, artifacts)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrDeviceUnavailable)
	assert.Equal(t, Idle, f.session.State())
	assert.Equal(t, 0, f.backend.Active())
}

func TestReleaseFailureStillDeliversArtifact(t *testing.T) {
	f := newFixture(t)
	f.backend.CloseErr = errors.New("close failed")

	f.session.Start(context.Background())
	f.backend.Last().Emit([]byte("data"))
	f.session.Stop()

	artifacts, errs := f.handler.results()
	assert.Empty(t, errs)
	require.Len(t, artifacts, 1)
	assert.Equal(t, []byte("data"), artifacts[0].Data)
}

// ============================================================================
// Teardown
// ============================================================================

func TestTeardownReleasesAndIsIdempotent(t *testing.T) {
	f := newFixture(t)

	f.session.Start(context.Background())
	stream := f.backend.Last()
	stream.Emit([]byte("discarded"))

	f.session.Teardown()
	f.session.Teardown()

	assert.Equal(t, 0, f.backend.Active())
	assert.Equal(t, 1, stream.Closes(), "no double release")
	assert.Equal(t, Idle, f.session.State())

	artifacts, errs := f.handler.results()
	assert.Empty(t, artifacts, "teardown is not a stop")
	assert.Empty(t, errs)

	f.session.Start(context.Background())
	assert.Equal(t, 1, f.backend.Opened(), "start after teardown is ignored")
}

func TestTeardownWhileStoppingDiscardsArtifact(t *testing.T) {
	f := newFixture(t)
	torndown := make(chan struct{})
	f.backend.BeforeStop = func(*audio.FakeStream) {
		go func() {
			f.session.Teardown()
			close(torndown)
		}()
		// Teardown has taken over once the session leaves Stopping.
		require.Eventually(t, func() bool { return f.session.State() == Idle },
			time.Second, time.Millisecond)
	}

	f.session.Start(context.Background())
	stream := f.backend.Last()
	stream.Emit([]byte("discarded"))
	f.session.Stop()
	<-torndown

	artifacts, errs := f.handler.results()
	assert.Empty(t, artifacts, "a torn-down session delivers nothing")
	assert.Empty(t, errs)
	assert.Equal(t, 0, f.backend.Active())
	assert.Equal(t, 1, stream.Closes(), "stop and teardown release the device once")
	assert.Equal(t, Idle, f.session.State())
	assert.Equal(t, []State{Acquiring, Recording, Stopping}, f.status.seen())

	f.session.Start(context.Background())
	assert.Equal(t, 1, f.backend.Opened(), "start after teardown is ignored")
}

func TestTeardownBeforeStart(t *testing.T) {
	f := newFixture(t)

	f.session.Teardown()
	f.session.Teardown()

	assert.Equal(t, 0, f.backend.Opened())
	assert.Equal(t, Idle, f.session.State())
}

func TestTeardownWhileAcquiringReleasesLateGrant(t *testing.T) {
	f := newFixture(t)
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	f.backend.OpenFunc = func(context.Context) error {
		entered <- struct{}{}
		<-release
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.session.Start(context.Background())
	}()
	<-entered

	f.session.Teardown()
	close(release)
	<-done

	assert.Equal(t, 1, f.backend.Opened())
	assert.Equal(t, 0, f.backend.Active())
	assert.Equal(t, Idle, f.session.State())
	artifacts, errs := f.handler.results()
	assert.Empty(t, artifacts)
	assert.Empty(t, errs)
}

func TestTeardownWhileAcquiringSuppressesFailure(t *testing.T) {
	f := newFixture(t)
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	f.backend.OpenFunc = func(context.Context) error {
		entered <- struct{}{}
		<-release
		return errors.New("no device")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.session.Start(context.Background())
	}()
	<-entered

	f.session.Teardown()
	close(release)
	<-done

	_, errs := f.handler.results()
	assert.Empty(t, errs)
}

// ============================================================================
// Elapsed time
// ============================================================================

func TestElapsedAdvancesFreezesAndResets(t *testing.T) {
	f := newFixture(t)

	f.session.Start(context.Background())
	assert.Equal(t, 0, f.session.Elapsed())

	f.advance(t, 2)
	assert.Equal(t, 2, f.session.Elapsed())

	ticker := f.clock.last(t)
	f.session.Stop()
	assert.False(t, ticker.fire(), "ticker must be cancelled on stop")
	assert.Equal(t, 2, f.session.Elapsed(), "elapsed freezes on stop")

	artifacts, _ := f.handler.results()
	require.Len(t, artifacts, 1)
	assert.Equal(t, 2, artifacts[0].Elapsed)

	f.session.Start(context.Background())
	assert.Equal(t, 0, f.session.Elapsed(), "elapsed resets on start")
	f.advance(t, 1)
	assert.Equal(t, 1, f.session.Elapsed())
}

func TestTeardownCancelsTicker(t *testing.T) {
	f := newFixture(t)

	f.session.Start(context.Background())
	ticker := f.clock.last(t)
	f.session.Teardown()

	assert.False(t, ticker.fire())
}

func TestThreeSecondRecording(t *testing.T) {
	f := newFixture(t)

	f.session.Start(context.Background())
	f.backend.Last().Emit([]byte{0x01, 0x00, 0x02, 0x00})
	f.advance(t, 3)
	f.session.Stop()

	assert.Equal(t, "0:03", f.session.ElapsedString())

	artifacts, errs := f.handler.results()
	require.Empty(t, errs)
	require.Len(t, artifacts, 1)
	assert.NotEmpty(t, artifacts[0].Data)
	assert.Equal(t, MediaType, artifacts[0].MediaType)
	assert.Equal(t, Filename, artifacts[0].Filename)
	assert.Equal(t, 3, artifacts[0].Elapsed)

	f.status.mu.Lock()
	defer f.status.mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3}, f.status.elapsed)
}

func TestWallClockTicks(t *testing.T) {
	handler := &handlerLog{}
	s := New(Config{
		Backend:      audio.NewFake(),
		Handler:      handler,
		Logger:       zerolog.Nop(),
		TickInterval: 5 * time.Millisecond,
	})
	defer s.Teardown()

	s.Start(context.Background())
	require.Eventually(t, func() bool { return s.Elapsed() >= 2 }, 2*time.Second, time.Millisecond)
	s.Stop()

	frozen := s.Elapsed()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, frozen, s.Elapsed())
	assert.NotEmpty(t, s.ID())
}

// ============================================================================
// Device selection
// ============================================================================

func TestSetDevice(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.session.SetDevice("USB Mic"))
	f.session.Start(context.Background())
	assert.Equal(t, "USB Mic", f.backend.Last().DeviceID())

	assert.ErrorIs(t, f.session.SetDevice("Other"), ErrBusy)
	f.session.Stop()
	assert.NoError(t, f.session.SetDevice(""))
}
