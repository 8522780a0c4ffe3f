package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petems/clip-recorder/internal/recording"
)

type stubSink struct{ err error }

func (s stubSink) Deliver(context.Context, recording.Artifact) error { return s.err }

func TestNotifySinkReportsOutcome(t *testing.T) {
	done := make(chan error, 2)

	n := &notifySink{next: stubSink{}, done: done}
	require.NoError(t, n.Deliver(context.Background(), recording.Artifact{}))
	assert.NoError(t, <-done)

	boom := errors.New("boom")
	n = &notifySink{next: stubSink{err: boom}, done: done}
	assert.ErrorIs(t, n.Deliver(context.Background(), recording.Artifact{}), boom)
	assert.ErrorIs(t, <-done, boom)
}

func TestTerminalStatusDrawsElapsed(t *testing.T) {
	var buf bytes.Buffer
	s := newTerminalStatus(&buf, true, make(chan error, 1))

	s.SetRecording()
	s.SetElapsed(3)
	s.SetProcessing()

	assert.Equal(t, "\rRecording... 0:00 (press Enter to stop)\rRecording... 0:03 (press Enter to stop)\n", buf.String())
}

func TestTerminalStatusQuietWithoutTTY(t *testing.T) {
	var buf bytes.Buffer
	failed := make(chan error, 1)
	s := newTerminalStatus(&buf, false, failed)

	s.SetRecording()
	s.SetElapsed(3)
	s.SetError()
	s.SetError()

	assert.Zero(t, buf.Len())
	assert.ErrorIs(t, <-failed, errRecordingFailed)
}

func TestRootCommandWiring(t *testing.T) {
	root := newRootCommand()

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["record"])
	assert.True(t, names["devices"])

	for _, flag := range []string{"config", "backend", "device", "log-level"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}
}

func TestDevicesCommandWithFakeBackend(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_STATE_HOME", t.TempDir())

	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"devices", "--backend", "fake", "--log-level", "error"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "Fake Microphone")
	assert.Contains(t, out.String(), "*")
}
