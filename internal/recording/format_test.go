package recording

import (
	"testing"
	"time"
)

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "0:00"},
		{3, "0:03"},
		{59, "0:59"},
		{60, "1:00"},
		{125, "2:05"},
		{3600, "60:00"},
		{-4, "0:00"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatElapsed(tt.seconds); got != tt.want {
				t.Errorf("FormatElapsed(%d) = %q, want %q", tt.seconds, got, tt.want)
			}
		})
	}
}

func TestArtifactDuration(t *testing.T) {
	a := Artifact{
		Data:   make([]byte, 32000),
		Format: Format{SampleRate: 16000, Channels: 1, BytesPerSample: 2},
	}
	if got := a.Duration(); got != time.Second {
		t.Errorf("Duration() = %v, want 1s", got)
	}
	if a.Size() != 32000 {
		t.Errorf("Size() = %d, want 32000", a.Size())
	}
	if (Artifact{Data: []byte{1}}).Duration() != 0 {
		t.Error("expected zero duration without a format")
	}
}

func TestStateString(t *testing.T) {
	for state, want := range map[State]string{
		Idle: "idle", Acquiring: "acquiring", Recording: "recording",
		Stopping: "stopping", Failed: "failed", State(42): "unknown",
	} {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(state), got, want)
		}
	}
}
