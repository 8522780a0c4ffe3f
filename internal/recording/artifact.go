package recording

import (
	"bytes"
	"time"

	"github.com/petems/clip-recorder/internal/audio"
)

const (
	// MediaType tags every artifact: raw mono PCM as delivered by the capture backends.
	MediaType = "audio/pcm"
	// Filename is the suggested name for an artifact.
	Filename = "recording.pcm"
)

// Format describes how to interpret an artifact's payload.
type Format struct {
	SampleRate     int
	Channels       int
	BytesPerSample int
}

// Artifact is the assembled output of one completed session.
type Artifact struct {
	SessionID string
	Data      []byte
	MediaType string
	Filename  string
	Format    Format
	Elapsed   int // whole seconds counted by the session timer
	Chunks    int
}

// Size is the payload length in bytes.
func (a Artifact) Size() int {
	return len(a.Data)
}

// Duration is the playback length implied by the payload and its format.
func (a Artifact) Duration() time.Duration {
	frameBytes := a.Format.Channels * a.Format.BytesPerSample
	if frameBytes <= 0 || a.Format.SampleRate <= 0 {
		return 0
	}
	frames := len(a.Data) / frameBytes
	return time.Duration(frames) * time.Second / time.Duration(a.Format.SampleRate)
}

func assemble(id string, chunks [][]byte, elapsed int, cfg audio.StreamConfig) Artifact {
	data := bytes.Join(chunks, nil)
	return Artifact{
		SessionID: id,
		Data:      data,
		MediaType: MediaType,
		Filename:  Filename,
		Format: Format{
			SampleRate:     cfg.SampleRate,
			Channels:       1,
			BytesPerSample: audio.BytesPerSample,
		},
		Elapsed: elapsed,
		Chunks:  len(chunks),
	}
}
