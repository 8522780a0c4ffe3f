// Package output hands completed recordings to their consumer. Sinks pass
// the artifact on once; none of them keeps it.
package output

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	"github.com/petems/clip-recorder/internal/recording"
)

// ErrTerminal is returned by Pipe when its writer is an interactive terminal.
var ErrTerminal = errors.New("refusing to write audio to a terminal")

// Sink receives each completed artifact.
type Sink interface {
	Deliver(ctx context.Context, a recording.Artifact) error
}

// Summary is a one-line human description of a.
func Summary(a recording.Artifact) string {
	return fmt.Sprintf("%s: %s, %s (%s, %d chunks)",
		a.Filename,
		humanize.Bytes(uint64(a.Size())),
		recording.FormatElapsed(int(a.Duration().Seconds())),
		a.MediaType,
		a.Chunks,
	)
}

// Pipe writes the payload to a non-interactive writer such as redirected stdout.
type Pipe struct {
	w        io.Writer
	terminal bool
	log      zerolog.Logger
}

// NewPipe wraps f, detecting whether it is attached to a terminal.
func NewPipe(f *os.File, log zerolog.Logger) *Pipe {
	fd := f.Fd()
	return newPipe(f, isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd), log)
}

func newPipe(w io.Writer, terminal bool, log zerolog.Logger) *Pipe {
	return &Pipe{w: w, terminal: terminal, log: log.With().Str("component", "pipe").Logger()}
}

func (p *Pipe) Deliver(_ context.Context, a recording.Artifact) error {
	if p.terminal {
		p.log.Warn().Str("artifact", Summary(a)).Msg("Output is a terminal, redirect stdout to keep the audio")
		return ErrTerminal
	}
	if _, err := p.w.Write(a.Data); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	p.log.Debug().Int("bytes", a.Size()).Msg("Artifact written")
	return nil
}

// Command runs an external program with the payload on its stdin.
type Command struct {
	argv   []string
	stdout io.Writer
	stderr io.Writer
	log    zerolog.Logger
}

func NewCommand(argv []string, log zerolog.Logger) *Command {
	return &Command{
		argv:   argv,
		stdout: os.Stderr,
		stderr: os.Stderr,
		log:    log.With().Str("component", "command").Logger(),
	}
}

func (c *Command) Deliver(ctx context.Context, a recording.Artifact) error {
	if len(c.argv) == 0 {
		return errors.New("on_complete command is empty")
	}

	cmd := exec.CommandContext(ctx, c.argv[0], c.argv[1:]...)
	cmd.Stdin = bytes.NewReader(a.Data)
	cmd.Stdout = c.stdout
	cmd.Stderr = c.stderr
	cmd.Env = append(os.Environ(),
		"CLIP_MEDIA_TYPE="+a.MediaType,
		"CLIP_FILENAME="+a.Filename,
		"CLIP_SAMPLE_RATE="+strconv.Itoa(a.Format.SampleRate),
		"CLIP_SESSION_ID="+a.SessionID,
	)

	c.log.Debug().Strs("argv", c.argv).Int("bytes", a.Size()).Msg("Running on_complete command")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("on_complete %s: %w", c.argv[0], err)
	}
	return nil
}

// Log only records a summary of each artifact.
type Log struct {
	log zerolog.Logger
}

func NewLog(log zerolog.Logger) *Log {
	return &Log{log: log}
}

func (l *Log) Deliver(_ context.Context, a recording.Artifact) error {
	l.log.Info().
		Str("session", a.SessionID).
		Str("size", humanize.Bytes(uint64(a.Size()))).
		Str("duration", a.Duration().String()).
		Msg("Recording ready")
	return nil
}

// Multi delivers to every sink, continuing past failures.
type Multi []Sink

func (m Multi) Deliver(ctx context.Context, a recording.Artifact) error {
	var errs []error
	for _, s := range m {
		if err := s.Deliver(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
