package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/petems/clip-recorder/internal/app"
	"github.com/petems/clip-recorder/internal/output"
	"github.com/petems/clip-recorder/internal/recording"
)

var errRecordingFailed = errors.New("recording failed, see log for details")

func newRecordCommand(ctx *commandContext) *cobra.Command {
	var maxDuration time.Duration
	var outputPath string

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record one clip and write the raw PCM to stdout",
		Long: "Record from the selected microphone until Enter is pressed, the process is interrupted\n" +
			"or --max-duration elapses. The clip is written as 16-bit little-endian mono PCM.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if maxDuration < 0 {
				return fmt.Errorf("--max-duration must not be negative")
			}
			if maxDuration > 0 {
				cfg.Recording.MaxSeconds = int((maxDuration + time.Second - 1) / time.Second)
			}
			log := ctx.logger()

			backend, err := ctx.backend()
			if err != nil {
				return err
			}
			defer backend.Close()

			out := os.Stdout
			if outputPath != "" {
				f, err := os.Create(outputPath)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}

			results := make(chan error, 4)
			sinks := output.Multi{output.NewPipe(out, log)}
			if len(cfg.Recording.OnComplete) > 0 {
				sinks = append(sinks, output.NewCommand(cfg.Recording.OnComplete, log))
			}

			application := app.New(app.Config{
				Backend:       backend,
				Sink:          &notifySink{next: sinks, done: results},
				Config:        cfg,
				Logger:        log,
				StatusUpdater: newTerminalStatus(cmd.ErrOrStderr(), isTerminal(os.Stderr), results),
				Persist:       ctx.update,
			})
			defer application.Shutdown(context.Background())

			sigCtx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			application.StartRecording(sigCtx)
			if !application.IsRecording() {
				select {
				case err := <-results:
					return err
				default:
					return errRecordingFailed
				}
			}

			if isTerminal(os.Stdin) {
				go func() {
					waitForEnter(os.Stdin)
					application.StopRecording()
				}()
			}

			select {
			case err := <-results:
				return err
			case <-sigCtx.Done():
				if application.IsRecording() {
					application.StopRecording()
					return <-results
				}
				return sigCtx.Err()
			}
		},
	}

	cmd.Flags().DurationVar(&maxDuration, "max-duration", 0, "Stop automatically after this long (0 for no limit)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the clip to a file instead of stdout")
	return cmd
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func waitForEnter(r io.Reader) {
	_, _ = bufio.NewReader(r).ReadString('\n')
}

// notifySink reports the outcome of each delivery once the artifact has been
// handed on.
type notifySink struct {
	next output.Sink
	done chan<- error
}

func (n *notifySink) Deliver(ctx context.Context, a recording.Artifact) error {
	err := n.next.Deliver(ctx, a)
	n.done <- err
	return err
}

// terminalStatus draws a "Recording... m:ss" line on stderr.
type terminalStatus struct {
	w      io.Writer
	tty    bool
	failed chan<- error
}

func newTerminalStatus(w io.Writer, tty bool, failed chan<- error) *terminalStatus {
	return &terminalStatus{w: w, tty: tty, failed: failed}
}

func (t *terminalStatus) SetIdle() {}

func (t *terminalStatus) SetRecording() {
	t.draw(0)
}

func (t *terminalStatus) SetProcessing() {
	if t.tty {
		fmt.Fprintln(t.w)
	}
}

func (t *terminalStatus) SetError() {
	select {
	case t.failed <- errRecordingFailed:
	default:
	}
}

func (t *terminalStatus) SetElapsed(seconds int) {
	t.draw(seconds)
}

func (t *terminalStatus) draw(seconds int) {
	if !t.tty {
		return
	}
	fmt.Fprintf(t.w, "\rRecording... %s (press Enter to stop)", recording.FormatElapsed(seconds))
}
