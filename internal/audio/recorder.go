// Package audio adapts local command-line tools for microphone capture and
// playback to the voice pipeline.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// ErrNoCommand is returned when an adapter has no command configured.
var ErrNoCommand = errors.New("no command configured")

// Capturer records one utterance.
type Capturer interface {
	Record(ctx context.Context) ([]byte, error)
	Stop() error
}

// Recorder captures microphone audio by running a command that writes WAV
// to stdout.
type Recorder struct {
	command []string
	seconds int
	logger  zerolog.Logger

	mu  sync.Mutex
	cmd *exec.Cmd
}

// NewRecorder creates a recorder. Any "{seconds}" argument is replaced with
// seconds.
func NewRecorder(command []string, seconds int, logger zerolog.Logger) *Recorder {
	return &Recorder{
		command: command,
		seconds: seconds,
		logger:  logger.With().Str("component", "recorder").Logger(),
	}
}

func (r *Recorder) args() []string {
	out := make([]string, len(r.command))
	for i, a := range r.command {
		out[i] = strings.ReplaceAll(a, "{seconds}", strconv.Itoa(r.seconds))
	}
	return out
}

// Record runs the capture command and returns what it wrote to stdout.
func (r *Recorder) Record(ctx context.Context) ([]byte, error) {
	if len(r.command) == 0 {
		return nil, ErrNoCommand
	}
	args := r.args()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.mu.Lock()
	if err := cmd.Start(); err != nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("start %s: %w", args[0], err)
	}
	r.cmd = cmd
	r.mu.Unlock()

	err := cmd.Wait()

	r.mu.Lock()
	r.cmd = nil
	r.mu.Unlock()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		r.logger.Error().Err(err).Str("stderr", stderr.String()).Msg("capture failed")
		return nil, fmt.Errorf("%s failed: %w", args[0], err)
	}

	r.logger.Debug().Int("bytes", stdout.Len()).Msg("capture complete")
	return stdout.Bytes(), nil
}

// Stop kills an in-flight capture.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd != nil && r.cmd.Process != nil {
		return r.cmd.Process.Kill()
	}
	return nil
}
