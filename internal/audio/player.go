package audio

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/rcliao/smartlife/internal/voice"
)

var (
	// ErrUndecodable means the probe could not read the audio.
	ErrUndecodable = errors.New("audio undecodable")
	// ErrPlaybackClosed is returned by Play after Close.
	ErrPlaybackClosed = errors.New("playback closed")
)

// CommandPlayer plays audio through external commands. Audio is written to
// a temporary file that is removed once playback ends.
type CommandPlayer struct {
	play   []string
	probe  []string
	dir    string
	logger zerolog.Logger
}

// NewCommandPlayer creates a player. The file path is appended to both
// commands. An empty probe command disables duration detection. An empty
// dir uses the system temp directory.
func NewCommandPlayer(play, probe []string, dir string, logger zerolog.Logger) *CommandPlayer {
	if dir == "" {
		dir = os.TempDir()
	}
	return &CommandPlayer{
		play:   play,
		probe:  probe,
		dir:    dir,
		logger: logger.With().Str("component", "player").Logger(),
	}
}

// Load writes audio to a temp file and probes its duration.
func (p *CommandPlayer) Load(ctx context.Context, audio []byte, format string) (voice.Playback, error) {
	if len(p.play) == 0 {
		return nil, ErrNoCommand
	}
	if len(audio) == 0 {
		return nil, ErrUndecodable
	}
	if format == "" {
		format = "mp3"
	}

	path := filepath.Join(p.dir, "voice-"+strings.ToLower(ulid.Make().String())+"."+format)
	if err := os.WriteFile(path, audio, 0600); err != nil {
		return nil, fmt.Errorf("write temp audio: %w", err)
	}

	var dur time.Duration
	if len(p.probe) > 0 {
		d, err := p.duration(ctx, path)
		if err != nil {
			os.Remove(path)
			return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
		}
		dur = d
	}

	p.logger.Debug().Str("file", path).Dur("duration", dur).Msg("audio loaded")
	return &commandPlayback{
		path:     path,
		duration: dur,
		play:     p.play,
		logger:   p.logger,
	}, nil
}

func (p *CommandPlayer) duration(ctx context.Context, path string) (time.Duration, error) {
	args := append(append([]string(nil), p.probe[1:]...), path)
	out, err := exec.CommandContext(ctx, p.probe[0], args...).Output()
	if err != nil {
		return 0, err
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	if secs < 0 {
		return 0, fmt.Errorf("negative duration %v", secs)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

type commandPlayback struct {
	path     string
	duration time.Duration
	play     []string
	logger   zerolog.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	closed bool
}

func (pb *commandPlayback) Duration() time.Duration { return pb.duration }

// Play runs the player command and blocks until it exits.
func (pb *commandPlayback) Play(ctx context.Context) error {
	args := append(append([]string(nil), pb.play[1:]...), pb.path)
	cmd := exec.CommandContext(ctx, pb.play[0], args...)

	pb.mu.Lock()
	if pb.closed {
		pb.mu.Unlock()
		return ErrPlaybackClosed
	}
	if err := cmd.Start(); err != nil {
		pb.mu.Unlock()
		return fmt.Errorf("start %s: %w", pb.play[0], err)
	}
	pb.cmd = cmd
	pb.mu.Unlock()

	err := cmd.Wait()
	pb.remove()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	pb.mu.Lock()
	closed := pb.closed
	pb.mu.Unlock()
	if closed {
		return ErrPlaybackClosed
	}
	if err != nil {
		return fmt.Errorf("%s failed: %w", pb.play[0], err)
	}
	return nil
}

// Close stops playback and deletes the temp file.
func (pb *commandPlayback) Close() error {
	pb.mu.Lock()
	if pb.closed {
		pb.mu.Unlock()
		return nil
	}
	pb.closed = true
	cmd := pb.cmd
	pb.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		cmd.Process.Kill()
	}
	return pb.remove()
}

func (pb *commandPlayback) remove() error {
	if err := os.Remove(pb.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		pb.logger.Warn().Err(err).Str("file", pb.path).Msg("remove temp audio")
		return err
	}
	return nil
}
