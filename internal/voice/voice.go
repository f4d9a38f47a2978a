// Package voice runs the assistant's conversational turn as a strict state
// machine: listen, ask the chat model, synthesize, speak, and highlight the
// spoken words while playback runs.
package voice

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Phase is the pipeline state.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseListening     Phase = "listening"
	PhaseAwaitingReply Phase = "awaiting_reply"
	PhaseSynthesizing  Phase = "synthesizing"
	PhaseSpeaking      Phase = "speaking"
)

// Status returns the status line shown for the phase.
func (p Phase) Status() string {
	switch p {
	case PhaseListening:
		return "Listening..."
	case PhaseAwaitingReply:
		return "Thinking..."
	case PhaseSynthesizing:
		return "Preparing reply..."
	case PhaseSpeaking:
		return "Speaking..."
	default:
		return "Tap the mic to talk"
	}
}

// Stage names the pipeline step that produced a notice.
type Stage string

const (
	StagePermission Stage = "permission"
	StageListen     Stage = "listen"
	StageChat       Stage = "chat"
	StageSynthesize Stage = "synthesize"
	StagePlayback   Stage = "playback"
)

var (
	// ErrPermissionDenied means the microphone capability was not granted.
	ErrPermissionDenied = errors.New("microphone permission denied")
	// ErrRecognitionEmpty means capture worked but produced no transcript.
	ErrRecognitionEmpty = errors.New("no speech recognized")
)

// TransientError is a recoverable failure of one stage. The pipeline
// returns to idle and the next activation starts fresh.
type TransientError struct {
	Stage Stage
	Err   error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Notice is a user-visible, non-blocking report of a failed turn.
type Notice struct {
	TurnID  string
	Stage   Stage
	Err     error
	Message string
}

func noticeMessage(stage Stage, err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "Microphone permission is required to talk to the assistant."
	case errors.Is(err, ErrRecognitionEmpty):
		return "Sorry, I didn't catch that."
	}
	switch stage {
	case StageListen:
		return "Speech recognition failed: " + err.Error()
	case StageChat:
		return "Assistant error: " + err.Error()
	case StageSynthesize:
		return "Speech error: " + err.Error()
	default:
		return "Playback error: " + err.Error()
	}
}

// Recognizer captures one utterance and returns its transcript.
type Recognizer interface {
	Listen(ctx context.Context) (string, error)
	Close() error
}

// Permission gates microphone use.
type Permission interface {
	Granted() bool
	Request(ctx context.Context) (bool, error)
}

// Player prepares synthesized audio for playback. Load fails when the
// audio cannot be decoded.
type Player interface {
	Load(ctx context.Context, audio []byte, format string) (Playback, error)
}

// Playback is one loaded clip. Play blocks until playback completes or ctx
// ends. Close stops playback, releases resources and is safe to call more
// than once.
type Playback interface {
	Duration() time.Duration
	Play(ctx context.Context) error
	Close() error
}
