package audio

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rcliao/smartlife/internal/assistant"
	"github.com/rcliao/smartlife/internal/voice"
)

// Recognizer records an utterance and transcribes it.
type Recognizer struct {
	capture     Capturer
	transcriber assistant.Transcriber
	logger      zerolog.Logger
}

// NewRecognizer pairs a capturer with a transcriber.
func NewRecognizer(capture Capturer, transcriber assistant.Transcriber, logger zerolog.Logger) *Recognizer {
	return &Recognizer{
		capture:     capture,
		transcriber: transcriber,
		logger:      logger.With().Str("component", "recognizer").Logger(),
	}
}

func (r *Recognizer) Listen(ctx context.Context) (string, error) {
	audio, err := r.capture.Record(ctx)
	if err != nil {
		return "", err
	}
	if len(audio) == 0 {
		return "", voice.ErrRecognitionEmpty
	}

	text, err := r.transcriber.Transcribe(ctx, audio, "wav")
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", voice.ErrRecognitionEmpty
	}
	r.logger.Debug().Str("text", text).Msg("recognized")
	return text, nil
}

// Close cancels an in-flight capture.
func (r *Recognizer) Close() error {
	return r.capture.Stop()
}
