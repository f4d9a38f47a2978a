package assistant

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rcliao/smartlife/internal/config"
)

// NewChatter creates the chat client named by cfg.Provider.
func NewChatter(cfg config.ChatConfig, logger zerolog.Logger) (Chatter, error) {
	switch cfg.Provider {
	case "openai", "":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("chat: %w", ErrMissingAPIKey)
		}
		return NewOpenAIChat(cfg.Endpoint, cfg.APIKey, cfg.Model, cfg.SystemPrompt, cfg.Timeout, logger), nil
	case "ollama":
		return NewOllamaChat(cfg.Endpoint, cfg.Model, cfg.SystemPrompt, cfg.Timeout, logger), nil
	default:
		return nil, fmt.Errorf("unknown chat provider %q", cfg.Provider)
	}
}

// NewSynthesizer creates the speech client named by cfg.Provider.
func NewSynthesizer(cfg config.SpeechConfig, logger zerolog.Logger) (Synthesizer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("speech: %w", ErrMissingAPIKey)
	}
	switch cfg.Provider {
	case "elevenlabs", "":
		return NewElevenLabs(ElevenLabsConfig{
			BaseURL:    cfg.Endpoint,
			APIKey:     cfg.APIKey,
			Voice:      cfg.Voice,
			Model:      cfg.Model,
			Stability:  cfg.Stability,
			Similarity: cfg.Similarity,
			Timeout:    cfg.Timeout,
		}, logger), nil
	case "openai":
		// Fields left at their ElevenLabs defaults fall back to OpenAI's.
		endpoint, model, voice := cfg.Endpoint, cfg.Model, cfg.Voice
		if strings.Contains(endpoint, "elevenlabs") {
			endpoint = ""
		}
		if strings.HasPrefix(model, "eleven_") {
			model = ""
		}
		if voice == config.Default().Speech.Voice {
			voice = ""
		}
		return NewOpenAISpeech(endpoint, cfg.APIKey, model, voice, cfg.Timeout, logger), nil
	default:
		return nil, fmt.Errorf("unknown speech provider %q", cfg.Provider)
	}
}

// NewTranscriber creates the transcription client.
func NewTranscriber(cfg config.TranscriptionConfig, logger zerolog.Logger) (Transcriber, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("transcription: %w", ErrMissingAPIKey)
	}
	return NewWhisperAPI(cfg.Endpoint, cfg.APIKey, cfg.Model, cfg.Language, cfg.Timeout, logger), nil
}
