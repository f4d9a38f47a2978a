package assistant

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// --- ElevenLabs Provider ---

// ElevenLabs synthesizes speech with the ElevenLabs text-to-speech API.
type ElevenLabs struct {
	baseURL    string
	apiKey     string
	voice      string
	model      string
	stability  float64
	similarity float64
	client     *http.Client
	logger     zerolog.Logger
}

// ElevenLabsConfig holds ElevenLabs options.
type ElevenLabsConfig struct {
	BaseURL    string
	APIKey     string
	Voice      string
	Model      string
	Stability  float64
	Similarity float64
	Timeout    time.Duration
}

type elevenRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// NewElevenLabs creates an ElevenLabs synthesizer.
func NewElevenLabs(cfg ElevenLabsConfig, logger zerolog.Logger) *ElevenLabs {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.elevenlabs.io"
	}
	if cfg.Model == "" {
		cfg.Model = "eleven_monolingual_v1"
	}
	if cfg.Voice == "" {
		cfg.Voice = "21m00Tcm4TlvDq8ikWAM"
	}
	return &ElevenLabs{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		voice:      cfg.Voice,
		model:      cfg.Model,
		stability:  cfg.Stability,
		similarity: cfg.Similarity,
		client:     newHTTPClient(cfg.Timeout),
		logger:     logger.With().Str("provider", "elevenlabs").Logger(),
	}
}

func (s *ElevenLabs) Synthesize(ctx context.Context, text string) (*Speech, error) {
	start := time.Now()
	header := http.Header{}
	header.Set("xi-api-key", s.apiKey)
	header.Set("Accept", "audio/mpeg")

	audio, err := postJSON(ctx, s.client, "elevenlabs", s.baseURL+"/v1/text-to-speech/"+s.voice, elevenRequest{
		Text:    text,
		ModelID: s.model,
		VoiceSettings: voiceSettings{
			Stability:       s.stability,
			SimilarityBoost: s.similarity,
		},
	}, header)
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, malformed("elevenlabs", nil)
	}

	s.logger.Debug().Dur("time", time.Since(start)).Int("bytes", len(audio)).Msg("speech synthesized")
	return &Speech{Audio: audio, Format: "mp3"}, nil
}

// --- OpenAI Provider ---

// OpenAISpeech synthesizes speech with the OpenAI audio/speech API.
type OpenAISpeech struct {
	baseURL string
	apiKey  string
	voice   string
	model   string
	client  *http.Client
	logger  zerolog.Logger
}

type openaiSpeechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// NewOpenAISpeech creates an OpenAI synthesizer. Default model tts-1,
// voice alloy.
func NewOpenAISpeech(baseURL, apiKey, model, voice string, timeout time.Duration, logger zerolog.Logger) *OpenAISpeech {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "tts-1"
	}
	if voice == "" {
		voice = "alloy"
	}
	return &OpenAISpeech{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		voice:   voice,
		model:   model,
		client:  newHTTPClient(timeout),
		logger:  logger.With().Str("provider", "openai-tts").Logger(),
	}
}

func (s *OpenAISpeech) Synthesize(ctx context.Context, text string) (*Speech, error) {
	start := time.Now()
	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.apiKey)

	audio, err := postJSON(ctx, s.client, "openai", s.baseURL+"/audio/speech", openaiSpeechRequest{
		Model:          s.model,
		Input:          text,
		Voice:          s.voice,
		ResponseFormat: "mp3",
	}, header)
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, malformed("openai", nil)
	}

	s.logger.Debug().Dur("time", time.Since(start)).Int("bytes", len(audio)).Msg("speech synthesized")
	return &Speech{Audio: audio, Format: "mp3"}, nil
}
