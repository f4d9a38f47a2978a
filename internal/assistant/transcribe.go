package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// WhisperAPI transcribes audio with an OpenAI-compatible
// audio/transcriptions endpoint.
type WhisperAPI struct {
	baseURL  string
	apiKey   string
	model    string
	language string
	client   *http.Client
	logger   zerolog.Logger
}

// NewWhisperAPI creates a transcriber. Default model whisper-1.
func NewWhisperAPI(baseURL, apiKey, model, language string, timeout time.Duration, logger zerolog.Logger) *WhisperAPI {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "whisper-1"
	}
	return &WhisperAPI{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		model:    model,
		language: language,
		client:   newHTTPClient(timeout),
		logger:   logger.With().Str("provider", "whisper-api").Logger(),
	}
}

// Transcribe uploads audio and returns the trimmed transcript. An empty
// transcript is not an error here.
func (w *WhisperAPI) Transcribe(ctx context.Context, audio []byte, format string) (string, error) {
	start := time.Now()
	if format == "" {
		format = "wav"
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "audio."+format)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("write audio data: %w", err)
	}
	if err := writer.WriteField("model", w.model); err != nil {
		return "", fmt.Errorf("write model field: %w", err)
	}
	if w.language != "" {
		if err := writer.WriteField("language", w.language); err != nil {
			return "", fmt.Errorf("write language field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+w.apiKey)
	header.Set("Content-Type", writer.FormDataContentType())

	body, err := post(ctx, w.client, "whisper", w.baseURL+"/audio/transcriptions", &buf, header)
	if err != nil {
		return "", err
	}

	var result struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", malformed("whisper", err)
	}
	if result.Text == nil {
		return "", malformed("whisper", nil)
	}

	text := strings.TrimSpace(*result.Text)
	w.logger.Debug().Str("text", text).Dur("time", time.Since(start)).Msg("transcription complete")
	return text, nil
}
