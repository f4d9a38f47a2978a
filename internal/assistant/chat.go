package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const DefaultSystemPrompt = "Respond in under 40 words."

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func buildMessages(systemPrompt, utterance string) []chatMessage {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return []chatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: utterance},
	}
}

// --- OpenAI-compatible Provider ---

// OpenAIChat uses any OpenAI-compatible chat completions API.
type OpenAIChat struct {
	baseURL      string
	apiKey       string
	model        string
	systemPrompt string
	client       *http.Client
	logger       zerolog.Logger
}

type openaiChatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type openaiChatResponse struct {
	Choices []struct {
		Message *chatMessage `json:"message"`
	} `json:"choices"`
}

// NewOpenAIChat creates a chat client for baseURL (default
// https://api.openai.com/v1).
func NewOpenAIChat(baseURL, apiKey, model, systemPrompt string, timeout time.Duration, logger zerolog.Logger) *OpenAIChat {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-4"
	}
	return &OpenAIChat{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		model:        model,
		systemPrompt: systemPrompt,
		client:       newHTTPClient(timeout),
		logger:       logger.With().Str("provider", "openai-chat").Logger(),
	}
}

func (c *OpenAIChat) Reply(ctx context.Context, utterance string) (string, error) {
	start := time.Now()
	header := http.Header{}
	if c.apiKey != "" {
		header.Set("Authorization", "Bearer "+c.apiKey)
	}

	body, err := postJSON(ctx, c.client, "openai", c.baseURL+"/chat/completions", openaiChatRequest{
		Model:    c.model,
		Messages: buildMessages(c.systemPrompt, utterance),
	}, header)
	if err != nil {
		return "", err
	}

	var result openaiChatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", malformed("openai", err)
	}
	if len(result.Choices) == 0 || result.Choices[0].Message == nil {
		return "", malformed("openai", nil)
	}
	reply := strings.TrimSpace(result.Choices[0].Message.Content)
	if reply == "" {
		return "", malformed("openai", nil)
	}

	c.logger.Debug().Dur("time", time.Since(start)).Int("chars", len(reply)).Msg("chat reply received")
	return reply, nil
}

// --- Ollama Provider ---

// OllamaChat uses a local Ollama instance.
type OllamaChat struct {
	baseURL      string
	model        string
	systemPrompt string
	client       *http.Client
	logger       zerolog.Logger
}

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type ollamaChatResponse struct {
	Message *chatMessage `json:"message"`
}

// NewOllamaChat creates a chat client using Ollama's API.
func NewOllamaChat(baseURL, model, systemPrompt string, timeout time.Duration, logger zerolog.Logger) *OllamaChat {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.2"
	}
	return &OllamaChat{
		baseURL:      strings.TrimRight(baseURL, "/"),
		model:        model,
		systemPrompt: systemPrompt,
		client:       newHTTPClient(timeout),
		logger:       logger.With().Str("provider", "ollama-chat").Logger(),
	}
}

func (c *OllamaChat) Reply(ctx context.Context, utterance string) (string, error) {
	start := time.Now()
	body, err := postJSON(ctx, c.client, "ollama", c.baseURL+"/api/chat", ollamaChatRequest{
		Model:    c.model,
		Messages: buildMessages(c.systemPrompt, utterance),
	}, nil)
	if err != nil {
		return "", err
	}

	var result ollamaChatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", malformed("ollama", err)
	}
	if result.Message == nil || strings.TrimSpace(result.Message.Content) == "" {
		return "", malformed("ollama", nil)
	}

	reply := strings.TrimSpace(result.Message.Content)
	c.logger.Debug().Dur("time", time.Since(start)).Int("chars", len(reply)).Msg("chat reply received")
	return reply, nil
}
