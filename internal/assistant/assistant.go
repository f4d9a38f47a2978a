// Package assistant provides clients for the remote chat, speech-synthesis
// and transcription APIs used by the voice assistant.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Chatter turns a user utterance into a short assistant reply.
type Chatter interface {
	Reply(ctx context.Context, utterance string) (string, error)
}

// Synthesizer renders reply text as audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*Speech, error)
}

// Transcriber turns recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, format string) (string, error)
}

// Speech is synthesized audio. Format is a file extension such as "mp3".
type Speech struct {
	Audio  []byte
	Format string
}

var (
	// ErrMalformedResponse means the provider answered with a body that
	// does not have the expected shape.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrMissingAPIKey is returned by constructors when a provider needs a
	// key and none is configured.
	ErrMissingAPIKey = errors.New("api key not configured")
)

// APIError is a non-success HTTP status from a provider.
type APIError struct {
	Provider string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("%s error %d: %s", e.Provider, e.Status, body)
}

const defaultTimeout = 30 * time.Second

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// postJSON sends payload as JSON and returns the raw response body.
func postJSON(ctx context.Context, client *http.Client, provider, url string, payload any, header http.Header) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	if header == nil {
		header = http.Header{}
	}
	header.Set("Content-Type", "application/json")
	return post(ctx, client, provider, url, bytes.NewReader(body), header)
}

func post(ctx context.Context, client *http.Client, provider, url string, body io.Reader, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", provider, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s read response: %w", provider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Provider: provider, Status: resp.StatusCode, Body: string(b)}
	}
	return b, nil
}

func malformed(provider string, err error) error {
	if err == nil {
		return fmt.Errorf("%s: %w", provider, ErrMalformedResponse)
	}
	return fmt.Errorf("%s: %w: %v", provider, ErrMalformedResponse, err)
}
