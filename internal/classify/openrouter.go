// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package classify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/pdiddy/figure-engine/internal/httputil"
	"github.com/pdiddy/figure-engine/pkg/types"
)

// openRouterURL is the chat-completions endpoint. Declared as a var so tests
// can substitute an httptest server.
var openRouterURL = "https://openrouter.ai/api/v1/chat/completions"

const defaultModel = "x-ai/grok-4.1-fast:free"

// OpenRouterBackend classifies figures through the OpenRouter
// chat-completions API with an inline base64 image payload.
type OpenRouterBackend struct {
	apiKey string
	model  string
	client *http.Client
}

// NewOpenRouterBackend builds a backend from the classify configuration.
func NewOpenRouterBackend(cfg types.ClassifyConfig) *OpenRouterBackend {
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &OpenRouterBackend{
		apiKey: cfg.APIKey,
		model:  model,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Chat-completions wire structures.
type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Classify sends one figure to the API and parses its verdict. Rate limits,
// server errors, and network timeouts surface as TransientError so the pool
// retries them; a malformed reply body degrades to a reject verdict.
func (b *OpenRouterBackend) Classify(ctx context.Context, imagePNG []byte, caption string) (types.Verdict, error) {
	payload := chatRequest{
		Model: b.model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: Prompt(caption)},
				{Type: "image_url", ImageURL: &imageURL{
					URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(imagePNG),
				}},
			},
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return types.Verdict{}, fmt.Errorf("marshaling classification request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, openRouterURL, bytes.NewReader(body))
	if err != nil {
		return types.Verdict{}, fmt.Errorf("creating classification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return types.Verdict{}, &TransientError{Msg: err.Error()}
		}
		return types.Verdict{}, fmt.Errorf("classification request: %w", err)
	}
	defer resp.Body.Close()

	if httputil.Retryable(resp.StatusCode) {
		io.Copy(io.Discard, resp.Body)
		return types.Verdict{}, &TransientError{Status: resp.StatusCode, Msg: http.StatusText(resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return types.Verdict{}, fmt.Errorf("classification API returned HTTP %d: %s", resp.StatusCode, string(data))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil || len(parsed.Choices) == 0 {
		// Unexpected response shape: degrade to reject (never a parse fault).
		return types.Verdict{Decision: types.DecisionReject}, nil
	}

	return ParseVerdict(parsed.Choices[0].Message.Content), nil
}

// isTimeout reports whether a transport error is a timeout rather than a
// permanent failure.
func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
