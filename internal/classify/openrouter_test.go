// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/figure-engine/pkg/types"
)

func chatReply(content string) string {
	body, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	return string(body)
}

func testBackend(t *testing.T, handler http.HandlerFunc) *OpenRouterBackend {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	old := openRouterURL
	openRouterURL = ts.URL
	t.Cleanup(func() { openRouterURL = old })

	return NewOpenRouterBackend(testClassifyCfg(1))
}

func TestOpenRouterClassifyAccept(t *testing.T) {
	var gotBody chatRequest
	backend := testBackend(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		fmt.Fprint(w, chatReply(`{"is_methodology": true, "style_tags": ["flat 2D"], "logic_summary": "Encoder feeds decoder."}`))
	})

	v, err := backend.Classify(context.Background(), []byte("png-bytes"), "Figure 2: Overview.")
	require.NoError(t, err)
	assert.Equal(t, types.DecisionAccept, v.Decision)
	assert.Equal(t, []string{"flat 2D"}, v.Tags)
	assert.Equal(t, "Encoder feeds decoder.", v.Summary)

	// The request carries the prompt with the caption and the image payload.
	require.Len(t, gotBody.Messages, 1)
	require.Len(t, gotBody.Messages[0].Content, 2)
	assert.Contains(t, gotBody.Messages[0].Content[0].Text, "Figure 2: Overview.")
	assert.True(t, strings.HasPrefix(gotBody.Messages[0].Content[1].ImageURL.URL, "data:image/png;base64,"))
}

func TestOpenRouterClassifyRateLimited(t *testing.T) {
	backend := testBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := backend.Classify(context.Background(), []byte("x"), "Figure 1: A.")
	require.Error(t, err)
	assert.True(t, IsTransient(err), "429 should be transient")
}

func TestOpenRouterClassifyServerError(t *testing.T) {
	backend := testBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := backend.Classify(context.Background(), []byte("x"), "Figure 1: A.")
	require.Error(t, err)
	assert.True(t, IsTransient(err), "5xx should be transient")
}

func TestOpenRouterClassifyAuthFailurePermanent(t *testing.T) {
	backend := testBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := backend.Classify(context.Background(), []byte("x"), "Figure 1: A.")
	require.Error(t, err)
	assert.False(t, IsTransient(err), "401 should not be retried")
}

func TestOpenRouterClassifyMalformedBodyIsReject(t *testing.T) {
	backend := testBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `not json at all`)
	})

	v, err := backend.Classify(context.Background(), []byte("x"), "Figure 1: A.")
	require.NoError(t, err, "malformed response must not propagate a parse fault")
	assert.Equal(t, types.DecisionReject, v.Decision)
	assert.Empty(t, v.Tags)
}

func TestOpenRouterClassifyFencedReply(t *testing.T) {
	backend := testBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, chatReply("```json\n{\"is_methodology\": false, \"style_tags\": [], \"logic_summary\": \"\"}\n```"))
	})

	v, err := backend.Classify(context.Background(), []byte("x"), "Figure 1: A.")
	require.NoError(t, err)
	assert.Equal(t, types.DecisionReject, v.Decision)
}
