package describe

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-images-server-go/internal/platform/config"
	"ai-images-server-go/internal/platform/errors"
	"ai-images-server-go/internal/platform/testutil"
)

func TestKeywordExtractionRanksByFrequency(t *testing.T) {
	k := NewKeywordExtractor(3, 10)
	got := k.Extract("The quick brown fox jumps over the lazy dog the dog barks")

	require.NotEmpty(t, got)
	assert.Equal(t, "dog", got[0])
	assert.NotContains(t, got, "the")
	assert.LessOrEqual(t, len(got), 10)
	assert.Equal(t, []string{"dog", "quick", "brown", "fox", "jumps", "over", "lazy", "barks"}, got)
}

func TestKeywordExtractionDefaults(t *testing.T) {
	k := NewKeywordExtractor(0, 0)
	got := k.Extract("The quick brown fox jumps over the lazy dog the dog barks")

	assert.Equal(t, []string{"quick", "brown", "jumps", "over", "lazy", "barks"}, got)
}

func TestKeywordExtractionNormalizes(t *testing.T) {
	k := NewKeywordExtractor(4, 10)
	got := k.Extract("Sunset, SUNSET! sunset... over the OCEAN; ocean waves.")

	assert.Equal(t, []string{"sunset", "ocean", "over", "waves"}, got)
}

func TestKeywordExtractionCapsAtLimit(t *testing.T) {
	words := []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf", "hotel",
		"india", "juliet", "kilo", "lima"}
	got := NewKeywordExtractor(4, 10).Extract(strings.Join(words, " "))

	assert.Len(t, got, 10)
	assert.Equal(t, "alpha", got[0])
}

func TestKeywordExtractionEmpty(t *testing.T) {
	got := NewKeywordExtractor(4, 10).Extract("")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestPromptFallback(t *testing.T) {
	en, fellBack := Prompt("en", "en")
	assert.False(t, fellBack)

	ko, fellBack := Prompt("ko", "en")
	assert.True(t, fellBack)
	assert.Equal(t, en, ko)

	zh, _ := Prompt("ZH", "en")
	assert.Contains(t, zh, "详细描述")

	for _, lang := range Languages() {
		_, fb := Prompt(lang, "en")
		assert.False(t, fb, "language %s should have its own prompt", lang)
	}
}

type chatRequest struct {
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	Messages  []struct {
		Role    string            `json:"role"`
		Content []json.RawMessage `json:"content"`
	} `json:"messages"`
}

func newOpenAIServer(t *testing.T, status int, respond string, seen *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if seen != nil {
			if err := json.Unmarshal(body, seen); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, respond)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func openAIConfig(url string) config.DescriberConfig {
	cfg := config.DefaultConfig().Describer
	cfg.APIKey = "sk-test"
	cfg.BaseURL = url + "/v1"
	return cfg
}

func TestOpenAIDescribe(t *testing.T) {
	var seen chatRequest
	srv := newOpenAIServer(t, http.StatusOK, `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"model": "gpt-4o-mini",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "A bright red pixel on a plain canvas. Red pixel art."}, "finish_reason": "stop"}]
	}`, &seen)

	d, err := New(openAIConfig(srv.URL))
	require.NoError(t, err)

	res, err := d.Describe(context.Background(), testutil.RedPixelBytes(t), "image/png", "en")
	require.NoError(t, err)

	assert.Equal(t, "A bright red pixel on a plain canvas. Red pixel art.", res.Description)
	assert.Equal(t, "pixel", res.Keywords[0])
	assert.Equal(t, PlaceholderConfidence, res.Confidence)

	assert.Equal(t, "gpt-4o-mini", seen.Model)
	assert.Equal(t, 500, seen.MaxTokens)
	require.Len(t, seen.Messages, 1)
	require.Len(t, seen.Messages[0].Content, 2)

	var part struct {
		Type     string `json:"type"`
		ImageURL struct {
			URL    string `json:"url"`
			Detail string `json:"detail"`
		} `json:"image_url"`
	}
	require.NoError(t, json.Unmarshal(seen.Messages[0].Content[1], &part))
	assert.Equal(t, "image_url", part.Type)
	assert.Equal(t, "data:image/png;base64,"+testutil.RedPixelPNG, part.ImageURL.URL)
	assert.Equal(t, "auto", part.ImageURL.Detail)
}

func TestOpenAIDescribeNoChoices(t *testing.T) {
	srv := newOpenAIServer(t, http.StatusOK, `{"id":"x","object":"chat.completion","choices":[]}`, nil)
	d, err := New(openAIConfig(srv.URL))
	require.NoError(t, err)

	res, err := d.Describe(context.Background(), []byte{1}, "image/png", "fr")
	require.NoError(t, err)
	assert.Equal(t, NoDescription, res.Description)
}

func TestOpenAIDescribeUpstreamError(t *testing.T) {
	srv := newOpenAIServer(t, http.StatusTooManyRequests,
		`{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`, nil)
	cfg := openAIConfig(srv.URL)
	d, err := New(cfg)
	require.NoError(t, err)

	_, err = d.Describe(context.Background(), []byte{1}, "image/png", "en")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindDescription))
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "Rate limit reached")
}

func TestOpenAIRequiresKey(t *testing.T) {
	cfg := config.DefaultConfig().Describer
	cfg.APIKey = ""
	_, err := New(cfg)
	assert.True(t, errors.IsKind(err, errors.KindConfig))
}

func TestOllamaDescribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req ollamaRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		if assert.Len(t, req.Messages, 1) {
			assert.Equal(t, []string{testutil.RedPixelPNG}, req.Messages[0].Images)
			assert.Contains(t, req.Messages[0].Content, "Describe this image")
		}

		_, _ = io.WriteString(w, `{"model":"llava","message":{"role":"assistant","content":"<think>hmm</think>Single crimson square, crimson tone."},"done":true}`)
	}))
	defer srv.Close()

	cfg := config.DescriberConfig{Type: config.DescriberOllama, BaseURL: srv.URL + "/", ModelName: "llava"}
	d, err := New(cfg)
	require.NoError(t, err)

	res, err := d.Describe(context.Background(), testutil.RedPixelBytes(t), "image/png", "xx")
	require.NoError(t, err)
	assert.Equal(t, "Single crimson square, crimson tone.", res.Description)
	assert.Equal(t, "crimson", res.Keywords[0])
}

func TestOllamaDescribeErrorEmbedsStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, `{"error":"model not loaded"}`)
	}))
	defer srv.Close()

	d := NewOllama(config.DescriberConfig{BaseURL: srv.URL}, nil)
	_, err := d.Describe(context.Background(), []byte{1}, "image/png", "en")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindDescription))
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "model not loaded")
}

type overScorer struct{}

func (overScorer) Score(string, []string) float64 { return 1.7 }

func TestCustomScorerIsClamped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"message":{"content":"text"},"done":true}`)
	}))
	defer srv.Close()

	d, err := New(config.DescriberConfig{Type: config.DescriberOllama, BaseURL: srv.URL}, WithScorer(overScorer{}))
	require.NoError(t, err)
	res, err := d.Describe(context.Background(), []byte{1}, "image/png", "en")
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Confidence)
}

func TestStripThinking(t *testing.T) {
	assert.Equal(t, "answer", stripThinking("<think>x</think>answer"))
	assert.Equal(t, "a b", stripThinking("a <think>1</think>b"))
	assert.Equal(t, "partial ", stripThinking("partial <think>never closed"))
	assert.Equal(t, "plain", stripThinking("plain"))
}
