package describe

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"

	"ai-images-server-go/internal/domain/image"
	"ai-images-server-go/internal/platform/config"
)

type ollamaRequest struct {
	Model    string                 `json:"model"`
	Messages []ollamaMessage        `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaResponse struct {
	Model   string `json:"model"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

// Ollama describes images with a local Ollama vision model.
type Ollama struct {
	httpClient  *http.Client
	baseURL     string
	model       string
	maxTokens   int
	temperature float32
	post        postProcessor
}

func NewOllama(cfg config.DescriberConfig, httpClient *http.Client) *Ollama {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = config.DefaultOllamaURL
	}
	model := cfg.ModelName
	if model == "" {
		model = config.DefaultOllamaModel
	}
	return &Ollama{
		httpClient:  httpClient,
		baseURL:     baseURL,
		model:       model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		post:        newPostProcessor(cfg),
	}
}

func (*Ollama) Name() string { return "ollama" }

func (o *Ollama) Describe(ctx context.Context, data []byte, _ string, language string) (image.DescriptionResult, error) {
	const op = "describe.ollama"

	options := map[string]interface{}{"temperature": o.temperature}
	if o.maxTokens > 0 {
		options["num_predict"] = o.maxTokens
	}
	body, err := sonic.Marshal(ollamaRequest{
		Model: o.model,
		Messages: []ollamaMessage{{
			Role:    "user",
			Content: o.post.prompt(language),
			// Ollama wants bare base64, no data URL prefix
			Images: []string{base64.StdEncoding.EncodeToString(data)},
		}},
		Stream:  false,
		Options: options,
	})
	if err != nil {
		return image.DescriptionResult{}, upstreamError(op, "Ollama", 0, "", fmt.Errorf("encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return image.DescriptionResult{}, upstreamError(op, "Ollama", 0, "", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return image.DescriptionResult{}, upstreamError(op, "Ollama", 0, "", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return image.DescriptionResult{}, upstreamError(op, "Ollama", resp.StatusCode, "", err)
	}
	if resp.StatusCode != http.StatusOK {
		return image.DescriptionResult{}, upstreamError(op, "Ollama", resp.StatusCode, string(raw), nil)
	}

	var out ollamaResponse
	if err := sonic.Unmarshal(raw, &out); err != nil {
		return image.DescriptionResult{}, upstreamError(op, "Ollama", resp.StatusCode, string(raw), err)
	}
	return o.post.finish(stripThinking(out.Message.Content)), nil
}

// stripThinking drops <think>...</think> sections emitted by reasoning
// models.
func stripThinking(content string) string {
	for {
		start := strings.Index(content, "<think>")
		if start < 0 {
			return content
		}
		end := strings.Index(content[start:], "</think>")
		if end < 0 {
			return content[:start]
		}
		content = content[:start] + content[start+end+len("</think>"):]
	}
}
