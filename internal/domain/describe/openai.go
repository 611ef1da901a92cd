package describe

import (
	"context"
	"encoding/base64"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"ai-images-server-go/internal/domain/image"
	"ai-images-server-go/internal/platform/config"
	"ai-images-server-go/internal/platform/errors"
)

// OpenAI describes images through an OpenAI-compatible chat completion
// endpoint, sending the image inline as a data URL.
type OpenAI struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	post        postProcessor
}

func NewOpenAI(cfg config.DescriberConfig, httpClient *http.Client) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New(errors.KindConfig, "describe.openai", "AI_API_KEY is not set")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if httpClient != nil {
		clientConfig.HTTPClient = httpClient
	}

	model := cfg.ModelName
	if model == "" {
		model = config.DefaultOpenAIModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 500
	}

	return &OpenAI{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		post:        newPostProcessor(cfg),
	}, nil
}

func (*OpenAI) Name() string { return "openai" }

func (o *OpenAI) Describe(ctx context.Context, data []byte, mimeType, language string) (image.DescriptionResult, error) {
	imageURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		MaxTokens:   o.maxTokens,
		Temperature: o.temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: o.post.prompt(language),
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    imageURL,
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return image.DescriptionResult{}, classifyOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return o.post.finish(NoDescription), nil
	}
	return o.post.finish(resp.Choices[0].Message.Content), nil
}

func classifyOpenAIError(err error) error {
	const op = "describe.openai"

	var apiErr *openai.APIError
	if stderrors.As(err, &apiErr) {
		return upstreamError(op, "OpenAI API", apiErr.HTTPStatusCode, apiErr.Message, err)
	}
	var reqErr *openai.RequestError
	if stderrors.As(err, &reqErr) {
		body := ""
		if reqErr.Err != nil {
			body = reqErr.Err.Error()
		}
		return upstreamError(op, "OpenAI API", reqErr.HTTPStatusCode, body, err)
	}
	return upstreamError(op, "OpenAI API", 0, "", err)
}
