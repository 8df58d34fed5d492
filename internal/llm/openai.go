package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/frontdesk/internal/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

// openAIClient talks to any OpenAI-compatible chat endpoint.
type openAIClient struct {
	model       llms.Model
	temperature float64
	maxTokens   int
}

func newOpenAIClient(cfg config.LLMConfig) (*openAIClient, error) {
	if !cfg.APIKey.IsSet() {
		return nil, fmt.Errorf("openai API key required")
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey.Value()),
		openai.WithModel(model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	m, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}
	return &openAIClient{model: m, temperature: cfg.Temperature, maxTokens: maxTokens(cfg)}, nil
}

func (c *openAIClient) Complete(ctx context.Context, systemPrompt, question string) (string, error) {
	resp, err := c.model.GenerateContent(ctx,
		[]llms.MessageContent{
			llms.TextParts(schema.ChatMessageTypeSystem, systemPrompt),
			llms.TextParts(schema.ChatMessageTypeHuman, question),
		},
		llms.WithTemperature(c.temperature),
		llms.WithMaxTokens(c.maxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Content, nil
}
