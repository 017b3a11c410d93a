package translator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/mistral"
	"github.com/tmc/langchaingo/llms/ollama"
)

// einoClient talks to any OpenAI-compatible endpoint through eino.
type einoClient struct {
	chat *openai.ChatModel
}

func newEinoFactory(defaultBaseURL, defaultModel string) Factory {
	return func(ctx context.Context, cred Credentials) (Client, error) {
		baseURL := cred.BaseURL
		if baseURL == "" {
			baseURL = defaultBaseURL
		}
		temperature := float32(Temperature)
		chat, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			Model:       defaultModel,
			APIKey:      cred.APIKey,
			BaseURL:     baseURL,
			Temperature: &temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create chat model: %w", err)
		}
		return &einoClient{chat: chat}, nil
	}
}

func (c *einoClient) Complete(ctx context.Context, system, user, model string) (string, error) {
	opts := []einomodel.Option{einomodel.WithTemperature(float32(Temperature))}
	if model != "" {
		opts = append(opts, einomodel.WithModel(model))
	}
	msg, err := c.chat.Generate(ctx, []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(user),
	}, opts...)
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

// langchainClient wraps any langchaingo chat model.
type langchainClient struct {
	llm llms.Model
}

func (c *langchainClient) Complete(ctx context.Context, system, user, model string) (string, error) {
	opts := []llms.CallOption{llms.WithTemperature(Temperature)}
	if model != "" {
		opts = append(opts, llms.WithModel(model))
	}
	resp, err := c.llm.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}, opts...)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	return resp.Choices[0].Content, nil
}

func newAnthropicFactory(defaultModel string) Factory {
	return func(_ context.Context, cred Credentials) (Client, error) {
		opts := []anthropic.Option{
			anthropic.WithModel(defaultModel),
			anthropic.WithToken(cred.APIKey),
		}
		if cred.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cred.BaseURL))
		}
		llm, err := anthropic.New(opts...)
		if err != nil {
			return nil, err
		}
		return &langchainClient{llm: llm}, nil
	}
}

func newMistralFactory(defaultModel string) Factory {
	return func(_ context.Context, cred Credentials) (Client, error) {
		opts := []mistral.Option{
			mistral.WithModel(defaultModel),
			mistral.WithAPIKey(cred.APIKey),
			mistral.WithMaxRetries(0), // 每次请求只尝试一次
		}
		if cred.BaseURL != "" {
			opts = append(opts, mistral.WithEndpoint(cred.BaseURL))
		}
		llm, err := mistral.New(opts...)
		if err != nil {
			return nil, err
		}
		return &langchainClient{llm: llm}, nil
	}
}

func newOllamaFactory(defaultServerURL, defaultModel string) Factory {
	return func(_ context.Context, cred Credentials) (Client, error) {
		serverURL := cred.BaseURL
		if serverURL == "" {
			serverURL = defaultServerURL
		}
		llm, err := ollama.New(
			ollama.WithModel(defaultModel),
			ollama.WithServerURL(serverURL),
		)
		if err != nil {
			return nil, err
		}
		return &langchainClient{llm: llm}, nil
	}
}
