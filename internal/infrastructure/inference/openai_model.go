package inference

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/janhq/jan-chat/internal/config"
	"github.com/janhq/jan-chat/internal/domain/conversation"
	"github.com/janhq/jan-chat/internal/domain/generation"
)

// OpenAIModel streams completions from any OpenAI-compatible endpoint.
type OpenAIModel struct {
	client       *openai.Client
	model        string
	systemPrompt string
}

var _ generation.LanguageModel = (*OpenAIModel)(nil)

func NewOpenAIModel(baseURL, apiKey, model, systemPrompt string) *OpenAIModel {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAIModel{
		client:       openai.NewClientWithConfig(cfg),
		model:        model,
		systemPrompt: systemPrompt,
	}
}

func ProvideOpenAIModel(cfg *config.Config) *OpenAIModel {
	return NewOpenAIModel(cfg.ModelBaseURL, cfg.ModelAPIKey, cfg.ModelName, cfg.ModelSystemPrompt)
}

func (m *OpenAIModel) StreamCompletion(ctx context.Context, thread []conversation.Message) (generation.Completion, error) {
	req := openai.ChatCompletionRequest{
		Model:         m.model,
		Messages:      buildMessages(m.systemPrompt, thread),
		Stream:        true,
		StreamOptions: &openai.StreamOptions{IncludeUsage: true},
	}
	stream, err := m.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("open completion stream: %w", err)
	}
	return &openAICompletion{stream: stream}, nil
}

func buildMessages(systemPrompt string, thread []conversation.Message) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(thread)+1)
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	}
	for _, msg := range thread {
		role := openai.ChatMessageRoleUser
		if msg.Role() == conversation.RoleAgent {
			role = openai.ChatMessageRoleAssistant
		}
		text := conversation.Text(msg)
		if text == "" && role == openai.ChatMessageRoleAssistant {
			// Errored or interrupted answers with no output carry nothing for the model.
			continue
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: text})
	}
	return messages
}

type openAICompletion struct {
	stream *openai.ChatCompletionStream
	usage  conversation.Usage
}

func (c *openAICompletion) Recv() (string, error) {
	for {
		resp, err := c.stream.Recv()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			return "", fmt.Errorf("receive completion chunk: %w", err)
		}
		if resp.Usage != nil {
			c.usage = conversation.Usage{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				TotalTokens:      resp.Usage.TotalTokens,
			}
		}
		if len(resp.Choices) == 0 {
			continue
		}
		return resp.Choices[0].Delta.Content, nil
	}
}

func (c *openAICompletion) Usage() conversation.Usage { return c.usage }

func (c *openAICompletion) Close() error {
	return c.stream.Close()
}
