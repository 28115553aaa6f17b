package chat

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// OpenAI implements the Assistant interface using an OpenAI chat model
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates a new OpenAI Assistant instance
func NewOpenAI(apiKey string, modelName string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if modelName == "" {
		modelName = openai.GPT4o
	}

	return &OpenAI{
		client: openai.NewClient(apiKey),
		model:  modelName,
	}, nil
}

// Answer replies to a user question grounded in the bill context
func (o *OpenAI) Answer(contextJSON string, userQuery string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), modelCallTimeout)
	defer cancel()

	resp, err := o.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: o.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: groundingInstruction(contextJSON),
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: userQuery,
				},
			},
		},
	)
	if err != nil {
		return "", fmt.Errorf("generating content: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from openai")
	}
	return resp.Choices[0].Message.Content, nil
}

// Close closes the OpenAI assistant
func (o *OpenAI) Close() error {
	return nil
}
