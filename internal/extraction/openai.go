package extraction

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// OpenAI implements the Extractor interface using an OpenAI vision model.
// The schema is embedded in the prompt since the chat completions API has
// no native schema-constrained generation, only a JSON-object mode.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates a new OpenAI Extractor instance
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

// ExtractBill analyzes a bill image and extracts structured data
func (o *OpenAI) ExtractBill(imageData []byte, contentType string) (*BillRecord, error) {
	if err := validateInput(imageData, contentType); err != nil {
		return nil, err
	}

	pngData, err := normalizeToPNG(imageData, contentType)
	if err != nil {
		return nil, extractionFailure("preparing image", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), modelCallTimeout)
	defer cancel()

	imageURL := fmt.Sprintf("data:image/png;base64,%s", base64.StdEncoding.EncodeToString(pngData))
	parts := []openai.ChatMessagePart{
		{
			Type: openai.ChatMessagePartTypeText,
			Text: fmt.Sprintf("%s\n\nThe JSON schema is:\n%s", extractPrompt, billSchemaText),
		},
		{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL: imageURL,
			},
		},
	}

	resp, err := o.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: o.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:         openai.ChatMessageRoleUser,
					MultiContent: parts,
				},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		},
	)
	if err != nil {
		return nil, extractionFailure("generating content", err)
	}
	if len(resp.Choices) == 0 {
		return nil, extractionFailure("no response from openai", nil)
	}

	return parseBillJSON(resp.Choices[0].Message.Content)
}

// Close closes the OpenAI extractor. The underlying client holds no
// persistent connections, so there is nothing to release.
func (o *OpenAI) Close() error {
	return nil
}
