package extraction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const modelCallTimeout = 60 * time.Second

// Gemini implements the Extractor interface using Google Gemini with
// schema-constrained JSON generation.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini creates a new Gemini Extractor instance
func NewGemini(apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.GenerationConfig.ResponseMIMEType = "application/json"
	model.GenerationConfig.ResponseSchema = billSchema

	return &Gemini{
		client: client,
		model:  model,
	}, nil
}

// ExtractBill analyzes a bill image and extracts structured data
func (g *Gemini) ExtractBill(imageData []byte, contentType string) (*BillRecord, error) {
	if err := validateInput(imageData, contentType); err != nil {
		return nil, err
	}

	pngData, err := normalizeToPNG(imageData, contentType)
	if err != nil {
		return nil, extractionFailure("preparing image", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), modelCallTimeout)
	defer cancel()

	// Everything is PNG after normalizeToPNG, and genai.ImageData expects
	// just the format suffix rather than a full MIME type.
	parts := []genai.Part{
		genai.ImageData("png", pngData),
		genai.Text(extractPrompt),
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, extractionFailure("generating content", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, extractionFailure("no response from gemini", nil)
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	return parseBillJSON(responseText.String())
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
