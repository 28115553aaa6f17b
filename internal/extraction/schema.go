package extraction

import "github.com/google/generative-ai-go/genai"

// SchemaFingerprint identifies the current bill schema shape. It is part
// of the extraction cache key so that a schema change invalidates cached
// records from earlier versions.
const SchemaFingerprint = "bill-record/v1"

// extractPrompt directs the model to perform strict schema-constrained
// extraction from the uploaded bill image.
const extractPrompt = `You are an expert bill parser. Analyze the uploaded bill image and extract all the required information. Strictly adhere to the provided JSON schema. Return ONLY valid JSON, with no text before or after it and no markdown code blocks.`

// billSchema is the declarative description of the expected extraction
// result. Each field carries a short description used to steer the model.
var billSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"invoice_number": {
			Type:        genai.TypeString,
			Description: "The unique invoice or bill number.",
		},
		"invoice_date": {
			Type:        genai.TypeString,
			Description: "The date the bill was issued (e.g., DD/MM/YYYY).",
		},
		"seller_name": {
			Type:        genai.TypeString,
			Description: "The name of the company or seller who issued the bill.",
		},
		"customer_name": {
			Type:        genai.TypeString,
			Description: "The name of the customer the bill is addressed to (Bill To).",
		},
		"grand_total": {
			Type:        genai.TypeNumber,
			Description: "The final total amount paid.",
		},
		"currency": {
			Type:        genai.TypeString,
			Description: "The currency of the grand total (e.g., INR, USD).",
		},
		"items": {
			Type:        genai.TypeArray,
			Description: "A list of all individual products or services purchased.",
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"description": {
						Type:        genai.TypeString,
						Description: "Product or service description/title.",
					},
					"quantity": {
						Type:        genai.TypeInteger,
						Description: "Number of units purchased.",
					},
					"unit_price": {
						Type:        genai.TypeNumber,
						Description: "Price per unit before any discount/tax.",
					},
					"total_amount": {
						Type:        genai.TypeNumber,
						Description: "Final total amount for this item.",
					},
				},
				Required: []string{"description", "quantity", "total_amount"},
			},
		},
	},
	Required: []string{"invoice_number", "invoice_date", "seller_name", "grand_total", "items"},
}

// billSchemaText is the same schema rendered as JSON Schema text, for
// backends without native schema-constrained generation.
const billSchemaText = `{
  "type": "object",
  "properties": {
    "invoice_number": {"type": "string", "description": "The unique invoice or bill number."},
    "invoice_date": {"type": "string", "description": "The date the bill was issued (e.g., DD/MM/YYYY)."},
    "seller_name": {"type": "string", "description": "The name of the company or seller who issued the bill."},
    "customer_name": {"type": "string", "description": "The name of the customer the bill is addressed to (Bill To)."},
    "grand_total": {"type": "number", "description": "The final total amount paid."},
    "currency": {"type": "string", "description": "The currency of the grand total (e.g., INR, USD)."},
    "items": {
      "type": "array",
      "description": "A list of all individual products or services purchased.",
      "items": {
        "type": "object",
        "properties": {
          "description": {"type": "string", "description": "Product or service description/title."},
          "quantity": {"type": "integer", "description": "Number of units purchased."},
          "unit_price": {"type": "number", "description": "Price per unit before any discount/tax."},
          "total_amount": {"type": "number", "description": "Final total amount for this item."}
        },
        "required": ["description", "quantity", "total_amount"]
      }
    }
  },
  "required": ["invoice_number", "invoice_date", "seller_name", "grand_total", "items"]
}`
