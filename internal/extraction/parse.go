package extraction

import (
	"encoding/json"
	"strings"
)

// parseBillJSON decodes the model's JSON reply into a BillRecord and
// enforces the schema's required fields.
func parseBillJSON(text string) (*BillRecord, error) {
	text = strings.TrimSpace(text)

	// Remove markdown code blocks if present
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	// Find the JSON object boundaries - look for first { and last }
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, extractionFailure("no JSON object found in model response", nil)
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, extractionFailure("invalid JSON object in model response", nil)
	}
	text = text[startIdx : endIdx+1]

	var record BillRecord
	if err := json.Unmarshal([]byte(text), &record); err != nil {
		return nil, extractionFailure("decoding model response", err)
	}

	if err := validateRecord(&record); err != nil {
		return nil, err
	}

	return &record, nil
}

// validateRecord checks the required fields of the bill schema. Optional
// fields (customer_name, currency, unit_price) may be absent.
func validateRecord(record *BillRecord) error {
	record.InvoiceNumber = strings.TrimSpace(record.InvoiceNumber)
	record.SellerName = strings.TrimSpace(record.SellerName)
	record.InvoiceDate = strings.TrimSpace(record.InvoiceDate)

	if record.InvoiceNumber == "" {
		return extractionFailure("model response is missing invoice_number", nil)
	}
	if record.InvoiceDate == "" {
		return extractionFailure("model response is missing invoice_date", nil)
	}
	if record.SellerName == "" {
		return extractionFailure("model response is missing seller_name", nil)
	}
	// items may be empty but must be present as a sequence
	if record.Items == nil {
		return extractionFailure("model response is missing items", nil)
	}
	for i := range record.Items {
		record.Items[i].Description = strings.TrimSpace(record.Items[i].Description)
		if record.Items[i].Description == "" {
			return extractionFailure("model response contains a line item without a description", nil)
		}
	}
	return nil
}
