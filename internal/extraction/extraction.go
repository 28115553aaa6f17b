package extraction

import (
	"fmt"
	"strings"
)

// BillRecord is the structured data extracted from one bill or invoice
type BillRecord struct {
	InvoiceNumber string     `json:"invoice_number"`
	InvoiceDate   string     `json:"invoice_date"` // free-form textual date, displayed as extracted
	SellerName    string     `json:"seller_name"`
	CustomerName  string     `json:"customer_name,omitempty"`
	GrandTotal    float64    `json:"grand_total"`
	Currency      string     `json:"currency,omitempty"`
	Items         []LineItem `json:"items"`
}

// LineItem is one purchased product or service row on a bill
type LineItem struct {
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price,omitempty"`
	TotalAmount float64 `json:"total_amount"`
}

// Extractor defines the interface for bill extraction backends
type Extractor interface {
	// ExtractBill analyzes a bill image and extracts structured data
	ExtractBill(imageData []byte, contentType string) (*BillRecord, error)
	// Close closes the extractor and releases resources
	Close() error
}

// ExtractionError carries a human-readable description of a failed
// extraction attempt. The caller surfaces the message and leaves any
// previously extracted record untouched.
type ExtractionError struct {
	Message string
	Err     error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

func extractionFailure(message string, err error) *ExtractionError {
	return &ExtractionError{Message: message, Err: err}
}

// allowedContentTypes lists the upload types accepted for extraction.
// Everything here is normalized to PNG before the model call.
var allowedContentTypes = map[string]bool{
	"image/jpeg":      true,
	"image/jpg":       true,
	"image/png":       true,
	"image/heic":      true,
	"image/heif":      true,
	"application/pdf": true,
}

// validateInput rejects empty payloads and content types outside the
// allow-list before any outbound call is made.
func validateInput(imageData []byte, contentType string) error {
	if len(imageData) == 0 {
		return extractionFailure("image data is empty", nil)
	}
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if !allowedContentTypes[mimeType] {
		return extractionFailure(fmt.Sprintf("unsupported content type %q (supported: JPEG, PNG, HEIC, PDF)", contentType), nil)
	}
	return nil
}
