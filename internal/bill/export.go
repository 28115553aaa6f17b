package bill

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/bellwood/bill-analyst/internal/extraction"
)

// exportPlaceholder names export artifacts when the invoice number is
// absent or sanitizes to nothing.
const exportPlaceholder = "extracted"

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\-_]`)

// exportBaseName derives the artifact base name from the invoice number
func exportBaseName(record *extraction.BillRecord) string {
	base := unsafeFilenameChars.ReplaceAllString(strings.TrimSpace(record.InvoiceNumber), "")
	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = exportPlaceholder
	}
	return base
}

// ExportJSON serializes the full bill record as pretty-printed JSON and
// returns the artifact filename alongside the data
func ExportJSON(record *extraction.BillRecord) (string, []byte, error) {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", nil, fmt.Errorf("serializing bill record: %w", err)
	}
	return fmt.Sprintf("%s_bill_data.json", exportBaseName(record)), data, nil
}

// ExportXLSX renders the bill record as a workbook with a summary sheet
// and a line-items sheet
func ExportXLSX(record *extraction.BillRecord) (string, []byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const summarySheet = "Summary"
	const itemsSheet = "Line Items"

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return "", nil, fmt.Errorf("renaming summary sheet: %w", err)
	}

	summary := [][]interface{}{
		{"Invoice Number", record.InvoiceNumber},
		{"Invoice Date", record.InvoiceDate},
		{"Seller", record.SellerName},
		{"Customer", record.CustomerName},
		{"Grand Total", record.GrandTotal},
		{"Currency", record.Currency},
	}
	for i, row := range summary {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		f.SetCellValue(summarySheet, cell, row[0])
		cell, _ = excelize.CoordinatesToCellName(2, i+1)
		f.SetCellValue(summarySheet, cell, row[1])
	}

	if _, err := f.NewSheet(itemsSheet); err != nil {
		return "", nil, fmt.Errorf("creating line items sheet: %w", err)
	}
	headers := []string{"Description", "Quantity", "Unit Price", "Total Amount"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(itemsSheet, cell, h)
	}
	for i, item := range record.Items {
		row := i + 2
		values := []interface{}{item.Description, item.Quantity, item.UnitPrice, item.TotalAmount}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, row)
			f.SetCellValue(itemsSheet, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return "", nil, fmt.Errorf("writing workbook: %w", err)
	}
	return fmt.Sprintf("%s_bill_data.xlsx", exportBaseName(record)), buf.Bytes(), nil
}
