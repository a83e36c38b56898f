package parser

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

var sampleRows = map[FileType][]string{
	FileTypeRemoval: {
		"2024-03-15", "ABC123", "Seller-initiated Manual Removal", "Return", "Pending",
		"2024-03-15", "SAMPLE-SKU", "X00SAMPLE", "Sellable", "10", "0", "0", "0", "0",
		"5.00", "USD",
	},
	FileTypeTracking: {
		"2024-03-15", "ABC123", "2024-03-16", "SAMPLE-SKU", "X00SAMPLE", "Sellable",
		"1", "UPS", "1Z999A1A0123456789", "Return",
	},
}

// SampleHeaders are the template headers for t, in order.
func SampleHeaders(t FileType) ([]string, error) {
	h, err := DefaultSchema().Headers(t)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), h...), nil
}

// SampleRow is the single example data row of the template for t.
func SampleRow(t FileType) ([]string, error) {
	row, ok := sampleRows[t]
	if !ok {
		return nil, ErrUnknownFileType
	}
	return append([]string(nil), row...), nil
}

func SampleFileName(t FileType, format string) string {
	if format != FormatXLSX {
		format = FormatCSV
	}
	return fmt.Sprintf("sample_%s_file.%s", t, format)
}

// SampleCSV renders the template as CSV.
func SampleCSV(t FileType) ([]byte, error) {
	headers, err := SampleHeaders(t)
	if err != nil {
		return nil, err
	}
	row, err := SampleRow(t)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll([][]string{headers, row}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SampleXLSX renders the template as a one-sheet workbook.
func SampleXLSX(t FileType) ([]byte, error) {
	headers, err := SampleHeaders(t)
	if err != nil {
		return nil, err
	}
	row, err := SampleRow(t)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(sheet, "A2", &row); err != nil {
		return nil, err
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Sample renders the template in format (csv or xlsx).
func Sample(t FileType, format string) ([]byte, error) {
	if format == FormatXLSX {
		return SampleXLSX(t)
	}
	return SampleCSV(t)
}
