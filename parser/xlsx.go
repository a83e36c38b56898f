package parser

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ParseXLSX parses the first sheet of an xlsx workbook with the same rules as Parse.
func (p *Parser) ParseXLSX(r io.Reader, t FileType) (*Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}

	// GetRows drops empty trailing rows but keeps blank rows in between.
	lines := make([]int, len(rows))
	for i := range rows {
		lines[i] = i + 1
	}
	for len(rows) > 0 && isBlank(rows[0]) {
		rows = rows[1:]
		lines = lines[1:]
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}
	return p.parseTable(rows, lines, t, true)
}

// ParseXLSX parses with the built-in headers and the permissive policy.
func ParseXLSX(r io.Reader, t FileType) (*Result, error) {
	return defaultParser.ParseXLSX(r, t)
}
