// Package parser turns uploaded removal and tracking files (CSV, tab
// delimited text or xlsx) into typed rows. It has no side effects.
package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

type Policy string

const (
	// PolicyPermissive skips rows missing sku or order-id and reports a Warning.
	PolicyPermissive Policy = "permissive"
	// PolicyStrict fails the whole parse on such rows.
	PolicyStrict Policy = "strict"
)

// Result holds the rows of one parsed file. Only the slice matching Type is set.
type Result struct {
	Type     FileType      `json:"type"`
	Headers  []string      `json:"headers"`
	Removal  []RemovalRow  `json:"removal,omitempty"`
	Tracking []TrackingRow `json:"tracking,omitempty"`
	Warnings []Warning     `json:"warnings,omitempty"`
}

// Len is the number of rows kept.
func (r *Result) Len() int {
	if r.Type == FileTypeTracking {
		return len(r.Tracking)
	}
	return len(r.Removal)
}

type Parser struct {
	schema Schema
	policy Policy
	newKey func() string
}

func NewParser(schema Schema, policy Policy) *Parser {
	if policy != PolicyStrict {
		policy = PolicyPermissive
	}
	return &Parser{schema: schema, policy: policy, newKey: uuid.NewString}
}

var defaultParser = NewParser(DefaultSchema(), PolicyPermissive)

// Parse parses content with the built-in headers and the permissive policy.
func Parse(content []byte, t FileType) (*Result, error) {
	return defaultParser.Parse(content, t)
}

// Parse parses CSV or tab-delimited text. The delimiter is a tab when the
// first line contains one, else a comma. Nothing is returned on error.
func (p *Parser) Parse(content []byte, t FileType) (*Result, error) {
	content = bytes.TrimPrefix(content, []byte("\ufeff"))
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, ErrEmptyFile
	}

	firstLine := content
	if i := bytes.IndexAny(content, "\r\n"); i >= 0 {
		firstLine = content[:i]
	}

	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	if bytes.Contains(firstLine, []byte("\t")) {
		reader.Comma = '\t'
	}

	var rows [][]string
	var lines []int
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				return nil, &RowError{Row: parseErr.StartLine, Err: parseErr.Err}
			}
			return nil, err
		}
		line, _ := reader.FieldPos(0)
		rows = append(rows, fields)
		lines = append(lines, line)
	}
	return p.parseTable(rows, lines, t, false)
}

// parseTable validates headers and builds typed rows. lines holds the file
// line of each row. padShort fills rows that are shorter than the header
// (spreadsheets drop trailing empty cells).
func (p *Parser) parseTable(rows [][]string, lines []int, t FileType, padShort bool) (*Result, error) {
	required, err := p.schema.Headers(t)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}

	rawHeaders := make([]string, len(rows[0]))
	headers := make([]string, len(rows[0]))
	index := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		rawHeaders[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		headers[i] = NormalizeHeader(h)
		if _, dup := index[headers[i]]; !dup {
			index[headers[i]] = i
		}
	}

	var missing []string
	for _, h := range required {
		if _, ok := index[NormalizeHeader(h)]; !ok {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingHeadersError{
			Type:     t,
			Expected: append([]string(nil), required...),
			Missing:  missing,
			Found:    rawHeaders,
		}
	}

	result := &Result{Type: t, Headers: rawHeaders}
	dataRows := 0
	for i := 1; i < len(rows); i++ {
		fields := rows[i]
		line := lines[i]
		if isBlank(fields) {
			continue
		}
		dataRows++
		if padShort && len(fields) < len(headers) {
			fields = append(fields, make([]string, len(headers)-len(fields))...)
		}
		if len(fields) != len(headers) {
			return nil, &RowError{
				Row: line,
				Err: fmt.Errorf("Row %d has %d columns but should have %d", line, len(fields), len(headers)),
			}
		}

		rec := make(record, len(headers))
		for j, h := range headers {
			if _, seen := rec[h]; seen {
				continue
			}
			rec[h] = coerceField(h, fields[j])
		}

		if rec.get("sku") == "" || rec.get("orderid") == "" {
			if p.policy == PolicyStrict {
				return nil, &RowError{Row: line, Err: errMissingIdentifier}
			}
			result.Warnings = append(result.Warnings, Warning{Row: line, Reason: errMissingIdentifier.Error()})
			continue
		}

		switch t {
		case FileTypeRemoval:
			result.Removal = append(result.Removal, rec.removalRow(p.newKey(), line))
		case FileTypeTracking:
			result.Tracking = append(result.Tracking, rec.trackingRow(p.newKey(), line))
		}
	}
	if dataRows == 0 {
		return nil, ErrNoDataRows
	}
	return result, nil
}

func isBlank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
