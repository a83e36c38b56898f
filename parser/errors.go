package parser

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyFile       = errors.New("the file appears to be empty, please check the file and try again")
	ErrNoDataRows      = errors.New("no data rows found in the file, please check the file format")
	ErrUnknownFileType = errors.New("unknown file type, expected removal or tracking")
)

// MissingHeadersError reports required headers absent from the file.
// Headers are listed verbatim so operators can compare them with their export.
type MissingHeadersError struct {
	Type     FileType
	Expected []string
	Missing  []string
	Found    []string
}

func (e *MissingHeadersError) Error() string {
	return fmt.Sprintf("Missing required headers for %s file:\nExpected: %s\nMissing: %s\nFound: %s",
		e.Type,
		strings.Join(e.Expected, ", "),
		strings.Join(e.Missing, ", "),
		strings.Join(e.Found, ", "))
}

// RowError fails a parse because of one data row. Row is the 1-based line
// number in the file, the header being row 1.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("Error in row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

var errMissingIdentifier = errors.New("missing required sku or order-id")

// Warning is a row that was skipped without failing the parse.
type Warning struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}
