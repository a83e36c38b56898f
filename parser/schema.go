package parser

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type FileType string

const (
	FileTypeRemoval  FileType = "removal"
	FileTypeTracking FileType = "tracking"
)

// ParseFileType accepts "removal" or "tracking" in any case.
func ParseFileType(s string) (FileType, error) {
	switch FileType(strings.ToLower(strings.TrimSpace(s))) {
	case FileTypeRemoval:
		return FileTypeRemoval, nil
	case FileTypeTracking:
		return FileTypeTracking, nil
	}
	return "", ErrUnknownFileType
}

var defaultRemovalHeaders = []string{
	"request-date", "order-id", "order-source", "order-type", "order-status",
	"last-updated-date", "sku", "fnsku", "disposition", "requested-quantity",
	"cancelled-quantity", "disposed-quantity", "shipped-quantity",
	"in-process-quantity", "removal-fee", "currency",
}

var defaultTrackingHeaders = []string{
	"request-date", "order-id", "shipment-date", "sku", "fnsku", "disposition",
	"shipped-quantity", "carrier", "tracking-number", "removal-order-type",
}

// Schema lists the required headers per file type, in sample-file order.
type Schema struct {
	Removal  []string `yaml:"removal"`
	Tracking []string `yaml:"tracking"`
}

func DefaultSchema() Schema {
	return Schema{
		Removal:  append([]string(nil), defaultRemovalHeaders...),
		Tracking: append([]string(nil), defaultTrackingHeaders...),
	}
}

// LoadSchema reads a YAML schema file. Types the file leaves empty keep
// the built-in header list.
func LoadSchema(path string) (Schema, error) {
	schema := DefaultSchema()
	data, err := os.ReadFile(path)
	if err != nil {
		return schema, fmt.Errorf("read parser schema: %w", err)
	}
	var override Schema
	if err := yaml.Unmarshal(data, &override); err != nil {
		return schema, fmt.Errorf("decode parser schema %s: %w", path, err)
	}
	if len(override.Removal) > 0 {
		schema.Removal = override.Removal
	}
	if len(override.Tracking) > 0 {
		schema.Tracking = override.Tracking
	}
	return schema, nil
}

func (s Schema) Headers(t FileType) ([]string, error) {
	switch t {
	case FileTypeRemoval:
		return s.Removal, nil
	case FileTypeTracking:
		return s.Tracking, nil
	}
	return nil, ErrUnknownFileType
}

// NormalizeHeader maps header variants such as `Order-ID`, `order_id` and
// `"Order ID"` to one token ("orderid").
func NormalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(h))
	return headerReplacer.Replace(h)
}

var headerReplacer = strings.NewReplacer(
	`"`, "", "'", "", "\r", "", "\n", "", "-", "", "_", "", " ", "", "\t", "",
)
