package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// StringList is stored as a JSON array column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*l = StringList{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("unsupported type for StringList")
	}
	if len(data) == 0 {
		*l = StringList{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*l = out
	return nil
}

// Equal compares element-wise; nil and empty are equal.
func (l StringList) Equal(other StringList) bool {
	if len(l) != len(other) {
		return false
	}
	for i := range l {
		if l[i] != other[i] {
			return false
		}
	}
	return true
}

// Discrepancy is one problem recorded against a received unit.
type Discrepancy struct {
	Type        DiscrepancyType `json:"type"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	Images      []string        `json:"images,omitempty"`
}

type DiscrepancyList []Discrepancy

func (l DiscrepancyList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]Discrepancy(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *DiscrepancyList) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*l = DiscrepancyList{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("unsupported type for DiscrepancyList")
	}
	if len(data) == 0 {
		*l = DiscrepancyList{}
		return nil
	}
	var out []Discrepancy
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*l = out
	return nil
}
