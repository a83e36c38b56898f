package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RemovalOrder is one line of a removal order (order id + sku) and its
// processing state. ID is the only identity once persisted.
type RemovalOrder struct {
	ID            int    `gorm:"primary_key" json:"id"`
	StoreId       string `gorm:"size:64;not null;index;index:idx_ro_store_order,priority:1" json:"store_id"`
	SpreadsheetId string `gorm:"size:64;index" json:"spreadsheet_id"`
	TempKey       string `gorm:"size:64" json:"-"`

	RequestDate       string          `gorm:"size:40;index" json:"request_date"`
	OrderId           string          `gorm:"size:100;not null;index:idx_ro_store_order,priority:2" json:"order_id"`
	OrderSource       string          `gorm:"size:255" json:"order_source"`
	OrderType         string          `gorm:"size:100" json:"order_type"`
	OrderStatus       string          `gorm:"size:100" json:"order_status"`
	LastUpdatedDate   string          `gorm:"size:40" json:"last_updated_date"`
	Sku               string          `gorm:"size:100;not null;index:idx_ro_store_order,priority:3" json:"sku"`
	Fnsku             string          `gorm:"size:100" json:"fnsku"`
	Disposition       string          `gorm:"size:100" json:"disposition"`
	RequestedQuantity int             `gorm:"not null;default:0" json:"requested_quantity"`
	CancelledQuantity int             `gorm:"not null;default:0" json:"cancelled_quantity"`
	DisposedQuantity  int             `gorm:"not null;default:0" json:"disposed_quantity"`
	ShippedQuantity   int             `gorm:"not null;default:0" json:"shipped_quantity"`
	InProcessQuantity int             `gorm:"not null;default:0" json:"in_process_quantity"`
	RemovalFee        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"removal_fee"`
	Currency          string          `gorm:"size:10" json:"currency"`

	ActualReturnQty  int              `gorm:"not null;default:0" json:"actual_return_qty"`
	ProcessingStatus ProcessingStatus `gorm:"size:20;not null;default:'new';index" json:"processing_status"`
	TrackingNumber   string           `gorm:"size:100;index" json:"tracking_number"`
	Carrier          string           `gorm:"size:100" json:"carrier"`
	TrackingNumbers  StringList       `gorm:"type:json" json:"tracking_numbers"`
	Carriers         StringList       `gorm:"type:json" json:"carriers"`
	Notes            StringList       `gorm:"type:json" json:"notes"`

	Version       int            `gorm:"not null;default:1" json:"version"`
	UploadDate    time.Time      `gorm:"index" json:"upload_date"`
	CompletedAt   *time.Time     `json:"completed_at"`
	CompletedBy   string         `gorm:"size:100" json:"completed_by"`
	ReceivedUnits []ReceivedUnit `gorm:"foreignKey:RemovalOrderId" json:"received_units"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// ExpectedQuantity is what the warehouse should receive: the shipped
// quantity once known, else the requested quantity.
func (o RemovalOrder) ExpectedQuantity() int {
	if o.ShippedQuantity > 0 {
		return o.ShippedQuantity
	}
	return o.RequestedQuantity
}

// HasMismatch reports a received quantity that differs from the request.
func (o RemovalOrder) HasMismatch() bool {
	return o.ActualReturnQty != o.RequestedQuantity
}

// Clone returns a deep copy, so callers never share slices with a store snapshot.
func (o RemovalOrder) Clone() RemovalOrder {
	c := o
	c.TrackingNumbers = append(StringList(nil), o.TrackingNumbers...)
	c.Carriers = append(StringList(nil), o.Carriers...)
	c.Notes = append(StringList(nil), o.Notes...)
	if o.CompletedAt != nil {
		t := *o.CompletedAt
		c.CompletedAt = &t
	}
	if o.ReceivedUnits != nil {
		c.ReceivedUnits = make([]ReceivedUnit, len(o.ReceivedUnits))
		for i, u := range o.ReceivedUnits {
			c.ReceivedUnits[i] = u.Clone()
		}
	}
	return c
}
