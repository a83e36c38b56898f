package models

import "time"

// CompletedOrder is the record written when an order line reaches a terminal
// status. Unique on removal_order_id so repeated writes are upserts.
type CompletedOrder struct {
	ID               int              `gorm:"primary_key" json:"id"`
	StoreId          string           `gorm:"size:64;not null;index" json:"store_id"`
	RemovalOrderId   int              `gorm:"not null;uniqueIndex" json:"removal_order_id"`
	OrderId          string           `gorm:"size:100;not null;index" json:"order_id"`
	Sku              string           `gorm:"size:100" json:"sku"`
	SpreadsheetId    string           `gorm:"size:64" json:"spreadsheet_id"`
	ProcessingStatus ProcessingStatus `gorm:"size:20;not null" json:"processing_status"`
	ProcessingDate   time.Time        `gorm:"index" json:"processing_date"`
	ActualReturnQty  int              `gorm:"not null;default:0" json:"actual_return_qty"`
	TrackingNumbers  StringList       `gorm:"type:json" json:"tracking_numbers"`
	Carriers         StringList       `gorm:"type:json" json:"carriers"`
	Notes            StringList       `gorm:"type:json" json:"notes"`
	ProcessedBy      string           `gorm:"size:100" json:"processed_by"`
	CreatedAt        time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}
