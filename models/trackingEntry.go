package models

import "time"

// TrackingEntry is one shipment row of a tracking file.
type TrackingEntry struct {
	ID               int       `gorm:"primary_key" json:"id"`
	StoreId          string    `gorm:"size:64;not null;index;index:idx_te_store_order,priority:1" json:"store_id"`
	SpreadsheetId    string    `gorm:"size:64;index" json:"spreadsheet_id"`
	TempKey          string    `gorm:"size:64" json:"-"`
	RequestDate      string    `gorm:"size:40" json:"request_date"`
	OrderId          string    `gorm:"size:100;not null;index:idx_te_store_order,priority:2" json:"order_id"`
	ShipmentDate     string    `gorm:"size:40" json:"shipment_date"`
	Sku              string    `gorm:"size:100" json:"sku"`
	Fnsku            string    `gorm:"size:100" json:"fnsku"`
	Disposition      string    `gorm:"size:100" json:"disposition"`
	ShippedQuantity  int       `gorm:"not null;default:0" json:"shipped_quantity"`
	Carrier          string    `gorm:"size:100" json:"carrier"`
	TrackingNumber   string    `gorm:"size:100;index" json:"tracking_number"`
	RemovalOrderType string    `gorm:"size:100" json:"removal_order_type"`
	UploadDate       time.Time `json:"upload_date"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}
