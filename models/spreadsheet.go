package models

import "time"

// Spreadsheet is one upload batch; its rows carry its ID as spreadsheet_id.
type Spreadsheet struct {
	ID          string    `gorm:"primary_key;size:64" json:"id"`
	StoreId     string    `gorm:"size:64;not null;index" json:"store_id"`
	FileType    FileType  `gorm:"size:20;not null" json:"file_type"`
	FileName    string    `gorm:"size:255" json:"file_name"`
	RowCount    int       `gorm:"not null;default:0" json:"row_count"`
	SkippedRows int       `gorm:"not null;default:0" json:"skipped_rows"`
	UploadedBy  string    `gorm:"size:100" json:"uploaded_by"`
	UploadedAt  time.Time `gorm:"index" json:"uploaded_at"`
}
