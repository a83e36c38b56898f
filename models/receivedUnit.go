package models

import "time"

// ReceivedUnit records units of one order line received in one condition.
type ReceivedUnit struct {
	ID             int             `gorm:"primary_key" json:"id"`
	StoreId        string          `gorm:"size:64;not null;index" json:"store_id"`
	RemovalOrderId int             `gorm:"not null;index" json:"removal_order_id"`
	Quantity       int             `gorm:"not null;default:0" json:"quantity"`
	Condition      UnitCondition   `gorm:"size:20;not null" json:"condition"`
	Notes          string          `gorm:"type:text" json:"notes"`
	Images         StringList      `gorm:"type:json" json:"images"`
	Discrepancies  DiscrepancyList `gorm:"type:json" json:"discrepancies"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (u ReceivedUnit) Clone() ReceivedUnit {
	c := u
	c.Images = append(StringList(nil), u.Images...)
	if u.Discrepancies != nil {
		c.Discrepancies = make(DiscrepancyList, len(u.Discrepancies))
		for i, d := range u.Discrepancies {
			d.Images = append([]string(nil), d.Images...)
			c.Discrepancies[i] = d
		}
	}
	return c
}
