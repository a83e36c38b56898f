package reconcile

import (
	"strings"
	"time"

	"github.com/fr33d0m21/pull/models"
	"github.com/fr33d0m21/pull/parser"
)

// IngestRequest is one parsed upload for a store.
type IngestRequest struct {
	StoreId    string
	FileName   string
	UploadedBy string
	Result     *parser.Result
}

// IngestResult reports what an upload changed.
type IngestResult struct {
	Spreadsheet models.Spreadsheet `json:"spreadsheet"`
	Inserted    int                `json:"inserted"`
	Matched     int                `json:"matched"`
	Unmatched   int                `json:"unmatched"`
	Warnings    []parser.Warning   `json:"warnings,omitempty"`
	Stats       Stats              `json:"stats"`
}

func removalOrders(rows []parser.RemovalRow, storeId, sheetId string, uploadedAt time.Time) []models.RemovalOrder {
	orders := make([]models.RemovalOrder, 0, len(rows))
	for _, r := range rows {
		orders = append(orders, models.RemovalOrder{
			StoreId:           storeId,
			SpreadsheetId:     sheetId,
			TempKey:           r.Key,
			RequestDate:       r.RequestDate,
			OrderId:           strings.TrimSpace(r.OrderId),
			OrderSource:       r.OrderSource,
			OrderType:         r.OrderType,
			OrderStatus:       r.OrderStatus,
			LastUpdatedDate:   r.LastUpdatedDate,
			Sku:               strings.TrimSpace(r.Sku),
			Fnsku:             r.Fnsku,
			Disposition:       r.Disposition,
			RequestedQuantity: r.RequestedQuantity,
			CancelledQuantity: r.CancelledQuantity,
			DisposedQuantity:  r.DisposedQuantity,
			ShippedQuantity:   r.ShippedQuantity,
			InProcessQuantity: r.InProcessQuantity,
			RemovalFee:        r.RemovalFee,
			Currency:          r.Currency,
			ProcessingStatus:  models.ProcessingStatusNew,
			TrackingNumbers:   models.StringList{},
			Carriers:          models.StringList{},
			Notes:             models.StringList{},
			Version:           1,
			UploadDate:        uploadedAt,
		})
	}
	return orders
}

func trackingEntries(rows []parser.TrackingRow, storeId, sheetId string, uploadedAt time.Time) []models.TrackingEntry {
	entries := make([]models.TrackingEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, models.TrackingEntry{
			StoreId:          storeId,
			SpreadsheetId:    sheetId,
			TempKey:          r.Key,
			RequestDate:      r.RequestDate,
			OrderId:          strings.TrimSpace(r.OrderId),
			ShipmentDate:     r.ShipmentDate,
			Sku:              strings.TrimSpace(r.Sku),
			Fnsku:            r.Fnsku,
			Disposition:      r.Disposition,
			ShippedQuantity:  r.ShippedQuantity,
			Carrier:          strings.TrimSpace(r.Carrier),
			TrackingNumber:   strings.TrimSpace(r.TrackingNumber),
			RemovalOrderType: r.RemovalOrderType,
			UploadDate:       uploadedAt,
		})
	}
	return entries
}

type lineKey struct {
	orderId string
	sku     string
}

// matchTracking applies shipments to the working orders they belong to,
// matched on (order id, sku). The first shipment of a line sets its tracking
// number, carrier and shipped quantity; later shipments with another
// tracking number are appended and add to the shipped quantity. A shipment
// already recorded on the line changes nothing. It returns the changed
// orders and the number of entries that matched no line.
func matchTracking(orders []models.RemovalOrder, entries []models.TrackingEntry) (changed []models.RemovalOrder, matchedEntries, unmatched int) {
	byLine := map[lineKey][]int{}
	for i, o := range orders {
		if o.ProcessingStatus.IsWorking() {
			k := lineKey{o.OrderId, o.Sku}
			byLine[k] = append(byLine[k], i)
		}
	}
	work := make([]models.RemovalOrder, len(orders))
	for i, o := range orders {
		work[i] = o.Clone()
	}
	touched := map[int]bool{}
	for _, e := range entries {
		idx := byLine[lineKey{e.OrderId, e.Sku}]
		if len(idx) == 0 || e.TrackingNumber == "" {
			unmatched++
			continue
		}
		matchedEntries++
		for _, i := range idx {
			if applyShipment(&work[i], e) {
				touched[i] = true
			}
		}
	}
	for i := range work {
		if touched[i] {
			work[i].Version++
			changed = append(changed, work[i])
		}
	}
	return changed, matchedEntries, unmatched
}

func applyShipment(o *models.RemovalOrder, e models.TrackingEntry) bool {
	if o.TrackingNumber == e.TrackingNumber || containsFold(o.TrackingNumbers, e.TrackingNumber) {
		return false
	}
	if o.TrackingNumber == "" {
		o.TrackingNumber = e.TrackingNumber
		o.Carrier = e.Carrier
		o.ShippedQuantity = e.ShippedQuantity
	} else {
		o.ShippedQuantity += e.ShippedQuantity
	}
	o.TrackingNumbers = append(o.TrackingNumbers, e.TrackingNumber)
	o.Carriers = append(o.Carriers, e.Carrier)
	return true
}
