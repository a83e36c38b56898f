package reconcile

import (
	"bytes"
	"strings"

	"github.com/fr33d0m21/pull/models"
	"github.com/xuri/excelize/v2"
)

var exportHeaders = []string{
	"request-date", "order-id", "sku", "fnsku", "disposition",
	"requested-quantity", "shipped-quantity", "actual-return-qty",
	"processing-status", "tracking-number", "carrier", "tracking-numbers",
	"removal-fee", "currency", "notes", "completed-by", "completed-at",
}

// ExportOrdersXLSX writes orders as one sheet with a header row.
func ExportOrdersXLSX(orders []models.RemovalOrder) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	header := make([]interface{}, len(exportHeaders))
	for i, h := range exportHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, err
	}
	for i, o := range orders {
		completedAt := ""
		if o.CompletedAt != nil {
			completedAt = o.CompletedAt.UTC().Format("2006-01-02T15:04:05Z")
		}
		row := []interface{}{
			o.RequestDate, o.OrderId, o.Sku, o.Fnsku, o.Disposition,
			o.RequestedQuantity, o.ShippedQuantity, o.ActualReturnQty,
			string(o.ProcessingStatus), o.TrackingNumber, o.Carrier, strings.Join(o.TrackingNumbers, ", "),
			o.RemovalFee.StringFixed(2), o.Currency, strings.Join(o.Notes, "; "), o.CompletedBy, completedAt,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, err
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
