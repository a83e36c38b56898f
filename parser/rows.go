package parser

import "github.com/shopspring/decimal"

// RemovalRow is one parsed line of a removal file. Key is a generated
// pre-insert identifier; StoreId, SpreadsheetId and UploadDate are left blank
// for the caller to stamp.
type RemovalRow struct {
	Key               string          `json:"key"`
	Row               int             `json:"row"`
	RequestDate       string          `json:"request_date"`
	OrderId           string          `json:"order_id"`
	OrderSource       string          `json:"order_source"`
	OrderType         string          `json:"order_type"`
	OrderStatus       string          `json:"order_status"`
	LastUpdatedDate   string          `json:"last_updated_date"`
	Sku               string          `json:"sku"`
	Fnsku             string          `json:"fnsku"`
	Disposition       string          `json:"disposition"`
	RequestedQuantity int             `json:"requested_quantity"`
	CancelledQuantity int             `json:"cancelled_quantity"`
	DisposedQuantity  int             `json:"disposed_quantity"`
	ShippedQuantity   int             `json:"shipped_quantity"`
	InProcessQuantity int             `json:"in_process_quantity"`
	RemovalFee        decimal.Decimal `json:"removal_fee"`
	Currency          string          `json:"currency"`
	StoreId           string          `json:"store_id"`
	SpreadsheetId     string          `json:"spreadsheet_id"`
	UploadDate        string          `json:"upload_date"`
}

// TrackingRow is one parsed line of a tracking file.
type TrackingRow struct {
	Key              string `json:"key"`
	Row              int    `json:"row"`
	RequestDate      string `json:"request_date"`
	OrderId          string `json:"order_id"`
	ShipmentDate     string `json:"shipment_date"`
	Sku              string `json:"sku"`
	Fnsku            string `json:"fnsku"`
	Disposition      string `json:"disposition"`
	ShippedQuantity  int    `json:"shipped_quantity"`
	Carrier          string `json:"carrier"`
	TrackingNumber   string `json:"tracking_number"`
	RemovalOrderType string `json:"removal_order_type"`
	StoreId          string `json:"store_id"`
	SpreadsheetId    string `json:"spreadsheet_id"`
	UploadDate       string `json:"upload_date"`
}

// record is one data row keyed by normalized header.
type record map[string]string

func (r record) get(normalized string) string {
	return r[normalized]
}

func (r record) removalRow(key string, row int) RemovalRow {
	return RemovalRow{
		Key:               key,
		Row:               row,
		RequestDate:       r.get("requestdate"),
		OrderId:           r.get("orderid"),
		OrderSource:       r.get("ordersource"),
		OrderType:         r.get("ordertype"),
		OrderStatus:       r.get("orderstatus"),
		LastUpdatedDate:   r.get("lastupdateddate"),
		Sku:               r.get("sku"),
		Fnsku:             r.get("fnsku"),
		Disposition:       r.get("disposition"),
		RequestedQuantity: ParseQuantity(r.get("requestedquantity")),
		CancelledQuantity: ParseQuantity(r.get("cancelledquantity")),
		DisposedQuantity:  ParseQuantity(r.get("disposedquantity")),
		ShippedQuantity:   ParseQuantity(r.get("shippedquantity")),
		InProcessQuantity: ParseQuantity(r.get("inprocessquantity")),
		RemovalFee:        ParseAmount(r.get("removalfee")),
		Currency:          r.get("currency"),
	}
}

func (r record) trackingRow(key string, row int) TrackingRow {
	return TrackingRow{
		Key:              key,
		Row:              row,
		RequestDate:      r.get("requestdate"),
		OrderId:          r.get("orderid"),
		ShipmentDate:     r.get("shipmentdate"),
		Sku:              r.get("sku"),
		Fnsku:            r.get("fnsku"),
		Disposition:      r.get("disposition"),
		ShippedQuantity:  ParseQuantity(r.get("shippedquantity")),
		Carrier:          r.get("carrier"),
		TrackingNumber:   r.get("trackingnumber"),
		RemovalOrderType: r.get("removalordertype"),
	}
}
