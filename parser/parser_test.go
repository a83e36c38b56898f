package parser

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const removalHeader = "request-date,order-id,order-source,order-type,order-status,last-updated-date,sku,fnsku,disposition,requested-quantity,cancelled-quantity,disposed-quantity,shipped-quantity,in-process-quantity,removal-fee,currency"

const trackingHeader = "request-date,order-id,shipment-date,sku,fnsku,disposition,shipped-quantity,carrier,tracking-number,removal-order-type"

func TestParseRemovalExample(t *testing.T) {
	input := removalHeader + "\n2024-03-15,ABC123,Seller-initiated Manual Removal,Return,Pending,2024-03-15,SAMPLE-SKU,X00SAMPLE,Sellable,10,0,0,0,0,5.00,USD"

	res, err := Parse([]byte(input), FileTypeRemoval)
	require.NoError(t, err)
	require.Len(t, res.Removal, 1)

	row := res.Removal[0]
	assert.Equal(t, "SAMPLE-SKU", row.Sku)
	assert.Equal(t, "ABC123", row.OrderId)
	assert.Equal(t, 10, row.RequestedQuantity)
	assert.True(t, row.RemovalFee.Equal(decimal.RequireFromString("5.00")), "fee %s", row.RemovalFee)
	assert.Equal(t, "2024-03-15T00:00:00.000Z", row.RequestDate)
	assert.Equal(t, 2, row.Row)
	assert.NotEmpty(t, row.Key)
	assert.Empty(t, row.StoreId)
	assert.Empty(t, row.SpreadsheetId)
	assert.Empty(t, row.UploadDate)
	assert.Empty(t, res.Warnings)
}

func TestParseMissingTrackingHeader(t *testing.T) {
	input := "request-date,order-id,shipment-date,sku,fnsku,disposition,shipped-quantity,carrier,removal-order-type\n" +
		"2024-03-15,ABC123,2024-03-16,SKU1,X001,Sellable,1,UPS,Return"

	res, err := Parse([]byte(input), FileTypeTracking)
	require.Error(t, err)
	assert.Nil(t, res)

	var missing *MissingHeadersError
	require.True(t, errors.As(err, &missing))
	assert.Contains(t, missing.Missing, "tracking-number")
	assert.Len(t, missing.Found, 9)
	assert.Contains(t, err.Error(), "Missing required headers for tracking file:")
	assert.Contains(t, err.Error(), "Missing: tracking-number")
}

func TestParseQuotedFields(t *testing.T) {
	input := removalHeader + "\n" +
		`2024-03-15,ABC123,"Smith, John",Return,Pending,2024-03-15,SKU-1,X001,"He said ""hi""",3,0,0,0,0,1.50,USD`

	res, err := Parse([]byte(input), FileTypeRemoval)
	require.NoError(t, err)
	require.Len(t, res.Removal, 1)
	assert.Equal(t, "Smith, John", res.Removal[0].OrderSource)
	assert.Equal(t, `He said "hi"`, res.Removal[0].Disposition)
	assert.Equal(t, "USD", res.Removal[0].Currency)
}

func TestParseTabDelimitedWithHeaderVariants(t *testing.T) {
	headers := []string{"Request Date", "Order_ID", "Shipment-Date", "SKU", "FNSKU", "Disposition", "Shipped Quantity", "Carrier", `"Tracking Number"`, "removal_order_type"}
	row := []string{"03/16/2024", "ORD-9", "2024-03-17", "SKU-9", "X009", "Unsellable", "4", "FedEx", "7788", "Disposal"}
	input := strings.Join(headers, "\t") + "\r\n" + strings.Join(row, "\t") + "\r\n"

	res, err := Parse([]byte(input), FileTypeTracking)
	require.NoError(t, err)
	require.Len(t, res.Tracking, 1)

	got := res.Tracking[0]
	assert.Equal(t, "2024-03-16T00:00:00.000Z", got.RequestDate)
	assert.Equal(t, "ORD-9", got.OrderId)
	assert.Equal(t, "7788", got.TrackingNumber)
	assert.Equal(t, "FedEx", got.Carrier)
	assert.Equal(t, 4, got.ShippedQuantity)
	assert.Equal(t, "Disposal", got.RemovalOrderType)
}

func TestParseColumnCountMismatch(t *testing.T) {
	input := removalHeader + "\n" +
		"2024-03-15,ABC123,src,Return,Pending,2024-03-15,SKU-1,X001,Sellable,10,0,0,0,0,5.00,USD\n" +
		"2024-03-15,ABC124,src,Return,Pending,2024-03-15,SKU-2,X002,Sellable,10,0,0,0,0,5.00\n"

	res, err := Parse([]byte(input), FileTypeRemoval)
	assert.Nil(t, res)

	var rowErr *RowError
	require.True(t, errors.As(err, &rowErr))
	assert.Equal(t, 3, rowErr.Row)
	assert.Contains(t, err.Error(), "Row 3 has 15 columns but should have 16")
}

func TestParseRowPolicy(t *testing.T) {
	input := removalHeader + "\n" +
		"2024-03-15,ABC123,src,Return,Pending,2024-03-15,SKU-1,X001,Sellable,10,0,0,0,0,5.00,USD\n" +
		"2024-03-15,,src,Return,Pending,2024-03-15,SKU-2,X002,Sellable,10,0,0,0,0,5.00,USD\n" +
		"2024-03-15,ABC125,src,Return,Pending,2024-03-15,,X003,Sellable,10,0,0,0,0,5.00,USD\n"

	t.Run("permissive skips and warns", func(t *testing.T) {
		res, err := NewParser(DefaultSchema(), PolicyPermissive).Parse([]byte(input), FileTypeRemoval)
		require.NoError(t, err)
		require.Len(t, res.Removal, 1)
		require.Len(t, res.Warnings, 2)
		assert.Equal(t, 3, res.Warnings[0].Row)
		assert.Equal(t, 4, res.Warnings[1].Row)
	})

	t.Run("strict fails the file", func(t *testing.T) {
		res, err := NewParser(DefaultSchema(), PolicyStrict).Parse([]byte(input), FileTypeRemoval)
		assert.Nil(t, res)
		var rowErr *RowError
		require.True(t, errors.As(err, &rowErr))
		assert.Equal(t, 3, rowErr.Row)
	})
}

func TestParseEmptyInputs(t *testing.T) {
	_, err := Parse([]byte("  \n\n"), FileTypeRemoval)
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = Parse([]byte(removalHeader+"\n"), FileTypeRemoval)
	assert.ErrorIs(t, err, ErrNoDataRows)

	_, err = Parse([]byte(removalHeader), FileType("inventory"))
	assert.ErrorIs(t, err, ErrUnknownFileType)
}

func TestParseGeneratesUniqueKeys(t *testing.T) {
	var b strings.Builder
	b.WriteString(trackingHeader + "\n")
	const n = 50
	for i := 0; i < n; i++ {
		b.WriteString("2024-03-15,ABC123,2024-03-16,SKU,X001,Sellable,1,UPS,1Z1,Return\n")
	}

	res, err := Parse([]byte(b.String()), FileTypeTracking)
	require.NoError(t, err)
	require.Len(t, res.Tracking, n)

	seen := map[string]bool{}
	for _, row := range res.Tracking {
		assert.False(t, seen[row.Key], "duplicate key %s", row.Key)
		seen[row.Key] = true
	}
}

func TestSampleRoundTrip(t *testing.T) {
	for _, ft := range []FileType{FileTypeRemoval, FileTypeTracking} {
		t.Run(string(ft)+" csv", func(t *testing.T) {
			data, err := SampleCSV(ft)
			require.NoError(t, err)
			res, err := Parse(data, ft)
			require.NoError(t, err)
			assert.Empty(t, res.Warnings)
			assertSampleRow(t, ft, res)
		})
		t.Run(string(ft)+" xlsx", func(t *testing.T) {
			data, err := SampleXLSX(ft)
			require.NoError(t, err)
			res, err := ParseXLSX(bytes.NewReader(data), ft)
			require.NoError(t, err)
			assert.Empty(t, res.Warnings)
			assertSampleRow(t, ft, res)
		})
	}
}

func assertSampleRow(t *testing.T, ft FileType, res *Result) {
	t.Helper()
	require.Equal(t, 1, res.Len())
	switch ft {
	case FileTypeRemoval:
		row := res.Removal[0]
		assert.Equal(t, "2024-03-15T00:00:00.000Z", row.RequestDate)
		assert.Equal(t, "ABC123", row.OrderId)
		assert.Equal(t, "Seller-initiated Manual Removal", row.OrderSource)
		assert.Equal(t, "Return", row.OrderType)
		assert.Equal(t, "Pending", row.OrderStatus)
		assert.Equal(t, "2024-03-15T00:00:00.000Z", row.LastUpdatedDate)
		assert.Equal(t, "SAMPLE-SKU", row.Sku)
		assert.Equal(t, "X00SAMPLE", row.Fnsku)
		assert.Equal(t, "Sellable", row.Disposition)
		assert.Equal(t, 10, row.RequestedQuantity)
		assert.Equal(t, 0, row.ShippedQuantity)
		assert.True(t, row.RemovalFee.Equal(decimal.RequireFromString("5")))
		assert.Equal(t, "USD", row.Currency)
	case FileTypeTracking:
		row := res.Tracking[0]
		assert.Equal(t, "2024-03-15T00:00:00.000Z", row.RequestDate)
		assert.Equal(t, "2024-03-16T00:00:00.000Z", row.ShipmentDate)
		assert.Equal(t, "ABC123", row.OrderId)
		assert.Equal(t, "SAMPLE-SKU", row.Sku)
		assert.Equal(t, 1, row.ShippedQuantity)
		assert.Equal(t, "UPS", row.Carrier)
		assert.Equal(t, "1Z999A1A0123456789", row.TrackingNumber)
		assert.Equal(t, "Return", row.RemovalOrderType)
	}
}

func TestSampleFileName(t *testing.T) {
	assert.Equal(t, "sample_removal_file.csv", SampleFileName(FileTypeRemoval, "csv"))
	assert.Equal(t, "sample_tracking_file.xlsx", SampleFileName(FileTypeTracking, "xlsx"))
	assert.Equal(t, "sample_tracking_file.csv", SampleFileName(FileTypeTracking, ""))
}

func TestCoercion(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"2024-03-15", "2024-03-15T00:00:00.000Z"},
		{"2024-03-15T10:20:30+02:00", "2024-03-15T08:20:30.000Z"},
		{"03/15/2024", "2024-03-15T00:00:00.000Z"},
		{"Mar 15, 2024", "2024-03-15T00:00:00.000Z"},
		{"soon", "soon"},
		{"", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, NormalizeDate(c.in), c.in)
	}

	assert.Equal(t, 12, ParseQuantity("12"))
	assert.Equal(t, 12, ParseQuantity(" 12abc"))
	assert.Equal(t, 0, ParseQuantity("abc"))
	assert.Equal(t, 0, ParseQuantity(""))
	assert.True(t, ParseAmount("$1,250.50").Equal(decimal.RequireFromString("1250.50")))
	assert.True(t, ParseAmount("n/a").IsZero())
}

func TestNormalizeHeader(t *testing.T) {
	for _, h := range []string{"Order-ID", "order_id", `"Order ID"`, " orderid\r"} {
		assert.Equal(t, "orderid", NormalizeHeader(h), h)
	}
}

func TestLoadSchemaOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tracking:\n  - order-id\n  - sku\n  - tracking-number\n"), 0o600))

	schema, err := LoadSchema(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"order-id", "sku", "tracking-number"}, schema.Tracking)
	assert.Equal(t, DefaultSchema().Removal, schema.Removal)

	res, err := NewParser(schema, PolicyPermissive).Parse([]byte("order-id,sku,tracking-number\nA1,S1,T1\n"), FileTypeTracking)
	require.NoError(t, err)
	require.Len(t, res.Tracking, 1)
	assert.Equal(t, "T1", res.Tracking[0].TrackingNumber)
	assert.Equal(t, 0, res.Tracking[0].ShippedQuantity)
}
