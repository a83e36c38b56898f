package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const trackingFile = `request-date,order-id,shipment-date,sku,fnsku,disposition,shipped-quantity,carrier,tracking-number,removal-order-type
2024-03-18,ORD-1,2024-03-19,SKU-A,X00A,Sellable,5,UPS,1Z001,Return
2024-03-18,,2024-03-19,SKU-B,X00B,Sellable,2,UPS,1Z001,Return
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	fileType, schemaFile, strictRows, debug = "", "", false, false
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseCommand(t *testing.T) {
	path := writeTemp(t, "tracking.csv", trackingFile)

	out, err := run(t, "parse", "--type", "tracking", path)
	require.NoError(t, err)
	assert.Contains(t, out, "rows: 1")
	assert.Contains(t, out, "skipped: 1")
	assert.Contains(t, out, "row 3:")

	_, err = run(t, "parse", "--type", "tracking", "--strict", path)
	assert.Error(t, err)

	_, err = run(t, "parse", "--type", "removal", path)
	assert.ErrorContains(t, err, "Missing required headers")
}

func TestSampleCommand(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "sample", "--type", "removal", "--format", "xlsx", "--out", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "sample_removal_file.xlsx")
	_, err = os.Stat(filepath.Join(dir, "sample_removal_file.xlsx"))
	assert.NoError(t, err)
}

func TestImportDryRun(t *testing.T) {
	path := writeTemp(t, "tracking.csv", trackingFile)

	out, err := run(t, "import", "--type", "tracking", "--store", "s1", "--dry-run", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"inserted": 1`)
	assert.Contains(t, out, `"unmatched": 1`)

	_, err = run(t, "import", "--type", "tracking", "--dry-run", path)
	assert.ErrorContains(t, err, "--store is required")
}
