package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"

	"supplier-pricing/export"
	"supplier-pricing/internal/types"
	"supplier-pricing/utils"
)

func writeReport(t *testing.T) string {
	t.Helper()
	cfg := types.ProductConfiguration{Supplier: "supplier1", ProductType: types.ProductWindows, Width: 24, Height: 36, Material: "vinyl", Color: "white"}
	report := &types.BatchReport{
		ID:        "batch-7",
		StartedAt: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
		Results: []types.ExtractionResult{{
			Fingerprint: cfg.Fingerprint(),
			Config:      cfg,
			Supplier:    "supplier1",
			State:       types.StateCompleted,
			Price:       &types.Price{Amount: decimal.RequireFromString("432.00"), Currency: currency.USD},
		}},
	}
	report.Tally()
	path, err := export.Write(report, export.FormatJSON, t.TempDir())
	require.NoError(t, err)
	return path
}

func TestAnalyzeCommand(t *testing.T) {
	path := writeReport(t)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"analyze", path})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "Total configurations: 1 (1 completed, 0 failed, 100.0% success)")
	assert.Contains(t, out.String(), "Median price: 432.00")
	assert.Contains(t, out.String(), "Price per sq ft: 72.00 - 72.00")
}

func TestAnalyzeCommand_MissingFile(t *testing.T) {
	rootCmd.SetArgs([]string{"analyze", filepath.Join(t.TempDir(), "none.json")})
	rootCmd.SetErr(&bytes.Buffer{})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	assert.Error(t, rootCmd.Execute())
}

func TestBatchConfigurations(t *testing.T) {
	cfg = types.DefaultConfig()
	logger = logrus.New()
	t.Cleanup(func() { runFlags.supplier, runFlags.productType, runFlags.batchFile, runFlags.limit = "all", "all", "", 50 })

	runFlags.supplier, runFlags.productType, runFlags.batchFile, runFlags.limit = "supplier2", "windows", "", 7
	configs, err := batchConfigurations()
	require.NoError(t, err)
	assert.Len(t, configs, 7)
	assert.Equal(t, "supplier2", configs[0].Supplier)

	runFlags.supplier, runFlags.productType = "all", "all"
	configs, err = batchConfigurations()
	require.NoError(t, err)
	assert.Len(t, configs, 3*3*7)

	runFlags.productType = "skylights"
	_, err = batchConfigurations()
	assert.Error(t, err)

	batch := filepath.Join(t.TempDir(), "batch.yaml")
	require.NoError(t, os.WriteFile(batch, []byte(`
configurations:
  - {supplier: supplier1, product_type: doors, width: 36, height: 80, material: steel, color: white}
  - {supplier: supplier3, product_type: doors, width: 36, height: 80, material: wood, color: brown}
`), 0o644))
	runFlags.batchFile, runFlags.supplier = batch, "supplier3"
	configs, err = batchConfigurations()
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, "supplier3", configs[0].Supplier)
}

func TestNewLogger(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	assert.Equal(t, logrus.DebugLevel, newLogger(true).GetLevel())
	assert.Equal(t, logrus.InfoLevel, newLogger(false).GetLevel())

	t.Setenv("LOG_LEVEL", "warn")
	assert.Equal(t, logrus.WarnLevel, newLogger(true).GetLevel())
}

func TestPrintOutline(t *testing.T) {
	var out bytes.Buffer
	printOutline(&out, "https://supplier1.test/products", utils.PageOutline{
		Title: "Products",
		Controls: []utils.Control{
			{Tag: "select", Selector: "#material", Options: []string{"Vinyl", "Wood"}},
			{Tag: "button", Selector: "#calculate-price", Label: "Calculate"},
		},
		Links: []utils.Link{{Href: "/windows", Text: "Windows"}},
	})

	assert.Contains(t, out.String(), "1: select #material options=Vinyl|Wood")
	assert.Contains(t, out.String(), "2: button #calculate-price label='Calculate'")
	assert.Contains(t, out.String(), "1: href='/windows', text='Windows'")
}
