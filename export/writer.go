package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tealeg/xlsx/v2"

	"supplier-pricing/internal/types"
)

// Format is an export file format
type Format string

const (
	FormatJSON  Format = "json"
	FormatCSV   Format = "csv"
	FormatExcel Format = "excel"
)

// ParseFormat accepts json, csv, excel or xlsx, case-insensitively
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "excel", "xlsx":
		return FormatExcel, nil
	default:
		return "", fmt.Errorf("unsupported export format: %s", s)
	}
}

// Extension returns the file extension for f
func (f Format) Extension() string {
	if f == FormatExcel {
		return "xlsx"
	}
	return string(f)
}

// FileName is the default report file name for a batch
func FileName(report *types.BatchReport, f Format) string {
	return fmt.Sprintf("pricing_%s.%s", report.StartedAt.Format("20060102_150405"), f.Extension())
}

// Write saves report in dir using format and returns the file path
func Write(report *types.BatchReport, format Format, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(dir, FileName(report, format))

	if format == FormatExcel {
		if err := WriteXLSX(path, report); err != nil {
			return "", err
		}
		return path, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	switch format {
	case FormatCSV:
		err = WriteCSV(f, report)
	default:
		err = WriteJSON(f, report)
	}
	if err != nil {
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}

// WriteJSON encodes report as indented JSON
func WriteJSON(w io.Writer, report *types.BatchReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	return nil
}

// ReadJSON loads a report written by WriteJSON
func ReadJSON(path string) (*types.BatchReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var report types.BatchReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &report, nil
}

// WriteCSV writes one row per result under the Columns header
func WriteCSV(w io.Writer, report *types.BatchReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range report.Results {
		if err := cw.Write(Row(r)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX saves the results, failures and summary as separate sheets
func WriteXLSX(path string, report *types.BatchReport) error {
	f := xlsx.NewFile()

	results, err := f.AddSheet("Results")
	if err != nil {
		return fmt.Errorf("xlsx: add results sheet: %w", err)
	}
	addRow(results, Columns)
	for _, r := range report.Results {
		addRow(results, Row(r))
	}

	failures, err := f.AddSheet("Failures")
	if err != nil {
		return fmt.Errorf("xlsx: add failures sheet: %w", err)
	}
	addRow(failures, []string{"fingerprint", "supplier", "step", "error_type", "reason"})
	for _, fl := range report.Failures {
		addRow(failures, []string{string(fl.Fingerprint), fl.Supplier, string(fl.Step), string(fl.ErrorType), fl.Reason})
	}

	summary, err := f.AddSheet("Summary")
	if err != nil {
		return fmt.Errorf("xlsx: add summary sheet: %w", err)
	}
	for _, kv := range Summarize(report).Pairs() {
		addRow(summary, kv[:])
	}

	if err := f.Save(path); err != nil {
		return fmt.Errorf("xlsx: save %s: %w", path, err)
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
