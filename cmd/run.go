package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"supplier-pricing/export"
	"supplier-pricing/extractor"
	"supplier-pricing/internal/config"
	"supplier-pricing/internal/types"
)

var runFlags struct {
	supplier    string
	productType string
	batchFile   string
	limit       int
	concurrency int
	visible     bool
	format      string
	output      string
	timeout     time.Duration
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Price a batch of configurations",
	Long: "Prices the configurations of a YAML batch file, or a generated matrix of " +
		"standard dimensions, materials and colors per supplier and product type.",
	RunE: runBatch,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.supplier, "supplier", "all", "Supplier to price (supplier1, supplier2, supplier3 or all)")
	f.StringVar(&runFlags.productType, "product-type", "all", "Product type for generated matrices (windows, doors, roofing or all)")
	f.StringVar(&runFlags.batchFile, "batch", "", "YAML batch file; overrides the generated matrix")
	f.IntVar(&runFlags.limit, "limit", 50, "Maximum generated configurations per supplier and product type (0 = no limit)")
	f.IntVar(&runFlags.concurrency, "concurrency", 0, "Maximum concurrent browser sessions (default from config)")
	f.BoolVar(&runFlags.visible, "visible", false, "Run the browser in visible mode")
	f.StringVar(&runFlags.format, "format", "", "Export format: json, csv or excel (default from config)")
	f.StringVar(&runFlags.output, "output", "", "Output directory (default from config)")
	f.DurationVar(&runFlags.timeout, "timeout", 0, "Overall time limit for the batch (0 = none)")
	rootCmd.AddCommand(runCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	if runFlags.concurrency > 0 {
		cfg.MaxConcurrentSessions = runFlags.concurrency
	}
	if runFlags.visible {
		cfg.UseHeadlessBrowser = false
	}
	if runFlags.output != "" {
		cfg.OutputDir = runFlags.output
	}
	formatName := cfg.ExportFormat
	if runFlags.format != "" {
		formatName = runFlags.format
	}
	format, err := export.ParseFormat(formatName)
	if err != nil {
		return err
	}

	configs, err := batchConfigurations()
	if err != nil {
		return err
	}
	if len(configs) == 0 {
		return errors.New("no configurations to price")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if runFlags.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runFlags.timeout)
		defer cancel()
	}

	sink := export.NewFileSink(filepath.Join(cfg.OutputDir, "artifacts"), logger)
	svc := extractor.NewBrowserService(cfg, sink, logger)
	defer svc.Close()

	startTime := time.Now()
	logger.Infof("Starting extraction of %d configurations with %d sessions", len(configs), cfg.MaxConcurrentSessions)

	report, err := svc.Extract(ctx, configs)
	if err != nil {
		return fmt.Errorf("extraction aborted: %w", err)
	}
	logger.Infof("Extraction completed in %v", time.Since(startTime))

	path, err := export.Write(report, format, cfg.OutputDir)
	if err != nil {
		return err
	}
	logger.Infof("Results written to: %s", path)

	summary := export.Summarize(report)
	logger.Infof("Total configurations: %d", summary.Total)
	logger.Infof("Completed: %d, failed: %d (%.1f%% success)", summary.Completed, summary.Failed, summary.SuccessRate)
	for _, f := range report.Failures {
		logger.Warnf("  %s %s failed at %s (%s): %s", f.Supplier, f.Fingerprint.Short(), f.Step, f.ErrorType, f.Reason)
	}
	return nil
}

// batchConfigurations loads the batch file or generates the matrix
func batchConfigurations() ([]types.ProductConfiguration, error) {
	if runFlags.batchFile != "" {
		configs, err := config.LoadBatch(runFlags.batchFile)
		if err != nil {
			return nil, err
		}
		if runFlags.supplier == "all" {
			return configs, nil
		}
		var filtered []types.ProductConfiguration
		for _, c := range configs {
			if strings.EqualFold(c.Supplier, runFlags.supplier) {
				filtered = append(filtered, c)
			}
		}
		return filtered, nil
	}

	suppliers, err := selectedSuppliers()
	if err != nil {
		return nil, err
	}
	productTypes, err := selectedProductTypes()
	if err != nil {
		return nil, err
	}

	var configs []types.ProductConfiguration
	for _, s := range suppliers {
		for _, pt := range productTypes {
			configs = append(configs, config.Matrix(s, pt, runFlags.limit)...)
		}
	}
	return configs, nil
}

func selectedSuppliers() ([]types.SupplierSettings, error) {
	if runFlags.supplier != "all" {
		s, ok := cfg.Supplier(runFlags.supplier)
		if !ok {
			return nil, fmt.Errorf("unknown supplier: %s", runFlags.supplier)
		}
		return []types.SupplierSettings{s}, nil
	}
	names := make([]string, 0, len(cfg.Suppliers))
	for name := range cfg.Suppliers {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]types.SupplierSettings, 0, len(names))
	for _, name := range names {
		out = append(out, cfg.Suppliers[name])
	}
	return out, nil
}

func selectedProductTypes() ([]types.ProductType, error) {
	if runFlags.productType == "all" {
		return types.ProductTypes, nil
	}
	pt := types.ProductType(strings.ToLower(runFlags.productType))
	for _, known := range types.ProductTypes {
		if pt == known {
			return []types.ProductType{pt}, nil
		}
	}
	return nil, fmt.Errorf("unknown product type: %s", runFlags.productType)
}
