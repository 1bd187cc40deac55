package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"supplier-pricing/internal/types"
)

// Batch is the YAML document listing configurations to price. Entries
// without a supplier inherit the batch-level one.
type Batch struct {
	Supplier       string                       `yaml:"supplier"`
	Configurations []types.ProductConfiguration `yaml:"configurations"`
}

// LoadBatch reads a batch file
func LoadBatch(path string) ([]types.ProductConfiguration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch file: %w", err)
	}
	return ParseBatch(data)
}

// ParseBatch decodes and validates a batch document
func ParseBatch(data []byte) ([]types.ProductConfiguration, error) {
	var batch Batch
	if err := yaml.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("parse batch file: %w", err)
	}
	if len(batch.Configurations) == 0 {
		return nil, fmt.Errorf("batch file has no configurations")
	}

	configs := make([]types.ProductConfiguration, 0, len(batch.Configurations))
	for i, cfg := range batch.Configurations {
		if cfg.Supplier == "" {
			cfg.Supplier = batch.Supplier
		}
		cfg.Supplier = strings.ToLower(strings.TrimSpace(cfg.Supplier))
		cfg.ProductType = types.ProductType(strings.ToLower(string(cfg.ProductType)))
		if err := checkConfiguration(cfg); err != nil {
			return nil, fmt.Errorf("configuration %d: %w", i+1, err)
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

func checkConfiguration(cfg types.ProductConfiguration) error {
	if cfg.Supplier == "" {
		return fmt.Errorf("supplier is required")
	}
	known := false
	for _, pt := range types.ProductTypes {
		if cfg.ProductType == pt {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown product type %q", cfg.ProductType)
	}
	if cfg.Width < 0 || cfg.Height < 0 {
		return fmt.Errorf("dimensions must not be negative")
	}
	return nil
}
