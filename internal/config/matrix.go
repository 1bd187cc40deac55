package config

import (
	"strings"

	"supplier-pricing/internal/types"
)

// Dimension is a width × height pair in inches
type Dimension struct {
	Width  float64
	Height float64
}

// Standard catalog values used to generate test matrices
var (
	StandardDimensions = []Dimension{
		{24, 36}, {30, 42}, {36, 48}, {42, 54}, {48, 60}, {60, 72},
	}
	Materials        = []string{"vinyl", "wood", "aluminum", "fiberglass", "composite", "steel"}
	Colors           = []string{"white", "black", "brown", "bronze", "gray", "beige", "green"}
	GlassTypes       = []string{"single", "double", "triple", "low-e", "tempered"}
	DoorStyles       = []string{"entry", "patio", "french", "sliding", "bifold"}
	RoofingMaterials = []string{"asphalt", "metal", "tile", "slate", "wood"}
)

// upgradeOptions lists the single-choice upgrade varied for each product type
var upgradeOptions = map[types.ProductType][]string{
	types.ProductWindows: GlassTypes,
	types.ProductDoors:   DoorStyles,
}

// Matrix generates configurations for supplier and product type:
// dimensions × materials × colors × upgrades for windows and doors, and
// roofing materials × colors for roofing. Upgrades the supplier does not
// offer are left out. A positive limit truncates the result.
func Matrix(settings types.SupplierSettings, productType types.ProductType, limit int) []types.ProductConfiguration {
	supplier := strings.ToLower(settings.Name)
	var configs []types.ProductConfiguration
	add := func(cfg types.ProductConfiguration) bool {
		configs = append(configs, cfg)
		return limit <= 0 || len(configs) < limit
	}

	if productType == types.ProductRoofing {
		for _, material := range RoofingMaterials {
			for _, color := range Colors {
				if !add(types.ProductConfiguration{Supplier: supplier, ProductType: productType, Material: material, Color: color}) {
					return configs
				}
			}
		}
		return configs
	}

	upgrades := offered(upgradeOptions[productType], settings.Upgrades)
	for _, dim := range StandardDimensions {
		if !fits(settings, dim) {
			continue
		}
		for _, material := range Materials {
			for _, color := range Colors {
				base := types.ProductConfiguration{
					Supplier:    supplier,
					ProductType: productType,
					Width:       dim.Width,
					Height:      dim.Height,
					Material:    material,
					Color:       color,
				}
				if len(upgrades) == 0 {
					if !add(base) {
						return configs
					}
					continue
				}
				for _, u := range upgrades {
					cfg := base
					cfg.Upgrades = []string{u}
					if !add(cfg) {
						return configs
					}
				}
			}
		}
	}
	return configs
}

func offered(options, supported []string) []string {
	var out []string
	for _, o := range options {
		for _, s := range supported {
			if strings.EqualFold(o, s) {
				out = append(out, o)
				break
			}
		}
	}
	return out
}

func fits(settings types.SupplierSettings, dim Dimension) bool {
	if settings.MinDimension > 0 && (dim.Width < settings.MinDimension || dim.Height < settings.MinDimension) {
		return false
	}
	if settings.MaxDimension > 0 && (dim.Width > settings.MaxDimension || dim.Height > settings.MaxDimension) {
		return false
	}
	return true
}
