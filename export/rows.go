// Package export writes batch reports as JSON, CSV or Excel files, keeps
// failure artifacts on disk and summarizes extracted prices.
package export

import (
	"strconv"
	"strings"
	"time"

	"supplier-pricing/internal/types"
)

// Columns is the header shared by the CSV and Excel exports
var Columns = []string{
	"fingerprint",
	"supplier",
	"product_type",
	"width",
	"height",
	"material",
	"color",
	"upgrades",
	"state",
	"price",
	"currency",
	"price_per_sqft",
	"failed_step",
	"error_type",
	"failure_reason",
	"session_id",
	"finished_at",
}

// Row flattens one result into the export columns
func Row(r types.ExtractionResult) []string {
	var price, unit, perSqFt string
	if r.Price != nil {
		price = r.Price.Amount.StringFixed(2)
		unit = r.Price.Currency.String()
	}
	if v, ok := r.PricePerSqFt(); ok {
		perSqFt = strconv.FormatFloat(v, 'f', 2, 64)
	}
	var finished string
	if !r.FinishedAt.IsZero() {
		finished = r.FinishedAt.Format(time.RFC3339)
	}
	return []string{
		string(r.Fingerprint),
		r.Supplier,
		string(r.Config.ProductType),
		formatFloat(r.Config.Width),
		formatFloat(r.Config.Height),
		r.Config.Material,
		r.Config.Color,
		strings.Join(r.Config.NormalizedUpgrades(), ";"),
		string(r.State),
		price,
		unit,
		perSqFt,
		string(r.FailedStep),
		string(r.ErrorType),
		r.FailureReason,
		r.SessionID,
		finished,
	}
}

func formatFloat(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
