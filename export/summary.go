package export

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"supplier-pricing/internal/types"
)

// Stats describes a set of prices
type Stats struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Avg    float64 `json:"avg"`
	Median float64 `json:"median"`
}

// SupplierSummary counts outcomes for one supplier
type SupplierSummary struct {
	Completed   int     `json:"completed"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
}

// Summary is the analysis of a batch report
type Summary struct {
	BatchID      string                     `json:"batch_id"`
	Total        int                        `json:"total_configurations"`
	Completed    int                        `json:"completed"`
	Failed       int                        `json:"failed"`
	SuccessRate  float64                    `json:"success_rate"`
	Suppliers    map[string]SupplierSummary `json:"suppliers"`
	ProductTypes map[types.ProductType]int  `json:"product_types"`
	ErrorTypes   map[types.ErrorType]int    `json:"error_types,omitempty"`
	Prices       *Stats                     `json:"price_analysis,omitempty"`
	PricePerSqFt *Stats                     `json:"price_per_sqft,omitempty"`
	Materials    map[string]Stats           `json:"material_pricing,omitempty"`
	Colors       map[string]Stats           `json:"color_pricing,omitempty"`
}

// Summarize computes counts and price statistics over the completed results
func Summarize(report *types.BatchReport) Summary {
	s := Summary{
		BatchID:      report.ID,
		Total:        len(report.Results),
		Suppliers:    make(map[string]SupplierSummary),
		ProductTypes: make(map[types.ProductType]int),
		ErrorTypes:   make(map[types.ErrorType]int),
	}

	var prices, perSqFt []float64
	materials := make(map[string][]float64)
	colors := make(map[string][]float64)

	for _, r := range report.Results {
		sup := s.Suppliers[r.Supplier]
		if !r.Completed() {
			s.Failed++
			sup.Failed++
			s.ErrorTypes[r.ErrorType]++
			s.Suppliers[r.Supplier] = sup
			continue
		}
		s.Completed++
		sup.Completed++
		s.Suppliers[r.Supplier] = sup
		s.ProductTypes[r.Config.ProductType]++

		if r.Price == nil {
			continue
		}
		p := r.Price.Float()
		prices = append(prices, p)
		if v, ok := r.PricePerSqFt(); ok {
			perSqFt = append(perSqFt, v)
		}
		if r.Config.Material != "" {
			materials[r.Config.Material] = append(materials[r.Config.Material], p)
		}
		if r.Config.Color != "" {
			colors[r.Config.Color] = append(colors[r.Config.Color], p)
		}
	}

	s.SuccessRate = rate(s.Completed, s.Total)
	for name, sup := range s.Suppliers {
		sup.SuccessRate = rate(sup.Completed, sup.Completed+sup.Failed)
		s.Suppliers[name] = sup
	}
	if len(prices) > 0 {
		st := computeStats(prices)
		s.Prices = &st
	}
	if len(perSqFt) > 0 {
		st := computeStats(perSqFt)
		s.PricePerSqFt = &st
	}
	s.Materials = groupStats(materials)
	s.Colors = groupStats(colors)
	return s
}

// Pairs lists the headline figures as label/value rows
func (s Summary) Pairs() [][2]string {
	pairs := [][2]string{
		{"batch_id", s.BatchID},
		{"total_configurations", strconv.Itoa(s.Total)},
		{"completed", strconv.Itoa(s.Completed)},
		{"failed", strconv.Itoa(s.Failed)},
		{"success_rate", fmt.Sprintf("%.1f%%", s.SuccessRate)},
	}
	if s.Prices != nil {
		pairs = append(pairs,
			[2]string{"min_price", money(s.Prices.Min)},
			[2]string{"max_price", money(s.Prices.Max)},
			[2]string{"avg_price", money(s.Prices.Avg)},
			[2]string{"median_price", money(s.Prices.Median)},
		)
	}
	if s.PricePerSqFt != nil {
		pairs = append(pairs, [2]string{"avg_price_per_sqft", money(s.PricePerSqFt.Avg)})
	}
	for _, name := range sortedKeys(s.Suppliers) {
		sup := s.Suppliers[name]
		pairs = append(pairs, [2]string{"supplier " + name, fmt.Sprintf("%d completed, %d failed", sup.Completed, sup.Failed)})
	}
	for _, name := range sortedKeys(s.Materials) {
		pairs = append(pairs, [2]string{"avg_price " + name, money(s.Materials[name].Avg)})
	}
	return pairs
}

func computeStats(values []float64) Stats {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	n := len(sorted)
	median := sorted[n/2]
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return Stats{
		Count:  n,
		Min:    sorted[0],
		Max:    sorted[n-1],
		Avg:    round2(sum / float64(n)),
		Median: round2(median),
	}
}

func groupStats(groups map[string][]float64) map[string]Stats {
	if len(groups) == 0 {
		return nil
	}
	out := make(map[string]Stats, len(groups))
	for k, v := range groups {
		out[k] = computeStats(v)
	}
	return out
}

func rate(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(n) / float64(total) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
