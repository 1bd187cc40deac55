// Package pricing turns supplier price text into normalized amounts.
package pricing

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"supplier-pricing/internal/types"
)

var profiles = map[string]types.LocaleProfile{
	"en-US": {Name: "en-US", DecimalSeparator: ".", ThousandsSeparator: ",", Currency: "USD"},
	"en-CA": {Name: "en-CA", DecimalSeparator: ".", ThousandsSeparator: ",", Currency: "CAD"},
	"en-GB": {Name: "en-GB", DecimalSeparator: ".", ThousandsSeparator: ",", Currency: "GBP"},
	"de-DE": {Name: "de-DE", DecimalSeparator: ",", ThousandsSeparator: ".", Currency: "EUR"},
	"fr-FR": {Name: "fr-FR", DecimalSeparator: ",", ThousandsSeparator: " ", Currency: "EUR"},
	"de-CH": {Name: "de-CH", DecimalSeparator: ".", ThousandsSeparator: "'", Currency: "CHF"},
}

// symbols maps currency symbols to ISO codes. "$" is resolved against the
// supplier default since several currencies share it.
var symbols = map[string]string{
	"€": "EUR",
	"£": "GBP",
	"¥": "JPY",
	"₹": "INR",
}

// Submatch groups of the per-locale price pattern
const (
	groupISOBefore = 1 + iota
	groupSignBefore
	groupSymbolBefore
	groupSignAfter
	groupNumber
	groupSymbolAfter
	groupISOAfter
)

// spaceSeparators are the spaces locales use for digit grouping
const spaceSeparators = " \u00a0\u202f"

// Profile returns the locale profile registered under name, falling back to en-US
func Profile(name string) types.LocaleProfile {
	if p, ok := profiles[name]; ok {
		return p
	}
	return profiles["en-US"]
}

// ProfileFor resolves the locale profile of a supplier, applying its currency override
func ProfileFor(settings types.SupplierSettings) types.LocaleProfile {
	p := Profile(settings.Locale)
	if settings.Currency != "" {
		p.Currency = strings.ToUpper(settings.Currency)
	}
	return p
}

// Extractor normalizes raw price text for one supplier and product type
type Extractor struct {
	locale  types.LocaleProfile
	unit    currency.Unit
	pattern *regexp.Regexp
	min    decimal.Decimal
	max    decimal.Decimal
	capped bool
}

// NewExtractor creates an extractor for the given locale and bounds
func NewExtractor(locale types.LocaleProfile, bounds types.Bounds) (*Extractor, error) {
	unit, err := currency.ParseISO(locale.Currency)
	if err != nil {
		return nil, fmt.Errorf("invalid base currency %q: %w", locale.Currency, err)
	}
	return &Extractor{
		locale:  locale,
		unit:    unit,
		pattern: pricePattern(locale),
		min:     decimal.NewFromFloat(bounds.Min),
		max:     decimal.NewFromFloat(bounds.Max),
		capped:  bounds.Max > 0,
	}, nil
}

// pricePattern matches one amount with its optional sign, symbol and ISO
// code. Grouping separators are only accepted between groups of three
// digits so neighbouring numbers are never joined to the amount.
func pricePattern(locale types.LocaleProfile) *regexp.Regexp {
	dec := locale.DecimalSeparator
	if dec == "" {
		dec = "."
	}

	number := `\d+`
	switch sep := locale.ThousandsSeparator; {
	case sep == "":
	case strings.TrimSpace(sep) == "":
		number = `\d{1,3}(?:[ \x{00A0}\x{202F}]\d{3})+|\d+`
	default:
		number = `\d{1,3}(?:` + regexp.QuoteMeta(sep) + `\d{3})+|\d+`
	}

	space := `[\s\x{00A0}\x{202F}]?`
	symbol := `([$€£¥₹])`
	sign := `([-\x{2212}])?`
	return regexp.MustCompile(
		`(?:\b([A-Z]{3})` + space + `)?` +
			sign + symbol + `?` + space + sign +
			`((?:` + number + `)(?:` + regexp.QuoteMeta(dec) + `\d+)?)` +
			`(?:` + space + symbol + `)?` +
			`(?:` + space + `([A-Z]{3})\b)?`)
}

// Normalize parses raw into a Price in the detected or default currency
func (e *Extractor) Normalize(raw string) (types.Price, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return types.Price{}, &types.ExtractionError{Kind: types.Unparseable, Raw: raw, Reason: "empty price text"}
	}

	m := e.match(text)
	if m == nil {
		return types.Price{}, &types.ExtractionError{Kind: types.Unparseable, Raw: raw, Reason: "no numeric amount"}
	}
	if m[groupSignBefore] != "" || m[groupSignAfter] != "" {
		return types.Price{}, &types.ExtractionError{Kind: types.Unparseable, Raw: raw, Reason: "negative amount"}
	}

	unit, err := e.currencyOf(m)
	if err != nil {
		return types.Price{}, &types.ExtractionError{Kind: types.Unparseable, Raw: raw, Reason: err.Error()}
	}

	amount, err := decimal.NewFromString(e.canonicalNumber(m[groupNumber]))
	if err != nil {
		return types.Price{}, &types.ExtractionError{Kind: types.Unparseable, Raw: raw, Reason: err.Error()}
	}

	if amount.LessThan(e.min) || (e.capped && amount.GreaterThan(e.max)) {
		return types.Price{}, &types.ExtractionError{
			Kind:   types.OutOfBounds,
			Raw:    raw,
			Reason: fmt.Sprintf("%s outside [%s, %s]", amount, e.min, e.max),
		}
	}

	return types.Price{Amount: amount, Currency: unit, Raw: raw}, nil
}

// match returns the submatches of the first amount marked by a symbol or
// ISO code, or of the first amount at all when none is marked.
func (e *Extractor) match(text string) []string {
	all := e.pattern.FindAllStringSubmatch(text, -1)
	if len(all) == 0 {
		return nil
	}
	for _, m := range all {
		if m[groupSymbolBefore] != "" || m[groupSymbolAfter] != "" || e.isoCode(m) != "" {
			return m
		}
	}
	return all[0]
}

// isoCode returns the valid ISO code written next to the amount, if any
func (e *Extractor) isoCode(m []string) string {
	for _, code := range []string{m[groupISOBefore], m[groupISOAfter]} {
		if code == "" {
			continue
		}
		if _, err := currency.ParseISO(code); err == nil {
			return code
		}
	}
	return ""
}

// currencyOf resolves the currency of a match: an adjacent ISO code wins,
// then a symbol, then the supplier default.
func (e *Extractor) currencyOf(m []string) (currency.Unit, error) {
	if code := e.isoCode(m); code != "" {
		return currency.ParseISO(code)
	}
	for _, symbol := range []string{m[groupSymbolBefore], m[groupSymbolAfter]} {
		if code, ok := symbols[symbol]; ok {
			return currency.ParseISO(code)
		}
	}
	return e.unit, nil
}

// canonicalNumber strips grouping and rewrites the decimal separator as "."
func (e *Extractor) canonicalNumber(s string) string {
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(spaceSeparators, r) {
			return -1
		}
		return r
	}, s)
	if sep := e.locale.ThousandsSeparator; strings.TrimSpace(sep) != "" {
		s = strings.ReplaceAll(s, sep, "")
	}
	if e.locale.DecimalSeparator != "" && e.locale.DecimalSeparator != "." {
		s = strings.ReplaceAll(s, e.locale.DecimalSeparator, ".")
	}
	return s
}
