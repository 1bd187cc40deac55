package types

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// ProductType names a product family offered by supplier configurators
type ProductType string

const (
	ProductWindows ProductType = "windows"
	ProductDoors   ProductType = "doors"
	ProductRoofing ProductType = "roofing"
)

// ProductTypes lists every supported product family
var ProductTypes = []ProductType{ProductWindows, ProductDoors, ProductRoofing}

// ProductConfiguration is one combination of options to price on a supplier site.
// Values are treated as immutable once submitted.
type ProductConfiguration struct {
	Supplier    string      `json:"supplier" yaml:"supplier"`
	ProductType ProductType `json:"product_type" yaml:"product_type"`
	Width       float64     `json:"width,omitempty" yaml:"width"`
	Height      float64     `json:"height,omitempty" yaml:"height"`
	Material    string      `json:"material" yaml:"material"`
	Color       string      `json:"color" yaml:"color"`
	Upgrades    []string    `json:"upgrades,omitempty" yaml:"upgrades"`
}

// Fingerprint is the content hash identifying a configuration
type Fingerprint string

// Short returns an abbreviated fingerprint for log lines
func (f Fingerprint) Short() string {
	if len(f) <= 12 {
		return string(f)
	}
	return string(f[:12])
}

// NormalizedUpgrades returns the upgrade set sorted, trimmed and deduplicated
func (c ProductConfiguration) NormalizedUpgrades() []string {
	seen := make(map[string]bool, len(c.Upgrades))
	var out []string
	for _, u := range c.Upgrades {
		u = canonicalField(u)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// Canonical returns the order-insensitive encoding hashed by Fingerprint
func (c ProductConfiguration) Canonical() string {
	parts := []string{
		"supplier=" + canonicalField(c.Supplier),
		"type=" + canonicalField(string(c.ProductType)),
		"width=" + strconv.FormatFloat(c.Width, 'f', -1, 64),
		"height=" + strconv.FormatFloat(c.Height, 'f', -1, 64),
		"material=" + canonicalField(c.Material),
		"color=" + canonicalField(c.Color),
		"upgrades=" + strings.Join(c.NormalizedUpgrades(), ","),
	}
	return strings.Join(parts, "|")
}

// Fingerprint hashes the canonical encoding with SHA-256
func (c ProductConfiguration) Fingerprint() Fingerprint {
	sum := sha256.Sum256([]byte(c.Canonical()))
	return Fingerprint(hex.EncodeToString(sum[:]))
}

// SameContent reports whether two configurations describe the same product
func (c ProductConfiguration) SameContent(other ProductConfiguration) bool {
	return c.Canonical() == other.Canonical()
}

// AreaSqFt returns the configured area in square feet, or 0 when undimensioned
func (c ProductConfiguration) AreaSqFt() float64 {
	if c.Width <= 0 || c.Height <= 0 {
		return 0
	}
	return c.Width * c.Height / 144
}

func (c ProductConfiguration) String() string {
	dims := "-"
	if c.Width > 0 || c.Height > 0 {
		dims = fmt.Sprintf("%gx%g", c.Width, c.Height)
	}
	return fmt.Sprintf("%s/%s %s %s %s", c.Supplier, c.ProductType, dims, c.Material, c.Color)
}

func canonicalField(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// State is a position in the configuration state machine
type State string

const (
	StateIdle               State = "Idle"
	StateAuthenticated      State = "Authenticated"
	StateConfiguratorOpened State = "ConfiguratorOpened"
	StateDimensionsSet      State = "DimensionsSet"
	StateMaterialSet        State = "MaterialSet"
	StateColorSet           State = "ColorSet"
	StateUpgradesSet        State = "UpgradesSet"
	StateSubmitted          State = "Submitted"
	StateCompleted          State = "Completed"
	StateFailed             State = "Failed"
)

// Terminal reports whether no further transitions are possible
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Step names a single adapter operation driven by the state machine
type Step string

const (
	StepAuthenticate     Step = "authenticate"
	StepOpenConfigurator Step = "open_configurator"
	StepSetDimensions    Step = "set_dimensions"
	StepSetMaterial      Step = "set_material"
	StepSetColor         Step = "set_color"
	StepSetUpgrades      Step = "set_upgrades"
	StepSubmit           Step = "submit"
	StepExtractPrice     Step = "extract_price"
)

// StepStatus classifies the outcome of one attempt
type StepStatus string

const (
	StatusSuccess   StepStatus = "Success"
	StatusTransient StepStatus = "Transient"
	StatusFatal     StepStatus = "Fatal"
)

// StepOutcome records one attempt of one step
type StepOutcome struct {
	Step        Step          `json:"step"`
	Status      StepStatus    `json:"status"`
	Attempt     int           `json:"attempt"`
	Payload     string        `json:"payload,omitempty"`
	Reason      string        `json:"reason,omitempty"`
	ErrorType   ErrorType     `json:"error_type,omitempty"`
	ArtifactRef string        `json:"artifact_ref,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
}

// Price is a normalized monetary amount
type Price struct {
	Amount   decimal.Decimal
	Currency currency.Unit
	Raw      string
}

type priceJSON struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Raw      string          `json:"raw,omitempty"`
}

// MarshalJSON encodes the currency as its ISO code
func (p Price) MarshalJSON() ([]byte, error) {
	return json.Marshal(priceJSON{Amount: p.Amount, Currency: p.Currency.String(), Raw: p.Raw})
}

// UnmarshalJSON decodes a price written by MarshalJSON
func (p *Price) UnmarshalJSON(data []byte) error {
	var raw priceJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	unit, err := currency.ParseISO(raw.Currency)
	if err != nil {
		return fmt.Errorf("invalid currency %q: %w", raw.Currency, err)
	}
	p.Amount = raw.Amount
	p.Currency = unit
	p.Raw = raw.Raw
	return nil
}

func (p Price) String() string {
	return p.Currency.String() + " " + p.Amount.StringFixed(2)
}

// Float returns the amount as a float for reporting
func (p Price) Float() float64 {
	return p.Amount.InexactFloat64()
}

// ExtractionResult is the single terminal result for one configuration
type ExtractionResult struct {
	Fingerprint   Fingerprint          `json:"fingerprint"`
	Config        ProductConfiguration `json:"config"`
	Supplier      string               `json:"supplier"`
	SessionID     string               `json:"session_id,omitempty"`
	State         State                `json:"state"`
	LastState     State                `json:"last_state,omitempty"`
	FailedStep    Step                 `json:"failed_step,omitempty"`
	Price         *Price               `json:"price,omitempty"`
	Trace         []StepOutcome        `json:"trace"`
	FailureReason string               `json:"failure_reason,omitempty"`
	ErrorType     ErrorType            `json:"error_type,omitempty"`
	Artifacts     []string             `json:"artifacts,omitempty"`
	StartedAt     time.Time            `json:"started_at"`
	FinishedAt    time.Time            `json:"finished_at"`
}

// Completed reports whether a price was extracted
func (r ExtractionResult) Completed() bool {
	return r.State == StateCompleted
}

// PricePerSqFt returns the price divided by the configured area
func (r ExtractionResult) PricePerSqFt() (float64, bool) {
	area := r.Config.AreaSqFt()
	if r.Price == nil || area == 0 {
		return 0, false
	}
	return math.Round(r.Price.Float()/area*100) / 100, true
}

// FailedResult builds a Failed result that never reached a session
func FailedResult(cfg ProductConfiguration, step Step, err error) ExtractionResult {
	now := time.Now()
	return ExtractionResult{
		Fingerprint:   cfg.Fingerprint(),
		Config:        cfg,
		Supplier:      cfg.Supplier,
		State:         StateFailed,
		LastState:     StateIdle,
		FailedStep:    step,
		Trace:         []StepOutcome{},
		FailureReason: err.Error(),
		ErrorType:     TypeOf(err),
		StartedAt:     now,
		FinishedAt:    now,
	}
}

// Failure summarizes one failed configuration in a batch
type Failure struct {
	Fingerprint Fingerprint `json:"fingerprint"`
	Supplier    string      `json:"supplier"`
	Step        Step        `json:"step"`
	ErrorType   ErrorType   `json:"error_type"`
	Reason      string      `json:"reason"`
}

// BatchReport aggregates the results of one batch
type BatchReport struct {
	ID         string             `json:"id"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Completed  int                `json:"completed"`
	Failed     int                `json:"failed"`
	Failures   []Failure          `json:"failures,omitempty"`
	Results    []ExtractionResult `json:"results"`
}

// Tally recomputes the Completed/Failed counts and failure list from Results
func (b *BatchReport) Tally() {
	b.Completed, b.Failed = 0, 0
	b.Failures = nil
	for _, r := range b.Results {
		if r.Completed() {
			b.Completed++
			continue
		}
		b.Failed++
		b.Failures = append(b.Failures, Failure{
			Fingerprint: r.Fingerprint,
			Supplier:    r.Supplier,
			Step:        r.FailedStep,
			ErrorType:   r.ErrorType,
			Reason:      r.FailureReason,
		})
	}
}

// RetryPolicy controls how transient step failures are retried
type RetryPolicy struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
	Multiplier  float64       `mapstructure:"multiplier"`
	Jitter      float64       `mapstructure:"jitter"`
}

// DefaultRetryPolicy returns the retry policy used when none is configured
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    15 * time.Second,
		Multiplier:  2.0,
		Jitter:      0.25,
	}
}

// Attempts returns MaxAttempts, never less than one
func (p RetryPolicy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Backoff returns the delay after the given failed attempt (1-based).
// rnd must be in [0,1) and spreads the delay by ±Jitter.
func (p RetryPolicy) Backoff(attempt int, rnd float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := p.Multiplier
	if mult <= 0 {
		mult = 2.0
	}
	delay := float64(p.BaseDelay) * math.Pow(mult, float64(attempt-1))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if p.Jitter > 0 {
		delay += (rnd*2 - 1) * delay * p.Jitter
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// Bounds is an inclusive sanity range for extracted prices
type Bounds struct {
	Min float64 `mapstructure:"min"`
	Max float64 `mapstructure:"max"`
}

// Contains reports whether v lies within the bounds. Zero Max means unbounded.
func (b Bounds) Contains(v float64) bool {
	if v < b.Min {
		return false
	}
	return b.Max <= 0 || v <= b.Max
}

// Config holds the configuration for the extractor
type Config struct {
	RequestDelay          time.Duration
	MaxRetries            int
	Timeout               time.Duration
	MaxConcurrentSessions int
	UseHeadlessBrowser    bool
	UserAgent             string
	RemoteBrowserURL      string
	Retry                 RetryPolicy
	Suppliers             map[string]SupplierSettings
	PriceBounds           map[ProductType]Bounds
	DefaultBounds         Bounds
	OutputDir             string
	ExportFormat          string
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		RequestDelay:          1 * time.Second,
		MaxRetries:            3,
		Timeout:               30 * time.Second,
		MaxConcurrentSessions: 2,
		UseHeadlessBrowser:    true,
		UserAgent:             "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		Retry:                 DefaultRetryPolicy(),
		Suppliers:             DefaultSuppliers(),
		PriceBounds: map[ProductType]Bounds{
			ProductWindows: {Min: 50, Max: 5000},
			ProductDoors:   {Min: 100, Max: 8000},
			ProductRoofing: {Min: 10, Max: 1000},
		},
		DefaultBounds: Bounds{Min: 1, Max: 100000},
		OutputDir:     "output",
		ExportFormat:  "json",
	}
}

// DefaultSuppliers returns the built-in supplier settings
func DefaultSuppliers() map[string]SupplierSettings {
	return map[string]SupplierSettings{
		"supplier1": {
			Name:          "supplier1",
			BaseURL:       "https://supplier1.com",
			LoginRequired: true,
			RateLimit:     2 * time.Second,
			Timeout:       30 * time.Second,
			Locale:        "en-US",
			Currency:      "USD",
			MinDimension:  12,
			MaxDimension:  120,
		},
		"supplier2": {
			Name:          "supplier2",
			BaseURL:       "https://supplier2.com",
			LoginRequired: true,
			RateLimit:     3 * time.Second,
			Timeout:       45 * time.Second,
			Locale:        "en-US",
			Currency:      "USD",
			MinDimension:  12,
			MaxDimension:  120,
			Upgrades:      []string{"single", "double", "triple", "low-e", "tempered"},
		},
		"supplier3": {
			Name:          "supplier3",
			BaseURL:       "https://supplier3.com",
			LoginRequired: false,
			RateLimit:     1500 * time.Millisecond,
			Timeout:       25 * time.Second,
			Locale:        "en-US",
			Currency:      "USD",
			MinDimension:  12,
			MaxDimension:  120,
			Upgrades:      []string{"entry", "patio", "french", "sliding", "bifold"},
		},
	}
}

// Supplier returns the settings registered under name
func (c *Config) Supplier(name string) (SupplierSettings, bool) {
	s, ok := c.Suppliers[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}

// BoundsFor returns the price bounds for a product type
func (c *Config) BoundsFor(pt ProductType) Bounds {
	if b, ok := c.PriceBounds[pt]; ok {
		return b
	}
	return c.DefaultBounds
}

// Logger defines the logging interface
type Logger interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}
