package types

import (
	"context"
	"time"
)

// Condition is a page state that WaitFor blocks on
type Condition int

const (
	// Visible waits until the element is rendered and visible
	Visible Condition = iota
	// Present waits until the element exists in the DOM
	Present
	// Absent waits until the element is removed from the DOM
	Absent
)

func (c Condition) String() string {
	switch c {
	case Visible:
		return "visible"
	case Present:
		return "present"
	case Absent:
		return "absent"
	default:
		return "unknown"
	}
}

// Element is a snapshot of a located page element
type Element struct {
	Selector string
	Text     string
	Value    string
	Visible  bool
	Checked  bool
}

// PageDriver is the browser capability a session exposes to adapters.
// Fill appends to the current field value; callers clear first when they
// need replacement semantics.
type PageDriver interface {
	Navigate(ctx context.Context, url string) error
	FindElement(ctx context.Context, selector string) (Element, error)
	Clear(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	Select(ctx context.Context, selector, value string) error
	SetChecked(ctx context.Context, selector string, checked bool) error
	ReadText(ctx context.Context, selector string) (string, error)
	WaitFor(ctx context.Context, selector string, cond Condition) error
	CurrentURL(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	HTML(ctx context.Context) (string, error)
	Close() error
}

// Credentials authenticate one supplier account
type Credentials struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// Empty reports whether no credentials were supplied
func (c Credentials) Empty() bool {
	return c.Username == "" && c.Password == ""
}

// SupplierSettings describe how to reach and pace one supplier site
type SupplierSettings struct {
	Name          string        `mapstructure:"name"`
	BaseURL       string        `mapstructure:"base_url"`
	LoginRequired bool          `mapstructure:"login_required"`
	Credentials   Credentials   `mapstructure:"credentials"`
	RateLimit     time.Duration `mapstructure:"rate_limit"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Locale        string        `mapstructure:"locale"`
	Currency      string        `mapstructure:"currency"`
	MinDimension  float64       `mapstructure:"min_dimension"`
	MaxDimension  float64       `mapstructure:"max_dimension"`
	Upgrades      []string      `mapstructure:"upgrades"`
	Retry         *RetryPolicy  `mapstructure:"retry"`
}

// RetryPolicyOr returns the supplier override or the fallback policy
func (s SupplierSettings) RetryPolicyOr(fallback RetryPolicy) RetryPolicy {
	if s.Retry != nil {
		return *s.Retry
	}
	return fallback
}

// LocaleProfile describes how a supplier formats amounts
type LocaleProfile struct {
	Name               string
	DecimalSeparator   string
	ThousandsSeparator string
	Currency           string
}

// Classifier decides whether a step error is worth retrying
type Classifier interface {
	Classify(err error) StepStatus
}

// ClassifierFunc adapts a function to Classifier
type ClassifierFunc func(err error) StepStatus

// Classify calls f(err)
func (f ClassifierFunc) Classify(err error) StepStatus {
	return f(err)
}

// SupplierAdapter implements the configuration flow of one supplier site.
// Every step is bound to the adapter's driver and must be safe to repeat.
type SupplierAdapter interface {
	Classifier

	Supplier() string
	Settings() SupplierSettings
	Driver() PageDriver

	Authenticate(ctx context.Context, creds Credentials) error
	OpenConfigurator(ctx context.Context, productType ProductType) error
	SetDimension(ctx context.Context, width, height float64) error
	SetMaterial(ctx context.Context, material string) error
	SetColor(ctx context.Context, color string) error
	SetUpgrades(ctx context.Context, upgrades []string) error
	Submit(ctx context.Context) error
	ReadRawPrice(ctx context.Context) (string, error)
}

// Artifact is the diagnostic bundle captured when retries run out
type Artifact struct {
	Key         string        `json:"key"`
	Fingerprint Fingerprint   `json:"fingerprint"`
	Supplier    string        `json:"supplier"`
	Step        Step          `json:"step"`
	Attempt     int           `json:"attempt"`
	URL         string        `json:"url,omitempty"`
	Title       string        `json:"title,omitempty"`
	Alerts      []string      `json:"alerts,omitempty"`
	Screenshot  []byte        `json:"-"`
	DOM         string        `json:"-"`
	Trace       []StepOutcome `json:"trace"`
	CapturedAt  time.Time     `json:"captured_at"`
}

// ArtifactSink receives failure artifacts
type ArtifactSink interface {
	Emit(ctx context.Context, artifact Artifact) error
}
