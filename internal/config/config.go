// Package config loads the extractor configuration from an optional YAML
// file, the environment and a .env file, and reads batch files.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"supplier-pricing/internal/types"
)

// EnvPrefix prefixes every environment override, e.g. PRICING_MAX_SESSIONS
const EnvPrefix = "PRICING"

// fileConfig mirrors the config.yaml layout
type fileConfig struct {
	RequestDelay  time.Duration                     `mapstructure:"request_delay"`
	MaxRetries    int                               `mapstructure:"max_retries"`
	Timeout       time.Duration                     `mapstructure:"timeout"`
	MaxSessions   int                               `mapstructure:"max_sessions"`
	Headless      bool                              `mapstructure:"headless"`
	UserAgent     string                            `mapstructure:"user_agent"`
	RemoteBrowser string                            `mapstructure:"remote_browser"`
	Retry         types.RetryPolicy                 `mapstructure:"retry"`
	Suppliers     map[string]types.SupplierSettings `mapstructure:"suppliers"`
	PriceBounds   map[string]types.Bounds           `mapstructure:"price_bounds"`
	DefaultBounds types.Bounds                      `mapstructure:"default_bounds"`
	OutputDir     string                            `mapstructure:"output_dir"`
	ExportFormat  string                            `mapstructure:"export_format"`
}

// legacyEnv keeps the plain variable names older deployments export
var legacyEnv = map[string]string{
	"headless":      "HEADLESS_MODE",
	"max_retries":   "MAX_RETRIES",
	"output_dir":    "OUTPUT_DIRECTORY",
	"export_format": "EXPORT_FORMAT",
}

// LoadDotEnv loads variables from .env files if they exist
func LoadDotEnv(paths ...string) error {
	var existing []string
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("error loading env file: %w", err)
	}
	return nil
}

// Load builds the configuration. An explicit path must exist; otherwise
// config.yaml is looked up in . and ./config and is optional.
func Load(path string) (*types.Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindLegacyEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	config := fc.toConfig()
	if err := applyLegacySeconds(config); err != nil {
		return nil, err
	}
	if err := validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// setDefaults registers every known key so environment overrides resolve
func setDefaults(v *viper.Viper) {
	d := types.DefaultConfig()

	v.SetDefault("request_delay", d.RequestDelay)
	v.SetDefault("max_retries", d.MaxRetries)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("max_sessions", d.MaxConcurrentSessions)
	v.SetDefault("headless", d.UseHeadlessBrowser)
	v.SetDefault("user_agent", d.UserAgent)
	v.SetDefault("remote_browser", "")
	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("export_format", d.ExportFormat)

	// retry.max_attempts falls back to max_retries, so it has no default
	v.SetDefault("retry.base_delay", d.Retry.BaseDelay)
	v.SetDefault("retry.max_delay", d.Retry.MaxDelay)
	v.SetDefault("retry.multiplier", d.Retry.Multiplier)
	v.SetDefault("retry.jitter", d.Retry.Jitter)

	for pt, b := range d.PriceBounds {
		v.SetDefault("price_bounds."+string(pt)+".min", b.Min)
		v.SetDefault("price_bounds."+string(pt)+".max", b.Max)
	}
	v.SetDefault("default_bounds.min", d.DefaultBounds.Min)
	v.SetDefault("default_bounds.max", d.DefaultBounds.Max)

	for name, s := range d.Suppliers {
		prefix := "suppliers." + name + "."
		v.SetDefault(prefix+"name", s.Name)
		v.SetDefault(prefix+"base_url", s.BaseURL)
		v.SetDefault(prefix+"login_required", s.LoginRequired)
		v.SetDefault(prefix+"credentials.username", "")
		v.SetDefault(prefix+"credentials.password", "")
		v.SetDefault(prefix+"rate_limit", s.RateLimit)
		v.SetDefault(prefix+"timeout", s.Timeout)
		v.SetDefault(prefix+"locale", s.Locale)
		v.SetDefault(prefix+"currency", s.Currency)
		v.SetDefault(prefix+"min_dimension", s.MinDimension)
		v.SetDefault(prefix+"max_dimension", s.MaxDimension)
		v.SetDefault(prefix+"upgrades", s.Upgrades)
	}
}

// bindLegacyEnv maps the unprefixed variable names onto config keys. The
// prefixed name is bound first so it wins when both are set.
func bindLegacyEnv(v *viper.Viper) error {
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, envName(key), env); err != nil {
			return fmt.Errorf("bind %s: %w", env, err)
		}
	}
	for i := 1; i <= 3; i++ {
		supplier := fmt.Sprintf("supplier%d", i)
		for _, field := range []string{"username", "password"} {
			key := "suppliers." + supplier + ".credentials." + field
			legacy := fmt.Sprintf("SUPPLIER_%d_%s", i, strings.ToUpper(field))
			if err := v.BindEnv(key, envName(key), legacy); err != nil {
				return fmt.Errorf("bind %s: %w", legacy, err)
			}
		}
	}
	return nil
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// applyLegacySeconds reads TIMEOUT_SECONDS and DELAY_BETWEEN_REQUESTS, which
// hold plain numbers of seconds rather than durations.
func applyLegacySeconds(config *types.Config) error {
	if s := os.Getenv("TIMEOUT_SECONDS"); s != "" && os.Getenv(envName("timeout")) == "" {
		d, err := parseSeconds(s)
		if err != nil {
			return fmt.Errorf("TIMEOUT_SECONDS: %w", err)
		}
		config.Timeout = d
	}
	if s := os.Getenv("DELAY_BETWEEN_REQUESTS"); s != "" && os.Getenv(envName("request_delay")) == "" {
		d, err := parseSeconds(s)
		if err != nil {
			return fmt.Errorf("DELAY_BETWEEN_REQUESTS: %w", err)
		}
		config.RequestDelay = d
	}
	return nil
}

func parseSeconds(s string) (time.Duration, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(f * float64(time.Second)), nil
}

func (fc fileConfig) toConfig() *types.Config {
	config := &types.Config{
		RequestDelay:          fc.RequestDelay,
		MaxRetries:            fc.MaxRetries,
		Timeout:               fc.Timeout,
		MaxConcurrentSessions: fc.MaxSessions,
		UseHeadlessBrowser:    fc.Headless,
		UserAgent:             fc.UserAgent,
		RemoteBrowserURL:      fc.RemoteBrowser,
		Retry:                 fc.Retry,
		Suppliers:             make(map[string]types.SupplierSettings, len(fc.Suppliers)),
		PriceBounds:           make(map[types.ProductType]types.Bounds, len(fc.PriceBounds)),
		DefaultBounds:         fc.DefaultBounds,
		OutputDir:             fc.OutputDir,
		ExportFormat:          strings.ToLower(fc.ExportFormat),
	}
	if config.Retry.MaxAttempts == 0 {
		config.Retry.MaxAttempts = fc.MaxRetries
	}

	for name, s := range fc.Suppliers {
		name = strings.ToLower(name)
		if s.Name == "" {
			s.Name = name
		}
		config.Suppliers[name] = s
	}
	for pt, b := range fc.PriceBounds {
		config.PriceBounds[types.ProductType(strings.ToLower(pt))] = b
	}
	return config
}

// validate validates the configuration
func validate(config *types.Config) error {
	if config.MaxConcurrentSessions < 1 {
		return fmt.Errorf("max_sessions must be at least 1, got: %d", config.MaxConcurrentSessions)
	}
	if config.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got: %v", config.Timeout)
	}
	if config.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got: %d", config.Retry.MaxAttempts)
	}
	switch config.ExportFormat {
	case "json", "csv", "excel", "xlsx":
	default:
		return fmt.Errorf("export format must be 'json', 'csv' or 'excel', got: %s", config.ExportFormat)
	}
	for pt, b := range config.PriceBounds {
		if b.Max > 0 && b.Min > b.Max {
			return fmt.Errorf("price bounds for %s: min %.2f above max %.2f", pt, b.Min, b.Max)
		}
	}
	for name, s := range config.Suppliers {
		if s.BaseURL == "" {
			return fmt.Errorf("supplier %s: base_url is required", name)
		}
		if s.MaxDimension > 0 && s.MinDimension > s.MaxDimension {
			return fmt.Errorf("supplier %s: min_dimension above max_dimension", name)
		}
	}
	return nil
}
