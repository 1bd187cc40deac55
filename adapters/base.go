package adapters

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"supplier-pricing/internal/types"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

// validationSelectors are the inline error banners supplier forms render
// when they refuse an input.
var validationSelectors = []string{
	".alert-danger",
	".error-message",
	".field-error",
	".invalid-feedback",
	"[role=alert]",
}

// BaseAdapter provides common functionality for supplier adapters.
// Supplier adapters embed it and only describe their selectors and flow;
// pacing, idempotent form filling and error classification live here.
type BaseAdapter struct {
	config        *types.Config          // Engine-wide settings (timeouts, browser settings, etc.)
	settings      types.SupplierSettings // Per-supplier URL, pacing and input limits
	logger        types.Logger
	driver        types.PageDriver // Session this adapter instance is bound to
	limiter       *rate.Limiter    // Minimum spacing between page actions
	authenticated bool
}

// NewBaseAdapter creates a base adapter bound to one session.
// A zero RateLimit falls back to the engine-wide RequestDelay.
func NewBaseAdapter(config *types.Config, settings types.SupplierSettings, driver types.PageDriver, logger types.Logger) *BaseAdapter {
	interval := settings.RateLimit
	if interval <= 0 {
		interval = config.RequestDelay
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &BaseAdapter{
		config:   config,
		settings: settings,
		logger:   logger,
		driver:   driver,
		limiter:  rate.NewLimiter(limit, 1),
	}
}

// Supplier returns the supplier name
func (b *BaseAdapter) Supplier() string {
	return b.settings.Name
}

// Settings returns the supplier settings
func (b *BaseAdapter) Settings() types.SupplierSettings {
	return b.settings
}

// Driver returns the session driver
func (b *BaseAdapter) Driver() types.PageDriver {
	return b.driver
}

// Config returns the engine config
func (b *BaseAdapter) Config() *types.Config {
	return b.config
}

// Authenticated reports whether this session has logged in
func (b *BaseAdapter) Authenticated() bool {
	return b.authenticated
}

func (b *BaseAdapter) markAuthenticated() {
	b.authenticated = true
}

// Classify uses the default taxonomy. Adapters override it when a supplier
// reports failures in a way the default cannot recognize.
func (b *BaseAdapter) Classify(err error) types.StepStatus {
	return types.Classify(err)
}

// URL joins a path onto the supplier base URL
func (b *BaseAdapter) URL(path string) string {
	return strings.TrimRight(b.settings.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// pace blocks until the supplier rate limit allows another page action
func (b *BaseAdapter) pace(ctx context.Context) error {
	return b.limiter.Wait(ctx)
}

// Navigate loads a supplier page
func (b *BaseAdapter) Navigate(ctx context.Context, url string) error {
	if err := b.pace(ctx); err != nil {
		return err
	}
	b.logger.Debugf("[%s] navigating to %s", b.Supplier(), url)
	if err := b.driver.Navigate(ctx, url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// ClearAndFill replaces the content of an input. Driver Fill appends, so the
// field is cleared first to keep repeated attempts idempotent.
func (b *BaseAdapter) ClearAndFill(ctx context.Context, selector, value string) error {
	if err := b.pace(ctx); err != nil {
		return err
	}
	if err := b.driver.WaitFor(ctx, selector, types.Visible); err != nil {
		return fmt.Errorf("wait for %s: %w", selector, err)
	}
	if err := b.driver.Clear(ctx, selector); err != nil {
		return fmt.Errorf("clear %s: %w", selector, err)
	}
	if err := b.driver.Fill(ctx, selector, value); err != nil {
		return fmt.Errorf("fill %s: %w", selector, err)
	}
	return nil
}

// SelectOption picks an option in a dropdown. A missing option means the
// supplier does not offer the value, which is a validation rejection.
func (b *BaseAdapter) SelectOption(ctx context.Context, selector, value string) error {
	if err := b.pace(ctx); err != nil {
		return err
	}
	if err := b.driver.WaitFor(ctx, selector, types.Visible); err != nil {
		return fmt.Errorf("wait for %s: %w", selector, err)
	}
	if err := b.driver.Select(ctx, selector, value); err != nil {
		if errors.Is(err, types.ErrOptionNotFound) {
			return &types.ValidationRejectedError{Field: selector, Message: fmt.Sprintf("option %q not offered", value)}
		}
		return fmt.Errorf("select %s: %w", selector, err)
	}
	return nil
}

// ClickVisible waits for an element and clicks it
func (b *BaseAdapter) ClickVisible(ctx context.Context, selector string) error {
	if err := b.pace(ctx); err != nil {
		return err
	}
	if err := b.driver.WaitFor(ctx, selector, types.Visible); err != nil {
		return fmt.Errorf("wait for %s: %w", selector, err)
	}
	if err := b.driver.Click(ctx, selector); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

// ClickOption clicks a radio or swatch identified by value. A missing
// element means the supplier does not offer the value.
func (b *BaseAdapter) ClickOption(ctx context.Context, container, selector, value string) error {
	if err := b.pace(ctx); err != nil {
		return err
	}
	if err := b.driver.WaitFor(ctx, selector, types.Present); err != nil {
		if errors.Is(err, types.ErrElementNotFound) && b.containerReady(ctx, container) {
			return &types.ValidationRejectedError{Field: container, Message: fmt.Sprintf("option %q not offered", value)}
		}
		return fmt.Errorf("wait for %s: %w", selector, err)
	}
	if err := b.driver.Click(ctx, selector); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

// containerReady reports whether the option group itself has rendered
func (b *BaseAdapter) containerReady(ctx context.Context, container string) bool {
	_, err := b.driver.FindElement(ctx, container)
	return err == nil
}

// SetCheckboxes checks each box built from values with the selector format
func (b *BaseAdapter) SetCheckboxes(ctx context.Context, container, format string, values []string) error {
	for _, v := range values {
		selector := fmt.Sprintf(format, v)
		if err := b.pace(ctx); err != nil {
			return err
		}
		if err := b.driver.WaitFor(ctx, selector, types.Present); err != nil {
			if errors.Is(err, types.ErrElementNotFound) && b.containerReady(ctx, container) {
				return &types.ValidationRejectedError{Field: container, Message: fmt.Sprintf("upgrade %q not offered", v)}
			}
			return fmt.Errorf("wait for %s: %w", selector, err)
		}
		if err := b.driver.SetChecked(ctx, selector, true); err != nil {
			return fmt.Errorf("check %s: %w", selector, err)
		}
	}
	return nil
}

// ReadText waits for an element and returns its trimmed text
func (b *BaseAdapter) ReadText(ctx context.Context, selector string) (string, error) {
	if err := b.driver.WaitFor(ctx, selector, types.Visible); err != nil {
		return "", fmt.Errorf("wait for %s: %w", selector, err)
	}
	text, err := b.driver.ReadText(ctx, selector)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", selector, err)
	}
	return strings.TrimSpace(text), nil
}

// ValidateDimensions rejects sizes outside the supplier's supported range
// before any page interaction. Both zero means the product has no size.
func (b *BaseAdapter) ValidateDimensions(width, height float64) error {
	if width == 0 && height == 0 {
		return types.ErrNotApplicable
	}
	min, max := b.settings.MinDimension, b.settings.MaxDimension
	for _, d := range []struct {
		field string
		value float64
	}{{"width", width}, {"height", height}} {
		if d.value <= 0 || (min > 0 && d.value < min) || (max > 0 && d.value > max) {
			return &types.ValidationRejectedError{
				Field:   d.field,
				Message: fmt.Sprintf("%g in outside supported range %g-%g in", d.value, min, max),
			}
		}
	}
	return nil
}

// CheckValidation snapshots the DOM and turns a visible supplier error
// banner into a ValidationRejectedError.
func (b *BaseAdapter) CheckValidation(ctx context.Context, field string) error {
	html, err := b.driver.HTML(ctx)
	if err != nil {
		return fmt.Errorf("snapshot page: %w", err)
	}
	if msg := b.validationMessage(html); msg != "" {
		return &types.ValidationRejectedError{Field: field, Message: msg}
	}
	return nil
}

// validationMessage returns the first non-empty error banner text
func (b *BaseAdapter) validationMessage(html string) string {
	doc, err := b.ParseHTML(html)
	if err != nil {
		b.logger.Debugf("[%s] unable to parse page snapshot: %v", b.Supplier(), err)
		return ""
	}
	for _, selector := range validationSelectors {
		var msg string
		doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			msg = strings.TrimSpace(s.Text())
			return msg == ""
		})
		if msg != "" {
			return msg
		}
	}
	return ""
}

// ParseHTML parses HTML content into a goquery document
func (b *BaseAdapter) ParseHTML(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// RequireCredentials decides whether a login is needed. It returns
// ErrNotApplicable for suppliers that can be priced anonymously.
func (b *BaseAdapter) RequireCredentials(creds types.Credentials) error {
	if !creds.Empty() {
		return nil
	}
	if b.settings.LoginRequired {
		return &types.AuthenticationError{Supplier: b.Supplier(), Reason: "credentials required but not configured"}
	}
	b.logger.Debugf("[%s] no credentials configured, continuing anonymously", b.Supplier())
	return types.ErrNotApplicable
}

// loginPoll is how often a submitted login is re-checked
const loginPoll = 100 * time.Millisecond

// LoginCheck reports whether the page shows a signed-in session
type LoginCheck func(ctx context.Context) (bool, error)

// ConfirmLogin polls check after the login form was submitted. A supplier
// error banner is an AuthenticationError; a page that never shows the
// signed-in marker within the wait budget is a slow page and stays retryable.
func (b *BaseAdapter) ConfirmLogin(ctx context.Context, check LoginCheck, marker string) error {
	deadline := time.Now().Add(b.waitBudget())
	for {
		ok, err := check(ctx)
		if err != nil {
			return err
		}
		if ok {
			b.markAuthenticated()
			b.logger.Infof("[%s] authenticated", b.Supplier())
			return nil
		}
		if html, err := b.driver.HTML(ctx); err == nil {
			if msg := b.validationMessage(html); msg != "" {
				return &types.AuthenticationError{Supplier: b.Supplier(), Reason: msg}
			}
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return fmt.Errorf("%w: %s not shown after login", types.ErrElementNotFound, marker)
		}
		timer := time.NewTimer(min(loginPoll, remaining))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// ShowsElement is a LoginCheck for suppliers that render a signed-in marker
func (b *BaseAdapter) ShowsElement(selector string) LoginCheck {
	return func(ctx context.Context) (bool, error) {
		if _, err := b.driver.FindElement(ctx, selector); err != nil {
			if errors.Is(err, types.ErrElementNotFound) {
				return false, nil
			}
			return false, fmt.Errorf("find %s: %w", selector, err)
		}
		return true, nil
	}
}

// ReachesURL is a LoginCheck for suppliers that redirect after signing in
func (b *BaseAdapter) ReachesURL(fragment string) LoginCheck {
	return func(ctx context.Context) (bool, error) {
		current, err := b.driver.CurrentURL(ctx)
		if err != nil {
			return false, fmt.Errorf("read location: %w", err)
		}
		return strings.Contains(current, fragment), nil
	}
}

// waitBudget bounds how long a page may take to react to an action
func (b *BaseAdapter) waitBudget() time.Duration {
	if b.settings.Timeout > 0 {
		return b.settings.Timeout
	}
	return b.config.Timeout
}

// FormatDimension renders a dimension the way supplier inputs expect
func FormatDimension(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
