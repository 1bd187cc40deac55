package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"supplier-pricing/internal/types"
)

// userAgents and windowSizes provide basic fingerprint variation between sessions
var userAgents = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36 Edg/119.0.0.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

var windowSizes = [][2]int{
	{1920, 1080},
	{1680, 1050},
	{1536, 864},
	{1440, 900},
	{1366, 768},
}

// BrowserClient launches isolated browser sessions
type BrowserClient struct {
	config *types.Config
	logger types.Logger
	http   *HTTPClient
}

// NewBrowserClient creates a new browser client
func NewBrowserClient(config *types.Config, logger types.Logger) *BrowserClient {
	return &BrowserClient{
		config: config,
		logger: logger,
		http:   NewHTTPClient(config, logger),
	}
}

// Open starts a new browser (or a new target on a remote browser) with a
// randomized user agent and window size.
func (b *BrowserClient) Open(ctx context.Context) (*ChromeSession, error) {
	// The session outlives the request that opened it; Close tears it down.
	base := context.WithoutCancel(ctx)
	ua, size := b.fingerprint()

	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if b.config.RemoteBrowserURL != "" {
		wsURL, err := b.http.DiscoverWebSocketURL(ctx, b.config.RemoteBrowserURL)
		if err != nil {
			return nil, fmt.Errorf("failed to reach remote browser: %w", err)
		}
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(base, wsURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", b.config.UseHeadlessBrowser),
			chromedp.UserAgent(ua),
			chromedp.WindowSize(size[0], size[1]),
		)
		allocCtx, allocCancel = chromedp.NewExecAllocator(base, opts...)
	}

	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithErrorf(b.logger.Debugf))

	startCtx, cancel := context.WithTimeout(tabCtx, b.config.Timeout)
	defer cancel()
	actions := []chromedp.Action{}
	if b.config.RemoteBrowserURL != "" {
		actions = append(actions, chromedp.EmulateViewport(int64(size[0]), int64(size[1])))
	}
	if err := chromedp.Run(startCtx, actions...); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	b.logger.Debugf("Browser session started (%dx%d, %s)", size[0], size[1], ua)
	return &ChromeSession{
		ctx:         tabCtx,
		cancel:      tabCancel,
		allocCancel: allocCancel,
		timeout:     b.config.Timeout,
		logger:      b.logger,
	}, nil
}

// Close releases the discovery client
func (b *BrowserClient) Close() {
	b.http.Close()
}

func (b *BrowserClient) fingerprint() (string, [2]int) {
	ua := userAgents[rand.IntN(len(userAgents))]
	if b.config.UserAgent != "" && rand.IntN(len(userAgents)+1) == 0 {
		ua = b.config.UserAgent
	}
	return ua, windowSizes[rand.IntN(len(windowSizes))]
}

// ChromeSession is one browser tab implementing types.PageDriver
type ChromeSession struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	timeout     time.Duration
	logger      types.Logger

	closeOnce sync.Once
}

var _ types.PageDriver = (*ChromeSession)(nil)

// run executes actions on the tab, bounded by the session timeout and by ctx
func (s *ChromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	if s.ctx.Err() != nil {
		return types.ErrSessionClosed
	}
	runCtx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// timedOut reports whether err came from the session timeout rather than the caller
func timedOut(ctx context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || (errors.Is(err, context.Canceled) && ctx.Err() == nil)
}

func (s *ChromeSession) Navigate(ctx context.Context, url string) error {
	err := s.run(ctx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery))
	if err != nil && timedOut(ctx, err) {
		return fmt.Errorf("%w: %s", types.ErrNavigationTimeout, url)
	}
	return err
}

func (s *ChromeSession) waitErr(ctx context.Context, selector string, err error) error {
	if err != nil && timedOut(ctx, err) {
		return fmt.Errorf("%w: %s", types.ErrElementNotFound, selector)
	}
	return err
}

type jsElement struct {
	Found   bool   `json:"found"`
	Text    string `json:"text"`
	Value   string `json:"value"`
	Visible bool   `json:"visible"`
	Checked bool   `json:"checked"`
}

func (s *ChromeSession) FindElement(ctx context.Context, selector string) (types.Element, error) {
	var res jsElement
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return {found: false};
		return {found: true, text: el.innerText || '', value: el.value || '', visible: !!el.offsetParent, checked: !!el.checked};
	})()`, jsString(selector))
	if err := s.run(ctx, chromedp.Evaluate(script, &res)); err != nil {
		return types.Element{}, s.waitErr(ctx, selector, err)
	}
	if !res.Found {
		return types.Element{}, fmt.Errorf("%w: %s", types.ErrElementNotFound, selector)
	}
	return types.Element{Selector: selector, Text: res.Text, Value: res.Value, Visible: res.Visible, Checked: res.Checked}, nil
}

// Clear empties an input and fires input/change so framework-bound forms notice
func (s *ChromeSession) Clear(ctx context.Context, selector string) error {
	var ok bool
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return false;
		el.focus();
		el.value = '';
		el.dispatchEvent(new Event('input', {bubbles: true}));
		el.dispatchEvent(new Event('change', {bubbles: true}));
		return true;
	})()`, jsString(selector))
	if err := s.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery), chromedp.Evaluate(script, &ok)); err != nil {
		return s.waitErr(ctx, selector, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrElementNotFound, selector)
	}
	return nil
}

func (s *ChromeSession) Fill(ctx context.Context, selector, value string) error {
	err := s.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
	return s.waitErr(ctx, selector, err)
}

func (s *ChromeSession) Click(ctx context.Context, selector string) error {
	err := s.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	)
	return s.waitErr(ctx, selector, err)
}

// Select chooses the option whose value or label matches, case-insensitively
func (s *ChromeSession) Select(ctx context.Context, selector, value string) error {
	var found bool
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		const want = %s.toLowerCase();
		if (!el || !el.options) return false;
		for (const opt of el.options) {
			if (opt.value.toLowerCase() === want || opt.text.trim().toLowerCase() === want) {
				el.value = opt.value;
				el.dispatchEvent(new Event('change', {bubbles: true}));
				return true;
			}
		}
		return false;
	})()`, jsString(selector), jsString(value))
	if err := s.run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery), chromedp.Evaluate(script, &found)); err != nil {
		return s.waitErr(ctx, selector, err)
	}
	if !found {
		return fmt.Errorf("%w: %s has no option %q", types.ErrOptionNotFound, selector, value)
	}
	return nil
}

// SetChecked clicks a checkbox only when its state differs, so repeats are no-ops
func (s *ChromeSession) SetChecked(ctx context.Context, selector string, checked bool) error {
	var ok bool
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return false;
		if (el.checked !== %t) el.click();
		return true;
	})()`, jsString(selector), checked)
	if err := s.run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery), chromedp.Evaluate(script, &ok)); err != nil {
		return s.waitErr(ctx, selector, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrElementNotFound, selector)
	}
	return nil
}

func (s *ChromeSession) ReadText(ctx context.Context, selector string) (string, error) {
	var text string
	err := s.run(ctx, chromedp.Text(selector, &text, chromedp.ByQuery, chromedp.NodeVisible))
	return text, s.waitErr(ctx, selector, err)
}

func (s *ChromeSession) WaitFor(ctx context.Context, selector string, cond types.Condition) error {
	var action chromedp.Action
	switch cond {
	case types.Visible:
		action = chromedp.WaitVisible(selector, chromedp.ByQuery)
	case types.Present:
		action = chromedp.WaitReady(selector, chromedp.ByQuery)
	case types.Absent:
		action = chromedp.WaitNotPresent(selector, chromedp.ByQuery)
	default:
		return fmt.Errorf("unsupported wait condition %d", cond)
	}
	return s.waitErr(ctx, selector, s.run(ctx, action))
}

func (s *ChromeSession) CurrentURL(ctx context.Context) (string, error) {
	var url string
	err := s.run(ctx, chromedp.Location(&url))
	return url, err
}

func (s *ChromeSession) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

func (s *ChromeSession) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to get page content: %w", err)
	}
	return html, nil
}

// Close shuts the tab and its browser. Safe to call more than once.
func (s *ChromeSession) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.allocCancel()
		s.logger.Debugf("Browser session closed")
	})
	return nil
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
