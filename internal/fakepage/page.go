// Package fakepage provides an in-memory PageDriver for exercising adapters
// and the state machine without a browser.
package fakepage

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"supplier-pricing/internal/types"
)

// Call records one driver invocation
type Call struct {
	Op       string
	Selector string
	Value    string
}

type element struct {
	text    string
	value   string
	options []string
	checked bool
}

type failure struct {
	remaining int
	err       error
}

// Page is a scripted PageDriver. Elements are registered up front and
// click/navigate hooks mutate the page to simulate supplier behavior.
type Page struct {
	mu         sync.Mutex
	url        string
	title      string
	elements   map[string]*element
	onClick    map[string]func(p *Page)
	onNavigate map[string]func(p *Page)
	failures   map[string]*failure
	calls      []Call
	screenshot []byte
	closed     bool
}

// New creates an empty page
func New() *Page {
	return &Page{
		elements:   make(map[string]*element),
		onClick:    make(map[string]func(p *Page)),
		onNavigate: make(map[string]func(p *Page)),
		failures:   make(map[string]*failure),
		screenshot: []byte("\x89PNG fake"),
	}
}

// AddElement registers a visible element with the given text
func (p *Page) AddElement(selector, text string) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements[selector] = &element{text: text}
	return p
}

// AddSelect registers a select element offering the given options
func (p *Page) AddSelect(selector string, options ...string) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements[selector] = &element{options: options}
	return p
}

// Remove deletes an element from the page
func (p *Page) Remove(selector string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.elements, selector)
}

// SetText replaces the text of an element, creating it when missing
func (p *Page) SetText(selector, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setTextLocked(selector, text)
}

func (p *Page) setTextLocked(selector, text string) {
	if el, ok := p.elements[selector]; ok {
		el.text = text
		return
	}
	p.elements[selector] = &element{text: text}
}

// SetTitle sets the document title reported in HTML snapshots
func (p *Page) SetTitle(title string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.title = title
}

// SetURL sets the current location without firing navigate hooks
func (p *Page) SetURL(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
}

// OnClick runs fn whenever selector is clicked
func (p *Page) OnClick(selector string, fn func(p *Page)) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onClick[selector] = fn
	return p
}

// OnNavigate runs fn whenever url is loaded
func (p *Page) OnNavigate(url string, fn func(p *Page)) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onNavigate[url] = fn
	return p
}

// FailNext makes the next n calls of op on selector return err.
// An empty selector matches any selector.
func (p *Page) FailNext(op, selector string, n int, err error) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[op+"|"+selector] = &failure{remaining: n, err: err}
	return p
}

// Value returns the current value of a field
func (p *Page) Value(selector string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if el, ok := p.elements[selector]; ok {
		return el.value
	}
	return ""
}

// Checked reports whether a checkbox or radio is checked
func (p *Page) Checked(selector string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if el, ok := p.elements[selector]; ok {
		return el.checked
	}
	return false
}

// Calls returns a copy of the recorded invocations
func (p *Page) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

// Count returns how many times op was invoked on selector
func (p *Page) Count(op, selector string) int {
	n := 0
	for _, c := range p.Calls() {
		if c.Op == op && (selector == "" || c.Selector == selector) {
			n++
		}
	}
	return n
}

// Closed reports whether Close was called
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// begin records the call and returns any scripted failure. Caller holds mu.
func (p *Page) begin(op, selector, value string) error {
	p.calls = append(p.calls, Call{Op: op, Selector: selector, Value: value})
	if p.closed {
		return types.ErrSessionClosed
	}
	for _, key := range []string{op + "|" + selector, op + "|"} {
		if f, ok := p.failures[key]; ok && f.remaining > 0 {
			f.remaining--
			return f.err
		}
	}
	return nil
}

func (p *Page) lookup(selector string) (*element, error) {
	el, ok := p.elements[selector]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrElementNotFound, selector)
	}
	return el, nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	if err := p.begin("navigate", url, ""); err != nil {
		p.mu.Unlock()
		return err
	}
	p.url = url
	hook := p.onNavigate[url]
	p.mu.Unlock()
	if hook != nil {
		hook(p)
	}
	return nil
}

func (p *Page) FindElement(ctx context.Context, selector string) (types.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("find", selector, ""); err != nil {
		return types.Element{}, err
	}
	el, err := p.lookup(selector)
	if err != nil {
		return types.Element{}, err
	}
	return types.Element{Selector: selector, Text: el.text, Value: el.value, Visible: true, Checked: el.checked}, nil
}

func (p *Page) Clear(ctx context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("clear", selector, ""); err != nil {
		return err
	}
	el, err := p.lookup(selector)
	if err != nil {
		return err
	}
	el.value = ""
	return nil
}

// Fill types value after the existing content, like a real keyboard
func (p *Page) Fill(ctx context.Context, selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("fill", selector, value); err != nil {
		return err
	}
	el, err := p.lookup(selector)
	if err != nil {
		return err
	}
	el.value += value
	return nil
}

func (p *Page) Click(ctx context.Context, selector string) error {
	p.mu.Lock()
	if err := p.begin("click", selector, ""); err != nil {
		p.mu.Unlock()
		return err
	}
	el, err := p.lookup(selector)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	el.checked = true
	hook := p.onClick[selector]
	p.mu.Unlock()
	if hook != nil {
		hook(p)
	}
	return nil
}

func (p *Page) Select(ctx context.Context, selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("select", selector, value); err != nil {
		return err
	}
	el, err := p.lookup(selector)
	if err != nil {
		return err
	}
	for _, opt := range el.options {
		if strings.EqualFold(opt, value) {
			el.value = opt
			return nil
		}
	}
	return fmt.Errorf("%w: %s has no option %q", types.ErrOptionNotFound, selector, value)
}

func (p *Page) SetChecked(ctx context.Context, selector string, checked bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("check", selector, fmt.Sprint(checked)); err != nil {
		return err
	}
	el, err := p.lookup(selector)
	if err != nil {
		return err
	}
	el.checked = checked
	return nil
}

func (p *Page) ReadText(ctx context.Context, selector string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("read", selector, ""); err != nil {
		return "", err
	}
	el, err := p.lookup(selector)
	if err != nil {
		return "", err
	}
	return el.text, nil
}

func (p *Page) WaitFor(ctx context.Context, selector string, cond types.Condition) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("wait", selector, cond.String()); err != nil {
		return err
	}
	_, err := p.lookup(selector)
	if cond == types.Absent {
		if err == nil {
			return fmt.Errorf("%w: %s still present", types.ErrElementNotFound, selector)
		}
		return nil
	}
	return err
}

func (p *Page) CurrentURL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("url", "", ""); err != nil {
		return "", err
	}
	return p.url, nil
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("screenshot", "", ""); err != nil {
		return nil, err
	}
	return append([]byte(nil), p.screenshot...), nil
}

// HTML renders the visible elements as a minimal document
func (p *Page) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("html", "", ""); err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("<html><head><title>" + p.title + "</title></head><body>")
	for sel, el := range p.elements {
		b.WriteString(renderElement(sel, el.text))
	}
	b.WriteString("</body></html>")
	return b.String(), nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, Call{Op: "close"})
	p.closed = true
	return nil
}

// renderElement turns simple selectors (#id, .class, tag.class) into markup
// so DOM parsers can match them again.
func renderElement(selector, text string) string {
	if strings.ContainsAny(selector, " []=:>'\"") {
		return "<div>" + text + "</div>"
	}
	tag, id, classes := "div", "", []string{}
	rest := selector
	if i := strings.IndexAny(rest, "#."); i > 0 {
		tag, rest = rest[:i], rest[i:]
	} else if i < 0 {
		tag, rest = rest, ""
	}
	for _, part := range strings.FieldsFunc(rest, func(r rune) bool { return r == '.' || r == '#' }) {
		if strings.Contains(rest, "#"+part) && id == "" {
			id = part
			continue
		}
		classes = append(classes, part)
	}
	attrs := ""
	if id != "" {
		attrs += ` id="` + id + `"`
	}
	if len(classes) > 0 {
		attrs += ` class="` + strings.Join(classes, " ") + `"`
	}
	return "<" + tag + attrs + ">" + text + "</" + tag + ">"
}
