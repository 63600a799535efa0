package port

import "context"

// Locator selects elements on a page: by CSS selector, or by the text the
// element itself contains.
type Locator struct {
	CSS  string
	Text string
}

// CSS locates elements matching a CSS selector.
func CSS(selector string) Locator { return Locator{CSS: selector} }

// HasText locates elements whose own text contains s.
func HasText(s string) Locator { return Locator{Text: s} }

func (l Locator) String() string {
	if l.Text != "" {
		return "text=" + l.Text
	}
	return l.CSS
}

// ElementPort is a read-only view of a DOM element.
type ElementPort interface {
	// Text returns the trimmed text content.
	Text() string
	// Attr returns the attribute value and whether it is present.
	Attr(name string) (string, bool)
	Find(l Locator) (ElementPort, bool)
	FindAll(l Locator) []ElementPort
}

// PagePort is a rendered page. Missing elements are "not found", never errors.
type PagePort interface {
	// StatusCode is the HTTP status of the main document, 0 when unknown.
	StatusCode() int
	Find(l Locator) (ElementPort, bool)
	FindAll(l Locator) []ElementPort
}

// BrowserSessionPort is one browser session. Close must be called on every
// exit path.
type BrowserSessionPort interface {
	// Navigate loads url and waits until it is rendered. A timeout or a
	// transport failure is returned as an error, never as a partial page.
	Navigate(ctx context.Context, url string) (PagePort, error)
	Close() error
}

// BrowserPort hands out browser sessions.
type BrowserPort interface {
	NewSession(ctx context.Context) (BrowserSessionPort, error)
}
