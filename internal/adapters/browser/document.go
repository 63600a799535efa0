package browser

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/kuroweb/crawlflare/internal/core/port"
)

// Document is a parsed snapshot of a rendered page. Both browser modes hand
// their final HTML to it, so selectors behave the same in either mode.
type Document struct {
	status int
	root   *goquery.Selection
}

var _ port.PagePort = (*Document)(nil)

// NewDocument parses html. status is the HTTP status of the main document.
func NewDocument(status int, html io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(html)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{status: status, root: doc.Selection}, nil
}

func (d *Document) StatusCode() int { return d.status }

func (d *Document) Find(l port.Locator) (port.ElementPort, bool) {
	return first(locate(d.root, l))
}

func (d *Document) FindAll(l port.Locator) []port.ElementPort {
	return wrapAll(locate(d.root, l))
}

type element struct {
	sel *goquery.Selection
}

func (e element) Text() string {
	return strings.TrimSpace(e.sel.Text())
}

func (e element) Attr(name string) (string, bool) {
	return e.sel.Attr(name)
}

func (e element) Find(l port.Locator) (port.ElementPort, bool) {
	return first(locate(e.sel, l))
}

func (e element) FindAll(l port.Locator) []port.ElementPort {
	return wrapAll(locate(e.sel, l))
}

// locate resolves l below sel. A text locator matches elements whose own
// text nodes contain the string, which keeps ancestors out of the result.
func locate(sel *goquery.Selection, l port.Locator) *goquery.Selection {
	if l.Text == "" {
		return sel.Find(l.CSS)
	}
	candidates := sel.Find("*")
	if l.CSS != "" {
		candidates = sel.Find(l.CSS)
	}
	return candidates.FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.Contains(ownText(s), l.Text)
	})
}

func ownText(s *goquery.Selection) string {
	var b strings.Builder
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) == "#text" {
			b.WriteString(c.Text())
		}
	})
	return b.String()
}

func first(sel *goquery.Selection) (port.ElementPort, bool) {
	if sel.Length() == 0 {
		return nil, false
	}
	return element{sel: sel.First()}, true
}

func wrapAll(sel *goquery.Selection) []port.ElementPort {
	out := make([]port.ElementPort, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, element{sel: s})
	})
	return out
}
