package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"shopcrawl/internal/collector"
)

var (
	ErrStaleElement = errors.New("element is no longer attached to the page")
	errNotLink      = errors.New("element has no navigable href")
)

// PageFetcher loads and parses a document.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*goquery.Document, error)
}

// FetcherFunc adapts a function to PageFetcher.
type FetcherFunc func(ctx context.Context, url string) (*goquery.Document, error)

func (f FetcherFunc) Fetch(ctx context.Context, url string) (*goquery.Document, error) {
	return f(ctx, url)
}

type staticView struct {
	url    *url.URL
	doc    *goquery.Document
	gen    int
	closed bool
}

type staticElement struct {
	sel  *goquery.Selection
	view *staticView
	gen  int
}

// StaticSurface renders pages without a browser: documents come from a
// PageFetcher and clicking a link loads its href in the same view. Scripts
// are not executed.
type StaticSurface struct {
	fetcher  PageFetcher
	views    map[string]*staticView
	current  string
	seq      int
	matchers map[string]cascadia.Selector
	Interval time.Duration
}

var _ collector.Surface = (*StaticSurface)(nil)

// NewStaticSurface creates a surface with one empty current view.
func NewStaticSurface(f PageFetcher) *StaticSurface {
	s := &StaticSurface{
		fetcher:  f,
		views:    map[string]*staticView{},
		matchers: map[string]cascadia.Selector{},
		Interval: 10 * time.Millisecond,
	}
	s.current = s.newView()
	return s
}

func (s *StaticSurface) newView() string {
	s.seq++
	handle := fmt.Sprintf("view-%d", s.seq)
	s.views[handle] = &staticView{}
	return handle
}

// ViewCount returns the number of open views.
func (s *StaticSurface) ViewCount() int {
	return len(s.views)
}

func (s *StaticSurface) load(ctx context.Context, v *staticView, rawURL string) error {
	v.gen++
	v.doc = nil
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	v.url = u
	doc, err := s.fetcher.Fetch(ctx, u.String())
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", u, err)
	}
	v.doc = doc
	if doc.Url != nil {
		v.url = doc.Url
	}
	return nil
}

func (s *StaticSurface) matcher(sel string) (cascadia.Selector, error) {
	if m, ok := s.matchers[sel]; ok {
		return m, nil
	}
	m, err := cascadia.Compile(sel)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", sel, err)
	}
	s.matchers[sel] = m
	return m, nil
}

func (s *StaticSurface) element(el collector.Element) (*staticElement, error) {
	e, ok := el.(*staticElement)
	if !ok {
		return nil, fmt.Errorf("element does not belong to a static surface")
	}
	if e.stale() {
		return nil, ErrStaleElement
	}
	return e, nil
}

func (e *staticElement) stale() bool {
	return e.view.closed || e.gen != e.view.gen
}

// Navigate loads rawURL into the current view.
func (s *StaticSurface) Navigate(ctx context.Context, rawURL string) error {
	v, ok := s.views[s.current]
	if !ok {
		return fmt.Errorf("no current view")
	}
	return s.load(ctx, v, rawURL)
}

// FindAll returns the matches of the first selector that matches anything.
func (s *StaticSurface) FindAll(ctx context.Context, scope collector.Element, selectors []string) ([]collector.Element, error) {
	var (
		base *goquery.Selection
		view *staticView
	)
	if scope == nil {
		v, ok := s.views[s.current]
		if !ok {
			return nil, fmt.Errorf("no current view")
		}
		if v.doc == nil {
			return nil, nil
		}
		base, view = v.doc.Selection, v
	} else {
		e, err := s.element(scope)
		if err != nil {
			return nil, err
		}
		base, view = e.sel, e.view
	}

	for _, sel := range selectors {
		m, err := s.matcher(sel)
		if err != nil {
			return nil, err
		}
		found := base.FindMatcher(m)
		if found.Length() == 0 {
			continue
		}
		out := make([]collector.Element, 0, found.Length())
		found.Each(func(_ int, node *goquery.Selection) {
			out = append(out, &staticElement{sel: node, view: view, gen: view.gen})
		})
		return out, nil
	}
	return nil, nil
}

// FindFirst returns the first match of the first matching selector.
func (s *StaticSurface) FindFirst(ctx context.Context, scope collector.Element, selectors []string) (collector.Element, bool) {
	found, err := s.FindAll(ctx, scope, selectors)
	if err != nil || len(found) == 0 {
		return nil, false
	}
	return found[0], true
}

// Text returns the element's text content.
func (s *StaticSurface) Text(ctx context.Context, el collector.Element) (string, error) {
	e, err := s.element(el)
	if err != nil {
		return "", err
	}
	return e.sel.Text(), nil
}

// Attribute reads an attribute; href is resolved against the page URL.
func (s *StaticSurface) Attribute(ctx context.Context, el collector.Element, name string) (string, bool, error) {
	e, err := s.element(el)
	if err != nil {
		return "", false, err
	}
	v, ok := e.sel.Attr(name)
	if !ok {
		return "", false, nil
	}
	if name == "href" && e.view.url != nil {
		ref, err := url.Parse(strings.TrimSpace(v))
		if err != nil {
			return v, true, nil
		}
		return e.view.url.ResolveReference(ref).String(), true, nil
	}
	return v, true, nil
}

// OpenInNewView loads rawURL into a new view without switching to it. A
// failed load leaves the view open and empty.
func (s *StaticSurface) OpenInNewView(ctx context.Context, rawURL string) (string, error) {
	handle := s.newView()
	_ = s.load(ctx, s.views[handle], rawURL)
	return handle, nil
}

// CurrentView returns the active view handle.
func (s *StaticSurface) CurrentView() string {
	return s.current
}

// SwitchTo makes view the active view.
func (s *StaticSurface) SwitchTo(ctx context.Context, view string) error {
	if _, ok := s.views[view]; !ok {
		return fmt.Errorf("unknown view %q", view)
	}
	s.current = view
	return nil
}

// CloseCurrentView closes the active view. No view is current afterwards.
func (s *StaticSurface) CloseCurrentView(ctx context.Context) error {
	return s.CloseView(ctx, s.current)
}

// CloseView closes view. Elements found in it become stale.
func (s *StaticSurface) CloseView(ctx context.Context, view string) error {
	v, ok := s.views[view]
	if !ok {
		return fmt.Errorf("unknown view %q", view)
	}
	v.closed = true
	delete(s.views, view)
	if s.current == view {
		s.current = ""
	}
	return nil
}

// Click follows the element's href in the view that owns it.
func (s *StaticSurface) Click(ctx context.Context, el collector.Element) error {
	e, err := s.element(el)
	if err != nil {
		return err
	}
	href, ok, _ := s.Attribute(ctx, e, "href")
	raw, _ := e.sel.Attr("href")
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" || strings.HasPrefix(raw, "#") || strings.HasPrefix(raw, "javascript:") {
		return errNotLink
	}
	return s.load(ctx, e.view, href)
}

// IsStale reports whether the element's view was closed or reloaded.
func (s *StaticSurface) IsStale(ctx context.Context, el collector.Element) bool {
	e, ok := el.(*staticElement)
	if !ok {
		return true
	}
	return e.stale()
}

// WaitUntil polls cond every Interval until it holds or timeout elapses.
func (s *StaticSurface) WaitUntil(ctx context.Context, timeout time.Duration, cond func(context.Context) bool) error {
	return pollUntil(ctx, timeout, s.Interval, cond)
}
