package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"

	"shopcrawl/internal/collector"
)

// probeTimeout bounds a single staleness probe so a page in the middle of
// navigating cannot stall a wait.
const probeTimeout = 2 * time.Second

// defaultLoadTimeout bounds the load wait of a newly opened view.
const defaultLoadTimeout = 30 * time.Second

var errNotRodElement = errors.New("element does not belong to a rod surface")

// RodSurface drives Chrome tabs as collector views.
type RodSurface struct {
	browser  *Browser
	pages    map[string]*rod.Page
	current  string
	Interval time.Duration

	// LoadTimeout bounds the load wait in OpenInNewView.
	LoadTimeout time.Duration
}

var _ collector.Surface = (*RodSurface)(nil)

// NewRodSurface opens the first tab and makes it the current view.
func NewRodSurface(b *Browser) (*RodSurface, error) {
	page, err := b.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	handle := string(page.TargetID)
	return &RodSurface{
		browser:     b,
		pages:       map[string]*rod.Page{handle: page},
		current:     handle,
		Interval:    defaultPollInterval,
		LoadTimeout: defaultLoadTimeout,
	}, nil
}

func (s *RodSurface) page() (*rod.Page, error) {
	p, ok := s.pages[s.current]
	if !ok {
		return nil, fmt.Errorf("no current view")
	}
	return p, nil
}

// Navigate loads url in the current view and waits for the load event.
func (s *RodSurface) Navigate(ctx context.Context, url string) error {
	p, err := s.page()
	if err != nil {
		return err
	}
	if err := p.Context(ctx).Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate: %w", err)
	}
	if err := p.Context(ctx).WaitLoad(); err != nil {
		return fmt.Errorf("failed to wait for page load: %w", err)
	}
	return nil
}

// FindAll returns the matches of the first selector that matches anything.
func (s *RodSurface) FindAll(ctx context.Context, scope collector.Element, selectors []string) ([]collector.Element, error) {
	for _, sel := range selectors {
		var (
			found rod.Elements
			err   error
		)
		if scope == nil {
			p, perr := s.page()
			if perr != nil {
				return nil, perr
			}
			found, err = p.Context(ctx).Elements(sel)
		} else {
			el, ok := scope.(*rod.Element)
			if !ok {
				return nil, errNotRodElement
			}
			found, err = el.Context(ctx).Elements(sel)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query %q: %w", sel, err)
		}
		if len(found) > 0 {
			out := make([]collector.Element, len(found))
			for i, el := range found {
				out[i] = el
			}
			return out, nil
		}
	}
	return nil, nil
}

// FindFirst returns the first match of the first matching selector.
func (s *RodSurface) FindFirst(ctx context.Context, scope collector.Element, selectors []string) (collector.Element, bool) {
	found, err := s.FindAll(ctx, scope, selectors)
	if err != nil || len(found) == 0 {
		return nil, false
	}
	return found[0], true
}

// Text returns the element's rendered text.
func (s *RodSurface) Text(ctx context.Context, el collector.Element) (string, error) {
	e, ok := el.(*rod.Element)
	if !ok {
		return "", errNotRodElement
	}
	return e.Context(ctx).Text()
}

// Attribute reads an attribute. Link-like attributes are read through the
// DOM property so they come back as absolute URLs.
func (s *RodSurface) Attribute(ctx context.Context, el collector.Element, name string) (string, bool, error) {
	e, ok := el.(*rod.Element)
	if !ok {
		return "", false, errNotRodElement
	}
	e = e.Context(ctx)
	if name == "href" || name == "src" {
		prop, err := e.Property(name)
		if err == nil && !prop.Nil() && prop.Str() != "" {
			return prop.Str(), true, nil
		}
	}
	v, err := e.Attribute(name)
	if err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

// OpenInNewView opens url in a new tab without switching to it and waits,
// at most LoadTimeout, for the load event. A failed navigation still leaves
// the tab open, the way a browser shows an error page.
func (s *RodSurface) OpenInNewView(ctx context.Context, url string) (string, error) {
	page, err := s.browser.NewPage()
	if err != nil {
		return "", fmt.Errorf("failed to create page: %w", err)
	}
	handle := string(page.TargetID)
	s.pages[handle] = page

	timeout := s.LoadTimeout
	if timeout <= 0 {
		timeout = defaultLoadTimeout
	}
	loading := page.Context(ctx).Timeout(timeout)
	defer loading.CancelTimeout()
	if err := loading.Navigate(url); err == nil {
		_ = loading.WaitLoad()
	}
	return handle, nil
}

// CurrentView returns the handle of the active tab.
func (s *RodSurface) CurrentView() string {
	return s.current
}

// SwitchTo makes view the active tab.
func (s *RodSurface) SwitchTo(ctx context.Context, view string) error {
	p, ok := s.pages[view]
	if !ok {
		return fmt.Errorf("unknown view %q", view)
	}
	if _, err := p.Context(ctx).Activate(); err != nil {
		return fmt.Errorf("failed to activate view: %w", err)
	}
	s.current = view
	return nil
}

// CloseCurrentView closes the active tab. No view is current afterwards.
func (s *RodSurface) CloseCurrentView(ctx context.Context) error {
	return s.CloseView(ctx, s.current)
}

// CloseView closes the tab behind view.
func (s *RodSurface) CloseView(ctx context.Context, view string) error {
	p, ok := s.pages[view]
	if !ok {
		return fmt.Errorf("unknown view %q", view)
	}
	delete(s.pages, view)
	if s.current == view {
		s.current = ""
	}
	return p.Context(ctx).Close()
}

// Click fires a DOM click on the element, like a script-driven click.
func (s *RodSurface) Click(ctx context.Context, el collector.Element) error {
	e, ok := el.(*rod.Element)
	if !ok {
		return errNotRodElement
	}
	_, err := e.Context(ctx).Eval(`() => this.click()`)
	return err
}

// IsStale reports whether the element was detached or its document replaced.
func (s *RodSurface) IsStale(ctx context.Context, el collector.Element) bool {
	e, ok := el.(*rod.Element)
	if !ok {
		return true
	}
	probe := e.Context(ctx).Timeout(probeTimeout)
	defer probe.CancelTimeout()
	res, err := probe.Eval(`() => this.isConnected`)
	if err != nil {
		return true
	}
	return !res.Value.Bool()
}

// WaitUntil polls cond every Interval until it holds or timeout elapses.
func (s *RodSurface) WaitUntil(ctx context.Context, timeout time.Duration, cond func(context.Context) bool) error {
	return pollUntil(ctx, timeout, s.Interval, cond)
}

// Close closes every tab the surface still tracks.
func (s *RodSurface) Close() {
	for handle, p := range s.pages {
		_ = p.Close()
		delete(s.pages, handle)
	}
	s.current = ""
}
