package collector_test

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"shopcrawl/internal/browser"
	"shopcrawl/internal/collector"
)

const shopHost = "http://shop.test"

// -- Fake catalog --

type card struct {
	name, price, desc, href string
}

type detail struct {
	name, price, desc string
}

// site serves in-memory pages and counts fetches per URL.
type site struct {
	pages map[string]string
	hits  map[string]int
}

func newSite() *site {
	return &site{pages: map[string]string{}, hits: map[string]int{}}
}

func (s *site) fetch(_ context.Context, raw string) (*goquery.Document, error) {
	s.hits[raw]++
	body, ok := s.pages[raw]
	if !ok {
		return nil, fmt.Errorf("404 not found: %s", raw)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	doc.Url, _ = url.Parse(raw)
	return doc, nil
}

// listing adds a listing page at path. next is the path of the following
// page, "disabled" for a disabled next entry or "" for no pagination.
func (s *site) listing(path string, cards []card, next string) {
	var sb strings.Builder
	sb.WriteString("<html><body><h1>Test Sites</h1><div class=\"row\">\n")
	for _, c := range cards {
		sb.WriteString(`<div class="col"><div class="thumbnail"><div class="caption">`)
		if c.price != "" {
			fmt.Fprintf(&sb, `<h4 class="pull-right price">%s</h4>`, html.EscapeString(c.price))
		}
		if c.name != "" {
			if c.href != "" {
				fmt.Fprintf(&sb, `<h4><a class="title" href="%s">%s</a></h4>`, c.href, html.EscapeString(c.name))
			} else {
				fmt.Fprintf(&sb, `<h4><a class="title">%s</a></h4>`, html.EscapeString(c.name))
			}
		}
		if c.desc != "" {
			fmt.Fprintf(&sb, `<p class="description">%s</p>`, html.EscapeString(c.desc))
		}
		sb.WriteString("</div></div></div>\n")
	}
	sb.WriteString("</div>\n")
	switch next {
	case "":
	case "disabled":
		sb.WriteString(`<ul class="pagination"><li class="active"><a href="#">1</a></li><li class="page-item disabled"><a href="#">»</a></li></ul>`)
	default:
		fmt.Fprintf(&sb, `<ul class="pagination"><li class="active"><a href="#">1</a></li><li><a href="%s">»</a></li></ul>`, next)
	}
	sb.WriteString("</body></html>")
	s.pages[shopHost+path] = sb.String()
}

func (s *site) detail(path string, d detail) {
	var sb strings.Builder
	sb.WriteString(`<html><body><div class="container"><div class="caption">`)
	if d.price != "" {
		fmt.Fprintf(&sb, `<h4 class="pull-right price">%s</h4>`, html.EscapeString(d.price))
	}
	if d.name != "" {
		fmt.Fprintf(&sb, `<h4>%s</h4>`, html.EscapeString(d.name))
	}
	if d.desc != "" {
		fmt.Fprintf(&sb, `<p class="description">%s</p>`, html.EscapeString(d.desc))
	}
	sb.WriteString("</div></div></body></html>")
	s.pages[shopHost+path] = sb.String()
}

// numbered returns n valid cards named "<prefix> <i>", starting at from.
func numbered(prefix string, from, n int) []card {
	cards := make([]card, 0, n)
	for i := from; i < from+n; i++ {
		cards = append(cards, card{
			name:  fmt.Sprintf("%s %d", prefix, i),
			price: fmt.Sprintf("$%d.00", i*100),
			desc:  fmt.Sprintf("description %d", i),
			href:  fmt.Sprintf("/product/%d", i),
		})
	}
	return cards
}

// -- Surfaces --

// recordingSurface counts clicks and can pretend pages never change.
type recordingSurface struct {
	*browser.StaticSurface
	clicks     int
	neverStale bool
}

func (r *recordingSurface) Click(ctx context.Context, el collector.Element) error {
	r.clicks++
	return r.StaticSurface.Click(ctx, el)
}

func (r *recordingSurface) IsStale(ctx context.Context, el collector.Element) bool {
	if r.neverStale {
		return false
	}
	return r.StaticSurface.IsStale(ctx, el)
}

// pinnedSurface refuses to switch to any view other than the one it was
// created on.
type pinnedSurface struct {
	*recordingSurface
	home string
}

func (p *pinnedSurface) SwitchTo(ctx context.Context, view string) error {
	if view != p.home {
		return fmt.Errorf("cannot activate view %q", view)
	}
	return p.recordingSurface.SwitchTo(ctx, view)
}

// open navigates a fresh surface to path.
func (s *site) open(t *testing.T, path string) *recordingSurface {
	t.Helper()
	surface := &recordingSurface{StaticSurface: browser.NewStaticSurface(browser.FetcherFunc(s.fetch))}
	surface.Interval = time.Millisecond
	require.NoError(t, surface.Navigate(context.Background(), shopHost+path))
	return surface
}

func fastOptions() collector.Options {
	return collector.Options{
		Layout:         collector.DefaultLayout(),
		CardWait:       50 * time.Millisecond,
		TransitionWait: 50 * time.Millisecond,
		DetailWait:     50 * time.Millisecond,
	}
}

func names(products []collector.Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.Name
	}
	return out
}
