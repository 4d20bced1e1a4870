package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopcrawl/internal/collector"
)

func pagesFetcher(pages map[string]string) FetcherFunc {
	return func(_ context.Context, raw string) (*goquery.Document, error) {
		body, ok := pages[raw]
		if !ok {
			return nil, fmt.Errorf("not found: %s", raw)
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
		if err != nil {
			return nil, err
		}
		doc.Url, _ = url.Parse(raw)
		return doc, nil
	}
}

var staticPages = map[string]string{
	"http://shop.test/list": `<html><body>
		<div class="item"><span class="p">1</span><a class="link" href="/detail/1">One</a></div>
		<div class="item"><span class="q">2</span><a class="link" href="detail/2">Two</a></div>
		<a class="next" href="/list2">next</a>
		<a class="hash" href="#">hash</a>
		<a class="js" href="javascript:void(0)">js</a>
	</body></html>`,
	"http://shop.test/list2":    `<html><body><div class="item">Three</div></body></html>`,
	"http://shop.test/detail/1": `<html><body><h1>Detail One</h1></body></html>`,
}

func newTestSurface(t *testing.T) *StaticSurface {
	t.Helper()
	s := NewStaticSurface(pagesFetcher(staticPages))
	s.Interval = time.Millisecond
	require.NoError(t, s.Navigate(context.Background(), "http://shop.test/list"))
	return s
}

func TestStaticSurface_FindAllFallback(t *testing.T) {
	ctx := context.Background()
	s := newTestSurface(t)

	items, err := s.FindAll(ctx, nil, []string{"div.missing", "div.item"})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	none, err := s.FindAll(ctx, nil, []string{"div.missing"})
	require.NoError(t, err)
	assert.Empty(t, none)

	// The first selector that matches anything wins, even if a later one
	// would match more.
	spans, err := s.FindAll(ctx, items[0], []string{"span.p", "span"})
	require.NoError(t, err)
	require.Len(t, spans, 1)
	text, err := s.Text(ctx, spans[0])
	require.NoError(t, err)
	assert.Equal(t, "1", text)

	el, ok := s.FindFirst(ctx, items[1], []string{"span.p", "span.q"})
	require.True(t, ok)
	text, err = s.Text(ctx, el)
	require.NoError(t, err)
	assert.Equal(t, "2", text)

	_, err = s.FindAll(ctx, nil, []string{"div["})
	assert.Error(t, err)
}

func TestStaticSurface_AttributeResolvesHref(t *testing.T) {
	ctx := context.Background()
	s := newTestSurface(t)

	links, err := s.FindAll(ctx, nil, []string{"a.link"})
	require.NoError(t, err)
	require.Len(t, links, 2)

	href, ok, err := s.Attribute(ctx, links[0], "href")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "http://shop.test/detail/1", href)

	href, _, _ = s.Attribute(ctx, links[1], "href")
	assert.Equal(t, "http://shop.test/detail/2", href)

	class, ok, err := s.Attribute(ctx, links[0], "class")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "link", class)

	_, ok, err = s.Attribute(ctx, links[0], "data-missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStaticSurface_ClickMakesElementsStale(t *testing.T) {
	ctx := context.Background()
	s := newTestSurface(t)

	items, err := s.FindAll(ctx, nil, []string{"div.item"})
	require.NoError(t, err)
	anchor := items[0]
	assert.False(t, s.IsStale(ctx, anchor))

	next, ok := s.FindFirst(ctx, nil, []string{"a.next"})
	require.True(t, ok)
	require.NoError(t, s.Click(ctx, next))

	assert.True(t, s.IsStale(ctx, anchor))
	_, err = s.Text(ctx, anchor)
	assert.True(t, errors.Is(err, ErrStaleElement))

	items, err = s.FindAll(ctx, nil, []string{"div.item"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	text, _ := s.Text(ctx, items[0])
	assert.Equal(t, "Three", text)
}

func TestStaticSurface_ClickRejectsNonLinks(t *testing.T) {
	ctx := context.Background()
	s := newTestSurface(t)

	for _, sel := range []string{"a.hash", "a.js", "div.item"} {
		el, ok := s.FindFirst(ctx, nil, []string{sel})
		require.True(t, ok, sel)
		assert.Error(t, s.Click(ctx, el), sel)
		assert.False(t, s.IsStale(ctx, el), sel)
	}
}

func TestStaticSurface_Views(t *testing.T) {
	ctx := context.Background()
	s := newTestSurface(t)
	original := s.CurrentView()
	items, _ := s.FindAll(ctx, nil, []string{"div.item"})

	view, err := s.OpenInNewView(ctx, "http://shop.test/detail/1")
	require.NoError(t, err)
	assert.NotEqual(t, original, view)
	assert.Equal(t, original, s.CurrentView(), "opening does not switch")
	assert.Equal(t, 2, s.ViewCount())

	require.NoError(t, s.SwitchTo(ctx, view))
	h1, ok := s.FindFirst(ctx, nil, []string{"h1"})
	require.True(t, ok)
	text, _ := s.Text(ctx, h1)
	assert.Equal(t, "Detail One", text)

	require.NoError(t, s.CloseCurrentView(ctx))
	assert.Equal(t, "", s.CurrentView())
	assert.True(t, s.IsStale(ctx, h1))
	assert.Error(t, s.SwitchTo(ctx, view))

	require.NoError(t, s.SwitchTo(ctx, original))
	assert.Equal(t, 1, s.ViewCount())
	assert.False(t, s.IsStale(ctx, items[0]), "other views are untouched")
}

func TestStaticSurface_CloseViewByHandle(t *testing.T) {
	ctx := context.Background()
	s := newTestSurface(t)
	original := s.CurrentView()

	view, err := s.OpenInNewView(ctx, "http://shop.test/detail/1")
	require.NoError(t, err)

	require.NoError(t, s.CloseView(ctx, view))
	assert.Equal(t, original, s.CurrentView(), "closing another view keeps the current one")
	assert.Equal(t, 1, s.ViewCount())
	assert.Error(t, s.CloseView(ctx, view))
}

func TestStaticSurface_FailedLoadLeavesEmptyView(t *testing.T) {
	ctx := context.Background()
	s := newTestSurface(t)

	view, err := s.OpenInNewView(ctx, "http://shop.test/missing")
	require.NoError(t, err)
	require.NoError(t, s.SwitchTo(ctx, view))

	found, err := s.FindAll(ctx, nil, []string{"body"})
	require.NoError(t, err)
	assert.Empty(t, found)

	err = s.WaitUntil(ctx, 20*time.Millisecond, func(ctx context.Context) bool {
		_, ok := s.FindFirst(ctx, nil, []string{"body"})
		return ok
	})
	assert.True(t, errors.Is(err, collector.ErrWaitTimeout))
}

func TestPollUntil(t *testing.T) {
	t.Run("returns once the condition holds", func(t *testing.T) {
		calls := 0
		err := pollUntil(context.Background(), time.Second, time.Millisecond, func(context.Context) bool {
			calls++
			return calls == 3
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("times out", func(t *testing.T) {
		err := pollUntil(context.Background(), 10*time.Millisecond, time.Millisecond, func(context.Context) bool {
			return false
		})
		assert.True(t, errors.Is(err, collector.ErrWaitTimeout))
	})

	t.Run("parent cancellation wins", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := pollUntil(ctx, time.Second, time.Millisecond, func(context.Context) bool {
			return false
		})
		assert.True(t, errors.Is(err, context.Canceled))
		assert.False(t, errors.Is(err, collector.ErrWaitTimeout))
	})
}
