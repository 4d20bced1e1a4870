package collector

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// resolve returns the first element matched by selectors inside scope.
func (c *Collector) resolve(ctx context.Context, scope Element, selectors []string) (Element, bool) {
	if len(selectors) == 0 {
		return nil, false
	}
	return c.surface.FindFirst(ctx, scope, selectors)
}

// resolveText returns the trimmed text of the first match, or "" when
// nothing matches.
func (c *Collector) resolveText(ctx context.Context, scope Element, selectors []string) string {
	el, ok := c.resolve(ctx, scope, selectors)
	if !ok {
		return ""
	}
	return c.textOf(ctx, el)
}

func (c *Collector) textOf(ctx context.Context, el Element) string {
	text, err := c.surface.Text(ctx, el)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

// collectCards extracts cards in document order until acc is full.
func (c *Collector) collectCards(ctx context.Context, cards []Element, acc *Accumulator, deep bool) {
	for i, card := range cards {
		if acc.Full() {
			return
		}
		p, ok := c.extractCard(ctx, card, deep)
		if !ok {
			c.log.Debug("skipping card without name or price", zap.Int("card", i))
			continue
		}
		acc.Add(p)
	}
}

// extractCard reads one card. It reports false for cards that yield no
// product.
func (c *Collector) extractCard(ctx context.Context, card Element, deep bool) (Product, bool) {
	l := c.opts.Layout

	priceEl, hasPrice := c.resolve(ctx, card, l.Price)
	nameEl, hasName := c.resolve(ctx, card, l.Name)

	list := Product{Description: c.resolveText(ctx, card, l.Description)}
	if hasPrice {
		list.Price = c.textOf(ctx, priceEl)
	}
	if hasName {
		list.Name = c.textOf(ctx, nameEl)
	}

	if deep && hasName {
		href, ok, err := c.surface.Attribute(ctx, nameEl, "href")
		if err == nil && ok && href != "" {
			detail, err := c.fetchDetail(ctx, href)
			if err != nil {
				c.log.Warn("detail fetch failed, using listing fields",
					zap.String("url", href), zap.Error(err))
			}
			return detail.merge(list), true
		}
	}

	if !hasName || !hasPrice {
		return Product{}, false
	}
	return list, true
}

// fetchDetail opens url in a new view and reads it. The detail view is
// closed by handle and the view that was current on entry is restored,
// whether or not the read succeeded.
func (c *Collector) fetchDetail(ctx context.Context, url string) (p Product, err error) {
	original := c.surface.CurrentView()

	view, err := c.surface.OpenInNewView(ctx, url)
	if err != nil {
		if serr := c.surface.SwitchTo(ctx, original); serr != nil {
			c.log.Error("failed to restore view", zap.String("view", original), zap.Error(serr))
		}
		return Product{}, fmt.Errorf("failed to open detail view: %w", err)
	}
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)
		if cerr := c.surface.CloseView(cleanupCtx, view); cerr != nil {
			c.log.Warn("failed to close detail view", zap.String("view", view), zap.Error(cerr))
		}
		if serr := c.surface.SwitchTo(cleanupCtx, original); serr != nil {
			c.log.Error("failed to restore view", zap.String("view", original), zap.Error(serr))
			if err == nil {
				err = fmt.Errorf("failed to restore view: %w", serr)
			}
		}
	}()

	if err := c.surface.SwitchTo(ctx, view); err != nil {
		return Product{}, fmt.Errorf("failed to switch to detail view: %w", err)
	}

	l := c.opts.Layout
	if err := c.surface.WaitUntil(ctx, c.opts.DetailWait, func(ctx context.Context) bool {
		_, ok := c.resolve(ctx, nil, l.DetailRoot)
		return ok
	}); err != nil {
		return Product{}, fmt.Errorf("detail page did not load: %w", err)
	}

	return Product{
		Name:        c.cleanName(c.resolveText(ctx, nil, l.DetailName)),
		Price:       c.resolveText(ctx, nil, l.DetailPrice),
		Description: c.resolveText(ctx, nil, l.DetailDescription),
	}, nil
}

// cleanName drops names that are really site banners.
func (c *Collector) cleanName(name string) string {
	for _, b := range c.opts.Layout.Banners {
		if strings.EqualFold(name, strings.TrimSpace(b)) {
			return ""
		}
	}
	return name
}
