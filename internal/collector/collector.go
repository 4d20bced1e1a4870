package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Options configures a Collector. Zero durations fall back to the defaults.
type Options struct {
	Layout Layout

	CardWait       time.Duration // T1: first card on a listing page
	TransitionWait time.Duration // T2: previous page going stale after a click
	DetailWait     time.Duration // T3: detail view root content

	// MaxPages bounds the number of listing pages visited. Values <= 0 mean
	// no limit.
	MaxPages int

	Logger *zap.Logger
}

// Collector walks a paginated listing and turns its cards into products.
type Collector struct {
	surface Surface
	opts    Options
	log     *zap.Logger
}

// New creates a Collector driving s.
func New(s Surface, opts Options) *Collector {
	if opts.CardWait <= 0 {
		opts.CardWait = DefaultCardWait
	}
	if opts.TransitionWait <= 0 {
		opts.TransitionWait = DefaultTransitionWait
	}
	if opts.DetailWait <= 0 {
		opts.DetailWait = DefaultDetailWait
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Collector{surface: s, opts: opts, log: log.Named("collector")}
}

// Collect extracts up to max products starting from the listing page the
// surface currently shows. With deep set, every card that links to a detail
// page is enriched from that page.
//
// A nil error with fewer than max products means the catalog ran out. An
// error wrapping ErrPageLoad means a listing page never rendered any card.
func (c *Collector) Collect(ctx context.Context, max int, deep bool) ([]Product, error) {
	acc := NewAccumulator(max)
	if acc.Full() {
		return acc.Products(), nil
	}

	for page := 1; !acc.Full(); page++ {
		log := c.log.With(zap.Int("page", page))

		if err := c.waitForCards(ctx); err != nil {
			return nil, fmt.Errorf("page %d: %w: %w", page, ErrPageLoad, err)
		}

		cards, err := c.surface.FindAll(ctx, nil, c.opts.Layout.Cards)
		if err != nil || len(cards) == 0 {
			log.Warn("no cards on page after wait", zap.Error(err))
			break
		}
		anchor := cards[0]

		before := acc.Len()
		c.collectCards(ctx, cards, acc, deep)
		log.Info("page extracted",
			zap.Int("cards", len(cards)),
			zap.Int("added", acc.Len()-before),
			zap.Int("total", acc.Len()))

		if acc.Full() {
			break
		}
		if c.opts.MaxPages > 0 && page >= c.opts.MaxPages {
			log.Info("page limit reached", zap.Int("max_pages", c.opts.MaxPages))
			break
		}
		if !c.advance(ctx, log) {
			break
		}
		if err := c.surface.WaitUntil(ctx, c.opts.TransitionWait, func(ctx context.Context) bool {
			return c.surface.IsStale(ctx, anchor)
		}); err != nil {
			log.Info("pagination did not change the page", zap.Error(err))
			break
		}
	}

	return acc.Products(), nil
}

func (c *Collector) waitForCards(ctx context.Context) error {
	return c.surface.WaitUntil(ctx, c.opts.CardWait, func(ctx context.Context) bool {
		cards, err := c.surface.FindAll(ctx, nil, c.opts.Layout.Cards)
		return err == nil && len(cards) > 0
	})
}

// advance clicks the last pagination entry and reports whether a click was
// issued.
func (c *Collector) advance(ctx context.Context, log *zap.Logger) bool {
	l := c.opts.Layout
	pagination, ok := c.surface.FindFirst(ctx, nil, l.Pagination)
	if !ok {
		log.Info("no pagination control")
		return false
	}
	entries, err := c.surface.FindAll(ctx, pagination, l.PaginationEntry)
	if err != nil || len(entries) == 0 {
		log.Info("pagination control has no entries", zap.Error(err))
		return false
	}
	next := entries[len(entries)-1]
	class, _, _ := c.surface.Attribute(ctx, next, "class")
	if hasClass(class, "disabled") {
		log.Info("next page disabled")
		return false
	}
	link, ok := c.surface.FindFirst(ctx, next, l.PaginationLink)
	if !ok {
		log.Info("next page entry has no link")
		return false
	}
	if err := c.surface.Click(ctx, link); err != nil {
		log.Warn("failed to click next page", zap.Error(err))
		return false
	}
	return true
}

func hasClass(class, name string) bool {
	for _, f := range strings.Fields(class) {
		if f == name {
			return true
		}
	}
	return false
}
