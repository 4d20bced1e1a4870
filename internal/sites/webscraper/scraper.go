package webscraper

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"shopcrawl/internal/browser"
	"shopcrawl/internal/collector"
	"shopcrawl/internal/scraper"
)

// DefaultURL is the first page of the laptop listing on the webscraper.io
// e-commerce test site.
const DefaultURL = "https://webscraper.io/test-sites/e-commerce/allinone/computers/laptops"

func init() {
	scraper.Register(&Scraper{})
}

// Scraper collects products from a paginated webscraper.io style catalog.
// Any catalog works once opts.Layout describes its markup.
type Scraper struct {
	// openSurface is replaced in tests.
	openSurface func(opts scraper.Options) (collector.Surface, func(), error)
}

func (s *Scraper) Name() string { return "webscraper" }

func (s *Scraper) Scrape(ctx context.Context, target string, opts scraper.Options) (scraper.Content, error) {
	if target == "" {
		target = DefaultURL
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("site", s.Name()), zap.String("url", target))

	if opts.Max <= 0 {
		log.Info("nothing to collect", zap.Int("max", opts.Max))
		return NewProductContent(target, nil, opts.RunTimestamp), nil
	}

	open := s.openSurface
	if open == nil {
		open = openSurface
	}
	surface, closeSurface, err := open(opts)
	if err != nil {
		return nil, err
	}
	defer closeSurface()

	navCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		navCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	log.Info("loading listing", zap.String("engine", string(opts.Engine)), zap.Bool("deep", opts.Deep))
	if err := surface.Navigate(navCtx, target); err != nil {
		return nil, fmt.Errorf("failed to load listing: %w", err)
	}

	c := collector.New(surface, collector.Options{
		Layout:         opts.Layout,
		CardWait:       opts.CardWait,
		TransitionWait: opts.TransitionWait,
		DetailWait:     opts.DetailWait,
		MaxPages:       opts.MaxPages,
		Logger:         log,
	})
	products, err := c.Collect(ctx, opts.Max, opts.Deep)
	if err != nil {
		return nil, fmt.Errorf("failed to collect products: %w", err)
	}
	log.Info("collection finished", zap.Int("products", len(products)))

	return NewProductContent(target, products, opts.RunTimestamp), nil
}

// openSurface builds the Browsing Surface for opts.Engine and returns its
// release function.
func openSurface(opts scraper.Options) (collector.Surface, func(), error) {
	switch opts.Engine {
	case scraper.EngineHTTP:
		f, err := browser.NewHTTPFetcher(browser.HTTPConfig{
			ProxyURL:          opts.ProxyURL,
			Timeout:           opts.Timeout,
			RequestsPerSecond: opts.RequestsPerSecond,
			RespectRobots:     opts.RespectRobots,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create http fetcher: %w", err)
		}
		return browser.NewStaticSurface(f), f.CloseIdleConnections, nil

	case scraper.EngineRod, "":
		b, err := browser.New(browser.Config{
			ProxyURL:  opts.ProxyURL,
			Headless:  !opts.ShowUI,
			Stealth:   opts.Stealth,
			NoSandbox: opts.NoSandbox,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create browser: %w", err)
		}
		surface, err := browser.NewRodSurface(b)
		if err != nil {
			b.Close()
			return nil, nil, err
		}
		return surface, func() {
			surface.Close()
			b.Close()
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown engine: %s", opts.Engine)
	}
}
