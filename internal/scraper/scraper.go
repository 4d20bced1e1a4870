package scraper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"shopcrawl/internal/collector"
)

type Scraper interface {
	Name() string
	Scrape(ctx context.Context, target string, opts Options) (Content, error)
}

type Content interface {
	Products() []collector.Product
	ToHTML() (string, error)
	ToText() (string, error)
	ToMarkdown() (string, error)
	ToJSON() ([]byte, error)
	ToCSV() (string, error)
	ToTSV() (string, error)
}

// Engine selects the Browsing Surface implementation.
type Engine string

const (
	EngineRod  Engine = "rod"  // Chrome through go-rod
	EngineHTTP Engine = "http" // plain HTTP, no scripts
)

type Options struct {
	Max      int
	Deep     bool
	MaxPages int // <= 0 for no limit

	Engine    Engine
	ShowUI    bool
	Stealth   bool
	NoSandbox bool
	ProxyURL  string // --proxy flag or SHOPCRAWL_PROXY env var

	Timeout           time.Duration // initial navigation
	CardWait          time.Duration
	TransitionWait    time.Duration
	DetailWait        time.Duration
	RequestsPerSecond float64 // http engine only
	RespectRobots     bool    // http engine only

	Layout collector.Layout

	// RunTimestamp is appended to every row when non-empty.
	RunTimestamp string

	Logger *zap.Logger
}
