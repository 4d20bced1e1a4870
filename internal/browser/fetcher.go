package browser

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/brotli"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// HTTPConfig controls the plain HTTP page fetcher.
type HTTPConfig struct {
	ProxyURL  string
	Timeout   time.Duration
	UserAgent string
	// RequestsPerSecond throttles fetches; 0 disables throttling.
	RequestsPerSecond float64
	// RespectRobots refuses URLs that the host's robots.txt disallows.
	RespectRobots bool
}

// HTTPFetcher fetches documents over HTTP and decodes them to UTF-8.
type HTTPFetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
	robots    *robotsGate
}

var _ PageFetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates an HTTPFetcher.
func NewHTTPFetcher(cfg HTTPConfig) (*HTTPFetcher, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.ProxyURL != "" {
		proxy, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxy)
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	f := &HTTPFetcher{
		client:    &http.Client{Transport: transport, Timeout: cfg.Timeout},
		limiter:   limiter,
		userAgent: ua,
	}
	if cfg.RespectRobots {
		f.robots = newRobotsGate(f.client, ua)
	}
	return f, nil
}

// Fetch GETs rawURL and parses the body.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*goquery.Document, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if f.robots != nil && !f.robots.Allowed(ctx, target) {
		return nil, fmt.Errorf("%s: %w", rawURL, ErrDisallowed)
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	decoded, err := decodeBody(resp)
	if err != nil {
		return nil, err
	}
	defer decoded.Close()

	body, err := charset.NewReader(decoded, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("failed to decode body: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Url = resp.Request.URL
	return doc, nil
}

// decodeBody undoes the Content-Encoding. Setting Accept-Encoding by hand
// turns off the transport's transparent gzip handling.
func decodeBody(resp *http.Response) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		return gz, nil
	case "br":
		return io.NopCloser(brotli.NewReader(resp.Body)), nil
	case "deflate":
		return flate.NewReader(resp.Body), nil
	default:
		return io.NopCloser(resp.Body), nil
	}
}

// CloseIdleConnections releases pooled connections.
func (f *HTTPFetcher) CloseIdleConnections() {
	f.client.CloseIdleConnections()
}
