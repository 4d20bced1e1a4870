package browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/temoto/robotstxt"
)

// ErrDisallowed is returned when robots.txt forbids fetching a URL.
var ErrDisallowed = errors.New("disallowed by robots.txt")

// robotsGate caches robots.txt rules per host for the lifetime of a run.
type robotsGate struct {
	client    *http.Client
	userAgent string
	cache     map[string]*robotstxt.RobotsData
}

func newRobotsGate(client *http.Client, userAgent string) *robotsGate {
	return &robotsGate{
		client:    client,
		userAgent: userAgent,
		cache:     map[string]*robotstxt.RobotsData{},
	}
}

// Allowed reports whether target may be fetched. Unreachable or broken
// robots.txt files allow everything.
func (g *robotsGate) Allowed(ctx context.Context, target *url.URL) bool {
	if target == nil || !target.IsAbs() {
		return false
	}
	rules, err := g.rules(ctx, target)
	if err != nil {
		return true
	}
	return rules.TestAgent(target.EscapedPath(), g.userAgent)
}

func (g *robotsGate) rules(ctx context.Context, target *url.URL) (*robotstxt.RobotsData, error) {
	host := strings.ToLower(target.Host)
	if data, ok := g.cache[host]; ok {
		return data, nil
	}

	robotsURL := target.Scheme + "://" + target.Host + "/robots.txt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build robots request: %w", err)
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	g.cache[host] = data
	return data, nil
}
