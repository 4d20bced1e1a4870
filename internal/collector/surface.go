package collector

import (
	"context"
	"time"
)

// Element is an opaque handle to a node owned by a Surface.
type Element = any

// Surface is the browsing session the collector drives. Implementations are
// not safe for concurrent use; the collector is their only caller during a run.
//
// Selector lists are tried in order and the first selector with a match wins.
// A nil scope means the document of the current view.
type Surface interface {
	Navigate(ctx context.Context, url string) error
	FindAll(ctx context.Context, scope Element, selectors []string) ([]Element, error)
	FindFirst(ctx context.Context, scope Element, selectors []string) (Element, bool)
	Text(ctx context.Context, el Element) (string, error)
	// Attribute returns the attribute value; href values come back resolved
	// against the page URL.
	Attribute(ctx context.Context, el Element, name string) (string, bool, error)

	OpenInNewView(ctx context.Context, url string) (string, error)
	CurrentView() string
	SwitchTo(ctx context.Context, view string) error
	CloseCurrentView(ctx context.Context) error
	// CloseView closes view by handle. When view is current, no view is
	// current afterwards.
	CloseView(ctx context.Context, view string) error

	Click(ctx context.Context, el Element) error
	// IsStale reports whether el is no longer attached to the live page.
	IsStale(ctx context.Context, el Element) bool
	// WaitUntil polls cond until it holds, returning ErrWaitTimeout once
	// timeout elapses.
	WaitUntil(ctx context.Context, timeout time.Duration, cond func(context.Context) bool) error
}
