// Package cache stores fetched upstream pages so repeated lookups of the same
// search or listing page do not hit the site again.
package cache

import (
	"bytes"
	"context"
	"time"
)

// Page is an upstream HTML page as it was fetched.
type Page struct {
	// URL is the locator the page was requested with. It is the cache key.
	URL string
	// FinalURL is where the page was served from after redirects.
	FinalURL  string
	Body      []byte
	FetchedAt time.Time
}

// Reader returns a reader over the page body.
func (p Page) Reader() *bytes.Reader {
	return bytes.NewReader(p.Body)
}

// Age reports how long ago the page was fetched.
func (p Page) Age(now time.Time) time.Duration {
	return now.Sub(p.FetchedAt)
}

// Logger receives errors from backends that cannot return them to the caller.
type Logger interface {
	Error(msg string, err error)
}

// Store holds pages keyed by their requested URL. Stores are safe for concurrent use.
// Backend failures are reported to the Logger and behave like misses.
type Store interface {
	Get(ctx context.Context, url string) (Page, bool)
	Put(ctx context.Context, page Page)
	// Forget drops a page, typically one whose markup could not be extracted.
	Forget(ctx context.Context, url string)
	Len() int
	Close() error
}
