package cache

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

func init() {
	Register("memory", newMemoryStore)
}

// memoryStore keeps pages in process with an expiring LRU.
type memoryStore struct {
	pages *lru.LRU[string, Page]
}

func newMemoryStore(opts Options) (Store, error) {
	var onEvict lru.EvictCallback[string, Page]
	if opts.OnEvict != nil {
		onEvict = func(url string, _ Page) { opts.OnEvict(url) }
	}
	return &memoryStore{pages: lru.NewLRU(opts.Size, onEvict, opts.TTL)}, nil
}

func (m *memoryStore) Get(_ context.Context, url string) (Page, bool) {
	return m.pages.Get(url)
}

func (m *memoryStore) Put(_ context.Context, page Page) {
	m.pages.Add(page.URL, page)
}

func (m *memoryStore) Forget(_ context.Context, url string) {
	m.pages.Remove(url)
}

func (m *memoryStore) Len() int {
	return m.pages.Len()
}

func (m *memoryStore) Close() error {
	return nil
}
