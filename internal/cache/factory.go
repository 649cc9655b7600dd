package cache

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Options configures a page store.
type Options struct {
	// Size bounds the number of pages kept.
	Size int
	TTL  time.Duration

	// OnEvict is called with the URL of each page the backend drops to respect
	// Size. The memory backend also reports expired and forgotten pages.
	OnEvict func(url string)
	Logger  Logger

	Redis RedisOptions

	// Group labels the scraper_cache_* metrics. An empty Group disables them.
	Group string
}

// RedisOptions locates the Redis or Valkey server of the redis backend.
type RedisOptions struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
}

// Backend creates a Store from Options.
type Backend func(opts Options) (Store, error)

var (
	mu       sync.RWMutex
	backends = make(map[string]Backend)
)

// Register makes a backend available under name. It panics on a duplicate name or a nil backend.
func Register(name string, b Backend) {
	mu.Lock()
	defer mu.Unlock()

	if b == nil {
		panic("cache: Register backend is nil")
	}
	if _, exists := backends[name]; exists {
		panic(fmt.Sprintf("cache: backend %q already registered", name))
	}
	backends[name] = b
}

// New creates a Store with the named backend ("memory" or "redis").
func New(name string, opts Options) (Store, error) {
	mu.RLock()
	b, ok := backends[name]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("cache: unknown backend %q (registered: %v)", name, Backends())
	}
	if opts.Size <= 0 {
		return nil, fmt.Errorf("cache: size must be positive, got %d", opts.Size)
	}
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}
	if opts.Group == "" {
		return b(opts)
	}

	group := opts.Group
	onEvict := opts.OnEvict
	opts.OnEvict = func(url string) {
		EvictionsTotal.WithLabelValues(group).Inc()
		if onEvict != nil {
			onEvict(url)
		}
	}

	inner, err := b(opts)
	if err != nil {
		return nil, err
	}
	return instrument(inner, group), nil
}

// Backends lists the registered backend names in order.
func Backends() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
