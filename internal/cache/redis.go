package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "osscraper:"

func init() {
	Register("redis", newRedisStore)
}

// redisStore keeps each page under its own key with a server-side TTL:
//
//   - {prefix}page:{url} holds the encoded page and expires after TTL.
//   - {prefix}index is a sorted set of page keys scored by write time in ms.
//
// The index bounds the store to Size pages; the oldest written pages are
// dropped first. Members older than TTL are pruned on every Put.
type redisStore struct {
	client   *redis.Client
	ttl      time.Duration
	size     int
	onEvict  func(url string)
	logger   Logger
	pagePfx  string
	indexKey string
}

// putAndTrim stores a page and trims the index.
//
// KEYS[1] = page key, KEYS[2] = index
// ARGV[1] = encoded page, ARGV[2] = now in ms, ARGV[3] = TTL in ms, ARGV[4] = size
//
// Returns the page keys dropped to respect size.
var putAndTrim = redis.NewScript(`
local now = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

redis.call('SET', KEYS[1], ARGV[1], 'PX', ttl)
redis.call('ZADD', KEYS[2], now, KEYS[1])
redis.call('ZREMRANGEBYSCORE', KEYS[2], '-inf', '(' .. (now - ttl))

local dropped = {}
local over = redis.call('ZCARD', KEYS[2]) - tonumber(ARGV[4])
if over > 0 then
    local oldest = redis.call('ZPOPMIN', KEYS[2], over)
    for i = 1, #oldest, 2 do
        redis.call('DEL', oldest[i])
        table.insert(dropped, oldest[i])
    end
end
return dropped
`)

func newRedisStore(opts Options) (Store, error) {
	// PX rejects zero, and the script works in whole milliseconds.
	if opts.TTL < time.Millisecond {
		return nil, fmt.Errorf("redis store: ttl must be at least 1ms, got %s", opts.TTL)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Redis.Address,
		Password: opts.Redis.Password,
		DB:       opts.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := opts.Redis.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &redisStore{
		client:   client,
		ttl:      opts.TTL,
		size:     opts.Size,
		onEvict:  opts.OnEvict,
		logger:   opts.Logger,
		pagePfx:  prefix + "page:",
		indexKey: prefix + "index",
	}, nil
}

func (r *redisStore) logError(msg string, err error) {
	if r.logger != nil {
		r.logger.Error(msg, err)
	}
}

// bounded gives each call its own short deadline, detached from cancellation of ctx
// so a cancelled request still leaves the store consistent.
func bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
}

func (r *redisStore) Get(ctx context.Context, url string) (Page, bool) {
	ctx, cancel := bounded(ctx)
	defer cancel()

	data, err := r.client.Get(ctx, r.pagePfx+url).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logError("redis page store Get failed", err)
		}
		return Page{}, false
	}
	page, err := decodePage(url, data)
	if err != nil {
		r.logError("redis page store holds a malformed page", err)
		r.Forget(ctx, url)
		return Page{}, false
	}
	return page, true
}

func (r *redisStore) Put(ctx context.Context, page Page) {
	ctx, cancel := bounded(ctx)
	defer cancel()

	if page.FetchedAt.IsZero() {
		page.FetchedAt = time.Now()
	}
	data, err := encodePage(page)
	if err != nil {
		r.logError("redis page store failed to encode page", err)
		return
	}

	dropped, err := putAndTrim.Run(ctx, r.client, []string{r.pagePfx + page.URL, r.indexKey},
		data,
		strconv.FormatInt(time.Now().UnixMilli(), 10),
		strconv.FormatInt(r.ttl.Milliseconds(), 10),
		strconv.Itoa(r.size),
	).StringSlice()
	if err != nil {
		r.logError("redis page store Put failed", err)
		return
	}
	if r.onEvict != nil {
		for _, key := range dropped {
			r.onEvict(strings.TrimPrefix(key, r.pagePfx))
		}
	}
}

// Forget removes the page and its index entry in one transaction.
func (r *redisStore) Forget(ctx context.Context, url string) {
	ctx, cancel := bounded(ctx)
	defer cancel()

	key := r.pagePfx + url
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.ZRem(ctx, r.indexKey, key)
		return nil
	})
	if err != nil {
		r.logError("redis page store Forget failed", err)
	}
}

// Len counts index entries younger than TTL.
func (r *redisStore) Len() int {
	ctx, cancel := bounded(context.Background())
	defer cancel()

	since := time.Now().Add(-r.ttl).UnixMilli()
	n, err := r.client.ZCount(ctx, r.indexKey, strconv.FormatInt(since, 10), "+inf").Result()
	if err != nil {
		r.logError("redis page store Len failed", err)
		return 0
	}
	return int(n)
}

func (r *redisStore) Close() error {
	return r.client.Close()
}
