package utils

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/avolkov/blogcms/config"
)

// Listing and detail payloads are cached fully rendered, envelope included,
// so a hit can be written back byte for byte. Entries expire after an hour
// and every write path drops the affected prefixes rather than updating
// entries in place.
const pageCacheTTL = time.Hour

var (
	cacheClient *redis.Client
	cacheOnce   sync.Once
)

// redisCache returns the shared client. A dead redis is tolerated: every
// operation below treats a client error as a miss and the handlers fall
// through to the database.
func redisCache() *redis.Client {
	cacheOnce.Do(func() {
		cfg := config.Get()
		cacheClient = redis.NewClient(&redis.Options{
			Addr:         net.JoinHostPort(cfg.RedisHost, strconv.Itoa(cfg.RedisPort)),
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			DialTimeout:  3 * time.Second,
			ReadTimeout:  2 * time.Second,
			WriteTimeout: 2 * time.Second,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := cacheClient.Ping(ctx).Err(); err != nil && Sugar != nil {
			Sugar.Warnf("redis unreachable, serving without cache: %v", err)
		}
	})
	return cacheClient
}

// CachedPage returns the rendered response stored under key, if any.
func CachedPage(key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	b, err := redisCache().Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return b, true
}

// CachePage marshals v and stores it under key with the standard TTL.
func CachePage(key string, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := redisCache().Set(ctx, key, b, pageCacheTTL).Err(); err != nil && Sugar != nil {
		Sugar.Warnf("cache store failed key=%s err=%v", key, err)
	}
}

// DropCachedPages removes every cached entry under each given prefix. Deletion
// walks the keyspace with SCAN, bounded so a huge keyspace cannot stall a
// write request.
func DropCachedPages(prefixes ...string) {
	rc := redisCache()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	for _, prefix := range prefixes {
		var cursor uint64
		for round := 0; round < 10; round++ {
			keys, next, err := rc.Scan(ctx, cursor, prefix+"*", 1000).Result()
			if err != nil {
				break
			}
			if len(keys) > 0 {
				pipe := rc.Pipeline()
				for _, k := range keys {
					pipe.Del(ctx, k)
				}
				_, _ = pipe.Exec(ctx)
			}
			cursor = next
			if cursor == 0 {
				break
			}
		}
	}
}
