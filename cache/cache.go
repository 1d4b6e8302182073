// Package cache remembers identification results in redis, keyed by image
// checksum, so re-ingesting an archive only decodes new images.
package cache

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/paleotronic/diskprobe/disk"
	"github.com/paleotronic/diskprobe/loggy"
	"github.com/paleotronic/diskprobe/report"
)

const keyPrefix = "diskprobe:id:"

type Config struct {
	RedisURL string // redis://<user>:<password>@<host>:<port>/<db>
	TTL      time.Duration
}

// Cache is safe for concurrent use. A nil *Cache always misses.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(ctx context.Context, cfg Config) (*Cache, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &Cache{client: client, ttl: cfg.TTL}, nil
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

// Variant captures everything besides the bytes that changes the result of
// identifying an image: the extension and the identify options.
func Variant(filename string, opts disk.Options) string {
	var sb strings.Builder
	sb.WriteString(strings.ToLower(filepath.Ext(filename)))
	sb.WriteByte(':')
	for _, so := range opts.OrderPreference {
		fmt.Fprintf(&sb, "%d,", so)
	}
	sb.WriteByte(':')
	for _, l := range opts.WidePreference {
		fmt.Fprintf(&sb, "%d,", l)
	}
	fmt.Fprintf(&sb, ":%t", opts.ScanProtected)
	return sb.String()
}

func key(sha, variant string) string {
	return keyPrefix + sha + ":" + variant
}

// Get returns the cached summary, with its path fields replaced by the
// caller's. Redis failures are logged and reported as a miss.
func (c *Cache) Get(ctx context.Context, fullpath, filename, sha, variant string) (*report.Disk, bool) {
	if c == nil {
		return nil, false
	}
	b, err := c.client.Get(ctx, key(sha, variant)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			loggy.Get(0).Errorf("cache: redis get: %v", err)
		}
		return nil, false
	}
	d, err := report.UnmarshalCBOR(b)
	if err != nil {
		loggy.Get(0).Errorf("cache: %s: %v", sha, err)
		return nil, false
	}
	d.FullPath = fullpath
	d.Filename = filename
	return d, true
}

// Put stores d. Errors are logged only.
func (c *Cache) Put(ctx context.Context, variant string, d *report.Disk) {
	if c == nil {
		return
	}
	b, err := report.MarshalCBOR(d)
	if err != nil {
		loggy.Get(0).Errorf("cache: encode %s: %v", d.SHA256, err)
		return
	}
	if err := c.client.Set(ctx, key(d.SHA256, variant), b, c.ttl).Err(); err != nil {
		loggy.Get(0).Errorf("cache: redis set: %v", err)
	}
}
