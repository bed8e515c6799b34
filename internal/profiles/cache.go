package profiles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultCacheTTL is how long a fetched profile stays cached.
const DefaultCacheTTL = 10 * time.Minute

// Cache memoizes profiles by user ID.
type Cache interface {
	Get(ctx context.Context, userID uint) (*Profile, bool)
	Set(ctx context.Context, userID uint, profile *Profile)
	Delete(ctx context.Context, userID uint)
	Clear(ctx context.Context)
}

type memoryEntry struct {
	profile *Profile
	timer   *time.Timer
}

// MemoryCache keeps profiles in process. Each entry is evicted by its own
// one-shot timer once the TTL elapses.
type MemoryCache struct {
	ttl     time.Duration
	mu      sync.Mutex
	entries map[uint]*memoryEntry
}

// NewMemoryCache creates an in-process cache. A non-positive ttl selects DefaultCacheTTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &MemoryCache{
		ttl:     ttl,
		entries: make(map[uint]*memoryEntry),
	}
}

func (c *MemoryCache) Get(_ context.Context, userID uint) (*Profile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[userID]
	if !ok {
		return nil, false
	}
	return entry.profile.Clone(), true
}

func (c *MemoryCache) Set(_ context.Context, userID uint, profile *Profile) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[userID]; ok {
		old.timer.Stop()
	}

	entry := &memoryEntry{profile: profile.Clone()}
	entry.timer = time.AfterFunc(c.ttl, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		// The key may have been re-set since this timer was armed.
		if current, ok := c.entries[userID]; ok && current == entry {
			delete(c.entries, userID)
		}
	})
	c.entries[userID] = entry
}

func (c *MemoryCache) Delete(_ context.Context, userID uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[userID]; ok {
		entry.timer.Stop()
		delete(c.entries, userID)
	}
}

func (c *MemoryCache) Clear(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, entry := range c.entries {
		entry.timer.Stop()
		delete(c.entries, id)
	}
}

// Len returns the number of live entries.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// RedisCache shares cached profiles between processes. Redis handles expiry.
// Errors are logged and treated as cache misses.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

func (c *RedisCache) key(userID uint) string {
	return c.prefix + "profile:" + strconv.FormatUint(uint64(userID), 10)
}

func (c *RedisCache) Get(ctx context.Context, userID uint) (*Profile, bool) {
	raw, err := c.client.Get(ctx, c.key(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Profile cache read failed", slog.Uint64("userID", uint64(userID)), slog.Any("error", err))
		}
		return nil, false
	}
	cached := cachedProfile{Profile: &Profile{}}
	if err := json.Unmarshal(raw, &cached); err != nil {
		c.logger.Warn("Discarding undecodable cached profile", slog.Uint64("userID", uint64(userID)), slog.Any("error", err))
		return nil, false
	}
	cached.Profile.AvatarKey = cached.AvatarKey
	return cached.Profile, true
}

func (c *RedisCache) Set(ctx context.Context, userID uint, profile *Profile) {
	raw, err := json.Marshal(cachedProfile{Profile: profile, AvatarKey: profile.AvatarKey})
	if err != nil {
		c.logger.Warn("Failed to encode profile for cache", slog.Any("error", err))
		return
	}
	if err := c.client.Set(ctx, c.key(userID), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("Profile cache write failed", slog.Uint64("userID", uint64(userID)), slog.Any("error", err))
	}
}

func (c *RedisCache) Delete(ctx context.Context, userID uint) {
	if err := c.client.Del(ctx, c.key(userID)).Err(); err != nil {
		c.logger.Warn("Profile cache delete failed", slog.Uint64("userID", uint64(userID)), slog.Any("error", err))
	}
}

func (c *RedisCache) Clear(ctx context.Context) {
	iter := c.client.Scan(ctx, 0, c.prefix+"profile:*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("Profile cache scan failed", slog.Any("error", err))
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("Profile cache clear failed", slog.Any("error", err))
	}
}

// cachedProfile carries the avatar key, which the public JSON form omits.
type cachedProfile struct {
	*Profile
	AvatarKey string `json:"avatar_key"`
}

// NewCacheFromConfig picks Redis when an address is configured, otherwise memory.
func NewCacheFromConfig(addr, password string, db int, ttl time.Duration, logger *slog.Logger) (Cache, error) {
	if addr == "" {
		return NewMemoryCache(ttl), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to reach redis at %s: %w", addr, err)
	}
	logger.Info("Using redis profile cache", slog.String("addr", addr))
	return NewRedisCache(client, "profilehub:", ttl, logger), nil
}
