package businessflow

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/healthiphi/founder-pass/app/dto"
	"github.com/healthiphi/founder-pass/config"
	"github.com/healthiphi/founder-pass/utils"
	"github.com/redis/go-redis/v9"
)

// VaultStatusCache stores the rendered public vault status
type VaultStatusCache interface {
	Get(ctx context.Context) (*dto.VaultStatusResponse, bool)
	Set(ctx context.Context, status *dto.VaultStatusResponse)
	Invalidate(ctx context.Context)
}

// RedisVaultStatusCache keeps the status in redis. A nil client disables caching.
type RedisVaultStatusCache struct {
	rc  *redis.Client
	key string
	ttl time.Duration
}

// NewRedisVaultStatusCache creates a cache under the configured key prefix
func NewRedisVaultStatusCache(rc *redis.Client, cfg config.CacheConfig) *RedisVaultStatusCache {
	return &RedisVaultStatusCache{
		rc:  rc,
		key: redisKey(cfg, utils.VaultStatusCacheKey),
		ttl: cfg.VaultStatusTTL,
	}
}

func (c *RedisVaultStatusCache) Get(ctx context.Context) (*dto.VaultStatusResponse, bool) {
	if c == nil || c.rc == nil {
		return nil, false
	}
	bs, err := c.rc.Get(ctx, c.key).Bytes()
	if err != nil || len(bs) == 0 {
		return nil, false
	}
	var out dto.VaultStatusResponse
	if err := json.Unmarshal(bs, &out); err != nil {
		return nil, false
	}
	return &out, true
}

func (c *RedisVaultStatusCache) Set(ctx context.Context, status *dto.VaultStatusResponse) {
	if c == nil || c.rc == nil || status == nil || c.ttl <= 0 {
		return
	}
	bs, err := json.Marshal(status)
	if err != nil {
		return
	}
	if err := c.rc.Set(ctx, c.key, bs, c.ttl).Err(); err != nil {
		log.Printf("cache: failed to store vault status: %v", err)
	}
}

func (c *RedisVaultStatusCache) Invalidate(ctx context.Context) {
	if c == nil || c.rc == nil {
		return
	}
	if err := c.rc.Del(ctx, c.key).Err(); err != nil {
		log.Printf("cache: failed to invalidate vault status: %v", err)
	}
}

type noopVaultStatusCache struct{}

func (noopVaultStatusCache) Get(context.Context) (*dto.VaultStatusResponse, bool) { return nil, false }
func (noopVaultStatusCache) Set(context.Context, *dto.VaultStatusResponse) {}
func (noopVaultStatusCache) Invalidate(context.Context) {}
