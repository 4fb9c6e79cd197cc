// Package cache keeps report details and dropdown lookups in Redis and
// provides the per-report save lock.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"prereport-service/internal/common/database"
	"prereport-service/internal/common/logger"
	"prereport-service/internal/common/metrics"
	"prereport-service/internal/models"
)

const (
	keyPrefix = "prereport:"

	// outlives any single detail read
	detailGenerationTTL = 24 * time.Hour
)

func DetailKey(reportID int64) string { return fmt.Sprintf("%sdetail:%d", keyPrefix, reportID) }

func detailGenerationKey(reportID int64) string {
	return fmt.Sprintf("%sdetail-gen:%d", keyPrefix, reportID)
}

func ClientsKey() string { return keyPrefix + "clients" }

func ProductsKey(clientID int64) string { return fmt.Sprintf("%sproducts:%d", keyPrefix, clientID) }

// Cache is nil-safe: a nil *Cache disables caching and always calls the loader.
type Cache struct {
	rdb       redis.Cmdable
	detailTTL time.Duration
	lookupTTL time.Duration
	logger    logger.Logger
}

func New(rdb redis.Cmdable, detailTTL, lookupTTL time.Duration, log logger.Logger) *Cache {
	return &Cache{
		rdb:       rdb,
		detailTTL: detailTTL,
		lookupTTL: lookupTTL,
		logger:    log.WithFields(map[string]interface{}{"component": "cache"}),
	}
}

// Detail returns the cached report detail, if any.
func (c *Cache) Detail(ctx context.Context, reportID int64) (*models.ReportDetail, bool) {
	if c == nil {
		return nil, false
	}
	var detail models.ReportDetail
	if !c.get(ctx, "detail", DetailKey(reportID), &detail) {
		return nil, false
	}
	return &detail, true
}

// DetailOrLoad is the cache-aside read for report details. The loaded detail
// is written back only when no InvalidateDetail ran since the load started,
// so a read racing a mutation never caches the pre-mutation state.
func (c *Cache) DetailOrLoad(ctx context.Context, reportID int64, load func(context.Context) (*models.ReportDetail, error)) (*models.ReportDetail, error) {
	if c == nil {
		return load(ctx)
	}
	if detail, ok := c.Detail(ctx, reportID); ok {
		return detail, nil
	}

	gen, genErr := c.rdb.Get(ctx, detailGenerationKey(reportID)).Result()
	if genErr != nil && genErr != redis.Nil {
		c.logger.Warn("cache read failed", map[string]interface{}{"key": detailGenerationKey(reportID), "error": genErr})
	}

	detail, err := load(ctx)
	if err != nil {
		return nil, err
	}
	if genErr == nil || genErr == redis.Nil {
		c.storeDetailIfCurrent(ctx, detail, gen)
	}
	return detail, nil
}

// StoreDetail caches a detail unconditionally. Only call it while holding
// the report's save lock.
func (c *Cache) StoreDetail(ctx context.Context, detail *models.ReportDetail) {
	if c == nil || detail == nil || detail.PreReport == nil {
		return
	}
	c.set(ctx, DetailKey(detail.PreReport.ID), detail, c.detailTTL)
}

var storeIfCurrentScript = redis.NewScript(`
local gen = redis.call("GET", KEYS[1])
if gen == false then gen = "" end
if gen ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
return 1
`)

func (c *Cache) storeDetailIfCurrent(ctx context.Context, detail *models.ReportDetail, gen string) {
	if detail == nil || detail.PreReport == nil {
		return
	}
	id := detail.PreReport.ID
	data, err := json.Marshal(detail)
	if err != nil {
		c.logger.Warn("cache encode failed", map[string]interface{}{"key": DetailKey(id), "error": err})
		return
	}
	keys := []string{detailGenerationKey(id), DetailKey(id)}
	stored, err := storeIfCurrentScript.Run(ctx, c.rdb, keys, gen, data, c.detailTTL.Milliseconds()).Int()
	if err != nil {
		c.logger.Warn("cache write failed", map[string]interface{}{"key": DetailKey(id), "error": err})
		return
	}
	if stored == 0 {
		c.logger.Debug("skipped stale detail write-back", map[string]interface{}{"reportId": id})
	}
}

// InvalidateDetail drops the cached detail after any mutation of the report
// and bumps its generation so in-flight reads do not write it back.
func (c *Cache) InvalidateDetail(ctx context.Context, reportID int64) {
	if c == nil {
		return
	}
	genKey := detailGenerationKey(reportID)
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, DetailKey(reportID))
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, detailGenerationTTL)
		return nil
	})
	if err != nil {
		c.logger.Warn("failed to invalidate report detail", map[string]interface{}{
			"reportId": reportID,
			"error":    err,
		})
	}
}

func (c *Cache) Clients(ctx context.Context, load func(context.Context) ([]models.Client, error)) ([]models.Client, error) {
	if c == nil {
		return load(ctx)
	}
	return GetOrLoad(ctx, c, "clients", ClientsKey(), c.lookupTTL, load)
}

func (c *Cache) Products(ctx context.Context, clientID int64, load func(context.Context) ([]models.Product, error)) ([]models.Product, error) {
	if c == nil {
		return load(ctx)
	}
	return GetOrLoad(ctx, c, "products", ProductsKey(clientID), c.lookupTTL, load)
}

// InvalidateLookups removes the client list and every product list.
func (c *Cache) InvalidateLookups(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if err := c.rdb.Del(ctx, ClientsKey()).Err(); err != nil {
		return fmt.Errorf("invalidate clients: %w", err)
	}
	if _, err := database.DeletePattern(ctx, c.rdb, keyPrefix+"products:*"); err != nil {
		return err
	}
	return nil
}

// Redis exposes the underlying client for other cache-aside users.
func (c *Cache) Redis() redis.Cmdable {
	if c == nil {
		return nil
	}
	return c.rdb
}

// GetOrLoad is a cache-aside read. Redis failures fall through to load and
// are only logged.
func GetOrLoad[T any](ctx context.Context, c *Cache, name, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	if c == nil {
		return load(ctx)
	}
	var cached T
	if c.get(ctx, name, key, &cached) {
		return cached, nil
	}

	value, err := load(ctx)
	if err != nil {
		return value, err
	}
	c.set(ctx, key, value, ttl)
	return value, nil
}

func (c *Cache) get(ctx context.Context, name, key string, dest interface{}) bool {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("cache read failed", map[string]interface{}{"key": key, "error": err})
		}
		metrics.CacheRequestsTotal.WithLabelValues(name, "miss").Inc()
		return false
	}
	if err := json.Unmarshal(val, dest); err != nil {
		c.logger.Warn("discarding undecodable cache entry", map[string]interface{}{"key": key, "error": err})
		metrics.CacheRequestsTotal.WithLabelValues(name, "miss").Inc()
		return false
	}
	metrics.CacheRequestsTotal.WithLabelValues(name, "hit").Inc()
	return true
}

func (c *Cache) set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache encode failed", map[string]interface{}{"key": key, "error": err})
		return
	}
	if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", map[string]interface{}{"key": key, "error": err})
	}
}
