package redisdb

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pdfbot/internal/domain/kb"
	applog "pdfbot/internal/platform/log"
)

// RetrievalCache 检索结果 Redis 缓存。key 按 kb_id 分前缀，
// 索引重建后按 kb_id 整体失效，缓存绝不跨知识库串结果。
type RetrievalCache struct {
	redis  *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRetrievalCache 创建检索缓存
func NewRetrievalCache(rdb *redis.Client, ttlSeconds int) *RetrievalCache {
	ttl := 5 * time.Minute
	if ttlSeconds > 0 {
		ttl = time.Duration(ttlSeconds) * time.Second
	}
	return &RetrievalCache{
		redis:  rdb,
		ttl:    ttl,
		prefix: "kb:cache:",
	}
}

// Get 从缓存获取检索结果
func (c *RetrievalCache) Get(ctx context.Context, kbID, query string, topK int) ([]kb.RetrievedChunk, bool) {
	key := c.cacheKey(kbID, query, topK)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}

	var results []kb.RetrievedChunk
	if err := json.Unmarshal(data, &results); err != nil {
		applog.Warn("[KB/Cache] Failed to unmarshal cached result", "error", err)
		return nil, false
	}

	applog.Debug("[KB/Cache] Hit", "key", key)
	return results, true
}

// Set 写入检索结果到缓存
func (c *RetrievalCache) Set(ctx context.Context, kbID, query string, topK int, results []kb.RetrievedChunk) {
	key := c.cacheKey(kbID, query, topK)
	data, err := json.Marshal(results)
	if err != nil {
		return
	}

	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		applog.Warn("[KB/Cache] Failed to set cache", "key", key, "error", err)
	}
}

// InvalidateKB 清除某个知识库的所有缓存（索引重建后调用）
func (c *RetrievalCache) InvalidateKB(ctx context.Context, kbID string) {
	pattern := c.prefix + kbID + ":*"
	iter := c.redis.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if len(keys) > 0 {
		c.redis.Del(ctx, keys...)
		applog.Info("[KB/Cache] Invalidated", "kb_id", kbID, "keys_deleted", len(keys))
	}
}

// cacheKey 生成缓存 key = <prefix><kbID>:hash(query|topK)
func (c *RetrievalCache) cacheKey(kbID, query string, topK int) string {
	raw := fmt.Sprintf("%s|%d", query, topK)
	hash := sha256.Sum256([]byte(raw))
	return c.prefix + kbID + ":" + fmt.Sprintf("%x", hash[:12])
}
