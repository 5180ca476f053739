package utils

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/patrickmn/go-cache"
)

// ResponseCache 接口响应缓存（公开资料、影评等）
type ResponseCache struct {
	c *cache.Cache
}

// NewResponseCache 创建响应缓存
func NewResponseCache(defaultTTL, cleanupInterval time.Duration) *ResponseCache {
	return &ResponseCache{c: cache.New(defaultTTL, cleanupInterval)}
}

// Get 获取缓存值
func (r *ResponseCache) Get(key string) (interface{}, bool) {
	return r.c.Get(key)
}

// Set 设置缓存值，使用默认过期时间
func (r *ResponseCache) Set(key string, value interface{}) {
	r.c.SetDefault(key, value)
}

// Delete 删除缓存
func (r *ResponseCache) Delete(key string) {
	r.c.Delete(key)
}

// Flush 清空所有缓存
func (r *ResponseCache) Flush() {
	r.c.Flush()
}

// CacheItem 包装实际的数据，增加过期时间
type CacheItem[T any] struct {
	Value     T
	ExpiredAt time.Time
}

// TTLCache 带过期时间的 LRU 缓存
type TTLCache[T any] struct {
	storage *lru.Cache[string, CacheItem[T]]
	ttl     time.Duration
}

// NewTTLCache size 是最大缓存条数，ttl 是数据有效期
func NewTTLCache[T any](size int, ttl time.Duration) *TTLCache[T] {
	// lru.New 是线程安全的，size <= 0 时才会返回错误
	if size <= 0 {
		size = 1
	}
	c, _ := lru.New[string, CacheItem[T]](size)
	return &TTLCache[T]{
		storage: c,
		ttl:     ttl,
	}
}

// Set 写入（已存在则覆盖）
func (c *TTLCache[T]) Set(key string, value T) {
	c.storage.Add(key, CacheItem[T]{
		Value:     value,
		ExpiredAt: time.Now().Add(c.ttl),
	})
}

// Get 读取，过期条目会被删除
func (c *TTLCache[T]) Get(key string) (T, bool) {
	var zero T
	item, ok := c.storage.Get(key)
	if !ok {
		return zero, false
	}
	if time.Now().After(item.ExpiredAt) {
		c.storage.Remove(key)
		return zero, false
	}
	return item.Value, true
}

// Delete 删除
func (c *TTLCache[T]) Delete(key string) {
	c.storage.Remove(key)
}

// Len 当前条数
func (c *TTLCache[T]) Len() int {
	return c.storage.Len()
}
