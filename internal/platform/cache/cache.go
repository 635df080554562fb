package cache

import (
	"sync"
	"time"
)

// DefaultTTL はエントリの既定の有効期間です。
const DefaultTTL = 30 * time.Second

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// Cache は有効期限付きのキー・バリューストアです。
// 期限切れは読み取り時に判定し、バックグラウンドでの削除は行いません。
type Cache[V any] struct {
	mu      sync.RWMutex
	ttl     time.Duration
	clock   Clock
	entries map[string]entry[V]
}

// New は Cache を生成します。ttl が 0 以下の場合は DefaultTTL を使用します。
func New[V any](ttl time.Duration, clock Clock) *Cache[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = realClock{}
	}
	return &Cache[V]{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[string]entry[V]),
	}
}

// Get は有効期間内のエントリが存在すればその値を返します。
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if c.clock.Now().Sub(e.storedAt) >= c.ttl {
		return zero, false
	}
	return e.value, true
}

// Set は現在時刻とともに値を保存し、既存のエントリを上書きします。
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, storedAt: c.clock.Now()}
}

// Clear はすべてのエントリを削除します。
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry[V])
}

// Len は期限切れを含む保持中のエントリ数を返します。
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// TTL は設定された有効期間を返します。
func (c *Cache[V]) TTL() time.Duration {
	return c.ttl
}
