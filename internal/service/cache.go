// cache.go — LRU-кэш с TTL для неизменяемых записей бэкендов
// (PackageInfo, Segment). Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus-метрики кэшей.
var (
	cacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mg_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш.",
	}, []string{"cache"})
	cacheMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mg_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша.",
	}, []string{"cache"})
)

// Cache — LRU-кэш с автоматическим TTL.
// У каждого экземпляра шлюза собственный in-memory кэш.
type Cache[V any] struct {
	cache  *expirable.LRU[string, V]
	hits   prometheus.Counter
	misses prometheus.Counter
}

// NewCache создаёт именованный кэш.
// name — значение лейбла cache в метриках.
// maxSize — максимальное количество записей; ttl — время жизни записи после добавления.
func NewCache[V any](name string, maxSize int, ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		cache:  expirable.NewLRU[string, V](maxSize, nil, ttl),
		hits:   cacheHitsTotal.WithLabelValues(name),
		misses: cacheMissesTotal.WithLabelValues(name),
	}
}

// Get возвращает запись по ключу. Обновляет метрики hit/miss.
func (c *Cache[V]) Get(key string) (V, bool) {
	val, ok := c.cache.Get(key)
	if ok {
		c.hits.Inc()
		return val, true
	}
	c.misses.Inc()
	return val, false
}

// Set добавляет или обновляет запись.
func (c *Cache[V]) Set(key string, value V) {
	c.cache.Add(key, value)
}

// Delete удаляет запись (инвалидация).
func (c *Cache[V]) Delete(key string) {
	c.cache.Remove(key)
}

// Len возвращает количество записей.
func (c *Cache[V]) Len() int {
	return c.cache.Len()
}

// ownedKey — ключ кэша для записи, принадлежащей пользователю.
func ownedKey(userID, id string) string {
	return userID + "/" + id
}
