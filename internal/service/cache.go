// RecordCache — LRU-кэш записей индекса с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/fileupload/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fu_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш записей файлов.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fu_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша записей файлов.",
	})
)

// RecordCache — кэш FileRecord по ID для скачивания.
// Нулевой размер отключает кэш: все методы становятся no-op.
type RecordCache struct {
	cache *expirable.LRU[int64, *model.FileRecord]
}

// NewRecordCache создаёт LRU-кэш с указанным максимальным размером и TTL.
// maxSize <= 0 — кэш отключён.
func NewRecordCache(maxSize int, ttl time.Duration) *RecordCache {
	if maxSize <= 0 {
		return &RecordCache{}
	}
	return &RecordCache{cache: expirable.NewLRU[int64, *model.FileRecord](maxSize, nil, ttl)}
}

// Get возвращает запись из кэша.
// Возвращает (запись, true) при hit или (nil, false) при miss.
func (c *RecordCache) Get(id int64) (*model.FileRecord, bool) {
	if c == nil || c.cache == nil {
		return nil, false
	}
	val, ok := c.cache.Get(id)
	if ok {
		cacheHitsTotal.Inc()
		return val, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет запись в кэше.
func (c *RecordCache) Set(record *model.FileRecord) {
	if c == nil || c.cache == nil {
		return
	}
	c.cache.Add(record.ID, record)
}

// Delete удаляет запись из кэша.
func (c *RecordCache) Delete(id int64) {
	if c == nil || c.cache == nil {
		return
	}
	c.cache.Remove(id)
}

// Len возвращает количество записей в кэше.
func (c *RecordCache) Len() int {
	if c == nil || c.cache == nil {
		return 0
	}
	return c.cache.Len()
}
