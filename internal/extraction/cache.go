package extraction

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

// Cache stores decoded bill records keyed by content hash. Keys are
// derived from the raw image bytes plus the schema fingerprint, never
// from filenames or upload identifiers.
type Cache interface {
	// Get returns the cached record for a key, if present
	Get(key string) (*BillRecord, bool, error)

	// Put stores a record under a key
	Put(key string, record *BillRecord) error

	// Close closes the cache and releases resources
	Close() error
}

// cacheKey derives the content-addressed key for an image payload.
func cacheKey(imageData []byte) string {
	return fmt.Sprintf("%x:%s", sha256.Sum256(imageData), SchemaFingerprint)
}

// cachedExtractor wraps an Extractor with a Cache so byte-identical
// uploads never re-invoke the hosted model. Failures are not cached; a
// re-upload after a failed extraction retries the backend.
type cachedExtractor struct {
	inner Extractor
	cache Cache
}

// Cached wraps an extractor with a content-addressed result cache
func Cached(inner Extractor, cache Cache) Extractor {
	return &cachedExtractor{inner: inner, cache: cache}
}

func (c *cachedExtractor) ExtractBill(imageData []byte, contentType string) (*BillRecord, error) {
	if err := validateInput(imageData, contentType); err != nil {
		return nil, err
	}

	key := cacheKey(imageData)
	if record, ok, err := c.cache.Get(key); err != nil {
		slog.Warn("Cache lookup failed", "error", err)
	} else if ok {
		return record, nil
	}

	record, err := c.inner.ExtractBill(imageData, contentType)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Put(key, record); err != nil {
		slog.Warn("Cache store failed", "error", err)
	}
	return record, nil
}

func (c *cachedExtractor) Close() error {
	if err := c.cache.Close(); err != nil {
		slog.Warn("Closing cache", "error", err)
	}
	return c.inner.Close()
}

// MemoryCache is an in-process Cache that lives for the lifetime of the
// process. It is unbounded; entries are small and keyed by content hash,
// so it grows only with distinct images seen.
type MemoryCache struct {
	mu      sync.RWMutex
	records map[string]*BillRecord
}

// NewMemoryCache creates a new in-process cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{records: make(map[string]*BillRecord)}
}

func (m *MemoryCache) Get(key string) (*BillRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.records[key]
	if !ok {
		return nil, false, nil
	}
	return cloneRecord(record), true, nil
}

func (m *MemoryCache) Put(key string, record *BillRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[key] = cloneRecord(record)
	return nil
}

func (m *MemoryCache) Close() error {
	return nil
}

// cloneRecord copies a record so cached values cannot be mutated through
// a returned pointer.
func cloneRecord(record *BillRecord) *BillRecord {
	clone := *record
	if record.Items != nil {
		clone.Items = make([]LineItem, len(record.Items))
		copy(clone.Items, record.Items)
	}
	return &clone
}

const cacheBucketName = "extractions"

// BoltCache implements Cache using BoltDB, for operators who want the
// extraction cache to survive restarts.
type BoltCache struct {
	db *bbolt.DB
}

// NewBoltCache creates a new BoltDB-backed cache at the given path
func NewBoltCache(path string) (*BoltCache, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(cacheBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache bucket: %w", err)
	}

	return &BoltCache{db: db}, nil
}

func (b *BoltCache) Get(key string) (*BillRecord, bool, error) {
	var record *BillRecord
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(cacheBucketName)).Get([]byte(key))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &record)
	})
	if err != nil {
		return nil, false, fmt.Errorf("reading cached record: %w", err)
	}
	if record == nil {
		return nil, false, nil
	}
	return record, true, nil
}

func (b *BoltCache) Put(key string, record *BillRecord) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshaling record: %w", err)
		}
		return tx.Bucket([]byte(cacheBucketName)).Put([]byte(key), data)
	})
}

func (b *BoltCache) Close() error {
	return b.db.Close()
}
