package cache

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"time"
)

// KeyType namespaces cache entries by what they hold.
type KeyType string

const (
	KeySession     KeyType = "session"
	KeyMemoryIndex KeyType = "memory_index"
	KeyContext     KeyType = "context"
	KeyEmbedding   KeyType = "embedding"
	KeySummary     KeyType = "summary"
)

// compressedSuffix marks entries stored gzip-compressed and base64-encoded.
const compressedSuffix = ":compressed"

// compressionFloor is the payload size above which compression kicks in.
const compressionFloor = 1024

// Key identifies a cache entry. Identifier may be empty for singleton
// per-user records such as the memory index.
type Key struct {
	Type       KeyType
	UserID     string
	Identifier string
}

// String renders the key without the cache prefix.
func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%s", k.Type, k.UserID, k.Identifier)
}

// Options control a single cache write or read.
type Options struct {
	// TTL overrides the cache default when > 0.
	TTL time.Duration

	// Sliding re-arms the TTL on every read that hits.
	Sliding bool

	// Compress enables gzip for payloads over the compression floor.
	Compress bool
}

// Config tunes a Cache.
type Config struct {
	// Prefix is prepended to every key, separating applications sharing
	// one backend.
	Prefix string

	// DefaultTTL applies when Options.TTL is zero.
	DefaultTTL time.Duration

	// MaxRetries is the number of retry attempts after the first failure.
	MaxRetries int

	// RetryBaseDelay seeds the exponential backoff.
	RetryBaseDelay time.Duration

	// OpTimeout bounds each backend operation.
	OpTimeout time.Duration
}

// DefaultConfig returns the standard cache tuning.
func DefaultConfig() Config {
	return Config{
		Prefix:         "memtide:",
		DefaultTTL:     time.Hour,
		MaxRetries:     3,
		RetryBaseDelay: 50 * time.Millisecond,
		OpTimeout:      2 * time.Second,
	}
}

// Cache wraps a Backend with namespacing, retry, compression, sliding
// TTLs, and metrics. Failures surface as ErrUnavailable after retries;
// callers fall back to recomputation, never block on the cache.
type Cache struct {
	backend Backend
	cfg     Config
	metrics *Metrics

	// sleep is swapped out by tests to avoid real backoff delays.
	sleep func(time.Duration)
}

// New creates a cache over the given backend.
func New(backend Backend, cfg Config) *Cache {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = time.Hour
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 50 * time.Millisecond
	}
	return &Cache{
		backend: backend,
		cfg:     cfg,
		metrics: NewMetrics(),
		sleep:   time.Sleep,
	}
}

// Metrics returns the live metrics for this cache.
func (c *Cache) Metrics() *Metrics {
	return c.metrics
}

func (c *Cache) fullKey(k Key) string {
	return c.cfg.Prefix + k.String()
}

func (c *Cache) ttl(opts Options) time.Duration {
	if opts.TTL > 0 {
		return opts.TTL
	}
	return c.cfg.DefaultTTL
}

// withRetry runs op with exponential backoff. Every attempt's latency is
// recorded whether it succeeds or not. ErrCacheMiss is terminal, not
// retried.
func (c *Cache) withRetry(ctx context.Context, op func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.cfg.RetryBaseDelay * time.Duration(1<<uint(attempt-1))
			c.sleep(delay)
		}

		opCtx := ctx
		var cancel context.CancelFunc
		if c.cfg.OpTimeout > 0 {
			opCtx, cancel = context.WithTimeout(ctx, c.cfg.OpTimeout)
		}

		start := time.Now()
		err = op(opCtx)
		c.metrics.recordLatency(time.Since(start))
		if cancel != nil {
			cancel()
		}

		if err == nil || err == ErrCacheMiss {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	encoded := make([]byte, base64.StdEncoding.EncodedLen(buf.Len()))
	base64.StdEncoding.Encode(encoded, buf.Bytes())
	return encoded, nil
}

func decompress(data []byte) ([]byte, error) {
	decoded := make([]byte, base64.StdEncoding.DecodedLen(len(data)))
	n, err := base64.StdEncoding.Decode(decoded, data)
	if err != nil {
		return nil, err
	}
	gz, err := gzip.NewReader(bytes.NewReader(decoded[:n]))
	if err != nil {
		return nil, err
	}
	defer gz.Close()
	return io.ReadAll(gz)
}

// Set writes value under key. Large payloads with Compress are gzipped
// and stored under the compressed key variant; the sibling variant is
// deleted so the two never coexist.
func (c *Cache) Set(ctx context.Context, key Key, value []byte, opts Options) error {
	full := c.fullKey(key)
	target, sibling := full, full+compressedSuffix
	payload := value

	if opts.Compress && len(value) > compressionFloor {
		compressed, err := compress(value)
		if err != nil {
			return err
		}
		payload = compressed
		target, sibling = full+compressedSuffix, full
	}

	err := c.withRetry(ctx, func(ctx context.Context) error {
		if err := c.backend.Set(ctx, target, payload, c.ttl(opts)); err != nil {
			return err
		}
		return c.backend.Delete(ctx, sibling)
	})
	if err != nil {
		c.metrics.recordSetError()
		return err
	}
	c.metrics.recordSet()
	return nil
}

// Get reads key, trying the compressed variant first. A payload under the
// compressed key that fails to decompress is returned as-is rather than
// failing the read. Returns nil with no error on miss.
func (c *Cache) Get(ctx context.Context, key Key, opts Options) ([]byte, error) {
	full := c.fullKey(key)

	var value []byte
	var hitKey string
	var compressed bool

	err := c.withRetry(ctx, func(ctx context.Context) error {
		if v, err := c.backend.Get(ctx, full+compressedSuffix); err == nil {
			value, hitKey, compressed = v, full+compressedSuffix, true
			return nil
		} else if err != ErrCacheMiss {
			return err
		}
		v, err := c.backend.Get(ctx, full)
		if err != nil {
			return err
		}
		value, hitKey = v, full
		return nil
	})
	if err == ErrCacheMiss {
		c.metrics.recordMiss()
		return nil, nil
	}
	if err != nil {
		c.metrics.recordGetError()
		return nil, err
	}

	if compressed {
		if plain, derr := decompress(value); derr == nil {
			value = plain
		}
	}

	if opts.Sliding {
		_ = c.withRetry(ctx, func(ctx context.Context) error {
			return c.backend.Expire(ctx, hitKey, c.ttl(opts))
		})
	}

	c.metrics.recordHit()
	return value, nil
}

// Delete removes both variants of key.
func (c *Cache) Delete(ctx context.Context, key Key) error {
	full := c.fullKey(key)
	err := c.withRetry(ctx, func(ctx context.Context) error {
		return c.backend.Delete(ctx, full, full+compressedSuffix)
	})
	if err != nil {
		return err
	}
	c.metrics.recordDelete()
	return nil
}

// InvalidateByPattern deletes every key matching the glob (relative to
// the cache prefix) and returns how many were removed.
func (c *Cache) InvalidateByPattern(ctx context.Context, pattern string) (int, error) {
	var keys []string
	err := c.withRetry(ctx, func(ctx context.Context) error {
		var err error
		keys, err = c.backend.Keys(ctx, c.cfg.Prefix+pattern)
		return err
	})
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	err = c.withRetry(ctx, func(ctx context.Context) error {
		return c.backend.Delete(ctx, keys...)
	})
	if err != nil {
		return 0, err
	}
	c.metrics.recordDeletes(len(keys))
	return len(keys), nil
}

// BatchGet issues one multi-get covering both key variants and attributes
// a hit or miss per requested key. Missing keys map to nil values.
func (c *Cache) BatchGet(ctx context.Context, keys []Key) (map[Key][]byte, error) {
	if len(keys) == 0 {
		return map[Key][]byte{}, nil
	}

	backendKeys := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		full := c.fullKey(k)
		backendKeys = append(backendKeys, full+compressedSuffix, full)
	}

	var vals [][]byte
	err := c.withRetry(ctx, func(ctx context.Context) error {
		var err error
		vals, err = c.backend.MGet(ctx, backendKeys...)
		return err
	})
	if err != nil {
		c.metrics.recordGetError()
		return nil, err
	}

	out := make(map[Key][]byte, len(keys))
	for i, k := range keys {
		compressed, plain := vals[i*2], vals[i*2+1]
		switch {
		case compressed != nil:
			if v, derr := decompress(compressed); derr == nil {
				out[k] = v
			} else {
				out[k] = compressed
			}
			c.metrics.recordHit()
		case plain != nil:
			out[k] = plain
			c.metrics.recordHit()
		default:
			out[k] = nil
			c.metrics.recordMiss()
		}
	}
	return out, nil
}

// BatchSet writes all entries in one pipelined backend round trip sharing
// one TTL. Per-entry compression follows the same rules as Set, including
// removal of the sibling key variant. The batch retries as a unit; on
// failure the caller treats the whole batch as unwritten.
func (c *Cache) BatchSet(ctx context.Context, entries map[Key][]byte, opts Options) error {
	if len(entries) == 0 {
		return nil
	}

	writes := make([]BatchWrite, 0, len(entries))
	for key, value := range entries {
		full := c.fullKey(key)
		w := BatchWrite{Key: full, Value: value, Stale: full + compressedSuffix}
		if opts.Compress && len(value) > compressionFloor {
			compressed, err := compress(value)
			if err != nil {
				return err
			}
			w = BatchWrite{Key: full + compressedSuffix, Value: compressed, Stale: full}
		}
		writes = append(writes, w)
	}

	err := c.withRetry(ctx, func(ctx context.Context) error {
		return c.backend.MSet(ctx, writes, c.ttl(opts))
	})
	if err != nil {
		c.metrics.recordSetError()
		return err
	}
	c.metrics.recordSets(len(writes))
	return nil
}

// Typed helpers for the semantic key types.

// SessionKey keys a session record.
func SessionKey(userID, sessionID string) Key {
	return Key{Type: KeySession, UserID: userID, Identifier: sessionID}
}

// MemoryIndexKey keys the singleton per-user memory index snapshot.
func MemoryIndexKey(userID string) Key {
	return Key{Type: KeyMemoryIndex, UserID: userID}
}

// ContextKey keys a computed context record.
func ContextKey(userID, contextID string) Key {
	return Key{Type: KeyContext, UserID: userID, Identifier: contextID}
}

// EmbeddingKey keys a cached embedding by content hash.
func EmbeddingKey(userID, contentHash string) Key {
	return Key{Type: KeyEmbedding, UserID: userID, Identifier: contentHash}
}

// SummaryKey keys a cached summary or search response.
func SummaryKey(userID, identifier string) Key {
	return Key{Type: KeySummary, UserID: userID, Identifier: identifier}
}
