// Package cachedb implements the on-disk HTTP cache shared by every
// source's API-response and thumbnail caches: a key-to-bytes map
// backed by a single bbolt database file, with per-entry creation
// timestamps, pluggable compression, age-based eviction run once at
// open, and a get-or-set single-flight helper.
package cachedb

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

// externalFormatVersion is embedded in the database filename so that
// incompatible on-disk layouts can coexist rather than corrupt one
// another across upgrades.
const externalFormatVersion = 1

// internalFormatVersion is embedded in the bucket name for the same
// reason, one layer down.
const internalFormatVersion = 1

var bucketName = []byte(fmt.Sprintf("cache_v%d", internalFormatVersion))

// Cache is an on-disk key->byte-string map with a global max age.
type Cache struct {
	db         *bolt.DB
	compressor Compressor
	maxAge     time.Duration

	flightMu sync.Mutex
	flight   map[string]*sync.Mutex
}

// Dir returns the directory cache databases are stored under, creating
// it if necessary (the per-user XDG cache directory, per spec.md §6).
func Dir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(base, "covergrab")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// Path returns the deterministic database filename for a cache named
// name, embedding the external format version.
func Path(dir, name string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%02x.db", name, externalFormatVersion))
}

// New opens or creates the database file at path, runs maintenance
// (evicting entries older than maxAge and compacting if anything was
// removed), and returns the cache. An OpenError wraps unrecoverable
// corruption.
func New(path string, maxAge time.Duration, compressor Compressor) (*Cache, error) {
	db, err := bolt.Open(path, 0o644, &bolt.Options{Timeout: 10 * time.Second})
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	c := &Cache{
		db:         db,
		compressor: compressor,
		maxAge:     maxAge,
		flight:     make(map[string]*sync.Mutex),
	}
	if err := c.maintenance(); err != nil {
		db.Close()
		return nil, &OpenError{Path: path, Err: err}
	}
	return c, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error { return c.db.Close() }

// OpenError is returned by New when the database file can't be opened
// or is unrecoverably corrupt.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string { return fmt.Sprintf("cachedb: opening %q: %v", e.Path, e.Err) }
func (e *OpenError) Unwrap() error { return e.Err }

// entry is the raw on-disk representation: creation time plus the
// compressor's framed payload.
type entry struct {
	createdAt uint64
	payload   []byte
}

func encodeEntry(e entry) []byte {
	buf := make([]byte, 8+len(e.payload))
	binary.BigEndian.PutUint64(buf[:8], e.createdAt)
	copy(buf[8:], e.payload)
	return buf
}

func decodeEntry(b []byte) (entry, error) {
	if len(b) < 8 {
		return entry{}, fmt.Errorf("cachedb: entry too short (%d bytes)", len(b))
	}
	return entry{
		createdAt: binary.BigEndian.Uint64(b[:8]),
		payload:   append([]byte(nil), b[8:]...),
	}, nil
}

// now returns the current Unix time in seconds, clamped to zero if the
// system clock is before the epoch.
func now() uint64 {
	t := time.Now().Unix()
	if t < 0 {
		return 0
	}
	return uint64(t)
}

// maintenance drops every entry whose age exceeds maxAge (or whose
// timestamp can't be parsed), compacting the database if anything was
// removed.
func (c *Cache) maintenance() error {
	var toDelete [][]byte
	nowSecs := now()

	err := c.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return err
		}
		cur := b.Cursor()
		for k, v := cur.First(); k != nil; k, v = cur.Next() {
			e, err := decodeEntry(v)
			if err != nil {
				toDelete = append(toDelete, append([]byte(nil), k...))
				continue
			}
			age := int64(nowSecs) - int64(e.createdAt)
			if age < 0 || time.Duration(age)*time.Second > c.maxAge {
				toDelete = append(toDelete, append([]byte(nil), k...))
			}
		}
		for _, k := range toDelete {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("cachedb: maintenance: %w", err)
	}
	if len(toDelete) > 0 {
		return c.compact()
	}
	return nil
}

// compact rewrites the database file to reclaim space freed by
// maintenance's deletions. bbolt has no built-in in-place compaction
// API, so this copies live keys into a fresh file and swaps it in.
func (c *Cache) compact() error {
	path := c.db.Path()
	tmp := path + ".compact"
	dst, err := bolt.Open(tmp, 0o644, nil)
	if err != nil {
		return err
	}
	err = c.db.View(func(srcTx *bolt.Tx) error {
		return dst.Update(func(dstTx *bolt.Tx) error {
			dstB, err := dstTx.CreateBucketIfNotExists(bucketName)
			if err != nil {
				return err
			}
			srcB := srcTx.Bucket(bucketName)
			if srcB == nil {
				return nil
			}
			return srcB.ForEach(func(k, v []byte) error {
				return dstB.Put(k, v)
			})
		})
	})
	dst.Close()
	if err != nil {
		os.Remove(tmp)
		return err
	}
	if err := c.db.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}
	reopened, err := bolt.Open(path, 0o644, &bolt.Options{Timeout: 10 * time.Second})
	if err != nil {
		return err
	}
	c.db = reopened
	return nil
}

// Get returns the uncompressed payload of a live entry, or (nil, false)
// if the key is missing. A missing bucket is not an error.
func (c *Cache) Get(key string) ([]byte, bool) {
	var raw []byte
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil || raw == nil {
		return nil, false
	}
	e, err := decodeEntry(raw)
	if err != nil {
		return nil, false
	}
	data, err := c.compressor.Decompress(e.payload)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Set upserts a single entry with created_at = now.
func (c *Cache) Set(key string, data []byte) error {
	return c.SetMulti(map[string][]byte{key: data})
}

// SetMulti upserts every pair in one atomic transaction.
func (c *Cache) SetMulti(pairs map[string][]byte) error {
	t := now()
	return c.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return err
		}
		for k, v := range pairs {
			e := entry{createdAt: t, payload: c.compressor.Compress(v)}
			if err := b.Put([]byte(k), encodeEntry(e)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Produce computes the value to store for a cold key in GetOrSet.
type Produce func(ctx context.Context) ([]byte, error)

// GetOrSet returns the cached value for key if present; otherwise it
// invokes produce, stores the result, and returns it. Concurrent
// callers for the same key serialize on a per-key lock so that produce
// runs at most once while any caller is waiting; callers for distinct
// keys proceed in parallel. Per-key locks are never removed, which is
// fine since keys are URLs and the process is short-lived.
func (c *Cache) GetOrSet(ctx context.Context, key string, produce Produce) ([]byte, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	lock := c.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	// Another caller may have populated the key while we waited for
	// the lock.
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	data, err := produce(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.Set(key, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Cache) lockFor(key string) *sync.Mutex {
	c.flightMu.Lock()
	defer c.flightMu.Unlock()
	l, ok := c.flight[key]
	if !ok {
		l = &sync.Mutex{}
		c.flight[key] = l
	}
	return l
}
