// Package cache implements the durable TTL cache for expensive external
// lookups. One JSON record per region key; entries are valid only while
// now < expiry, and corrupt entries are deleted and treated as misses.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Version is bumped when the serialized entry shape changes. Entries
// written by other versions are treated as misses.
const Version = 2

// Entry is the persisted shape of one cache record.
type Entry struct {
	Timestamp       time.Time       `json:"timestamp"`
	RegionKey       string          `json:"regionKey"`
	ExpiryTimestamp time.Time       `json:"expiryTimestamp"`
	Payload         json.RawMessage `json:"payload"`
	CacheVersion    int             `json:"cacheVersion"`
}

// Stats describes cache state and hit-rate counters.
type Stats struct {
	Entries int   `json:"entries"`
	Valid   int   `json:"valid"`
	Expired int   `json:"expired"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// Cache is a durable TTL-keyed cache backed by SQLite. Reads are safe
// concurrently; concurrent writes to the same key are last-writer-wins,
// which is acceptable because payloads derive deterministically from the
// same external source.
type Cache struct {
	db      *sql.DB
	ttl     time.Duration
	clock   clockwork.Clock
	hits    atomic.Int64
	misses  atomic.Int64
}

const migration = `
CREATE TABLE IF NOT EXISTS external_data (
	bucket     TEXT NOT NULL,
	region_key TEXT NOT NULL,
	expires_at INTEGER NOT NULL,
	entry      TEXT NOT NULL,
	PRIMARY KEY (bucket, region_key)
);

CREATE INDEX IF NOT EXISTS idx_external_data_expires ON external_data(expires_at);
`

// Open creates (or opens) the cache database at the given path.
func Open(path string, ttl time.Duration) (*Cache, error) {
	return openWithClock(path, ttl, clockwork.NewRealClock())
}

// openWithClock is the test seam for TTL behavior.
func openWithClock(path string, ttl time.Duration, clock clockwork.Clock) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "cache: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "cache: exec %s", pragma)
		}
	}
	if _, err := db.Exec(migration); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "cache: migrate")
	}
	return &Cache{db: db, ttl: ttl, clock: clock}, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// TTL returns the configured entry lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns the payload and creation time for a key. Expired, corrupt, or
// version-mismatched entries are removed and reported as misses; corruption
// is logged once at removal and never raises.
func (c *Cache) Get(ctx context.Context, bucket, regionKey string) (json.RawMessage, time.Time, bool) {
	var raw string
	err := c.db.QueryRowContext(ctx,
		`SELECT entry FROM external_data WHERE bucket = ? AND region_key = ?`,
		bucket, regionKey,
	).Scan(&raw)
	if err != nil {
		c.misses.Add(1)
		return nil, time.Time{}, false
	}

	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		zap.L().Warn("cache: corrupt entry removed",
			zap.String("bucket", bucket),
			zap.String("region", regionKey),
			zap.Error(err),
		)
		c.remove(ctx, bucket, regionKey)
		c.misses.Add(1)
		return nil, time.Time{}, false
	}

	if entry.CacheVersion != Version {
		zap.L().Info("cache: stale entry version removed",
			zap.String("region", regionKey),
			zap.Int("version", entry.CacheVersion),
		)
		c.remove(ctx, bucket, regionKey)
		c.misses.Add(1)
		return nil, time.Time{}, false
	}

	if !c.clock.Now().Before(entry.ExpiryTimestamp) {
		c.remove(ctx, bucket, regionKey)
		c.misses.Add(1)
		return nil, time.Time{}, false
	}

	c.hits.Add(1)
	return entry.Payload, entry.Timestamp, true
}

// Put stores a payload with the configured TTL. Write-through callers
// overwrite any existing record for the key.
func (c *Cache) Put(ctx context.Context, bucket, regionKey string, payload json.RawMessage) error {
	now := c.clock.Now().UTC()
	entry := Entry{
		Timestamp:       now,
		RegionKey:       regionKey,
		ExpiryTimestamp: now.Add(c.ttl),
		Payload:         payload,
		CacheVersion:    Version,
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return eris.Wrap(err, "cache: marshal entry")
	}

	_, err = c.db.ExecContext(ctx,
		`INSERT INTO external_data (bucket, region_key, expires_at, entry) VALUES (?, ?, ?, ?)
		 ON CONFLICT (bucket, region_key) DO UPDATE SET expires_at = excluded.expires_at, entry = excluded.entry`,
		bucket, regionKey, entry.ExpiryTimestamp.Unix(), string(raw),
	)
	return eris.Wrapf(err, "cache: put %s/%s", bucket, regionKey)
}

// Invalidate removes all entries for a region across buckets.
func (c *Cache) Invalidate(ctx context.Context, regionKey string) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM external_data WHERE region_key = ?`, regionKey)
	if err != nil {
		return 0, eris.Wrapf(err, "cache: invalidate %s", regionKey)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ClearAll removes every entry.
func (c *Cache) ClearAll(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM external_data`)
	return eris.Wrap(err, "cache: clear all")
}

// Stats returns entry counts and hit-rate counters.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	now := c.clock.Now().Unix()

	var total, valid int
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN expires_at > ? THEN 1 ELSE 0 END), 0) FROM external_data`,
		now,
	).Scan(&total, &valid)
	if err != nil {
		return Stats{}, eris.Wrap(err, "cache: stats")
	}

	return Stats{
		Entries: total,
		Valid:   valid,
		Expired: total - valid,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}, nil
}

func (c *Cache) remove(ctx context.Context, bucket, regionKey string) {
	if _, err := c.db.ExecContext(ctx,
		`DELETE FROM external_data WHERE bucket = ? AND region_key = ?`,
		bucket, regionKey,
	); err != nil {
		zap.L().Warn("cache: remove failed",
			zap.String("bucket", bucket),
			zap.String("region", regionKey),
			zap.Error(err),
		)
	}
}
