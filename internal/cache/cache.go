// Package cache stores analysis reports in badger, keyed by run digest.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/phobologic/codescope/internal/model"
)

const keyPrefix = "report/"

// Cache is a report store. It is safe for concurrent use.
type Cache struct {
	db  *badger.DB
	ttl time.Duration
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL expires entries after d. Zero keeps them forever.
func WithTTL(d time.Duration) Option {
	return func(c *Cache) { c.ttl = d }
}

// Open opens or creates a persistent cache in dir. A nil logger silences
// badger.
func Open(dir string, logger *slog.Logger, opts ...Option) (*Cache, error) {
	if dir == "" {
		return nil, errors.New("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating cache directory %s: %w", dir, err)
	}
	return open(badger.DefaultOptions(dir), logger, opts)
}

// OpenInMemory returns a cache that lives only as long as the process.
func OpenInMemory(opts ...Option) (*Cache, error) {
	return open(badger.DefaultOptions("").WithInMemory(true), nil, opts)
}

func open(bo badger.Options, logger *slog.Logger, opts []Option) (*Cache, error) {
	bo = bo.WithNumVersionsToKeep(1)
	if logger != nil {
		bo = bo.WithLogger(&badgerLogger{logger: logger.With("component", "cache")})
	} else {
		bo = bo.WithLogger(nil)
	}
	db, err := badger.Open(bo)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	c := &Cache{db: db}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get returns the report stored under key. The bool is false on a miss.
func (c *Cache) Get(ctx context.Context, key string) (*model.AnalysisReport, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	var report model.AnalysisReport
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &report)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cached report %s: %w", key, err)
	}
	return &report, true, nil
}

// Put stores report under key, replacing any previous entry.
func (c *Cache) Put(ctx context.Context, key string, report *model.AnalysisReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	e := badger.NewEntry([]byte(keyPrefix+key), data)
	if c.ttl > 0 {
		e = e.WithTTL(c.ttl)
	}
	if err := c.db.Update(func(txn *badger.Txn) error { return txn.SetEntry(e) }); err != nil {
		return fmt.Errorf("writing cached report %s: %w", key, err)
	}
	return nil
}

// Close flushes and releases the store.
func (c *Cache) Close() error {
	return c.db.Close()
}

// badgerLogger routes badger's printf-style logging into slog.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
