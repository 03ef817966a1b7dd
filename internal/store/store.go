package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"github.com/fyrsmithlabs/memoryd/internal/memory"
)

// Config configures Open.
type Config struct {
	// Path is the filesystem path to the sqlite database file, typically
	// "<repoRoot>/.orchestrator/memory/memory.sqlite" (§6.4).
	Path string

	// EncryptAtRest gates the encryption-key-presence check in §4.8. The
	// actual at-rest encryption is delegated to the storage driver; this
	// store only refuses to open without a resolvable key.
	EncryptAtRest   bool
	EncryptionKeyEnv string
}

// Store is the embedded document store (C2). One Store owns exactly one
// sqlite file and one flock.Flock for the lifetime of the process.
type Store struct {
	db   *sql.DB
	lock *flock.Flock
	path string

	mu     sync.Mutex
	closed bool
}

// Open opens or creates the store at cfg.Path, applying migrations
// idempotently and acquiring the single-writer process lock.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, memory.NewError(memory.KindStorageInit, "path is required", nil)
	}

	if cfg.EncryptAtRest {
		keyEnv := cfg.EncryptionKeyEnv
		if keyEnv == "" {
			keyEnv = "MEMORYD_ENCRYPTION_KEY"
		}
		if os.Getenv(keyEnv) == "" {
			return nil, memory.NewError(memory.KindStorageInit,
				fmt.Sprintf("encryption enabled but %s is not set", keyEnv), nil)
		}
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, memory.NewError(memory.KindStorageInit, "creating store directory", err)
		}
	}

	lock := flock.New(cfg.Path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, memory.NewError(memory.KindStorageInit, "acquiring store lock", err)
	}
	if !locked {
		return nil, memory.NewError(memory.KindStorageInit, "store is already open by another process", nil)
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		_ = lock.Unlock()
		return nil, memory.NewError(memory.KindStorageInit, "opening sqlite database", err)
	}
	// Single logical writer (§5): serialize all access through one
	// connection so SQLite's own locking never becomes a source of
	// "database is locked" errors under this process's own concurrency.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, memory.NewError(memory.KindStorageSchema, "applying migrations", err)
	}

	return &Store{db: db, lock: lock, path: cfg.Path}, nil
}

// Close flushes and releases the handle. Idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	if err := s.db.Close(); err != nil {
		firstErr = err
	}
	if err := s.lock.Unlock(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (s *Store) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return memory.NewError(memory.KindStorageUnavailable, "store is closed", nil)
	}
	return nil
}

// withTimeout bounds any single operation against a slow/wedged sqlite file
// so callers always get a cancellable context even when they pass
// context.Background().
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 30*time.Second)
}
