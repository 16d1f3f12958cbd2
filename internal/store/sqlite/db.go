// Package sqlite implements the shared content store on a file-backed
// SQLite database. The database is co-owned with an external reader
// service, so every connection enables WAL journaling and a generous busy
// timeout, and all schema changes are probe-guarded and idempotent.
package sqlite

import (
	"database/sql"
	"fmt"
	"io"
	"math/rand/v2"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/dmcsvoices/creative-ai-agents/internal/log"
)

const (
	lockRetryAttempts = 3
	lockRetryBase     = 100 * time.Millisecond
)

// connPragmas are applied to every pooled connection via the DSN so the
// reader service and the orchestrator observe the same journal discipline.
var connPragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"busy_timeout(30000)",
	"cache_size(10000)",
	"temp_store(memory)",
	"foreign_keys(ON)",
}

// DB wraps the shared content database and exposes typed repositories.
type DB struct {
	conn *sql.DB
	path string

	prompts  *PromptRepository
	writings *WritingRepository
}

// NewDB opens the database at path, creating parent directories and the file
// itself if missing, and brings the schema up to date.
func NewDB(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := ensureSchema(conn, path); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	db := &DB{conn: conn, path: path}
	db.prompts = newPromptRepository(db)
	db.writings = newWritingRepository(db)
	return db, nil
}

func dsn(path string) string {
	v := url.Values{}
	for _, pragma := range connPragmas {
		v.Add("_pragma", pragma)
	}
	return "file:" + path + "?" + v.Encode()
}

// Prompts returns the prompt queue repository.
func (db *DB) Prompts() *PromptRepository { return db.prompts }

// Writings returns the writings repository.
func (db *DB) Writings() *WritingRepository { return db.writings }

// Connection exposes the underlying pool for callers that need raw access.
func (db *DB) Connection() *sql.DB { return db.conn }

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Checkpoint forces a truncating WAL checkpoint so the reader service sees a
// compact, current database file.
func (db *DB) Checkpoint() error {
	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("failed to checkpoint: %w", err)
	}
	return nil
}

// withRetry runs op, retrying with exponential backoff and jitter when the
// database reports a lock conflict. Non-locking errors propagate on the
// first attempt.
func (db *DB) withRetry(op func() error) error {
	var err error
	for attempt := 0; attempt < lockRetryAttempts; attempt++ {
		err = op()
		if err == nil || !isLockedError(err) || attempt == lockRetryAttempts-1 {
			return err
		}
		delay := lockRetryBase*(1<<attempt) + rand.N(100*time.Millisecond)
		log.Warn(log.CatStore, "database locked, retrying",
			"attempt", attempt+1, "delay", delay.String())
		time.Sleep(delay)
	}
	return err
}

func isLockedError(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "locked")
}

// backupFile copies the database file aside before a schema amendment. Best
// effort: failures are logged, not fatal, because the amendments themselves
// are additive.
func backupFile(path string) {
	src, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn(log.CatStore, "schema backup skipped", "error", err.Error())
		}
		return
	}
	defer func() { _ = src.Close() }()

	dst, err := os.Create(path + ".bak")
	if err != nil {
		log.Warn(log.CatStore, "schema backup failed", "error", err.Error())
		return
	}
	defer func() { _ = dst.Close() }()

	if _, err := io.Copy(dst, src); err != nil {
		log.Warn(log.CatStore, "schema backup failed", "error", err.Error())
	}
}
