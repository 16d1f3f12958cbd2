// Package testutil builds throwaway SQLite stores seeded with prompts,
// writings and artifacts for repository and pipeline tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmcsvoices/creative-ai-agents/internal/store/sqlite"
)

// NewTestDB opens a store on a fresh database file under t.TempDir() with
// the full schema applied. The store is closed when the test finishes.
func NewTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.NewDB(filepath.Join(t.TempDir(), "poets.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}
