package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/aptus/internal/common"
	"github.com/ternarybob/arbor"
)

func setupTestDB(t *testing.T) *SQLiteDB {
	t.Helper()

	logger := arbor.NewLogger()
	db, err := NewSQLiteDB(logger, &common.SQLiteConfig{
		Path:          filepath.Join(t.TempDir(), "aptus_test.db"),
		CacheSizeMB:   16,
		WALMode:       true,
		BusyTimeoutMS: 5000,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}
