package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMigrateURL(t *testing.T) {
	tests := []struct {
		name      string
		inputPath string
	}{
		{name: "relative path", inputPath: "test.db"},
		{name: "absolute unix path", inputPath: "/tmp/test.db"},
	}

	if runtime.GOOS == "windows" {
		tests = append(tests, struct {
			name      string
			inputPath string
		}{name: "windows absolute path", inputPath: "C:\\temp\\test.db"})
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, err := BuildMigrateURL(tt.inputPath)
			require.NoError(t, err)

			assert.True(t, strings.HasPrefix(url, "sqlite:///"))
			assert.False(t, strings.Contains(url, "\\"))
			assert.True(t, strings.HasSuffix(url, "test.db"))
		})
	}
}

func testMigrations() fstest.MapFS {
	return fstest.MapFS{
		"migrations/000001_create_items.up.sql":   {Data: []byte("CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT NOT NULL);")},
		"migrations/000001_create_items.down.sql": {Data: []byte("DROP TABLE items;")},
		"migrations/000002_add_index.up.sql":      {Data: []byte("CREATE INDEX items_name ON items (name);")},
		"migrations/000002_add_index.down.sql":    {Data: []byte("DROP INDEX items_name;")},
	}
}

func TestApplyMigrations(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "migrate.db")
	fsys := testMigrations()

	require.NoError(t, ApplyMigrations(dbPath, fsys, "migrations"))

	ctx := context.Background()
	db, err := NewDB(ctx, dbPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	var count int
	err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE name IN ('items', 'items_name')").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Повторное применение не должно давать ошибку
	assert.NoError(t, ApplyMigrations(dbPath, fsys, "migrations"))
}

func TestMigrationVersion(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "version.db")
	fsys := testMigrations()

	version, dirty, err := MigrationVersion(dbPath, fsys, "migrations")
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
	assert.False(t, dirty)

	require.NoError(t, ApplyMigrations(dbPath, fsys, "migrations"))

	version, dirty, err = MigrationVersion(dbPath, fsys, "migrations")
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)
}

func TestApplyMigrations_MissingDir(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "missing.db")
	err := ApplyMigrations(dbPath, fstest.MapFS{}, "migrations")
	require.Error(t, err)

	_, statErr := os.Stat(dbPath)
	assert.True(t, os.IsNotExist(statErr))
}
