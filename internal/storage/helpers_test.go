package storage

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	return db
}

func newTestDBStore(t *testing.T) *DBStore {
	t.Helper()
	store, err := NewDBStore(setupTestDB(t))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	root := t.TempDir()
	store, err := NewFileStore(filepath.Join(root, "prompt-template"), filepath.Join(root, "data"), zap.NewNop())
	require.NoError(t, err)
	return store
}

func strPtr(s string) *string { return &s }
