package services

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

	"github.com/qianh/prompt-tower/internal/storage"
)

func newFileStore(t *testing.T) storage.Store {
	t.Helper()
	root := t.TempDir()
	s, err := storage.NewFileStore(filepath.Join(root, "prompts"), filepath.Join(root, "data"), zap.NewNop())
	require.NoError(t, err)
	return s
}

func newDBStore(t *testing.T) storage.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	s, err := storage.NewDBStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// eachBackend runs fn once per storage backend.
func eachBackend(t *testing.T, fn func(t *testing.T, store storage.Store)) {
	t.Run("file", func(t *testing.T) { fn(t, newFileStore(t)) })
	t.Run("db", func(t *testing.T) { fn(t, newDBStore(t)) })
}

func newPromptService(store storage.Store) (*PromptService, *TagRegistry) {
	registry := NewTagRegistry(store, zap.NewNop())
	return NewPromptService(store, registry, zap.NewNop()), registry
}

func ptr[T any](v T) *T { return &v }
