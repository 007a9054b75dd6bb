package services

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/qianh/prompt-tower/internal/apperr"
	"github.com/qianh/prompt-tower/internal/models"
	"github.com/qianh/prompt-tower/internal/storage"
)

func TestTagRegistryAddKeepsFirstCasing(t *testing.T) {
	eachBackend(t, func(t *testing.T, store storage.Store) {
		r := NewTagRegistry(store, zap.NewNop())
		ctx := context.Background()

		first, err := r.Add(ctx, "Foo")
		require.NoError(t, err)
		second, err := r.Add(ctx, "  foo ")
		require.NoError(t, err)

		assert.Equal(t, "Foo", first)
		assert.Equal(t, "Foo", second)

		all, err := r.GetAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"Foo"}, all)
	})
}

func TestTagRegistryRejectsEmpty(t *testing.T) {
	r := NewTagRegistry(newFileStore(t), zap.NewNop())
	_, err := r.Add(context.Background(), "   ")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestTagRegistrySyncFromPrompts(t *testing.T) {
	eachBackend(t, func(t *testing.T, store storage.Store) {
		ctx := context.Background()
		r := NewTagRegistry(store, zap.NewNop())
		_, err := r.Add(ctx, "Existing")
		require.NoError(t, err)

		_, err = store.SavePrompt(ctx, &models.Prompt{Title: "A", Content: "x", Tags: []string{"zeta", "existing"}})
		require.NoError(t, err)
		_, err = store.SavePrompt(ctx, &models.Prompt{Title: "B", Content: "x", Tags: []string{"Beta", "ZETA"}})
		require.NoError(t, err)

		all, err := r.SyncFromPrompts(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"Beta", "Existing", "zeta"}, all)
	})
}

// failingTagStore refuses to store one tag name.
type failingTagStore struct {
	storage.Store
	reject string
}

func (s *failingTagStore) AddTag(ctx context.Context, name string) (string, error) {
	if name == s.reject {
		return "", apperr.Internal(nil, "disk full")
	}
	return s.Store.AddTag(ctx, name)
}

func TestTagRegistryRegisterAllReportsFailures(t *testing.T) {
	store := &failingTagStore{Store: newFileStore(t), reject: "broken"}
	r := NewTagRegistry(store, zap.NewNop())

	outcomes := r.RegisterAll(context.Background(), []string{"ok", "broken"})
	require.Len(t, outcomes, 2)
	assert.False(t, outcomes[0].Failed())
	assert.Equal(t, "ok", outcomes[0].Stored)
	assert.True(t, outcomes[1].Failed())
	assert.Equal(t, "broken", outcomes[1].Tag)
}
