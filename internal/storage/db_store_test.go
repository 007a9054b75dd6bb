package storage

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qianh/prompt-tower/internal/models"
)

func TestDBStoreTagLinks(t *testing.T) {
	s := newTestDBStore(t)
	ctx := context.Background()

	_, err := s.SavePrompt(ctx, &models.Prompt{Title: "Linked", Content: "c", Tags: []string{"Go", "go", "sql", "GO"}})
	require.NoError(t, err)

	var links []models.PromptTag
	require.NoError(t, s.db.Order("position").Find(&links).Error)
	require.Len(t, links, 2)
	assert.Equal(t, 0, links[0].Position)
	assert.Equal(t, 1, links[1].Position)

	tags, err := s.ListTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Go", "sql"}, tags)

	require.NoError(t, s.DeletePrompt(ctx, "Linked"))
	var remaining int64
	require.NoError(t, s.db.Model(&models.PromptTag{}).Count(&remaining).Error)
	assert.Zero(t, remaining)

	tags, err = s.ListTags(ctx)
	require.NoError(t, err)
	assert.Len(t, tags, 2, "tags outlive the prompts using them")
}

func TestDBStoreSearchEscapesWildcards(t *testing.T) {
	s := newTestDBStore(t)
	ctx := context.Background()

	_, err := s.SavePrompt(ctx, &models.Prompt{Title: "Discount 50%", Content: "x"})
	require.NoError(t, err)
	_, err = s.SavePrompt(ctx, &models.Prompt{Title: "Discount 500", Content: "x"})
	require.NoError(t, err)
	_, err = s.SavePrompt(ctx, &models.Prompt{Title: "snake_case", Content: "x"})
	require.NoError(t, err)
	_, err = s.SavePrompt(ctx, &models.Prompt{Title: "snakeXcase", Content: "x"})
	require.NoError(t, err)

	found, err := s.SearchPrompts(ctx, "50%", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Discount 50%"}, titles(found))

	found, err = s.SearchPrompts(ctx, "e_c", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"snake_case"}, titles(found))
}

func TestDBStoreSearchNonASCII(t *testing.T) {
	s := newTestDBStore(t)
	ctx := context.Background()

	_, err := s.SavePrompt(ctx, &models.Prompt{Title: "Übersetzung", Content: "x"})
	require.NoError(t, err)
	_, err = s.SavePrompt(ctx, &models.Prompt{Title: "代码审查", Content: "审查代码"})
	require.NoError(t, err)

	found, err := s.SearchPrompts(ctx, "übersetz", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Übersetzung"}, titles(found))

	found, err = s.SearchPrompts(ctx, "审查", []string{FieldContent})
	require.NoError(t, err)
	assert.Equal(t, []string{"代码审查"}, titles(found))
}

func TestDBStoreSettingsDefaultsToEmptyObject(t *testing.T) {
	s := newTestDBStore(t)
	_, err := s.SavePrompt(context.Background(), &models.Prompt{Title: "Settings", Content: "x"})
	require.NoError(t, err)

	var rec models.PromptRecord
	require.NoError(t, s.db.Where("title = ?", "Settings").First(&rec).Error)
	assert.NotNil(t, rec.Settings)
	assert.Empty(t, rec.Settings)
}

func TestDBStoreTagKeyIsUnique(t *testing.T) {
	s := newTestDBStore(t)
	ctx := context.Background()

	stored, err := s.AddTag(ctx, "Foo")
	require.NoError(t, err)
	assert.Equal(t, "Foo", stored)

	key := models.TagKey("foo")
	err = s.db.Create(&models.Tag{Name: "foo", NameKey: &key}).Error
	assert.Error(t, err, "a second row folding to the same key is rejected")

	var wg sync.WaitGroup
	for _, name := range []string{"FOO", "foo", "fOo", "Bar", "BAR", "bar"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			_, err := s.SavePrompt(ctx, &models.Prompt{Title: "p-" + name, Content: "x", Tags: []string{name}})
			assert.NoError(t, err)
		}(name)
	}
	wg.Wait()

	tags, err := s.ListTags(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "Foo", tags[1])
}

func TestDBStoreBackfillsTagKeys(t *testing.T) {
	db := setupTestDB(t)
	s, err := NewDBStore(db)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, db.Exec("INSERT INTO tags (name, created_at) VALUES (?, CURRENT_TIMESTAMP)", "Legacy").Error)

	s, err = NewDBStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	stored, err := s.AddTag(ctx, "LEGACY")
	require.NoError(t, err)
	assert.Equal(t, "Legacy", stored)

	tags, err := s.ListTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Legacy"}, tags)
}
