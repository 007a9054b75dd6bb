package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/qianh/prompt-tower/internal/models"
)

func titles(prompts []models.Prompt) []string {
	out := make([]string, len(prompts))
	for i, p := range prompts {
		out[i] = p.Title
	}
	return out
}

func TestRankOrdersByFieldWeight(t *testing.T) {
	prompts := []models.Prompt{
		{Title: "Beta", Content: "mentions alpha in passing", Tags: []string{}},
		{Title: "Gamma", Content: "nothing here", Tags: []string{"ALPHA-ish"}},
		{Title: "Alpha", Content: "plain", Tags: []string{}},
		{Title: "Delta", Content: "unrelated", Tags: []string{"other"}},
	}

	got := Rank(prompts, "alpha", nil)
	assert.Equal(t, []string{"Alpha", "Gamma", "Beta"}, titles(got))
}

func TestRankFirstMatchingFieldWins(t *testing.T) {
	p := models.Prompt{Title: "alpha", Content: "alpha", Tags: []string{"alpha"}}
	assert.Equal(t, ScoreTitle, Score(&p, "alpha", nil))
	assert.Equal(t, ScoreTag, Score(&p, "alpha", []string{FieldTags, FieldContent}))
	assert.Equal(t, ScoreContent, Score(&p, "alpha", []string{FieldContent}))
}

func TestRankRestrictsFields(t *testing.T) {
	prompts := []models.Prompt{
		{Title: "Alpha"},
		{Title: "Beta", Content: "alpha"},
	}
	assert.Equal(t, []string{"Beta"}, titles(Rank(prompts, "ALPHA", []string{"content"})))
	assert.Empty(t, Rank(prompts, "alpha", []string{"unknown"}))
}

func TestRankEmptyQuery(t *testing.T) {
	prompts := []models.Prompt{{Title: "Alpha"}}
	assert.Empty(t, Rank(prompts, "", nil))
	assert.Empty(t, Rank(prompts, "   ", nil))
}

func TestRankKeepsInputOrderForTies(t *testing.T) {
	prompts := []models.Prompt{
		{Title: "b-alpha"},
		{Title: "a-alpha"},
		{Title: "c-alpha"},
	}
	assert.Equal(t, []string{"b-alpha", "a-alpha", "c-alpha"}, titles(Rank(prompts, "alpha", nil)))
}
