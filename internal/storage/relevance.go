package storage

import (
	"sort"
	"strings"

	"github.com/qianh/prompt-tower/internal/models"
)

const (
	ScoreTitle   = 100
	ScoreTag     = 50
	ScoreContent = 10
)

// Score rates how well p matches the lowercased query. The first matching
// field wins: title, then any tag, then content. Fields not listed are
// skipped. Zero means no match.
func Score(p *models.Prompt, lowerQuery string, fields []string) int {
	if lowerQuery == "" {
		return 0
	}
	if len(fields) == 0 {
		fields = DefaultSearchFields
	}
	in := make(map[string]bool, len(fields))
	for _, f := range fields {
		in[strings.ToLower(f)] = true
	}

	if in[FieldTitle] && strings.Contains(strings.ToLower(p.Title), lowerQuery) {
		return ScoreTitle
	}
	if in[FieldTags] {
		for _, tag := range p.Tags {
			if strings.Contains(strings.ToLower(tag), lowerQuery) {
				return ScoreTag
			}
		}
	}
	if in[FieldContent] && strings.Contains(strings.ToLower(p.Content), lowerQuery) {
		return ScoreContent
	}
	return 0
}

// Rank keeps the prompts matching query and orders them by descending score.
// Ties keep their input order.
func Rank(prompts []models.Prompt, query string, fields []string) []models.Prompt {
	q := strings.ToLower(strings.TrimSpace(query))
	fields = normalizeFields(fields)
	if q == "" || len(fields) == 0 {
		return []models.Prompt{}
	}

	type scored struct {
		prompt models.Prompt
		score  int
	}
	matches := make([]scored, 0, len(prompts))
	for i := range prompts {
		if s := Score(&prompts[i], q, fields); s > 0 {
			matches = append(matches, scored{prompt: prompts[i], score: s})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})

	out := make([]models.Prompt, len(matches))
	for i, m := range matches {
		out[i] = m.prompt
	}
	return out
}

func sortByTitle(prompts []models.Prompt) {
	sort.SliceStable(prompts, func(i, j int) bool {
		return strings.ToLower(prompts[i].Title) < strings.ToLower(prompts[j].Title)
	})
}

func sortTagNames(tags []string) {
	sort.SliceStable(tags, func(i, j int) bool {
		return strings.ToLower(tags[i]) < strings.ToLower(tags[j])
	})
}

// normalizeFields lowercases field names and drops unknown ones. No fields at
// all means every field.
func normalizeFields(fields []string) []string {
	if len(fields) == 0 {
		return DefaultSearchFields
	}
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		switch f = strings.ToLower(strings.TrimSpace(f)); f {
		case FieldTitle, FieldTags, FieldContent:
			out = append(out, f)
		}
	}
	return out
}
