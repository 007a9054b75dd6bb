package services

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/qianh/prompt-tower/internal/apperr"
	"github.com/qianh/prompt-tower/internal/models"
	"github.com/qianh/prompt-tower/internal/storage"
	"github.com/qianh/prompt-tower/internal/utils"
)

const usageLockStripes = 64

// PromptInput is the data needed to create a prompt.
type PromptInput struct {
	Title   string
	Content string
	Tags    []string
	Remark  string
	Status  models.PromptStatus
}

// PromptFilter narrows List. Empty fields match everything.
type PromptFilter struct {
	Status models.PromptStatus
	Tag    string
}

// SearchOptions configures Search. A Limit of zero or less returns every match.
type SearchOptions struct {
	Query       string
	Fields      []string
	Limit       int
	EnabledOnly bool
}

// ScoredPrompt is a search hit with its relevance score.
type ScoredPrompt struct {
	models.Prompt
	Score int
}

// PromptService applies validation, ownership and tag registration on top of
// a PromptStore.
type PromptService struct {
	store storage.PromptStore
	tags  *TagRegistry
	log   *zap.Logger

	usageLocks [usageLockStripes]sync.Mutex
}

func NewPromptService(store storage.PromptStore, tags *TagRegistry, log *zap.Logger) *PromptService {
	if log == nil {
		log = zap.NewNop()
	}
	return &PromptService{store: store, tags: tags, log: log}
}

func (s *PromptService) Create(ctx context.Context, in PromptInput, creator string) (*models.Prompt, []TagSyncOutcome, error) {
	title := strings.TrimSpace(in.Title)
	if err := validateTitle(title); err != nil {
		return nil, nil, err
	}
	if err := validateContent(in.Content); err != nil {
		return nil, nil, err
	}
	tags, err := cleanTags(in.Tags)
	if err != nil {
		return nil, nil, err
	}
	status := in.Status
	if status == "" {
		status = models.PromptStatusEnabled
	}
	if !status.Valid() {
		return nil, nil, apperr.Validation("status must be %q or %q", models.PromptStatusEnabled, models.PromptStatusDisabled)
	}

	prompt := &models.Prompt{
		Title:   title,
		Content: in.Content,
		Tags:    tags,
		Remark:  in.Remark,
		Status:  status,
	}
	if creator != "" {
		prompt.CreatorUsername = &creator
	}

	saved, err := s.store.SavePrompt(ctx, prompt)
	if err != nil {
		return nil, nil, err
	}
	s.log.Info("Prompt created", zap.String("title", saved.Title), zap.String("creator", creator))

	return saved, s.registerTags(ctx, saved.Tags), nil
}

// Update applies patch to the prompt owned by requester. The creator and
// usage count cannot be changed this way.
func (s *PromptService) Update(ctx context.Context, title string, patch models.PromptPatch, requester string) (*models.Prompt, []TagSyncOutcome, error) {
	if _, err := s.ownedPrompt(ctx, title, requester); err != nil {
		return nil, nil, err
	}

	patch.UsageCount = nil
	if patch.Title != nil {
		trimmed := strings.TrimSpace(*patch.Title)
		if err := validateTitle(trimmed); err != nil {
			return nil, nil, err
		}
		patch.Title = &trimmed
	}
	if patch.Content != nil {
		if err := validateContent(*patch.Content); err != nil {
			return nil, nil, err
		}
	}
	if patch.Tags != nil {
		tags, err := cleanTags(*patch.Tags)
		if err != nil {
			return nil, nil, err
		}
		patch.Tags = &tags
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, nil, apperr.Validation("status must be %q or %q", models.PromptStatusEnabled, models.PromptStatusDisabled)
	}

	updated, err := s.store.UpdatePrompt(ctx, title, patch)
	if err != nil {
		return nil, nil, err
	}
	s.log.Info("Prompt updated", zap.String("title", title), zap.String("new_title", updated.Title))

	var outcomes []TagSyncOutcome
	if patch.Tags != nil {
		outcomes = s.registerTags(ctx, updated.Tags)
	}
	return updated, outcomes, nil
}

func (s *PromptService) Delete(ctx context.Context, title, requester string) error {
	if _, err := s.ownedPrompt(ctx, title, requester); err != nil {
		return err
	}
	if err := s.store.DeletePrompt(ctx, title); err != nil {
		return err
	}
	s.log.Info("Prompt deleted", zap.String("title", title), zap.String("by", requester))
	return nil
}

// ToggleStatus flips the prompt between enabled and disabled.
func (s *PromptService) ToggleStatus(ctx context.Context, title, requester string) (*models.Prompt, error) {
	prompt, err := s.ownedPrompt(ctx, title, requester)
	if err != nil {
		return nil, err
	}
	next, err := toggledStatus(ctx, prompt.Status)
	if err != nil {
		return nil, err
	}
	return s.store.UpdatePrompt(ctx, title, models.PromptPatch{Status: &next})
}

// IncrementUsage adds one to the usage count. Calls for the same title are
// serialized, so concurrent increments are never lost.
func (s *PromptService) IncrementUsage(ctx context.Context, title string) (*models.Prompt, error) {
	mu := s.usageLock(title)
	mu.Lock()
	defer mu.Unlock()

	prompt, err := s.store.ReadPrompt(ctx, title)
	if err != nil {
		return nil, err
	}
	count := prompt.UsageCount + 1
	return s.store.UpdatePrompt(ctx, title, models.PromptPatch{UsageCount: &count})
}

func (s *PromptService) Get(ctx context.Context, title string) (*models.Prompt, error) {
	return s.store.ReadPrompt(ctx, title)
}

func (s *PromptService) List(ctx context.Context, filter PromptFilter) ([]models.Prompt, error) {
	prompts, err := s.store.ListPrompts(ctx)
	if err != nil {
		return nil, err
	}
	if filter.Status == "" && filter.Tag == "" {
		return prompts, nil
	}

	out := make([]models.Prompt, 0, len(prompts))
	for _, p := range prompts {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.Tag != "" && !hasTag(p.Tags, filter.Tag) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// EnabledPrompts lists the prompts visible to MCP clients.
func (s *PromptService) EnabledPrompts(ctx context.Context) ([]models.Prompt, error) {
	return s.List(ctx, PromptFilter{Status: models.PromptStatusEnabled})
}

func (s *PromptService) Search(ctx context.Context, opts SearchOptions) ([]ScoredPrompt, error) {
	prompts, err := s.store.SearchPrompts(ctx, opts.Query, opts.Fields)
	if err != nil {
		return nil, err
	}

	query := strings.ToLower(strings.TrimSpace(opts.Query))
	out := make([]ScoredPrompt, 0, len(prompts))
	for i := range prompts {
		if opts.EnabledOnly && !prompts[i].IsEnabled() {
			continue
		}
		out = append(out, ScoredPrompt{Prompt: prompts[i], Score: storage.Score(&prompts[i], query, opts.Fields)})
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

func (s *PromptService) ownedPrompt(ctx context.Context, title, requester string) (*models.Prompt, error) {
	prompt, err := s.store.ReadPrompt(ctx, title)
	if err != nil {
		return nil, err
	}
	if !prompt.OwnedBy(requester) {
		return nil, apperr.Forbidden("only the creator can modify prompt %q", title)
	}
	return prompt, nil
}

func (s *PromptService) registerTags(ctx context.Context, tags []string) []TagSyncOutcome {
	if s.tags == nil || len(tags) == 0 {
		return nil
	}
	return s.tags.RegisterAll(ctx, tags)
}

func (s *PromptService) usageLock(title string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(title))
	return &s.usageLocks[h.Sum32()%usageLockStripes]
}

func validateTitle(title string) error {
	if err := utils.ValidateTitle(title); err != nil {
		if title == "" {
			return apperr.Validation("title cannot be empty")
		}
		if utf8.RuneCountInString(title) > utils.MaxTitleLength {
			return apperr.Validation("title must be at most %d characters", utils.MaxTitleLength)
		}
		return apperr.Validation("title may only contain letters, digits, CJK characters, underscores, hyphens and spaces")
	}
	return nil
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return apperr.Validation("content cannot be empty")
	}
	if err := utils.ValidateContent(content); err != nil {
		return apperr.Validation("content must be at most %d characters", utils.MaxContentLength)
	}
	return nil
}

// cleanTags trims tags, drops empty ones and dedupes ignoring case, keeping
// the first spelling. Every remaining tag must be valid.
func cleanTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		key := strings.ToLower(tag)
		if tag == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, tag)
	}
	if err := utils.ValidateTags(out); err != nil {
		return nil, apperr.Validation("tags must be 1-%d characters of letters, digits, CJK characters, underscores or hyphens", utils.MaxTagLength)
	}
	return out, nil
}

func hasTag(tags []string, want string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, want) {
			return true
		}
	}
	return false
}
