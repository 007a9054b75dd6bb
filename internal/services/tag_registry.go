package services

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/qianh/prompt-tower/internal/apperr"
	"github.com/qianh/prompt-tower/internal/storage"
)

// TagSyncOutcome reports what happened to one tag during best-effort
// registration. Err is nil when the tag is in the registry.
type TagSyncOutcome struct {
	Tag    string
	Stored string
	Err    error
}

func (o TagSyncOutcome) Failed() bool { return o.Err != nil }

// TagRegistryStore is the storage a TagRegistry needs.
type TagRegistryStore interface {
	storage.TagStore
	storage.PromptStore
}

// TagRegistry is the global case-insensitive set of tag names. Every read and
// write holds mu, since the file backend rewrites tags.json in place.
type TagRegistry struct {
	mu    sync.Mutex
	store TagRegistryStore
	log   *zap.Logger
}

func NewTagRegistry(store TagRegistryStore, log *zap.Logger) *TagRegistry {
	if log == nil {
		log = zap.NewNop()
	}
	return &TagRegistry{store: store, log: log}
}

// GetAll returns every tag sorted ignoring case.
func (r *TagRegistry) GetAll(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.ListTags(ctx)
}

// Add registers name and returns the stored casing. An existing tag equal
// ignoring case is returned as is.
func (r *TagRegistry) Add(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.Validation("tag name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.AddTag(ctx, name)
}

// SyncFromPrompts adds every tag used by a stored prompt that is missing
// from the registry and returns the full sorted list.
func (r *TagRegistry) SyncFromPrompts(ctx context.Context) ([]string, error) {
	prompts, err := r.store.ListPrompts(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.store.ListTags(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(existing))
	for _, t := range existing {
		known[strings.ToLower(t)] = true
	}

	added := 0
	for _, p := range prompts {
		for _, tag := range p.Tags {
			tag = strings.TrimSpace(tag)
			key := strings.ToLower(tag)
			if tag == "" || known[key] {
				continue
			}
			if _, err := r.store.AddTag(ctx, tag); err != nil {
				return nil, err
			}
			known[key] = true
			added++
		}
	}
	if added > 0 {
		r.log.Info("Synced tags from prompts", zap.Int("added", added))
	}
	return r.store.ListTags(ctx)
}

// RegisterAll adds each tag and reports per-tag outcomes. Failures are
// returned, never raised, so a prompt write is not undone by a tag error.
func (r *TagRegistry) RegisterAll(ctx context.Context, tags []string) []TagSyncOutcome {
	outcomes := make([]TagSyncOutcome, 0, len(tags))
	for _, tag := range tags {
		stored, err := r.Add(ctx, tag)
		if err != nil {
			r.log.Warn("Failed to register tag", zap.String("tag", tag), zap.Error(err))
		}
		outcomes = append(outcomes, TagSyncOutcome{Tag: tag, Stored: stored, Err: err})
	}
	return outcomes
}
