// Package storage persists prompts, tags and users. Two backends implement
// the same contract: FileStore keeps YAML and JSON files on disk, DBStore keeps
// relational rows through gorm. Both return identical Prompt values for the
// same sequence of operations.
package storage

import (
	"context"

	"github.com/qianh/prompt-tower/internal/models"
)

// Search fields accepted by SearchPrompts.
const (
	FieldTitle   = "title"
	FieldTags    = "tags"
	FieldContent = "content"
)

// DefaultSearchFields is used when a search names no fields.
var DefaultSearchFields = []string{FieldTitle, FieldTags, FieldContent}

type PromptStore interface {
	// ListPrompts returns every prompt ordered by title, ignoring case.
	ListPrompts(ctx context.Context) ([]models.Prompt, error)
	ReadPrompt(ctx context.Context, title string) (*models.Prompt, error)
	// SavePrompt creates a prompt and fails with a conflict if the title exists.
	SavePrompt(ctx context.Context, prompt *models.Prompt) (*models.Prompt, error)
	// UpdatePrompt merges patch into the stored prompt, renaming it when the
	// title changes. A rename onto an existing title fails and leaves the
	// original untouched.
	UpdatePrompt(ctx context.Context, title string, patch models.PromptPatch) (*models.Prompt, error)
	DeletePrompt(ctx context.Context, title string) error
	SearchPrompts(ctx context.Context, query string, fields []string) ([]models.Prompt, error)
	CountPromptsByCreator(ctx context.Context, username string) (int64, error)
}

type TagStore interface {
	ListTags(ctx context.Context) ([]string, error)
	// AddTag stores name unless a tag equal ignoring case exists, and returns
	// the stored casing either way.
	AddTag(ctx context.Context, name string) (string, error)
}

type UserStore interface {
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateUser(ctx context.Context, username, hashedPassword string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
}

// Store is the full storage contract the services depend on.
type Store interface {
	PromptStore
	TagStore
	UserStore
	Close() error
}
