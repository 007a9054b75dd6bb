package services

import (
	"context"

	"github.com/qianh/prompt-tower/internal/storage"
)

// UserSummary is the public view of a user with the number of prompts they
// created.
type UserSummary struct {
	ID          uint   `json:"id"`
	Username    string `json:"username"`
	PromptCount int64  `json:"prompt_count"`
}

type UserServiceStore interface {
	storage.UserStore
	CountPromptsByCreator(ctx context.Context, username string) (int64, error)
}

type UserService struct {
	store UserServiceStore
}

func NewUserService(store UserServiceStore) *UserService {
	return &UserService{store: store}
}

func (s *UserService) List(ctx context.Context) ([]UserSummary, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]UserSummary, 0, len(users))
	for _, u := range users {
		count, err := s.store.CountPromptsByCreator(ctx, u.Username)
		if err != nil {
			return nil, err
		}
		out = append(out, UserSummary{ID: u.ID, Username: u.Username, PromptCount: count})
	}
	return out, nil
}

func (s *UserService) Get(ctx context.Context, username string) (*UserSummary, error) {
	user, err := s.store.FindUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	count, err := s.store.CountPromptsByCreator(ctx, username)
	if err != nil {
		return nil, err
	}
	return &UserSummary{ID: user.ID, Username: user.Username, PromptCount: count}, nil
}
