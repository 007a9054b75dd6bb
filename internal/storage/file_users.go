package storage

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/qianh/prompt-tower/internal/apperr"
	"github.com/qianh/prompt-tower/internal/models"
)

const usersFile = "users.json"

type usersDocument struct {
	Users  []models.User `json:"users"`
	NextID uint          `json:"next_id"`
}

func (s *FileStore) usersPath() string {
	return filepath.Join(s.dataDir, usersFile)
}

func (s *FileStore) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.userMu.Lock()
	defer s.userMu.Unlock()

	doc, err := s.loadUsers()
	if err != nil {
		return nil, err
	}
	for i := range doc.Users {
		if doc.Users[i].Username == username {
			u := doc.Users[i]
			return &u, nil
		}
	}
	return nil, apperr.NotFound("user %q not found", username)
}

func (s *FileStore) CreateUser(ctx context.Context, username, hashedPassword string) (*models.User, error) {
	s.userMu.Lock()
	defer s.userMu.Unlock()

	doc, err := s.loadUsers()
	if err != nil {
		return nil, err
	}
	for _, u := range doc.Users {
		if u.Username == username {
			return nil, apperr.Conflict("username %q is already registered", username)
		}
	}

	now := time.Now()
	user := models.User{
		ID:             doc.NextID,
		Username:       username,
		HashedPassword: hashedPassword,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	doc.Users = append(doc.Users, user)
	doc.NextID++

	if err := writeJSON(s.usersPath(), doc); err != nil {
		return nil, apperr.Internal(err, "write %s", usersFile)
	}
	return &user, nil
}

func (s *FileStore) ListUsers(ctx context.Context) ([]models.User, error) {
	s.userMu.Lock()
	defer s.userMu.Unlock()

	doc, err := s.loadUsers()
	if err != nil {
		return nil, err
	}
	sort.Slice(doc.Users, func(i, j int) bool { return doc.Users[i].ID < doc.Users[j].ID })
	return doc.Users, nil
}

// loadUsers reads users.json and repairs next_id so ids stay monotonic.
func (s *FileStore) loadUsers() (*usersDocument, error) {
	doc := &usersDocument{Users: []models.User{}, NextID: 1}

	data, err := os.ReadFile(s.usersPath())
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, apperr.Internal(err, "read %s", usersFile)
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, apperr.Internal(err, "%s is corrupt", usersFile)
	}
	if doc.Users == nil {
		doc.Users = []models.User{}
	}
	for _, u := range doc.Users {
		if u.ID >= doc.NextID {
			doc.NextID = u.ID + 1
		}
	}
	return doc, nil
}
