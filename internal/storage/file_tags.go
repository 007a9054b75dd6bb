package storage

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/qianh/prompt-tower/internal/apperr"
)

const tagsFile = "tags.json"

func (s *FileStore) tagsPath() string {
	return filepath.Join(s.dataDir, tagsFile)
}

func (s *FileStore) ListTags(ctx context.Context) ([]string, error) {
	s.tagMu.Lock()
	defer s.tagMu.Unlock()

	tags, err := s.loadTags()
	if err != nil {
		return nil, err
	}
	sortTagNames(tags)
	return tags, nil
}

func (s *FileStore) AddTag(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.Validation("tag name cannot be empty")
	}

	s.tagMu.Lock()
	defer s.tagMu.Unlock()

	tags, err := s.loadTags()
	if err != nil {
		return "", err
	}
	for _, existing := range tags {
		if strings.EqualFold(existing, name) {
			return existing, nil
		}
	}

	tags = append(tags, name)
	sortTagNames(tags)
	if err := writeJSON(s.tagsPath(), tags); err != nil {
		return "", apperr.Internal(err, "write %s", tagsFile)
	}
	return name, nil
}

// loadTags reads tags.json. A missing file is an empty registry; a corrupt one
// is an error so it never gets overwritten with a partial list.
func (s *FileStore) loadTags() ([]string, error) {
	data, err := os.ReadFile(s.tagsPath())
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, apperr.Internal(err, "read %s", tagsFile)
	}
	var tags []string
	if err := json.Unmarshal(data, &tags); err != nil {
		return nil, apperr.Internal(err, "%s is corrupt", tagsFile)
	}
	if tags == nil {
		tags = []string{}
	}
	return tags, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := writeTempBytes(filepath.Dir(path), data)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
