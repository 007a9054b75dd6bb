package storage

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/qianh/prompt-tower/internal/apperr"
	"github.com/qianh/prompt-tower/internal/models"
	"github.com/qianh/prompt-tower/internal/utils"
)

const (
	promptFileExt  = ".yaml"
	tempFilePrefix = ".tmp-"
)

// promptDocument is the on-disk YAML layout of one prompt. Timestamps are not
// stored; they come from the file's metadata.
type promptDocument struct {
	Title           string   `yaml:"title"`
	Content         string   `yaml:"content"`
	Tags            []string `yaml:"tags"`
	Remark          string   `yaml:"remark"`
	Status          string   `yaml:"status"`
	CreatorUsername *string  `yaml:"creator_username"`
	UsageCount      int      `yaml:"usage_count"`
}

// FileStore keeps one YAML file per prompt in promptDir and the tag and user
// registries as JSON files in dataDir.
type FileStore struct {
	promptDir string
	dataDir   string
	log       *zap.Logger

	promptMu sync.RWMutex
	tagMu    sync.Mutex
	userMu   sync.Mutex
}

var _ Store = (*FileStore)(nil)

func NewFileStore(promptDir, dataDir string, log *zap.Logger) (*FileStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	for _, dir := range []string{promptDir, dataDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "create directory %s", dir)
		}
	}
	return &FileStore{promptDir: promptDir, dataDir: dataDir, log: log}, nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) promptPath(title string) (string, error) {
	name := utils.SanitizeFilename(title)
	if name == "" {
		return "", apperr.Validation("title %q does not yield a valid file name", title)
	}
	path := filepath.Join(s.promptDir, name+promptFileExt)
	if !utils.IsSafePath(path, s.promptDir) {
		return "", apperr.Validation("title %q resolves outside the prompt directory", title)
	}
	return path, nil
}

func (s *FileStore) ListPrompts(ctx context.Context) ([]models.Prompt, error) {
	s.promptMu.RLock()
	defer s.promptMu.RUnlock()
	return s.listLocked()
}

func (s *FileStore) listLocked() ([]models.Prompt, error) {
	entries, err := os.ReadDir(s.promptDir)
	if err != nil {
		return nil, apperr.Internal(err, "read prompt directory")
	}

	prompts := make([]models.Prompt, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, tempFilePrefix) || filepath.Ext(name) != promptFileExt {
			continue
		}
		p, err := s.loadPrompt(filepath.Join(s.promptDir, name))
		if err != nil {
			s.log.Warn("Skipping unreadable prompt file", zap.String("file", name), zap.Error(err))
			continue
		}
		prompts = append(prompts, *p)
	}
	sortByTitle(prompts)
	return prompts, nil
}

func (s *FileStore) ReadPrompt(ctx context.Context, title string) (*models.Prompt, error) {
	path, err := s.promptPath(title)
	if err != nil {
		return nil, apperr.NotFound("prompt %q not found", title)
	}

	s.promptMu.RLock()
	defer s.promptMu.RUnlock()

	p, err := s.loadPrompt(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperr.NotFound("prompt %q not found", title)
	}
	if err != nil {
		return nil, apperr.Internal(err, "read prompt %q", title)
	}
	return p, nil
}

func (s *FileStore) SavePrompt(ctx context.Context, prompt *models.Prompt) (*models.Prompt, error) {
	path, err := s.promptPath(prompt.Title)
	if err != nil {
		return nil, err
	}
	tags, err := s.canonicalTags(prompt.Tags)
	if err != nil {
		return nil, err
	}

	doc := promptDocument{
		Title:           prompt.Title,
		Content:         prompt.Content,
		Tags:            tags,
		Remark:          prompt.Remark,
		Status:          string(prompt.Status),
		CreatorUsername: prompt.CreatorUsername,
		UsageCount:      prompt.UsageCount,
	}
	if doc.Status == "" {
		doc.Status = string(models.PromptStatusEnabled)
	}

	s.promptMu.Lock()
	defer s.promptMu.Unlock()

	if err := s.writeNew(path, doc); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, apperr.Conflict("prompt with title %q already exists", prompt.Title)
		}
		return nil, apperr.Internal(err, "write prompt %q", prompt.Title)
	}
	return s.reload(path, prompt.Title)
}

func (s *FileStore) UpdatePrompt(ctx context.Context, title string, patch models.PromptPatch) (*models.Prompt, error) {
	oldPath, err := s.promptPath(title)
	if err != nil {
		return nil, apperr.NotFound("prompt %q not found", title)
	}

	var tags []string
	if patch.Tags != nil {
		if tags, err = s.canonicalTags(*patch.Tags); err != nil {
			return nil, err
		}
	}

	s.promptMu.Lock()
	defer s.promptMu.Unlock()

	doc, err := readDocument(oldPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperr.NotFound("prompt %q not found", title)
	}
	if err != nil {
		return nil, apperr.Internal(err, "read prompt %q", title)
	}
	if doc.Title == "" {
		doc.Title = title
	}

	if patch.Title != nil {
		doc.Title = *patch.Title
	}
	if patch.Content != nil {
		doc.Content = *patch.Content
	}
	if patch.Tags != nil {
		doc.Tags = tags
	}
	if patch.Remark != nil {
		doc.Remark = *patch.Remark
	}
	if patch.Status != nil {
		doc.Status = string(*patch.Status)
	}
	if patch.UsageCount != nil {
		doc.UsageCount = *patch.UsageCount
	}

	newPath, err := s.promptPath(doc.Title)
	if err != nil {
		return nil, err
	}
	if newPath == oldPath {
		if err := s.writeReplace(oldPath, *doc); err != nil {
			return nil, apperr.Internal(err, "write prompt %q", title)
		}
		return s.reload(oldPath, doc.Title)
	}

	if err := s.writeNew(newPath, *doc); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, apperr.Conflict("prompt with title %q already exists", doc.Title)
		}
		return nil, apperr.Internal(err, "write prompt %q", doc.Title)
	}
	if err := os.Remove(oldPath); err != nil {
		return nil, apperr.Internal(err, "remove renamed prompt file %s", filepath.Base(oldPath))
	}
	return s.reload(newPath, doc.Title)
}

func (s *FileStore) DeletePrompt(ctx context.Context, title string) error {
	path, err := s.promptPath(title)
	if err != nil {
		return apperr.NotFound("prompt %q not found", title)
	}

	s.promptMu.Lock()
	defer s.promptMu.Unlock()

	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return apperr.NotFound("prompt %q not found", title)
		}
		return apperr.Internal(err, "delete prompt %q", title)
	}
	return nil
}

func (s *FileStore) SearchPrompts(ctx context.Context, query string, fields []string) ([]models.Prompt, error) {
	if strings.TrimSpace(query) == "" {
		return []models.Prompt{}, nil
	}
	prompts, err := s.ListPrompts(ctx)
	if err != nil {
		return nil, err
	}
	return Rank(prompts, query, fields), nil
}

func (s *FileStore) CountPromptsByCreator(ctx context.Context, username string) (int64, error) {
	prompts, err := s.ListPrompts(ctx)
	if err != nil {
		return 0, err
	}
	var n int64
	for i := range prompts {
		if prompts[i].OwnedBy(username) {
			n++
		}
	}
	return n, nil
}

// canonicalTags dedupes tags ignoring case and replaces each with the casing
// already present in the tag registry.
func (s *FileStore) canonicalTags(tags []string) ([]string, error) {
	s.tagMu.Lock()
	registry, err := s.loadTags()
	s.tagMu.Unlock()
	if err != nil {
		return nil, err
	}

	known := make(map[string]string, len(registry))
	for _, t := range registry {
		known[strings.ToLower(t)] = t
	}

	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		key := strings.ToLower(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		if stored, ok := known[key]; ok {
			t = stored
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *FileStore) reload(path, title string) (*models.Prompt, error) {
	p, err := s.loadPrompt(path)
	if err != nil {
		return nil, apperr.Internal(err, "reload prompt %q", title)
	}
	return p, nil
}

func (s *FileStore) loadPrompt(path string) (*models.Prompt, error) {
	doc, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	created, modified := fileTimes(info)

	title := doc.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), promptFileExt)
	}
	status := models.PromptStatus(doc.Status)
	if !status.Valid() {
		status = models.PromptStatusEnabled
	}
	tags := doc.Tags
	if tags == nil {
		tags = []string{}
	}

	return &models.Prompt{
		Title:           title,
		Content:         doc.Content,
		Tags:            tags,
		Remark:          doc.Remark,
		Status:          status,
		CreatorUsername: doc.CreatorUsername,
		UsageCount:      doc.UsageCount,
		CreatedAt:       created,
		UpdatedAt:       modified,
	}, nil
}

func readDocument(path string) (*promptDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc promptDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "parse %s", filepath.Base(path))
	}
	return &doc, nil
}

// writeNew creates path from doc without replacing an existing file. The
// document is written to a temp file first and hard-linked into place, so a
// concurrent or pre-existing file at path makes it fail with fs.ErrExist.
func (s *FileStore) writeNew(path string, doc promptDocument) error {
	tmp, err := writeTemp(filepath.Dir(path), doc)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)
	return os.Link(tmp, path)
}

// writeReplace atomically overwrites path with doc.
func (s *FileStore) writeReplace(path string, doc promptDocument) error {
	tmp, err := writeTemp(filepath.Dir(path), doc)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func writeTemp(dir string, v interface{}) (string, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", err
	}
	return writeTempBytes(dir, data)
}

func writeTempBytes(dir string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, tempFilePrefix+"*")
	if err != nil {
		return "", err
	}
	name := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(name)
		return "", err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(name)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", err
	}
	return name, nil
}
