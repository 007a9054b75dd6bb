package storage

import (
	"context"
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qianh/prompt-tower/internal/apperr"
	"github.com/qianh/prompt-tower/internal/models"
)

// DBStore keeps prompts, tags and users in a relational database.
type DBStore struct {
	db *gorm.DB
}

var _ Store = (*DBStore)(nil)

// NewDBStore migrates the schema and returns a store on db.
func NewDBStore(db *gorm.DB) (*DBStore, error) {
	if err := db.AutoMigrate(&models.User{}, &models.Tag{}, &models.PromptRecord{}, &models.PromptTag{}); err != nil {
		return nil, errors.Wrap(err, "migrate schema")
	}
	if err := backfillTagKeys(db); err != nil {
		return nil, errors.Wrap(err, "backfill tag keys")
	}
	return &DBStore{db: db}, nil
}

// backfillTagKeys fills name_key on rows written before the column existed.
func backfillTagKeys(db *gorm.DB) error {
	var tags []models.Tag
	if err := db.Where("name_key IS NULL OR name_key = ''").Find(&tags).Error; err != nil {
		return err
	}
	for _, tag := range tags {
		key := models.TagKey(tag.Name)
		if err := db.Model(&models.Tag{}).Where("id = ?", tag.ID).Update("name_key", key).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *DBStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *DBStore) ListPrompts(ctx context.Context) ([]models.Prompt, error) {
	var records []models.PromptRecord
	if err := s.db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, apperr.Internal(err, "list prompts")
	}
	prompts, err := s.withTags(s.db.WithContext(ctx), records)
	if err != nil {
		return nil, err
	}
	sortByTitle(prompts)
	return prompts, nil
}

func (s *DBStore) ReadPrompt(ctx context.Context, title string) (*models.Prompt, error) {
	db := s.db.WithContext(ctx)
	rec, err := findPrompt(db, title)
	if err != nil {
		return nil, err
	}
	return s.toPrompt(db, rec)
}

func (s *DBStore) SavePrompt(ctx context.Context, prompt *models.Prompt) (*models.Prompt, error) {
	status := prompt.Status
	if status == "" {
		status = models.PromptStatusEnabled
	}
	rec := models.PromptRecord{
		Title:           prompt.Title,
		Content:         prompt.Content,
		Description:     prompt.Remark,
		CreatorUsername: prompt.CreatorUsername,
		Status:          string(status),
		UsageCount:      prompt.UsageCount,
		Settings:        datatypes.JSONMap{},
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.PromptRecord{}).Where("title = ?", prompt.Title).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return apperr.Conflict("prompt with title %q already exists", prompt.Title)
		}
		if err := tx.Create(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Conflict("prompt with title %q already exists", prompt.Title)
			}
			return err
		}
		return linkTags(tx, rec.ID, prompt.Tags)
	})
	if err != nil {
		return nil, apperr.Internal(err, "save prompt %q", prompt.Title)
	}
	return s.ReadPrompt(ctx, rec.Title)
}

func (s *DBStore) UpdatePrompt(ctx context.Context, title string, patch models.PromptPatch) (*models.Prompt, error) {
	var newTitle string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := findPrompt(tx, title)
		if err != nil {
			return err
		}

		if patch.Title != nil && *patch.Title != rec.Title {
			var count int64
			if err := tx.Model(&models.PromptRecord{}).Where("title = ?", *patch.Title).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return apperr.Conflict("prompt with title %q already exists", *patch.Title)
			}
			rec.Title = *patch.Title
		}
		if patch.Content != nil {
			rec.Content = *patch.Content
		}
		if patch.Remark != nil {
			rec.Description = *patch.Remark
		}
		if patch.Status != nil {
			rec.Status = string(*patch.Status)
		}
		if patch.UsageCount != nil {
			rec.UsageCount = *patch.UsageCount
		}
		if rec.Settings == nil {
			rec.Settings = datatypes.JSONMap{}
		}

		if err := tx.Save(rec).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Conflict("prompt with title %q already exists", rec.Title)
			}
			return err
		}
		if patch.Tags != nil {
			if err := tx.Where("prompt_id = ?", rec.ID).Delete(&models.PromptTag{}).Error; err != nil {
				return err
			}
			if err := linkTags(tx, rec.ID, *patch.Tags); err != nil {
				return err
			}
		}
		newTitle = rec.Title
		return nil
	})
	if err != nil {
		return nil, apperr.Internal(err, "update prompt %q", title)
	}
	return s.ReadPrompt(ctx, newTitle)
}

func (s *DBStore) DeletePrompt(ctx context.Context, title string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := findPrompt(tx, title)
		if err != nil {
			return err
		}
		if err := tx.Where("prompt_id = ?", rec.ID).Delete(&models.PromptTag{}).Error; err != nil {
			return err
		}
		return tx.Delete(rec).Error
	})
	if err != nil {
		return apperr.Internal(err, "delete prompt %q", title)
	}
	return nil
}

// SearchPrompts narrows candidates in SQL and ranks them with Rank. LOWER and
// LIKE only fold ASCII in SQLite, so non-ASCII queries rank every prompt.
func (s *DBStore) SearchPrompts(ctx context.Context, query string, fields []string) ([]models.Prompt, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	fields = normalizeFields(fields)
	if q == "" || len(fields) == 0 {
		return []models.Prompt{}, nil
	}
	if !isASCII(q) {
		prompts, err := s.ListPrompts(ctx)
		if err != nil {
			return nil, err
		}
		return Rank(prompts, query, fields), nil
	}

	db := s.db.WithContext(ctx)
	pattern := "%" + escapeLike(q) + "%"
	var clauses []string
	var args []interface{}
	for _, f := range fields {
		switch f {
		case FieldTitle:
			clauses = append(clauses, `LOWER(title) LIKE ? ESCAPE '\'`)
		case FieldContent:
			clauses = append(clauses, `LOWER(content) LIKE ? ESCAPE '\'`)
		case FieldTags:
			clauses = append(clauses, `id IN (SELECT prompt_tags.prompt_id FROM prompt_tags JOIN tags ON tags.id = prompt_tags.tag_id WHERE LOWER(tags.name) LIKE ? ESCAPE '\')`)
		}
		args = append(args, pattern)
	}

	var records []models.PromptRecord
	if err := db.Where(strings.Join(clauses, " OR "), args...).Find(&records).Error; err != nil {
		return nil, apperr.Internal(err, "search prompts")
	}
	prompts, err := s.withTags(db, records)
	if err != nil {
		return nil, err
	}
	sortByTitle(prompts)
	return Rank(prompts, query, fields), nil
}

func (s *DBStore) CountPromptsByCreator(ctx context.Context, username string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.PromptRecord{}).
		Where("creator_username = ?", username).
		Count(&count).Error
	if err != nil {
		return 0, apperr.Internal(err, "count prompts of %q", username)
	}
	return count, nil
}

func (s *DBStore) ListTags(ctx context.Context) ([]string, error) {
	var tags []models.Tag
	if err := s.db.WithContext(ctx).Find(&tags).Error; err != nil {
		return nil, apperr.Internal(err, "list tags")
	}
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	sortTagNames(names)
	return names, nil
}

func (s *DBStore) AddTag(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.Validation("tag name cannot be empty")
	}
	var stored string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tag, err := resolveTag(tx, name)
		if err != nil {
			return err
		}
		stored = tag.Name
		return nil
	})
	if err != nil {
		return "", apperr.Internal(err, "add tag %q", name)
	}
	return stored, nil
}

func (s *DBStore) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("user %q not found", username)
	}
	if err != nil {
		return nil, apperr.Internal(err, "find user %q", username)
	}
	return &user, nil
}

func (s *DBStore) CreateUser(ctx context.Context, username, hashedPassword string) (*models.User, error) {
	user := models.User{Username: username, HashedPassword: hashedPassword}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return apperr.Conflict("username %q is already registered", username)
		}
		if err := tx.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Conflict("username %q is already registered", username)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Internal(err, "create user %q", username)
	}
	return &user, nil
}

func (s *DBStore) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("id").Find(&users).Error; err != nil {
		return nil, apperr.Internal(err, "list users")
	}
	return users, nil
}

func findPrompt(db *gorm.DB, title string) (*models.PromptRecord, error) {
	var rec models.PromptRecord
	err := db.Where("title = ?", title).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("prompt %q not found", title)
	}
	if err != nil {
		return nil, apperr.Internal(err, "find prompt %q", title)
	}
	return &rec, nil
}

// resolveTag returns the tag equal to name ignoring case, creating it when
// absent. Concurrent writers race on the name_key unique index: the loser's
// insert is ignored and it reads back the winner's row.
func resolveTag(tx *gorm.DB, name string) (*models.Tag, error) {
	key := models.TagKey(name)
	var tag models.Tag
	err := tx.Where("name_key = ?", key).First(&tag).Error
	if err == nil {
		return &tag, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	tag = models.Tag{Name: name, NameKey: &key}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&tag).Error; err != nil {
		return nil, err
	}
	if tag.ID != 0 {
		return &tag, nil
	}
	var existing models.Tag
	if err := tx.Where("name_key = ?", key).First(&existing).Error; err != nil {
		return nil, err
	}
	return &existing, nil
}

// linkTags resolves each name to a tag row and links it to the prompt in the
// given order. Names resolving to the same tag are linked once.
func linkTags(tx *gorm.DB, promptID uint, names []string) error {
	seen := make(map[uint]bool, len(names))
	position := 0
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		tag, err := resolveTag(tx, name)
		if err != nil {
			return err
		}
		if seen[tag.ID] {
			continue
		}
		seen[tag.ID] = true
		if err := tx.Create(&models.PromptTag{PromptID: promptID, TagID: tag.ID, Position: position}).Error; err != nil {
			return err
		}
		position++
	}
	return nil
}

func (s *DBStore) toPrompt(db *gorm.DB, rec *models.PromptRecord) (*models.Prompt, error) {
	prompts, err := s.withTags(db, []models.PromptRecord{*rec})
	if err != nil {
		return nil, err
	}
	return &prompts[0], nil
}

// withTags converts records to prompts, loading their tags in one query.
func (s *DBStore) withTags(db *gorm.DB, records []models.PromptRecord) ([]models.Prompt, error) {
	prompts := make([]models.Prompt, len(records))
	if len(records) == 0 {
		return prompts, nil
	}

	ids := make([]uint, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}
	var rows []struct {
		PromptID uint
		Name     string
	}
	err := db.Table("prompt_tags").
		Select("prompt_tags.prompt_id, tags.name").
		Joins("JOIN tags ON tags.id = prompt_tags.tag_id").
		Where("prompt_tags.prompt_id IN ?", ids).
		Order("prompt_tags.prompt_id, prompt_tags.position").
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.Internal(err, "load prompt tags")
	}
	tagsByPrompt := make(map[uint][]string, len(records))
	for _, row := range rows {
		tagsByPrompt[row.PromptID] = append(tagsByPrompt[row.PromptID], row.Name)
	}

	for i, rec := range records {
		tags := tagsByPrompt[rec.ID]
		if tags == nil {
			tags = []string{}
		}
		status := models.PromptStatus(rec.Status)
		if !status.Valid() {
			status = models.PromptStatusEnabled
		}
		prompts[i] = models.Prompt{
			Title:           rec.Title,
			Content:         rec.Content,
			Tags:            tags,
			Remark:          rec.Description,
			Status:          status,
			CreatorUsername: rec.CreatorUsername,
			UsageCount:      rec.UsageCount,
			CreatedAt:       rec.CreatedAt,
			UpdatedAt:       rec.UpdatedAt,
		}
	}
	return prompts, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}
