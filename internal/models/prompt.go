package models

import (
	"time"

	"gorm.io/datatypes"
)

type PromptStatus string

const (
	PromptStatusEnabled  PromptStatus = "enabled"
	PromptStatusDisabled PromptStatus = "disabled"
)

func (s PromptStatus) Valid() bool {
	return s == PromptStatusEnabled || s == PromptStatusDisabled
}

// Prompt is a named text template. The title is its identity in both storage
// backends.
type Prompt struct {
	Title           string       `json:"title"`
	Content         string       `json:"content"`
	Tags            []string     `json:"tags"`
	Remark          string       `json:"remark"`
	Status          PromptStatus `json:"status"`
	CreatorUsername *string      `json:"creator_username"`
	UsageCount      int          `json:"usage_count"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// IsEnabled reports whether the prompt is visible to the MCP tools.
func (p *Prompt) IsEnabled() bool {
	return p.Status == PromptStatusEnabled
}

// OwnedBy reports whether username created the prompt.
func (p *Prompt) OwnedBy(username string) bool {
	return p.CreatorUsername != nil && *p.CreatorUsername == username
}

// PromptPatch carries a partial update. Nil fields are left untouched.
type PromptPatch struct {
	Title      *string
	Content    *string
	Tags       *[]string
	Remark     *string
	Status     *PromptStatus
	UsageCount *int
}

// PromptRecord is the relational row behind a Prompt.
type PromptRecord struct {
	ID              uint              `gorm:"primarykey"`
	Title           string            `gorm:"size:255;uniqueIndex;not null"`
	Content         string            `gorm:"type:text;not null"`
	Description     string            `gorm:"type:text"`
	CreatorUsername *string           `gorm:"size:255;index"`
	Status          string            `gorm:"size:50;index;not null;default:'enabled'"`
	UsageCount      int               `gorm:"not null;default:0"`
	Priority        int               `gorm:"not null;default:0"`
	Settings        datatypes.JSONMap `gorm:"type:json"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (PromptRecord) TableName() string {
	return "prompts"
}

// PromptTag links a prompt to a tag. The composite primary key keeps each
// (prompt, tag) pair unique; Position preserves the order tags were given in.
type PromptTag struct {
	PromptID uint `gorm:"primaryKey;autoIncrement:false"`
	TagID    uint `gorm:"primaryKey;autoIncrement:false;index"`
	Position int  `gorm:"not null;default:0"`
}

func (PromptTag) TableName() string {
	return "prompt_tags"
}
