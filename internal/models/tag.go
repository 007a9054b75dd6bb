package models

import (
	"strings"
	"time"
)

// Tag is an entry of the global tag registry. Names are unique ignoring case;
// the casing of the first insertion is kept. NameKey holds the folded name
// and carries the unique index that enforces this.
type Tag struct {
	ID        uint      `gorm:"primarykey" json:"-"`
	Name      string    `gorm:"size:255;uniqueIndex;not null" json:"name"`
	NameKey   *string   `gorm:"size:255;uniqueIndex" json:"-"`
	CreatedAt time.Time `json:"-"`
}

// TagKey folds name for case-insensitive comparison.
func TagKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
