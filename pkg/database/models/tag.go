package models

import (
	"strings"
	"time"
)

// Tag is a global label that can be attached to virtual machines. Tags are
// shared between all clusters in the store.
type Tag struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;not null;size:100" json:"name"`
	Slug        string    `gorm:"uniqueIndex;not null;size:100" json:"slug"`
	Color       string    `gorm:"size:6" json:"color"`
	ObjectTypes []string  `gorm:"serializer:json" json:"object_types"`
	CreatedAt   time.Time `json:"created"`
	UpdatedAt   time.Time `json:"last_updated"`
}

// OwnedBy reports whether the tag slug carries the given ownership prefix
func (t *Tag) OwnedBy(prefix string) bool {
	return strings.HasPrefix(strings.ToLower(t.Slug), strings.ToLower(prefix))
}

// Summary returns the serialized summary of the tag
func (t *Tag) Summary() RecordSummary {
	return RecordSummary{ID: t.ID, Model: ObjectTypeTag, Name: t.Name}
}
