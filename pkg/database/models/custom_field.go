package models

import "time"

// CustomField defines an extra attribute for the listed object types
type CustomField struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;not null;size:50" json:"name"`
	Label       string    `gorm:"size:50" json:"label"`
	Description string    `gorm:"size:200" json:"description"`
	Type        string    `gorm:"not null;size:50" json:"type"`
	Required    bool      `gorm:"not null;default:false" json:"required"`
	ObjectTypes []string  `gorm:"serializer:json" json:"object_types"`
	CreatedAt   time.Time `json:"created"`
	UpdatedAt   time.Time `json:"last_updated"`
}
