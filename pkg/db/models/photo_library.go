package models

import (
	"time"

	"github.com/google/uuid"
)

// PhotoLibrary is a published shoot. The slug is the public handle used by
// checkout requests and invite links.
type PhotoLibrary struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Slug        string    `gorm:"column:slug;not null;uniqueIndex"`
	Name        string    `gorm:"column:name;not null"`
	Description *string   `gorm:"column:description"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`

	Photos []Photo `gorm:"foreignKey:LibraryID"`
}
