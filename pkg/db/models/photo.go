package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/gallery-backend/pkg/enums"
)

// Photo is a single sellable asset inside a library. FileID points at the
// backing object in drive storage and is what download/stream URLs embed.
type Photo struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	LibraryID uuid.UUID         `gorm:"column:library_id;type:uuid;not null;index"`
	Title     string            `gorm:"column:title;not null"`
	FileID    string            `gorm:"column:file_id;not null"`
	Status    enums.PhotoStatus `gorm:"column:status;not null;default:'active'"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
