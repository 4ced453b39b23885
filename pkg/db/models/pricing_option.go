package models

import (
	"time"

	"github.com/google/uuid"
)

// FullLibraryPhotoCount marks a pricing option that covers every active photo
// in the library rather than a fixed count.
const FullLibraryPhotoCount = -1

// PricingOption is a sellable tier: a single photo, a fixed-size bundle, or
// the full-library buyout (PhotoCount == FullLibraryPhotoCount).
type PricingOption struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	LibraryID  uuid.UUID `gorm:"column:library_id;type:uuid;not null;index"`
	Name       string    `gorm:"column:name;not null"`
	PhotoCount int       `gorm:"column:photo_count;not null"`
	PriceCents int       `gorm:"column:price_cents;not null"`
	Active     bool      `gorm:"column:active;not null;default:true"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// IsFullLibrary reports whether the option is the whole-library buyout.
func (p PricingOption) IsFullLibrary() bool {
	return p.PhotoCount == FullLibraryPhotoCount
}
