package gallery

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/gallery-backend/pkg/db/models"
)

// Repository defines persistence operations for libraries, photos, and
// pricing options.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindLibraryBySlug(ctx context.Context, slug string) (*models.PhotoLibrary, error)
	FindLibraryByID(ctx context.Context, id uuid.UUID) (*models.PhotoLibrary, error)
	ActivePhotos(ctx context.Context, libraryID uuid.UUID) ([]models.Photo, error)
	PhotosByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Photo, error)
	ActivePricingOptions(ctx context.Context, libraryID uuid.UUID) ([]models.PricingOption, error)
}
