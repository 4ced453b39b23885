package gallery

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/gallery-backend/pkg/db/models"
	"github.com/angelmondragon/gallery-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a gallery repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindLibraryBySlug(ctx context.Context, slug string) (*models.PhotoLibrary, error) {
	var library models.PhotoLibrary
	err := r.db.WithContext(ctx).
		Where("slug = ?", slug).
		First(&library).Error
	if err != nil {
		return nil, err
	}
	return &library, nil
}

func (r *repository) FindLibraryByID(ctx context.Context, id uuid.UUID) (*models.PhotoLibrary, error) {
	var library models.PhotoLibrary
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&library).Error
	if err != nil {
		return nil, err
	}
	return &library, nil
}

func (r *repository) ActivePhotos(ctx context.Context, libraryID uuid.UUID) ([]models.Photo, error) {
	var photos []models.Photo
	err := r.db.WithContext(ctx).
		Where("library_id = ? AND status = ?", libraryID, enums.PhotoStatusActive).
		Order("created_at ASC").
		Find(&photos).Error
	if err != nil {
		return nil, err
	}
	return photos, nil
}

func (r *repository) PhotosByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Photo, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var photos []models.Photo
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&photos).Error
	if err != nil {
		return nil, err
	}
	return photos, nil
}

func (r *repository) ActivePricingOptions(ctx context.Context, libraryID uuid.UUID) ([]models.PricingOption, error) {
	var options []models.PricingOption
	err := r.db.WithContext(ctx).
		Where("library_id = ? AND active = ?", libraryID, true).
		Order("photo_count DESC").
		Find(&options).Error
	if err != nil {
		return nil, err
	}
	return options, nil
}
