package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/gallery-backend/pkg/db/models"
	"github.com/angelmondragon/gallery-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreatePending(ctx context.Context, order *models.PhotoOrder) (*models.PhotoOrder, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.Status == "" {
		order.Status = enums.PaymentStatusPending
	}
	if order.Currency == "" {
		order.Currency = enums.CurrencyUSD
	}
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) SetGatewayOrderID(ctx context.Context, orderID uuid.UUID, gatewayOrderID string) error {
	return r.db.WithContext(ctx).
		Model(&models.PhotoOrder{}).
		Where("id = ?", orderID).
		Update("gateway_order_id", gatewayOrderID).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PhotoOrder, error) {
	var order models.PhotoOrder
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByGatewayID(ctx context.Context, gatewayOrderID string) (*models.PhotoOrder, error) {
	var order models.PhotoOrder
	err := r.db.WithContext(ctx).
		Where("gateway_order_id = ?", gatewayOrderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByAnyRef accepts either the internal order id or the gateway order id.
func (r *repository) FindByAnyRef(ctx context.Context, ref string) (*models.PhotoOrder, error) {
	if id, err := uuid.Parse(ref); err == nil {
		if order, err := r.FindByID(ctx, id); err == nil {
			return order, nil
		}
	}
	return r.FindByGatewayID(ctx, ref)
}

func (r *repository) MarkCompleted(ctx context.Context, orderID uuid.UUID, captureID string, completedAt time.Time) error {
	updates := map[string]any{
		"status":       enums.PaymentStatusCompleted,
		"completed_at": completedAt,
	}
	if captureID != "" {
		updates["capture_id"] = captureID
	}
	return r.db.WithContext(ctx).
		Model(&models.PhotoOrder{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

func (r *repository) MarkFailed(ctx context.Context, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.PhotoOrder{}).
		Where("id = ? AND status = ?", orderID, enums.PaymentStatusPending).
		Update("status", enums.PaymentStatusFailed).Error
}

// InsertMissingEntitlements grants the order access to each photo, skipping
// pairs that already exist so replays insert nothing new.
func (r *repository) InsertMissingEntitlements(ctx context.Context, orderID uuid.UUID, photoIDs []uuid.UUID, expiresAt *time.Time) error {
	if len(photoIDs) == 0 {
		return nil
	}
	entitlements := make([]models.Entitlement, 0, len(photoIDs))
	for _, photoID := range photoIDs {
		entitlements = append(entitlements, models.Entitlement{
			ID:            uuid.New(),
			OrderID:       orderID,
			PhotoID:       photoID,
			DownloadToken: uuid.New(),
			ExpiresAt:     expiresAt,
		})
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}, {Name: "photo_id"}},
			DoNothing: true,
		}).
		Create(&entitlements).Error
}

func (r *repository) ListEntitlements(ctx context.Context, orderID uuid.UUID) ([]models.Entitlement, error) {
	var entitlements []models.Entitlement
	err := r.db.WithContext(ctx).
		Preload("Photo").
		Where("order_id = ?", orderID).
		// Batch inserts share one created_at; id breaks the tie so repeated
		// listings return an identical sequence.
		Order("created_at ASC, id ASC").
		Find(&entitlements).Error
	if err != nil {
		return nil, err
	}
	return entitlements, nil
}
