package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/gallery-backend/pkg/db/models"
)

// Repository defines persistence operations for orders and entitlements.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreatePending(ctx context.Context, order *models.PhotoOrder) (*models.PhotoOrder, error)
	SetGatewayOrderID(ctx context.Context, orderID uuid.UUID, gatewayOrderID string) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PhotoOrder, error)
	FindByGatewayID(ctx context.Context, gatewayOrderID string) (*models.PhotoOrder, error)
	FindByAnyRef(ctx context.Context, ref string) (*models.PhotoOrder, error)
	MarkCompleted(ctx context.Context, orderID uuid.UUID, captureID string, completedAt time.Time) error
	MarkFailed(ctx context.Context, orderID uuid.UUID) error
	InsertMissingEntitlements(ctx context.Context, orderID uuid.UUID, photoIDs []uuid.UUID, expiresAt *time.Time) error
	ListEntitlements(ctx context.Context, orderID uuid.UUID) ([]models.Entitlement, error)
}
