package models

import (
	"time"

	"github.com/google/uuid"
)

// Entitlement grants one order access to one photo. The (order_id, photo_id)
// uniqueness is what makes fulfillment idempotent: replayed captures insert
// nothing new.
type Entitlement struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID       uuid.UUID  `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_entitlements_order_photo"`
	PhotoID       uuid.UUID  `gorm:"column:photo_id;type:uuid;not null;uniqueIndex:ux_entitlements_order_photo"`
	DownloadToken uuid.UUID  `gorm:"column:download_token;type:uuid;default:gen_random_uuid();uniqueIndex"`
	DownloadCount int        `gorm:"column:download_count;not null;default:0"`
	ExpiresAt     *time.Time `gorm:"column:expires_at"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`

	Photo *Photo `gorm:"foreignKey:PhotoID"`
}
