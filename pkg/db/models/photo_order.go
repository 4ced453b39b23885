package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/gallery-backend/pkg/enums"
	"github.com/angelmondragon/gallery-backend/pkg/types"
)

// PhotoOrder is the durable record of a checkout. It is created pending
// before the gateway order exists; the row id doubles as the gateway
// custom_id so a capture can always be traced back here even when the
// reference cache has expired.
type PhotoOrder struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GatewayOrderID *string             `gorm:"column:gateway_order_id;uniqueIndex"`
	CaptureID      *string             `gorm:"column:capture_id"`
	Email          string              `gorm:"column:email;not null"`
	BuyerUserID    *uuid.UUID          `gorm:"column:buyer_user_id;type:uuid"`
	AmountCents    int                 `gorm:"column:amount_cents;not null"`
	Currency       enums.Currency      `gorm:"column:currency;not null;default:'USD'"`
	Status         enums.PaymentStatus `gorm:"column:status;not null;default:'pending'"`
	Metadata       types.OrderMetadata `gorm:"column:metadata;type:jsonb;serializer:json"`
	CompletedAt    *time.Time          `gorm:"column:completed_at"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`

	Entitlements []Entitlement `gorm:"foreignKey:OrderID"`
}
