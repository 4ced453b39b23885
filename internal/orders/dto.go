package orders

import "github.com/google/uuid"

// EntitlementView is the buyer-facing shape of one granted photo.
type EntitlementView struct {
	PhotoID       uuid.UUID `json:"photo_id"`
	PhotoTitle    string    `json:"photo_title"`
	ThumbnailURL  string    `json:"thumbnail_url"`
	DownloadToken uuid.UUID `json:"download_token"`
}

// OrderAccess is the canonical fulfillment result: what the buyer now owns.
// Capture, resend, and the idempotent replay path all return this shape.
type OrderAccess struct {
	OrderID      uuid.UUID         `json:"order_id"`
	LibraryTitle string            `json:"library_title"`
	Entitlements []EntitlementView `json:"entitlements"`
}
