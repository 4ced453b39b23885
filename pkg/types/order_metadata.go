package types

import "github.com/google/uuid"

// OrderMetadata is the checkout snapshot written onto an order at creation.
// It is the authoritative record of what was bought; the reference cache only
// mirrors it for the approval window.
type OrderMetadata struct {
	PhotoIDs    []uuid.UUID `json:"photo_ids"`
	LibrarySlug string      `json:"library_slug,omitempty"`
	Source      string      `json:"source,omitempty"`
	Environment string      `json:"environment,omitempty"`
}

// DistinctPhotoIDs returns the deduplicated photo ids preserving first-seen order.
func (m OrderMetadata) DistinctPhotoIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(m.PhotoIDs))
	out := make([]uuid.UUID, 0, len(m.PhotoIDs))
	for _, id := range m.PhotoIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
