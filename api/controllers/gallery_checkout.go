package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/gallery-backend/api/responses"
	"github.com/angelmondragon/gallery-backend/api/validators"
	checkoutsvc "github.com/angelmondragon/gallery-backend/internal/checkout"
	pkgerrors "github.com/angelmondragon/gallery-backend/pkg/errors"
	"github.com/angelmondragon/gallery-backend/pkg/logger"
)

// GalleryCheckout opens a checkout for a selection of photos and returns the
// gateway approval handoff.
func GalleryCheckout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]checkoutsvc.ItemInput, 0, len(payload.Items))
		for _, item := range payload.Items {
			items = append(items, checkoutsvc.ItemInput{PhotoID: item.PhotoID, OptionRef: item.OptionRef})
		}

		result, err := svc.Initiate(r.Context(), checkoutsvc.InitiateInput{
			LibrarySlug: payload.LibrarySlug,
			Email:       payload.Email,
			BuyerUserID: payload.BuyerUserID,
			Items:       items,
			Source:      payload.Source,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

type checkoutRequest struct {
	LibrarySlug string              `json:"library_slug" validate:"required"`
	Email       string              `json:"email" validate:"required,email"`
	BuyerUserID *uuid.UUID          `json:"buyer_user_id"`
	Items       []checkoutItemInput `json:"items" validate:"required,min=1,dive"`
	Source      string              `json:"source" validate:"omitempty,max=64"`
}

type checkoutItemInput struct {
	PhotoID   uuid.UUID `json:"photo_id" validate:"required"`
	OptionRef string    `json:"option_ref" validate:"omitempty,max=64"`
}
