package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/gallery-backend/api/responses"
	"github.com/angelmondragon/gallery-backend/api/validators"
	ordersvc "github.com/angelmondragon/gallery-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/gallery-backend/pkg/errors"
	"github.com/angelmondragon/gallery-backend/pkg/logger"
)

// GalleryResend re-mails download links for a completed order, optionally
// narrowed to a subset of its photos.
func GalleryResend(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		var payload resendRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		access, err := svc.Resend(r.Context(), ordersvc.ResendInput{
			OrderRef: payload.OrderRef,
			Email:    payload.Email,
			PhotoIDs: payload.PhotoIDs,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, access)
	}
}

type resendRequest struct {
	OrderRef string      `json:"order_ref" validate:"required,max=128"`
	Email    string      `json:"email" validate:"required,email"`
	PhotoIDs []uuid.UUID `json:"photo_ids" validate:"omitempty,max=500"`
}
