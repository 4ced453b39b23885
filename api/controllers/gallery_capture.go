package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/gallery-backend/api/responses"
	"github.com/angelmondragon/gallery-backend/api/validators"
	ordersvc "github.com/angelmondragon/gallery-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/gallery-backend/pkg/errors"
	"github.com/angelmondragon/gallery-backend/pkg/logger"
)

// captureService is the capture surface the controller needs.
type captureService interface {
	Capture(ctx context.Context, ref string) (*ordersvc.OrderAccess, error)
}

// GalleryCapture finalizes payment for an approved checkout and returns the
// buyer's download access. Safe to call again for an already-completed order.
func GalleryCapture(orch captureService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if orch == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "capture service unavailable"))
			return
		}

		var payload captureRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		access, err := orch.Capture(r.Context(), payload.OrderRef)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, access)
	}
}

type captureRequest struct {
	OrderRef string `json:"order_ref" validate:"required,max=128"`
}
