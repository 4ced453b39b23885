package controllers

import (
	"net/http"

	"github.com/angelmondragon/gallery-backend/api/responses"
	"github.com/angelmondragon/gallery-backend/api/validators"
	gallerysvc "github.com/angelmondragon/gallery-backend/internal/gallery"
	pkgerrors "github.com/angelmondragon/gallery-backend/pkg/errors"
	"github.com/angelmondragon/gallery-backend/pkg/logger"
)

// AdminGalleryInvite mails library access links to a batch of recipients.
// One bad address never blocks the rest; the result reports both lists.
func AdminGalleryInvite(svc gallerysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gallery service unavailable"))
			return
		}

		var payload inviteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Invite(r.Context(), gallerysvc.InviteInput{
			LibrarySlug: payload.LibrarySlug,
			Emails:      payload.Emails,
		})
		if err != nil {
			if result != nil {
				// Partial data still goes out with the error payload details.
				typed := pkgerrors.As(err)
				if typed != nil {
					err = typed.WithDetails(result)
				}
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

type inviteRequest struct {
	LibrarySlug string   `json:"library_slug" validate:"required"`
	Emails      []string `json:"emails" validate:"required,min=1,max=100,dive,email"`
}
