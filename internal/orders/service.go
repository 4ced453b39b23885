package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/gallery-backend/internal/gallery"
	"github.com/angelmondragon/gallery-backend/pkg/db/models"
	"github.com/angelmondragon/gallery-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gallery-backend/pkg/errors"
	"github.com/angelmondragon/gallery-backend/pkg/logger"
	"github.com/angelmondragon/gallery-backend/pkg/types"
)

// libraryReader resolves the library named in an order's metadata.
type libraryReader interface {
	FindLibraryBySlug(ctx context.Context, slug string) (*models.PhotoLibrary, error)
}

// ResendMailer delivers access links for an already-completed order.
type ResendMailer interface {
	SendOrderResend(ctx context.Context, to, libraryTitle string, links []types.DownloadLink, refresh bool) error
}

// Service exposes order-level operations beyond repository reads.
type Service interface {
	AccessFor(ctx context.Context, order *models.PhotoOrder) (*OrderAccess, error)
	Resend(ctx context.Context, input ResendInput) (*OrderAccess, error)
}

type service struct {
	repo        Repository
	libraries   libraryReader
	mailer      ResendMailer
	logger      *logger.Logger
	siteBaseURL string
}

// ResendInput identifies a completed order by either id form, optionally
// narrowed to a subset of its photos. Email must match the order on file.
type ResendInput struct {
	OrderRef string
	Email    string
	PhotoIDs []uuid.UUID
}

// NewService builds an orders service with the required dependencies.
func NewService(repo Repository, libraries libraryReader, mailer ResendMailer, logg *logger.Logger, siteBaseURL string) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if libraries == nil {
		return nil, fmt.Errorf("library reader required")
	}
	if mailer == nil {
		return nil, fmt.Errorf("resend mailer required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:        repo,
		libraries:   libraries,
		mailer:      mailer,
		logger:      logg,
		siteBaseURL: strings.TrimRight(siteBaseURL, "/"),
	}, nil
}

// AccessFor assembles the buyer-facing access view for an order.
func (s *service) AccessFor(ctx context.Context, order *models.PhotoOrder) (*OrderAccess, error) {
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order required")
	}

	entitlements, err := s.repo.ListEntitlements(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing entitlements")
	}

	access := &OrderAccess{
		OrderID:      order.ID,
		LibraryTitle: s.libraryTitle(ctx, order.Metadata.LibrarySlug),
		Entitlements: make([]EntitlementView, 0, len(entitlements)),
	}
	for _, ent := range entitlements {
		view := EntitlementView{
			PhotoID:       ent.PhotoID,
			DownloadToken: ent.DownloadToken,
		}
		if ent.Photo != nil {
			view.PhotoTitle = ent.Photo.Title
			view.ThumbnailURL = gallery.ThumbnailURL(ent.Photo.FileID)
		}
		access.Entitlements = append(access.Entitlements, view)
	}
	return access, nil
}

func (s *service) Resend(ctx context.Context, input ResendInput) (*OrderAccess, error) {
	ref := strings.TrimSpace(input.OrderRef)
	if ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order reference is required")
	}
	email := strings.TrimSpace(input.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	order, err := s.repo.FindByAnyRef(ctx, ref)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up order")
	}
	// A mismatched email reads as not-found so the endpoint never confirms
	// which references exist.
	if !strings.EqualFold(email, order.Email) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if order.Status != enums.PaymentStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not completed")
	}

	ctx = s.logger.WithOrderID(ctx, order.ID.String())

	access, err := s.AccessFor(ctx, order)
	if err != nil {
		return nil, err
	}

	refresh := len(input.PhotoIDs) > 0
	if refresh {
		access.Entitlements = filterEntitlements(access.Entitlements, input.PhotoIDs)
		if len(access.Entitlements) == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "no matching photos on this order")
		}
	}

	links := make([]types.DownloadLink, 0, len(access.Entitlements))
	for _, ent := range access.Entitlements {
		links = append(links, types.DownloadLink{
			Title: ent.PhotoTitle,
			URL:   gallery.DownloadURL(s.siteBaseURL, ent.DownloadToken.String()),
		})
	}

	if err := s.mailer.SendOrderResend(ctx, order.Email, access.LibraryTitle, links, refresh); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sending access mail")
	}

	s.logger.Info(ctx, "order access resent")
	return access, nil
}

func (s *service) libraryTitle(ctx context.Context, slug string) string {
	if strings.TrimSpace(slug) == "" {
		return ""
	}
	library, err := s.libraries.FindLibraryBySlug(ctx, slug)
	if err != nil {
		// Title is display-only; fall back to the slug instead of failing.
		return slug
	}
	return library.Name
}

func filterEntitlements(views []EntitlementView, photoIDs []uuid.UUID) []EntitlementView {
	wanted := make(map[uuid.UUID]struct{}, len(photoIDs))
	for _, id := range photoIDs {
		wanted[id] = struct{}{}
	}
	filtered := views[:0]
	for _, view := range views {
		if _, ok := wanted[view.PhotoID]; ok {
			filtered = append(filtered, view)
		}
	}
	return filtered
}
