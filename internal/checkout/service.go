package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/gallery-backend/internal/gallery"
	"github.com/angelmondragon/gallery-backend/internal/orders"
	"github.com/angelmondragon/gallery-backend/internal/pricing"
	"github.com/angelmondragon/gallery-backend/internal/refcache"
	"github.com/angelmondragon/gallery-backend/pkg/db/models"
	"github.com/angelmondragon/gallery-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gallery-backend/pkg/errors"
	"github.com/angelmondragon/gallery-backend/pkg/logger"
	"github.com/angelmondragon/gallery-backend/pkg/metrics"
	"github.com/angelmondragon/gallery-backend/pkg/paypal"
	"github.com/angelmondragon/gallery-backend/pkg/types"
)

// gatewayClient opens gateway orders for buyer approval.
type gatewayClient interface {
	CreateOrder(ctx context.Context, params paypal.OrderCreateParams) (*paypal.Order, error)
}

// referenceWriter mirrors pending checkouts for the approval window.
type referenceWriter interface {
	Put(ctx context.Context, gatewayOrderID string, entry refcache.Entry) error
}

// Service opens checkouts: price the selection, persist the pending order,
// and hand the buyer off to gateway approval.
type Service interface {
	Initiate(ctx context.Context, input InitiateInput) (*InitiateResult, error)
}

type service struct {
	galleries   gallery.Repository
	orders      orders.Repository
	engine      *pricing.Engine
	gateway     gatewayClient
	cache       referenceWriter
	metrics     *metrics.CheckoutMetrics
	logger      *logger.Logger
	siteBaseURL string
	environment string
}

// ItemInput is one selected photo with the buyer's chosen pricing option.
type ItemInput struct {
	PhotoID   uuid.UUID
	OptionRef string
}

// InitiateInput is a validated checkout request. BuyerUserID is nil for guest
// checkouts.
type InitiateInput struct {
	LibrarySlug string
	Email       string
	BuyerUserID *uuid.UUID
	Items       []ItemInput
	Source      string
}

// InitiateResult carries what the client needs to continue at the gateway.
type InitiateResult struct {
	OrderID        uuid.UUID `json:"order_id"`
	GatewayOrderID string    `json:"gateway_order_id"`
	ApprovalURL    string    `json:"approval_url"`
	AmountCents    int       `json:"amount_cents"`
	PricingMessage string    `json:"pricing_message"`
}

// NewService builds a checkout service. gateway may be nil when the gateway
// is unconfigured; Initiate then fails with a config error instead of at boot.
func NewService(
	galleries gallery.Repository,
	ordersRepo orders.Repository,
	engine *pricing.Engine,
	gateway gatewayClient,
	cache referenceWriter,
	m *metrics.CheckoutMetrics,
	logg *logger.Logger,
	siteBaseURL, environment string,
) (Service, error) {
	if galleries == nil {
		return nil, fmt.Errorf("gallery repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if engine == nil {
		return nil, fmt.Errorf("pricing engine required")
	}
	if cache == nil {
		return nil, fmt.Errorf("reference cache required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		galleries:   galleries,
		orders:      ordersRepo,
		engine:      engine,
		gateway:     gateway,
		cache:       cache,
		metrics:     m,
		logger:      logg,
		siteBaseURL: strings.TrimRight(siteBaseURL, "/"),
		environment: environment,
	}, nil
}

func (s *service) Initiate(ctx context.Context, input InitiateInput) (*InitiateResult, error) {
	if s.gateway == nil {
		s.metrics.IncCheckout("config_error")
		return nil, pkgerrors.New(pkgerrors.CodeConfig, "payment gateway is not configured")
	}
	if err := validateInput(input); err != nil {
		s.metrics.IncCheckout("invalid")
		return nil, err
	}

	ctx = s.logger.WithLibrary(ctx, input.LibrarySlug)

	library, err := s.galleries.FindLibraryBySlug(ctx, input.LibrarySlug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.metrics.IncCheckout("invalid")
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "library not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up library")
	}

	quote, err := s.price(ctx, library, input.Items)
	if err != nil {
		s.metrics.IncCheckout("invalid")
		return nil, err
	}

	order, err := s.orders.CreatePending(ctx, &models.PhotoOrder{
		Email:       strings.ToLower(strings.TrimSpace(input.Email)),
		BuyerUserID: input.BuyerUserID,
		AmountCents: quote.TotalCents,
		Currency:    enums.CurrencyUSD,
		Metadata: types.OrderMetadata{
			PhotoIDs:    quote.PhotoIDs,
			LibrarySlug: library.Slug,
			Source:      input.Source,
			Environment: s.environment,
		},
	})
	if err != nil {
		s.metrics.IncCheckout("error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating order")
	}

	ctx = s.logger.WithOrderID(ctx, order.ID.String())

	// The order's own id rides in custom_id: gateway reference fields are
	// character-limited, so the row is the indirection for the full selection.
	gatewayOrder, err := s.gateway.CreateOrder(ctx, paypal.OrderCreateParams{
		AmountCents: quote.TotalCents,
		Currency:    enums.CurrencyUSD,
		Description: fmt.Sprintf("%d photo(s) from %s", len(quote.PhotoIDs), library.Name),
		CustomID:    order.ID.String(),
		ReturnURL:   fmt.Sprintf("%s/gallery/%s?checkout=return", s.siteBaseURL, library.Slug),
		CancelURL:   fmt.Sprintf("%s/gallery/%s?checkout=cancel", s.siteBaseURL, library.Slug),
	})
	if err != nil {
		// The pending row stays behind; with no captured payment it is inert.
		s.metrics.IncCheckout("gateway_error")
		return nil, err
	}

	if err := s.orders.SetGatewayOrderID(ctx, order.ID, gatewayOrder.ID); err != nil {
		s.metrics.IncCheckout("error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persisting gateway order id")
	}

	// Mirror the snapshot for the approval window. The cache is an
	// optimization; losing the write costs a DB lookup at capture time.
	entry := refcache.Entry{
		OrderID:     order.ID,
		Email:       order.Email,
		BuyerUserID: order.BuyerUserID,
		AmountCents: order.AmountCents,
		PhotoIDs:    quote.PhotoIDs,
		LibrarySlug: library.Slug,
	}
	if err := s.cache.Put(ctx, gatewayOrder.ID, entry); err != nil {
		s.logger.Warn(ctx, "reference cache write failed: "+err.Error())
	}

	s.metrics.IncCheckout("created")
	s.logger.Info(s.logger.WithGatewayOrderID(ctx, gatewayOrder.ID), "checkout created")

	return &InitiateResult{
		OrderID:        order.ID,
		GatewayOrderID: gatewayOrder.ID,
		ApprovalURL:    gatewayOrder.ApprovalURL(),
		AmountCents:    quote.TotalCents,
		PricingMessage: quote.Message,
	}, nil
}

func (s *service) price(ctx context.Context, library *models.PhotoLibrary, items []ItemInput) (*pricing.Quote, error) {
	photoIDs := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		photoIDs = append(photoIDs, item.PhotoID)
	}

	known, err := s.galleries.PhotosByIDs(ctx, photoIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up photos")
	}
	byID := make(map[uuid.UUID]models.Photo, len(known))
	for _, photo := range known {
		byID[photo.ID] = photo
	}
	for _, id := range photoIDs {
		photo, ok := byID[id]
		if !ok || photo.LibraryID != library.ID {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "selection contains unknown photos").
				WithDetails(map[string]string{"photo_id": id.String()})
		}
	}

	// Pricing degrades rather than blocking checkout: a failed option or
	// photo lookup falls back to flat single pricing.
	options, err := s.galleries.ActivePricingOptions(ctx, library.ID)
	if err != nil {
		s.logger.Warn(ctx, "pricing option lookup failed, using flat pricing: "+err.Error())
		options = nil
	}
	var activeIDs []uuid.UUID
	if hasFullLibrary(options) {
		active, err := s.galleries.ActivePhotos(ctx, library.ID)
		if err != nil {
			s.logger.Warn(ctx, "active photo lookup failed: "+err.Error())
		}
		for _, photo := range active {
			activeIDs = append(activeIDs, photo.ID)
		}
	}

	engineItems := make([]pricing.Item, 0, len(items))
	for _, item := range items {
		engineItems = append(engineItems, pricing.Item{PhotoID: item.PhotoID, OptionRef: item.OptionRef})
	}
	quote, err := s.engine.Quote(engineItems, options, activeIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "pricing selection")
	}
	return quote, nil
}

func validateInput(input InitiateInput) error {
	if strings.TrimSpace(input.LibrarySlug) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "library slug is required")
	}
	if strings.TrimSpace(input.Email) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "buyer email is required")
	}
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one photo must be selected")
	}
	return nil
}

func hasFullLibrary(options []models.PricingOption) bool {
	for _, opt := range options {
		if opt.IsFullLibrary() {
			return true
		}
	}
	return false
}
