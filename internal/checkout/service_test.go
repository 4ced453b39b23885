package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/gallery-backend/internal/gallery"
	"github.com/angelmondragon/gallery-backend/internal/orders"
	"github.com/angelmondragon/gallery-backend/internal/pricing"
	"github.com/angelmondragon/gallery-backend/internal/refcache"
	"github.com/angelmondragon/gallery-backend/pkg/db/models"
	"github.com/angelmondragon/gallery-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gallery-backend/pkg/errors"
	"github.com/angelmondragon/gallery-backend/pkg/logger"
	"github.com/angelmondragon/gallery-backend/pkg/paypal"
)

func setupCheckoutTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS photo_libraries (
  id TEXT PRIMARY KEY,
  slug TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  description TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS photos (
  id TEXT PRIMARY KEY,
  library_id TEXT NOT NULL,
  title TEXT NOT NULL,
  file_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'active',
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS pricing_options (
  id TEXT PRIMARY KEY,
  library_id TEXT NOT NULL,
  name TEXT NOT NULL,
  photo_count INTEGER NOT NULL,
  price_cents INTEGER NOT NULL,
  active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS photo_orders (
  id TEXT PRIMARY KEY,
  gateway_order_id TEXT UNIQUE,
  capture_id TEXT,
  email TEXT NOT NULL,
  buyer_user_id TEXT,
  amount_cents INTEGER NOT NULL,
  currency TEXT NOT NULL DEFAULT 'USD',
  status TEXT NOT NULL DEFAULT 'pending',
  metadata TEXT,
  completed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	}
	for _, stmt := range stmts {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type stubGateway struct {
	calls []paypal.OrderCreateParams
	order *paypal.Order
	err   error
}

func (s *stubGateway) CreateOrder(_ context.Context, params paypal.OrderCreateParams) (*paypal.Order, error) {
	s.calls = append(s.calls, params)
	if s.err != nil {
		return nil, s.err
	}
	return s.order, nil
}

type stubRefWriter struct {
	entries map[string]refcache.Entry
	err     error
}

func (s *stubRefWriter) Put(_ context.Context, gatewayOrderID string, entry refcache.Entry) error {
	if s.err != nil {
		return s.err
	}
	if s.entries == nil {
		s.entries = map[string]refcache.Entry{}
	}
	s.entries[gatewayOrderID] = entry
	return nil
}

type checkoutFixture struct {
	db      *gorm.DB
	gateway *stubGateway
	cache   *stubRefWriter
	orders  orders.Repository
	svc     Service
	library models.PhotoLibrary
	photos  []models.Photo
}

func setupCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	db := setupCheckoutTestDB(t)

	library := models.PhotoLibrary{ID: uuid.New(), Slug: "night-archive", Name: "Night Archive"}
	require.NoError(t, db.Create(&library).Error)

	photos := make([]models.Photo, 4)
	for i := range photos {
		photos[i] = models.Photo{
			ID:        uuid.New(),
			LibraryID: library.ID,
			Title:     "photo",
			FileID:    "file",
			Status:    enums.PhotoStatusActive,
		}
		require.NoError(t, db.Create(&photos[i]).Error)
	}

	opts := []models.PricingOption{
		{ID: uuid.New(), LibraryID: library.ID, Name: "Single Photo", PhotoCount: 1, PriceCents: 500, Active: true},
		{ID: uuid.New(), LibraryID: library.ID, Name: "Standard Bundle", PhotoCount: 3, PriceCents: 1200, Active: true},
	}
	for i := range opts {
		require.NoError(t, db.Create(&opts[i]).Error)
	}

	gateway := &stubGateway{order: &paypal.Order{
		ID:     "gw-123",
		Status: "CREATED",
		Links:  []paypal.Link{{Href: "https://gateway/approve", Rel: "approve"}},
	}}
	cache := &stubRefWriter{}
	ordersRepo := orders.NewRepository(db)
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})

	svc, err := NewService(
		gallery.NewRepository(db),
		ordersRepo,
		pricing.NewEngine(0),
		gateway,
		cache,
		nil,
		logg,
		"https://site",
		"test",
	)
	require.NoError(t, err)

	return &checkoutFixture{db: db, gateway: gateway, cache: cache, orders: ordersRepo, svc: svc, library: library, photos: photos}
}

func itemsFor(photos []models.Photo, n int) []ItemInput {
	items := make([]ItemInput, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, ItemInput{PhotoID: photos[i].ID})
	}
	return items
}

func TestInitiateCreatesOrderAndGatewayOrder(t *testing.T) {
	f := setupCheckoutFixture(t)

	result, err := f.svc.Initiate(context.Background(), InitiateInput{
		LibrarySlug: "night-archive",
		Email:       "Buyer@Example.com",
		Items:       itemsFor(f.photos, 3),
		Source:      "web",
	})
	require.NoError(t, err)
	assert.Equal(t, 1200, result.AmountCents)
	assert.Equal(t, "Bundle Applied! (Best Value)", result.PricingMessage)
	assert.Equal(t, "gw-123", result.GatewayOrderID)
	assert.Equal(t, "https://gateway/approve", result.ApprovalURL)

	// Gateway order carries the internal order id, not the selection.
	require.Len(t, f.gateway.calls, 1)
	assert.Equal(t, result.OrderID.String(), f.gateway.calls[0].CustomID)
	assert.Equal(t, 1200, f.gateway.calls[0].AmountCents)

	order, err := f.orders.FindByID(context.Background(), result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPending, order.Status)
	assert.Equal(t, "buyer@example.com", order.Email)
	require.NotNil(t, order.GatewayOrderID)
	assert.Equal(t, "gw-123", *order.GatewayOrderID)
	assert.Len(t, order.Metadata.PhotoIDs, 3)
	assert.Equal(t, "night-archive", order.Metadata.LibrarySlug)

	entry, ok := f.cache.entries["gw-123"]
	require.True(t, ok)
	assert.Equal(t, result.OrderID, entry.OrderID)
	assert.Nil(t, order.BuyerUserID, "guest checkout has no buyer account")
}

func TestInitiatePersistsBuyerUserID(t *testing.T) {
	f := setupCheckoutFixture(t)
	buyerID := uuid.New()

	result, err := f.svc.Initiate(context.Background(), InitiateInput{
		LibrarySlug: "night-archive",
		Email:       "buyer@example.com",
		BuyerUserID: &buyerID,
		Items:       itemsFor(f.photos, 1),
	})
	require.NoError(t, err)

	order, err := f.orders.FindByID(context.Background(), result.OrderID)
	require.NoError(t, err)
	require.NotNil(t, order.BuyerUserID)
	assert.Equal(t, buyerID, *order.BuyerUserID)

	entry, ok := f.cache.entries["gw-123"]
	require.True(t, ok)
	require.NotNil(t, entry.BuyerUserID)
	assert.Equal(t, buyerID, *entry.BuyerUserID)
}

func TestInitiateGatewayFailureLeavesOrderPending(t *testing.T) {
	f := setupCheckoutFixture(t)
	f.gateway.order = nil
	f.gateway.err = pkgerrors.New(pkgerrors.CodeDependency, "paypal create order failed")

	_, err := f.svc.Initiate(context.Background(), InitiateInput{
		LibrarySlug: "night-archive",
		Email:       "buyer@example.com",
		Items:       itemsFor(f.photos, 2),
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, f.db.Model(&models.PhotoOrder{}).Where("status = ?", enums.PaymentStatusPending).Count(&count).Error)
	assert.Equal(t, int64(1), count, "abandoned pending order stays behind")

	var withGateway int64
	require.NoError(t, f.db.Model(&models.PhotoOrder{}).Where("gateway_order_id IS NOT NULL").Count(&withGateway).Error)
	assert.Equal(t, int64(0), withGateway)
}

func TestInitiateCacheFailureIsNotFatal(t *testing.T) {
	f := setupCheckoutFixture(t)
	f.cache.err = errors.New("redis down")

	result, err := f.svc.Initiate(context.Background(), InitiateInput{
		LibrarySlug: "night-archive",
		Email:       "buyer@example.com",
		Items:       itemsFor(f.photos, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, 500, result.AmountCents)
}

func TestInitiateUnknownPhotoRejected(t *testing.T) {
	f := setupCheckoutFixture(t)

	_, err := f.svc.Initiate(context.Background(), InitiateInput{
		LibrarySlug: "night-archive",
		Email:       "buyer@example.com",
		Items:       []ItemInput{{PhotoID: uuid.New()}},
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Empty(t, f.gateway.calls)
}

func TestInitiateUnknownLibrary(t *testing.T) {
	f := setupCheckoutFixture(t)

	_, err := f.svc.Initiate(context.Background(), InitiateInput{
		LibrarySlug: "missing",
		Email:       "buyer@example.com",
		Items:       itemsFor(f.photos, 1),
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestInitiateWithoutGatewayIsConfigError(t *testing.T) {
	f := setupCheckoutFixture(t)
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
	svc, err := NewService(
		gallery.NewRepository(f.db),
		f.orders,
		pricing.NewEngine(0),
		nil,
		f.cache,
		nil,
		logg,
		"https://site",
		"test",
	)
	require.NoError(t, err)

	_, err = svc.Initiate(context.Background(), InitiateInput{
		LibrarySlug: "night-archive",
		Email:       "buyer@example.com",
		Items:       itemsFor(f.photos, 1),
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConfig, typed.Code())
}

func TestInitiateValidation(t *testing.T) {
	f := setupCheckoutFixture(t)
	cases := []InitiateInput{
		{Email: "a@b.com", Items: itemsFor(f.photos, 1)},
		{LibrarySlug: "night-archive", Items: itemsFor(f.photos, 1)},
		{LibrarySlug: "night-archive", Email: "a@b.com"},
	}
	for _, input := range cases {
		_, err := f.svc.Initiate(context.Background(), input)
		require.Error(t, err)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	}
}
