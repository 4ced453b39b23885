package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/gallery-backend/pkg/db/models"
	"github.com/angelmondragon/gallery-backend/pkg/enums"
	"github.com/angelmondragon/gallery-backend/pkg/types"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	libraries := `
CREATE TABLE IF NOT EXISTS photo_libraries (
  id TEXT PRIMARY KEY,
  slug TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  description TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	photos := `
CREATE TABLE IF NOT EXISTS photos (
  id TEXT PRIMARY KEY,
  library_id TEXT NOT NULL,
  title TEXT NOT NULL,
  file_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'active',
  created_at DATETIME,
  updated_at DATETIME
);`
	photoOrders := `
CREATE TABLE IF NOT EXISTS photo_orders (
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
);`
	entitlements := `
CREATE TABLE IF NOT EXISTS entitlements (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  photo_id TEXT NOT NULL,
  download_token TEXT NOT NULL UNIQUE,
  download_count INTEGER NOT NULL DEFAULT 0,
  expires_at DATETIME,
  created_at DATETIME,
  UNIQUE (order_id, photo_id)
);`
	for _, stmt := range []string{libraries, photos, photoOrders, entitlements} {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func seedOrder(t *testing.T, repo Repository, gatewayID string) *models.PhotoOrder {
	t.Helper()
	order, err := repo.CreatePending(context.Background(), &models.PhotoOrder{
		Email:       "buyer@example.com",
		AmountCents: 1200,
		Metadata: types.OrderMetadata{
			PhotoIDs:    []uuid.UUID{uuid.New()},
			LibrarySlug: "night-archive",
		},
	})
	require.NoError(t, err)
	if gatewayID != "" {
		require.NoError(t, repo.SetGatewayOrderID(context.Background(), order.ID, gatewayID))
	}
	return order
}

func TestCreatePendingAssignsDefaults(t *testing.T) {
	repo := NewRepository(setupOrdersTestDB(t))

	order := seedOrder(t, repo, "")
	assert.NotEqual(t, uuid.Nil, order.ID)
	assert.Equal(t, enums.PaymentStatusPending, order.Status)
	assert.Equal(t, enums.CurrencyUSD, order.Currency)
}

func TestFindByAnyRef(t *testing.T) {
	repo := NewRepository(setupOrdersTestDB(t))
	ctx := context.Background()

	order := seedOrder(t, repo, "5O190127TN364715T")

	byUUID, err := repo.FindByAnyRef(ctx, order.ID.String())
	require.NoError(t, err)
	assert.Equal(t, order.ID, byUUID.ID)

	byGateway, err := repo.FindByAnyRef(ctx, "5O190127TN364715T")
	require.NoError(t, err)
	assert.Equal(t, order.ID, byGateway.ID)

	_, err = repo.FindByAnyRef(ctx, "unknown-ref")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestMarkCompletedAndFailed(t *testing.T) {
	repo := NewRepository(setupOrdersTestDB(t))
	ctx := context.Background()

	order := seedOrder(t, repo, "gw-1")
	completedAt := time.Now().UTC()
	require.NoError(t, repo.MarkCompleted(ctx, order.ID, "cap-1", completedAt))

	found, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCompleted, found.Status)
	require.NotNil(t, found.CaptureID)
	assert.Equal(t, "cap-1", *found.CaptureID)
	require.NotNil(t, found.CompletedAt)

	// MarkFailed only moves pending orders; a completed order stays completed.
	require.NoError(t, repo.MarkFailed(ctx, order.ID))
	found, err = repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCompleted, found.Status)

	pending := seedOrder(t, repo, "")
	require.NoError(t, repo.MarkFailed(ctx, pending.ID))
	found, err = repo.FindByID(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusFailed, found.Status)
}

func TestInsertMissingEntitlementsIsIdempotent(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, repo, "")
	photoA, photoB := uuid.New(), uuid.New()

	require.NoError(t, repo.InsertMissingEntitlements(ctx, order.ID, []uuid.UUID{photoA}, nil))
	// Replay with an overlapping set: only the new photo is inserted.
	require.NoError(t, repo.InsertMissingEntitlements(ctx, order.ID, []uuid.UUID{photoA, photoB}, nil))

	entitlements, err := repo.ListEntitlements(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, entitlements, 2)
}

func TestListEntitlementsOrderIsStable(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, repo, "")
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New()}
	// One batch insert shares a single created_at.
	require.NoError(t, repo.InsertMissingEntitlements(ctx, order.ID, ids, nil))

	first, err := repo.ListEntitlements(ctx, order.ID)
	require.NoError(t, err)
	second, err := repo.ListEntitlements(ctx, order.ID)
	require.NoError(t, err)

	require.Len(t, first, len(ids))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID, "listing order must be stable at index %d", i)
	}
	for i := 1; i < len(first); i++ {
		assert.Less(t, first[i-1].ID.String(), first[i].ID.String(), "ties broken by id")
	}
}

func TestListEntitlementsPreloadsPhoto(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	photo := models.Photo{
		ID:        uuid.New(),
		LibraryID: uuid.New(),
		Title:     "dawn patrol",
		FileID:    "file-1",
		Status:    enums.PhotoStatusActive,
	}
	require.NoError(t, db.Create(&photo).Error)

	order := seedOrder(t, repo, "")
	require.NoError(t, repo.InsertMissingEntitlements(ctx, order.ID, []uuid.UUID{photo.ID}, nil))

	entitlements, err := repo.ListEntitlements(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, entitlements, 1)
	require.NotNil(t, entitlements[0].Photo)
	assert.Equal(t, "dawn patrol", entitlements[0].Photo.Title)
	assert.NotEqual(t, uuid.Nil, entitlements[0].DownloadToken)
}
