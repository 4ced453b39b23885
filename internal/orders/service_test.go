package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/gallery-backend/pkg/db/models"
	"github.com/angelmondragon/gallery-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gallery-backend/pkg/errors"
	"github.com/angelmondragon/gallery-backend/pkg/logger"
	"github.com/angelmondragon/gallery-backend/pkg/types"
)

type stubLibraryReader struct {
	library *models.PhotoLibrary
	err     error
}

func (s *stubLibraryReader) FindLibraryBySlug(context.Context, string) (*models.PhotoLibrary, error) {
	return s.library, s.err
}

type resendCall struct {
	to      string
	title   string
	links   []types.DownloadLink
	refresh bool
}

type stubResendMailer struct {
	calls []resendCall
	err   error
}

func (s *stubResendMailer) SendOrderResend(_ context.Context, to, title string, links []types.DownloadLink, refresh bool) error {
	s.calls = append(s.calls, resendCall{to: to, title: title, links: links, refresh: refresh})
	return s.err
}

type resendFixture struct {
	db     *gorm.DB
	repo   Repository
	mailer *stubResendMailer
	svc    Service
	order  *models.PhotoOrder
	photos []models.Photo
}

func setupResendFixture(t *testing.T) *resendFixture {
	t.Helper()
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	photos := []models.Photo{
		{ID: uuid.New(), LibraryID: uuid.New(), Title: "one", FileID: "f-1", Status: enums.PhotoStatusActive},
		{ID: uuid.New(), LibraryID: uuid.New(), Title: "two", FileID: "f-2", Status: enums.PhotoStatusActive},
	}
	for i := range photos {
		require.NoError(t, db.Create(&photos[i]).Error)
	}

	order := seedOrder(t, repo, "gw-resend")
	require.NoError(t, repo.InsertMissingEntitlements(ctx, order.ID, []uuid.UUID{photos[0].ID, photos[1].ID}, nil))
	require.NoError(t, repo.MarkCompleted(ctx, order.ID, "cap-1", time.Now().UTC()))

	mailer := &stubResendMailer{}
	reader := &stubLibraryReader{library: &models.PhotoLibrary{Name: "Night Archive", Slug: "night-archive"}}
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
	svc, err := NewService(repo, reader, mailer, logg, "https://site")
	require.NoError(t, err)

	return &resendFixture{db: db, repo: repo, mailer: mailer, svc: svc, order: order, photos: photos}
}

func TestResendFullOrder(t *testing.T) {
	f := setupResendFixture(t)

	access, err := f.svc.Resend(context.Background(), ResendInput{OrderRef: "gw-resend", Email: "buyer@example.com"})
	require.NoError(t, err)
	assert.Equal(t, f.order.ID, access.OrderID)
	assert.Equal(t, "Night Archive", access.LibraryTitle)
	assert.Len(t, access.Entitlements, 2)

	require.Len(t, f.mailer.calls, 1)
	call := f.mailer.calls[0]
	assert.Equal(t, "buyer@example.com", call.to)
	assert.False(t, call.refresh)
	require.Len(t, call.links, 2)
	assert.Contains(t, call.links[0].URL, "/api/gallery/download?token=")
}

func TestResendFilteredSubset(t *testing.T) {
	f := setupResendFixture(t)

	access, err := f.svc.Resend(context.Background(), ResendInput{
		OrderRef: f.order.ID.String(),
		Email:    "buyer@example.com",
		PhotoIDs: []uuid.UUID{f.photos[0].ID},
	})
	require.NoError(t, err)
	require.Len(t, access.Entitlements, 1)
	assert.Equal(t, f.photos[0].ID, access.Entitlements[0].PhotoID)

	require.Len(t, f.mailer.calls, 1)
	assert.True(t, f.mailer.calls[0].refresh)
}

func TestResendNoMatchingPhotos(t *testing.T) {
	f := setupResendFixture(t)

	_, err := f.svc.Resend(context.Background(), ResendInput{
		OrderRef: f.order.ID.String(),
		Email:    "buyer@example.com",
		PhotoIDs: []uuid.UUID{uuid.New()},
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Empty(t, f.mailer.calls)
}

func TestResendPendingOrderRejected(t *testing.T) {
	f := setupResendFixture(t)
	pending := seedOrder(t, f.repo, "gw-pending")

	_, err := f.svc.Resend(context.Background(), ResendInput{OrderRef: pending.ID.String(), Email: "buyer@example.com"})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestResendUnknownOrder(t *testing.T) {
	f := setupResendFixture(t)

	_, err := f.svc.Resend(context.Background(), ResendInput{OrderRef: uuid.NewString(), Email: "buyer@example.com"})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestResendMailFailure(t *testing.T) {
	f := setupResendFixture(t)
	f.mailer.err = errors.New("smtp down")

	_, err := f.svc.Resend(context.Background(), ResendInput{OrderRef: "gw-resend", Email: "buyer@example.com"})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeDependency, typed.Code())
}

func TestResendEmailMismatchReadsAsNotFound(t *testing.T) {
	f := setupResendFixture(t)

	_, err := f.svc.Resend(context.Background(), ResendInput{OrderRef: "gw-resend", Email: "stranger@example.com"})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
	assert.Empty(t, f.mailer.calls)
}

func TestResendEmailIsCaseInsensitive(t *testing.T) {
	f := setupResendFixture(t)

	_, err := f.svc.Resend(context.Background(), ResendInput{OrderRef: "gw-resend", Email: "Buyer@Example.COM"})
	require.NoError(t, err)
	require.Len(t, f.mailer.calls, 1)
}

func TestAccessForFallsBackToSlug(t *testing.T) {
	f := setupResendFixture(t)

	reader := &stubLibraryReader{err: gorm.ErrRecordNotFound}
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
	svc, err := NewService(f.repo, reader, f.mailer, logg, "https://site")
	require.NoError(t, err)

	order, err := f.repo.FindByID(context.Background(), f.order.ID)
	require.NoError(t, err)

	access, err := svc.AccessFor(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, "night-archive", access.LibraryTitle)
}
