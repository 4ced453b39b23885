package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/gallery-backend/internal/gallery"
	"github.com/angelmondragon/gallery-backend/internal/orders"
	"github.com/angelmondragon/gallery-backend/internal/refcache"
	"github.com/angelmondragon/gallery-backend/pkg/db/models"
	"github.com/angelmondragon/gallery-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gallery-backend/pkg/errors"
	"github.com/angelmondragon/gallery-backend/pkg/logger"
	"github.com/angelmondragon/gallery-backend/pkg/metrics"
	"github.com/angelmondragon/gallery-backend/pkg/paypal"
	"github.com/angelmondragon/gallery-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// captureGateway is the gateway surface the orchestrator needs.
type captureGateway interface {
	CaptureOrder(ctx context.Context, gatewayOrderID string) (*paypal.CaptureResult, error)
	GetOrder(ctx context.Context, gatewayOrderID string) (*paypal.OrderDetail, error)
}

// referenceReader reads and drops the checkout mirror.
type referenceReader interface {
	Get(ctx context.Context, gatewayOrderID string) (*refcache.Entry, bool, error)
	Del(ctx context.Context, gatewayOrderID string) error
}

// ConfirmationMailer delivers the post-purchase access mail.
type ConfirmationMailer interface {
	SendOrderConfirmation(ctx context.Context, to, libraryTitle string, links []types.DownloadLink) error
}

// Orchestrator drives a capture from buyer approval to granted access. Only a
// definitive gateway decline fails the order; transient gateway failures leave
// it pending so a retry can settle it.
type Orchestrator struct {
	orders      orders.Repository
	access      orders.Service
	gateway     captureGateway
	cache       referenceReader
	tx          txRunner
	mailer      ConfirmationMailer
	metrics     *metrics.CheckoutMetrics
	logger      *logger.Logger
	siteBaseURL string
	entExpiry   time.Duration
}

// NewOrchestrator builds the capture orchestrator. gateway may be nil when
// unconfigured; Capture then fails with a config error instead of at boot.
func NewOrchestrator(
	ordersRepo orders.Repository,
	access orders.Service,
	gateway captureGateway,
	cache referenceReader,
	tx txRunner,
	mailer ConfirmationMailer,
	m *metrics.CheckoutMetrics,
	logg *logger.Logger,
	siteBaseURL string,
	entitlementExpiry time.Duration,
) (*Orchestrator, error) {
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if access == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if cache == nil {
		return nil, fmt.Errorf("reference cache required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if mailer == nil {
		return nil, fmt.Errorf("confirmation mailer required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Orchestrator{
		orders:      ordersRepo,
		access:      access,
		gateway:     gateway,
		cache:       cache,
		tx:          tx,
		mailer:      mailer,
		metrics:     m,
		logger:      logg,
		siteBaseURL: strings.TrimRight(siteBaseURL, "/"),
		entExpiry:   entitlementExpiry,
	}, nil
}

// Capture accepts either the internal order id or the gateway order id and
// returns the buyer's access. Replays of completed orders return the same
// access without touching the gateway.
func (o *Orchestrator) Capture(ctx context.Context, ref string) (*orders.OrderAccess, error) {
	started := time.Now()
	if o.gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfig, "payment gateway is not configured")
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order reference is required")
	}

	order, err := o.resolveOrder(ctx, ref)
	if err != nil {
		return nil, err
	}
	ctx = o.logger.WithOrderID(ctx, order.ID.String())

	// Completed orders replay their access with zero gateway calls.
	if order.Status == enums.PaymentStatusCompleted {
		o.observe(StateIdempotentHit, started)
		o.logger.Info(ctx, "capture replayed for completed order")
		return o.access.AccessFor(ctx, order)
	}
	if order.Status == enums.PaymentStatusFailed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order already failed")
	}
	if order.GatewayOrderID == nil || *order.GatewayOrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has no gateway order")
	}
	gatewayOrderID := *order.GatewayOrderID
	ctx = o.logger.WithGatewayOrderID(ctx, gatewayOrderID)

	captureID, err := o.captureAtGateway(ctx, order, gatewayOrderID)
	if err != nil {
		o.observe(StateCaptureFailed, started)
		return nil, err
	}

	if err := o.fulfill(ctx, order, gatewayOrderID, captureID); err != nil {
		// Money has moved; never mark the order failed here. Surface a
		// fulfillment error for a human to resolve.
		o.observe(StateCaptureFailed, started)
		return nil, err
	}

	fulfilled, err := o.orders.FindByID(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeFulfillment, err, "reloading fulfilled order")
	}
	access, err := o.access.AccessFor(ctx, fulfilled)
	if err != nil {
		return nil, err
	}

	o.sendConfirmation(ctx, fulfilled, access)

	if err := o.cache.Del(ctx, gatewayOrderID); err != nil {
		o.logger.Warn(ctx, "reference cache delete failed: "+err.Error())
	}

	o.observe(StateFulfilled, started)
	o.logger.Info(ctx, "order captured and fulfilled")
	return access, nil
}

// resolveOrder finds the durable row for either id form, falling back to the
// gateway's custom_id when the reference never made it onto a row.
func (o *Orchestrator) resolveOrder(ctx context.Context, ref string) (*models.PhotoOrder, error) {
	order, err := o.orders.FindByAnyRef(ctx, ref)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up order")
	}

	detail, gerr := o.gateway.GetOrder(ctx, ref)
	if gerr != nil || detail.CustomID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	orderID, perr := uuid.Parse(detail.CustomID)
	if perr != nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	order, err = o.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

// captureAtGateway performs the capture call, recovering duplicates where the
// gateway says the money already moved on an earlier attempt.
func (o *Orchestrator) captureAtGateway(ctx context.Context, order *models.PhotoOrder, gatewayOrderID string) (string, error) {
	result, err := o.gateway.CaptureOrder(ctx, gatewayOrderID)
	if err == nil {
		if !result.Completed() {
			o.markFailed(ctx, order.ID)
			return "", pkgerrors.New(pkgerrors.CodeStateConflict, "gateway capture did not complete").
				WithDetails(map[string]string{"gateway_status": result.Status})
		}
		return result.CaptureID, nil
	}

	if paypal.IsAlreadyCaptured(err) {
		// Verify against the gateway before trusting the duplicate signal.
		detail, derr := o.gateway.GetOrder(ctx, gatewayOrderID)
		if derr != nil {
			// The verification failed, not the order. Leave it pending so a
			// retry can settle it.
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, derr, "verifying duplicate capture")
		}
		if detail.Status == "COMPLETED" {
			o.metrics.IncCapture(string(StateRecoveredDuplicate))
			o.logger.Warn(ctx, "duplicate capture recovered, proceeding to fulfillment")
			return "", nil
		}
		o.markFailed(ctx, order.ID)
		return "", pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "gateway reports duplicate but order is not completed")
	}

	if paypal.IsDecline(err) {
		o.markFailed(ctx, order.ID)
		return "", err
	}

	// Anything else is a transient gateway failure and the money may or may
	// not have moved. The order stays pending so a retry can capture or
	// recover the duplicate.
	o.logger.Warn(ctx, "gateway capture failed transiently, order left pending: "+err.Error())
	return "", err
}

// fulfill grants entitlements and completes the order in one transaction.
// The photo set comes from the cache mirror when present, else from the
// order's own metadata snapshot.
func (o *Orchestrator) fulfill(ctx context.Context, order *models.PhotoOrder, gatewayOrderID, captureID string) error {
	photoIDs := o.resolvePhotoIDs(ctx, order, gatewayOrderID)
	if len(photoIDs) == 0 {
		return pkgerrors.New(pkgerrors.CodeFulfillment, "captured order has no recoverable selection").
			WithDetails(map[string]string{"order_id": order.ID.String()})
	}

	var expiresAt *time.Time
	if o.entExpiry > 0 {
		exp := time.Now().UTC().Add(o.entExpiry)
		expiresAt = &exp
	}

	err := o.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := o.orders.WithTx(tx)
		if err := repo.InsertMissingEntitlements(ctx, order.ID, photoIDs, expiresAt); err != nil {
			return err
		}
		return repo.MarkCompleted(ctx, order.ID, captureID, time.Now().UTC())
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeFulfillment, err, "provisioning captured order")
	}
	return nil
}

func (o *Orchestrator) resolvePhotoIDs(ctx context.Context, order *models.PhotoOrder, gatewayOrderID string) []uuid.UUID {
	entry, ok, err := o.cache.Get(ctx, gatewayOrderID)
	if err != nil {
		o.logger.Warn(ctx, "reference cache read failed: "+err.Error())
	}
	if ok && len(entry.PhotoIDs) > 0 {
		return entry.PhotoIDs
	}
	return order.Metadata.DistinctPhotoIDs()
}

// sendConfirmation is best effort. A buyer who never gets the mail can still
// replay the capture or ask for a resend; the entitlements already exist.
func (o *Orchestrator) sendConfirmation(ctx context.Context, order *models.PhotoOrder, access *orders.OrderAccess) {
	links := make([]types.DownloadLink, 0, len(access.Entitlements))
	for _, ent := range access.Entitlements {
		links = append(links, types.DownloadLink{
			Title: ent.PhotoTitle,
			URL:   gallery.DownloadURL(o.siteBaseURL, ent.DownloadToken.String()),
		})
	}
	if err := o.mailer.SendOrderConfirmation(ctx, order.Email, access.LibraryTitle, links); err != nil {
		o.metrics.IncMailFailure()
		o.logger.Warn(ctx, "confirmation mail failed: "+err.Error())
	}
}

func (o *Orchestrator) markFailed(ctx context.Context, orderID uuid.UUID) {
	if err := o.orders.MarkFailed(ctx, orderID); err != nil {
		o.logger.Warn(ctx, "marking order failed: "+err.Error())
	}
}

func (o *Orchestrator) observe(state State, started time.Time) {
	o.metrics.IncCapture(string(state))
	o.metrics.ObserveCaptureDuration(string(state), time.Since(started))
}
