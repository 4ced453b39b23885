package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	ordersvc "github.com/angelmondragon/gallery-backend/internal/orders"
	"github.com/angelmondragon/gallery-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/gallery-backend/pkg/errors"
)

type stubOrdersService struct {
	input  ordersvc.ResendInput
	access *ordersvc.OrderAccess
	err    error
}

func (s *stubOrdersService) AccessFor(context.Context, *models.PhotoOrder) (*ordersvc.OrderAccess, error) {
	return nil, nil
}

func (s *stubOrdersService) Resend(_ context.Context, input ordersvc.ResendInput) (*ordersvc.OrderAccess, error) {
	s.input = input
	return s.access, s.err
}

func TestGalleryResendFullOrder(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrdersService{access: &ordersvc.OrderAccess{OrderID: orderID, LibraryTitle: "Night Archive"}}
	handler := GalleryResend(svc, nil)

	body := `{"order_ref":"` + orderID.String() + `","email":"buyer@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/gallery/resend-order", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.input.OrderRef != orderID.String() {
		t.Fatalf("reference not passed through: %q", svc.input.OrderRef)
	}
	if svc.input.Email != "buyer@example.com" {
		t.Fatalf("email not passed through: %q", svc.input.Email)
	}
	if len(svc.input.PhotoIDs) != 0 {
		t.Fatalf("expected no photo filter, got %v", svc.input.PhotoIDs)
	}
}

func TestGalleryResendFiltered(t *testing.T) {
	photoID := uuid.New()
	svc := &stubOrdersService{access: &ordersvc.OrderAccess{}}
	handler := GalleryResend(svc, nil)

	body := `{"order_ref":"gw-123","email":"buyer@example.com","photo_ids":["` + photoID.String() + `"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/gallery/resend-order", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if len(svc.input.PhotoIDs) != 1 || svc.input.PhotoIDs[0] != photoID {
		t.Fatalf("photo filter not passed through: %v", svc.input.PhotoIDs)
	}
}

func TestGalleryResendMapsStateConflict(t *testing.T) {
	svc := &stubOrdersService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "order is not completed")}
	handler := GalleryResend(svc, nil)

	body := `{"order_ref":"gw-123","email":"buyer@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/gallery/resend-order", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Message != "order is not completed" {
		t.Fatalf("unexpected message %q", envelope.Error.Message)
	}
}
