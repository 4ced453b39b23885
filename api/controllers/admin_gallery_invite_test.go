package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	gallerysvc "github.com/angelmondragon/gallery-backend/internal/gallery"
	pkgerrors "github.com/angelmondragon/gallery-backend/pkg/errors"
)

type stubGalleryService struct {
	input  gallerysvc.InviteInput
	result *gallerysvc.InviteResult
	err    error
}

func (s *stubGalleryService) Invite(_ context.Context, input gallerysvc.InviteInput) (*gallerysvc.InviteResult, error) {
	s.input = input
	return s.result, s.err
}

func TestAdminGalleryInviteSuccess(t *testing.T) {
	svc := &stubGalleryService{result: &gallerysvc.InviteResult{
		LibraryName: "Night Archive",
		Succeeded:   []string{"fan@example.com"},
	}}
	handler := AdminGalleryInvite(svc, nil)

	body := `{"library_slug":"night-archive","emails":["fan@example.com"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/gallery/invite", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.input.LibrarySlug != "night-archive" {
		t.Fatalf("slug not passed through: %q", svc.input.LibrarySlug)
	}

	var envelope struct {
		Data gallerysvc.InviteResult `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Succeeded) != 1 {
		t.Fatalf("expected 1 success, got %+v", envelope.Data)
	}
}

func TestAdminGalleryInviteRejectsBadEmails(t *testing.T) {
	svc := &stubGalleryService{}
	handler := AdminGalleryInvite(svc, nil)

	body := `{"library_slug":"night-archive","emails":["not-an-email"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/gallery/invite", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.input.LibrarySlug != "" {
		t.Fatalf("service should not be called on invalid body")
	}
}

func TestAdminGalleryInviteAllFailed(t *testing.T) {
	svc := &stubGalleryService{
		result: &gallerysvc.InviteResult{
			LibraryName: "Night Archive",
			Failed:      []gallerysvc.InviteFailure{{Email: "fan@example.com", Reason: "smtp down"}},
		},
		err: pkgerrors.New(pkgerrors.CodeDependency, "all invites failed"),
	}
	handler := AdminGalleryInvite(svc, nil)

	body := `{"library_slug":"night-archive","emails":["fan@example.com"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/gallery/invite", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}
