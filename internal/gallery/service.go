package gallery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/gallery-backend/pkg/errors"
	"github.com/angelmondragon/gallery-backend/pkg/logger"
)

// InviteMailer sends the library invite mail.
type InviteMailer interface {
	SendLibraryInvite(ctx context.Context, to, libraryName, libraryURL string) error
}

// Service exposes library-level operations.
type Service interface {
	Invite(ctx context.Context, input InviteInput) (*InviteResult, error)
}

type service struct {
	repo        Repository
	mailer      InviteMailer
	logger      *logger.Logger
	siteBaseURL string
}

// InviteInput is an operator request to mail library access links.
type InviteInput struct {
	LibrarySlug string
	Emails      []string
}

// InviteFailure records one recipient that could not be mailed.
type InviteFailure struct {
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

// InviteResult reports per-recipient outcomes. A failed recipient never
// blocks the rest of the batch.
type InviteResult struct {
	LibraryName string          `json:"library_name"`
	Succeeded   []string        `json:"succeeded"`
	Failed      []InviteFailure `json:"failed"`
}

// NewService builds a gallery service with the required dependencies.
func NewService(repo Repository, mailer InviteMailer, logg *logger.Logger, siteBaseURL string) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("gallery repository required")
	}
	if mailer == nil {
		return nil, fmt.Errorf("invite mailer required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:        repo,
		mailer:      mailer,
		logger:      logg,
		siteBaseURL: strings.TrimRight(siteBaseURL, "/"),
	}, nil
}

func (s *service) Invite(ctx context.Context, input InviteInput) (*InviteResult, error) {
	slug := strings.TrimSpace(input.LibrarySlug)
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "library slug is required")
	}
	if len(input.Emails) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one recipient is required")
	}

	library, err := s.repo.FindLibraryBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "library not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up library")
	}

	ctx = s.logger.WithLibrary(ctx, library.Slug)
	libraryURL := LibraryURL(s.siteBaseURL, library.Slug)

	result := &InviteResult{LibraryName: library.Name}
	var sendErrs error
	for _, raw := range input.Emails {
		email := strings.TrimSpace(strings.ToLower(raw))
		if email == "" {
			continue
		}
		if err := s.mailer.SendLibraryInvite(ctx, email, library.Name, libraryURL); err != nil {
			sendErrs = multierr.Append(sendErrs, fmt.Errorf("%s: %w", email, err))
			result.Failed = append(result.Failed, InviteFailure{Email: email, Reason: err.Error()})
			continue
		}
		result.Succeeded = append(result.Succeeded, email)
	}

	if sendErrs != nil {
		s.logger.Warn(s.logger.WithField(ctx, "failed_count", len(result.Failed)), "some invites failed: "+sendErrs.Error())
	}
	if len(result.Succeeded) == 0 && len(result.Failed) > 0 {
		return result, pkgerrors.Wrap(pkgerrors.CodeDependency, sendErrs, "all invites failed")
	}
	return result, nil
}
