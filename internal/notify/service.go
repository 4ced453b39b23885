package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"

	pkgerrors "github.com/angelmondragon/gallery-backend/pkg/errors"
	"github.com/angelmondragon/gallery-backend/pkg/logger"
	"github.com/angelmondragon/gallery-backend/pkg/types"
	"github.com/angelmondragon/gallery-backend/pkg/zoho"
)

// sender is the mail transport the service needs.
type sender interface {
	Send(ctx context.Context, msg zoho.Message) error
}

// Service renders and delivers the buyer-facing transactional mail. It backs
// the confirmation, resend, and invite mailer surfaces the domain services
// declare for themselves.
type Service struct {
	mail      sender
	logger    *logger.Logger
	brandName string
}

// NewService builds the mail service. mail may be nil when the mail provider
// is unconfigured; sends then fail with a config error instead of at boot.
func NewService(mail sender, logg *logger.Logger, brandName string) (*Service, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(brandName) == "" {
		return nil, fmt.Errorf("brand name required")
	}
	return &Service{mail: mail, logger: logg, brandName: brandName}, nil
}

// SendOrderConfirmation delivers download links after a successful capture.
func (s *Service) SendOrderConfirmation(ctx context.Context, to, libraryTitle string, links []types.DownloadLink) error {
	body, err := renderLinksMail(linksMailData{
		Brand:    s.brandName,
		Heading:  "ARCHIVE ACCESS GRANTED",
		Intro:    fmt.Sprintf("Your order from %s is complete. Your downloads are ready.", libraryTitle),
		Links:    links,
		Footnote: "Links are personal to this order. Reply to this mail if a download fails.",
	})
	if err != nil {
		return err
	}
	return s.send(ctx, zoho.Message{To: to, Subject: "ARCHIVE ACCESS GRANTED", HTML: body})
}

// SendOrderResend re-delivers download links for a completed order. refresh is
// true when the buyer asked for a subset rather than the whole order.
func (s *Service) SendOrderResend(ctx context.Context, to, libraryTitle string, links []types.DownloadLink, refresh bool) error {
	subject := "ACCESS RESTORED"
	intro := fmt.Sprintf("Here are your download links from %s, resent on request.", libraryTitle)
	if refresh {
		subject = "ASSET REFRESH"
		intro = fmt.Sprintf("Fresh links for the photos you asked about from %s.", libraryTitle)
	}
	body, err := renderLinksMail(linksMailData{
		Brand:    s.brandName,
		Heading:  subject,
		Intro:    intro,
		Links:    links,
		Footnote: "Links are personal to this order. Reply to this mail if a download fails.",
	})
	if err != nil {
		return err
	}
	return s.send(ctx, zoho.Message{To: to, Subject: subject, HTML: body})
}

// SendLibraryInvite announces a gallery to a recipient.
func (s *Service) SendLibraryInvite(ctx context.Context, to, libraryName, libraryURL string) error {
	body, err := renderInviteMail(inviteMailData{
		Brand:       s.brandName,
		LibraryName: libraryName,
		LibraryURL:  libraryURL,
	})
	if err != nil {
		return err
	}
	subject := "ACCESS GRANTED: " + libraryName
	return s.send(ctx, zoho.Message{To: to, Subject: subject, HTML: body})
}

func (s *Service) send(ctx context.Context, msg zoho.Message) error {
	if s.mail == nil {
		return pkgerrors.New(pkgerrors.CodeConfig, "mail provider is not configured")
	}
	return s.mail.Send(ctx, msg)
}

type linksMailData struct {
	Brand    string
	Heading  string
	Intro    string
	Links    []types.DownloadLink
	Footnote string
}

type inviteMailData struct {
	Brand       string
	LibraryName string
	LibraryURL  string
}

var linksMailTmpl = template.Must(template.New("links").Parse(`<!doctype html>
<html>
  <body style="font-family:monospace;background:#0a0a0a;color:#eaeaea;padding:24px;">
    <p style="letter-spacing:2px;">{{.Brand}}</p>
    <h2 style="letter-spacing:1px;">{{.Heading}}</h2>
    <p>{{.Intro}}</p>
    <ul>
{{- range .Links}}
      <li><a href="{{.URL}}" style="color:#8ab4f8;">{{.Title}}</a></li>
{{- end}}
    </ul>
    <p style="color:#888;">{{.Footnote}}</p>
  </body>
</html>
`))

var inviteMailTmpl = template.Must(template.New("invite").Parse(`<!doctype html>
<html>
  <body style="font-family:monospace;background:#0a0a0a;color:#eaeaea;padding:24px;">
    <p style="letter-spacing:2px;">{{.Brand}}</p>
    <h2 style="letter-spacing:1px;">ACCESS GRANTED</h2>
    <p>A new gallery is open for you: <strong>{{.LibraryName}}</strong>.</p>
    <p><a href="{{.LibraryURL}}" style="color:#8ab4f8;">ENTER THE ARCHIVE</a></p>
  </body>
</html>
`))

func renderLinksMail(data linksMailData) (string, error) {
	var buf bytes.Buffer
	if err := linksMailTmpl.Execute(&buf, data); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "rendering mail")
	}
	return buf.String(), nil
}

func renderInviteMail(data inviteMailData) (string, error) {
	var buf bytes.Buffer
	if err := inviteMailTmpl.Execute(&buf, data); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "rendering mail")
	}
	return buf.String(), nil
}
