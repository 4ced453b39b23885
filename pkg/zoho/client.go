package zoho

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/gallery-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/gallery-backend/pkg/errors"
	"github.com/angelmondragon/gallery-backend/pkg/logger"
)

const (
	defaultAccountsBaseURL = "https://accounts.zoho.com"
	defaultMailBaseURL     = "https://mail.zoho.com"

	tokenSkew = 60 * time.Second
)

var (
	errCredentialsRequired = errors.New("zoho client credentials and refresh token are required")
	errFromEmailRequired   = errors.New("zoho from email is required")
	errLoggerRequired      = errors.New("zoho logger is required")
)

// Client sends transactional mail through the Zoho Mail REST API using the
// refresh-token grant.
type Client struct {
	httpClient      *http.Client
	accountsBaseURL string
	mailBaseURL     string
	clientID        string
	clientSecret    string
	refreshToken    string
	fromEmail       string
	logger          *logger.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
	accountID   string
}

// Message is a single outbound mail.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// NewClient validates the mail credentials and returns the wrapper.
func NewClient(ctx context.Context, cfg config.ZohoConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" || strings.TrimSpace(cfg.RefreshToken) == "" {
		return nil, errCredentialsRequired
	}
	if strings.TrimSpace(cfg.FromEmail) == "" {
		return nil, errFromEmailRequired
	}

	accountsBase := defaultAccountsBaseURL
	if trimmed := strings.TrimSpace(cfg.AccountsBaseURL); trimmed != "" {
		accountsBase = strings.TrimRight(trimmed, "/")
	}
	mailBase := defaultMailBaseURL
	if trimmed := strings.TrimSpace(cfg.MailBaseURL); trimmed != "" {
		mailBase = strings.TrimRight(trimmed, "/")
	}

	c := &Client{
		httpClient:      &http.Client{Timeout: 30 * time.Second},
		accountsBaseURL: accountsBase,
		mailBaseURL:     mailBase,
		clientID:        strings.TrimSpace(cfg.ClientID),
		clientSecret:    strings.TrimSpace(cfg.ClientSecret),
		refreshToken:    strings.TrimSpace(cfg.RefreshToken),
		fromEmail:       strings.TrimSpace(cfg.FromEmail),
		accountID:       strings.TrimSpace(cfg.AccountID),
		logger:          logg,
	}

	logg.Info(ctx, "zoho mail client initialized")
	return c, nil
}

// FromEmail returns the configured sender address.
func (c *Client) FromEmail() string {
	if c == nil {
		return ""
	}
	return c.fromEmail
}

// Send delivers a single message. Errors carry CodeDependency so callers can
// decide whether mail failure is fatal for them.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient email is required")
	}

	token, err := c.token(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "zoho token refresh failed")
	}

	accountID, err := c.resolveAccountID(ctx, token)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "zoho account lookup failed")
	}

	payload := map[string]string{
		"fromAddress": c.fromEmail,
		"toAddress":   msg.To,
		"subject":     msg.Subject,
		"content":     msg.HTML,
		"mailFormat":  "html",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding mail payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/accounts/%s/messages", c.mailBaseURL, url.PathEscape(accountID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building mail request: %w", err)
	}
	req.Header.Set("Authorization", "Zoho-oauthtoken "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "zoho send failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("zoho send returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "zoho send failed")
	}

	c.logger.Info(c.logger.WithField(ctx, "subject", msg.Subject), "mail sent")
	return nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{
		"refresh_token": {c.refreshToken},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"grant_type":    {"refresh_token"},
	}
	endpoint := c.accountsBaseURL + "/oauth/v2/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting zoho token: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading token response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("zoho token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		Error       string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	if payload.Error != "" {
		return "", fmt.Errorf("zoho token refresh rejected: %s", payload.Error)
	}
	if payload.AccessToken == "" {
		return "", errors.New("zoho returned empty access token")
	}

	c.accessToken = payload.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(payload.ExpiresIn)*time.Second - tokenSkew)
	return c.accessToken, nil
}

// resolveAccountID returns the configured account id or looks it up once via
// the accounts endpoint and caches it.
func (c *Client) resolveAccountID(ctx context.Context, token string) (string, error) {
	c.mu.Lock()
	cached := c.accountID
	c.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.mailBaseURL+"/api/accounts", nil)
	if err != nil {
		return "", fmt.Errorf("building accounts request: %w", err)
	}
	req.Header.Set("Authorization", "Zoho-oauthtoken "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting zoho accounts: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading accounts response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("zoho accounts endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var payload struct {
		Data []struct {
			AccountID string `json:"accountId"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("decoding accounts response: %w", err)
	}
	if len(payload.Data) == 0 || payload.Data[0].AccountID == "" {
		return "", errors.New("zoho returned no mail accounts")
	}

	c.mu.Lock()
	c.accountID = payload.Data[0].AccountID
	c.mu.Unlock()
	return payload.Data[0].AccountID, nil
}
