package paypal

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
	sandboxEnv = "sandbox"
	liveEnv    = "live"

	tokenPath  = "/v1/oauth2/token"
	ordersPath = "/v2/checkout/orders"

	// tokenSkew is subtracted from the advertised expiry so a token is never
	// used right at its deadline.
	tokenSkew = 60 * time.Second
)

var (
	errCredentialsRequired = errors.New("paypal client id and secret are required")
	errInvalidPayPalEnv    = fmt.Errorf("paypal environment must be %q or %q", sandboxEnv, liveEnv)
	errLoggerRequired      = errors.New("paypal logger is required")
)

var baseURLs = map[string]string{
	sandboxEnv: "https://api-m.sandbox.paypal.com",
	liveEnv:    "https://api-m.paypal.com",
}

// Client exposes the gateway order primitives with centralized auth, logging,
// and error mapping.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	environment  string
	clientID     string
	clientSecret string
	brandName    string
	logger       *logger.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// APIError is the decoded gateway error payload.
type APIError struct {
	StatusCode int
	Name       string
	Message    string
	DebugID    string
	Issues     []string
}

func (e *APIError) Error() string {
	parts := []string{fmt.Sprintf("paypal api error (%d)", e.StatusCode)}
	if e.Name != "" {
		parts = append(parts, e.Name)
	}
	if len(e.Issues) > 0 {
		parts = append(parts, strings.Join(e.Issues, ","))
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	return strings.Join(parts, ": ")
}

// NewClient initializes the gateway wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.PayPalConfig, site config.SiteConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	clientID := strings.TrimSpace(cfg.ClientID)
	clientSecret := strings.TrimSpace(cfg.ClientSecret)
	if clientID == "" || clientSecret == "" {
		return nil, errCredentialsRequired
	}

	baseURL := baseURLs[env]
	if trimmed := strings.TrimSpace(cfg.BaseURL); trimmed != "" {
		baseURL = strings.TrimRight(trimmed, "/")
	}

	c := &Client{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		baseURL:      baseURL,
		environment:  env,
		clientID:     clientID,
		clientSecret: clientSecret,
		brandName:    site.BrandName,
		logger:       logg,
	}

	logg.Info(ctx, "paypal client initialized")
	return c, nil
}

// Environment reports the normalized gateway environment.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// CreateOrder opens a gateway order for buyer approval.
func (c *Client) CreateOrder(ctx context.Context, params OrderCreateParams) (*Order, error) {
	c.log(ctx, "request", "create_order", map[string]any{
		"amount_cents": params.AmountCents,
		"custom_id":    params.CustomID,
	})

	var order Order
	err := c.doJSON(ctx, http.MethodPost, ordersPath, params.toRequest(c.brandName), &order)
	if err != nil {
		c.log(ctx, "error", "create_order", map[string]any{"error": err.Error()})
		return nil, c.mapError(err, "create order")
	}

	c.log(ctx, "response", "create_order", map[string]any{
		"gateway_order_id": order.ID,
		"status":           order.Status,
	})
	return &order, nil
}

// CaptureOrder captures an approved gateway order. A recoverable duplicate
// surfaces as an error satisfying IsAlreadyCaptured.
func (c *Client) CaptureOrder(ctx context.Context, gatewayOrderID string) (*CaptureResult, error) {
	c.log(ctx, "request", "capture_order", map[string]any{"gateway_order_id": gatewayOrderID})

	var resp captureOrderResponse
	path := fmt.Sprintf("%s/%s/capture", ordersPath, url.PathEscape(gatewayOrderID))
	err := c.doJSON(ctx, http.MethodPost, path, struct{}{}, &resp)
	if err != nil {
		c.log(ctx, "error", "capture_order", map[string]any{"error": err.Error()})
		if IsAlreadyCaptured(err) {
			return nil, err
		}
		return nil, c.mapError(err, "capture order")
	}

	result := resp.toResult()
	c.log(ctx, "response", "capture_order", map[string]any{
		"gateway_order_id": result.OrderID,
		"capture_id":       result.CaptureID,
		"status":           result.Status,
	})
	return result, nil
}

// GetOrder fetches the gateway order detail, including the custom_id written
// at creation.
func (c *Client) GetOrder(ctx context.Context, gatewayOrderID string) (*OrderDetail, error) {
	c.log(ctx, "request", "get_order", map[string]any{"gateway_order_id": gatewayOrderID})

	var resp orderDetailResponse
	path := fmt.Sprintf("%s/%s", ordersPath, url.PathEscape(gatewayOrderID))
	err := c.doJSON(ctx, http.MethodGet, path, nil, &resp)
	if err != nil {
		c.log(ctx, "error", "get_order", map[string]any{"error": err.Error()})
		return nil, c.mapError(err, "get order")
	}

	detail := resp.toDetail()
	c.log(ctx, "response", "get_order", map[string]any{
		"gateway_order_id": detail.ID,
		"status":           detail.Status,
	})
	return detail, nil
}

type captureOrderResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		CustomID string `json:"custom_id"`
		Payments struct {
			Captures []struct {
				ID       string `json:"id"`
				Status   string `json:"status"`
				CustomID string `json:"custom_id"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
	Payer struct {
		EmailAddress string `json:"email_address"`
	} `json:"payer"`
}

func (r captureOrderResponse) toResult() *CaptureResult {
	result := &CaptureResult{
		OrderID:    r.ID,
		Status:     r.Status,
		PayerEmail: r.Payer.EmailAddress,
	}
	for _, unit := range r.PurchaseUnits {
		if result.CustomID == "" {
			result.CustomID = unit.CustomID
		}
		for _, capture := range unit.Payments.Captures {
			if result.CaptureID == "" {
				result.CaptureID = capture.ID
			}
			if result.CustomID == "" {
				result.CustomID = capture.CustomID
			}
		}
	}
	return result
}

type orderDetailResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		CustomID string `json:"custom_id"`
	} `json:"purchase_units"`
	Payer struct {
		EmailAddress string `json:"email_address"`
	} `json:"payer"`
}

func (r orderDetailResponse) toDetail() *OrderDetail {
	detail := &OrderDetail{
		ID:     r.ID,
		Status: r.Status,
	}
	detail.Payer.EmailAddress = r.Payer.EmailAddress
	for _, unit := range r.PurchaseUnits {
		if unit.CustomID != "" {
			detail.CustomID = unit.CustomID
			break
		}
	}
	return detail
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling gateway: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading gateway response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp.StatusCode, raw)
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decoding gateway response: %w", err)
		}
	}
	return nil
}

// token returns a cached client-credentials token, refreshing when close to
// expiry.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("building token request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting gateway token: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading token response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", decodeAPIError(resp.StatusCode, raw)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", errors.New("gateway returned empty access token")
	}

	c.accessToken = payload.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(payload.ExpiresIn)*time.Second - tokenSkew)
	return c.accessToken, nil
}

func decodeAPIError(status int, raw []byte) error {
	apiErr := &APIError{StatusCode: status}
	var payload struct {
		Name    string `json:"name"`
		Message string `json:"message"`
		DebugID string `json:"debug_id"`
		Details []struct {
			Issue       string `json:"issue"`
			Description string `json:"description"`
		} `json:"details"`
		// token endpoint shape
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		apiErr.Name = payload.Name
		apiErr.Message = payload.Message
		apiErr.DebugID = payload.DebugID
		for _, d := range payload.Details {
			if d.Issue != "" {
				apiErr.Issues = append(apiErr.Issues, d.Issue)
			}
		}
		if apiErr.Name == "" && payload.Error != "" {
			apiErr.Name = payload.Error
			apiErr.Message = payload.ErrorDescription
		}
	}
	if apiErr.Name == "" && apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("paypal %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("paypal %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"token", "secret", "email", "payer"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func (c *Client) mapError(err error, op string) error {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		code := domainCodeForStatus(apiErr.StatusCode)
		return pkgerrors.Wrap(code, err, fmt.Sprintf("paypal %s failed", op))
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("paypal %s failed", op))
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusUnprocessableEntity:
		return pkgerrors.CodeStateConflict
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = sandboxEnv
	}
	switch env {
	case sandboxEnv, liveEnv:
		return env, nil
	case "production":
		return liveEnv, nil
	default:
		return "", errInvalidPayPalEnv
	}
}
