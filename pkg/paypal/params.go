package paypal

import (
	"errors"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/gallery-backend/pkg/enums"
)

// OrderCreateParams contains the fields required to open a gateway order.
// CustomID carries the internal order id so a later capture can be traced
// back to the durable row without the reference cache.
type OrderCreateParams struct {
	AmountCents int
	Currency    enums.Currency
	Description string
	CustomID    string
	ReturnURL   string
	CancelURL   string
}

func (p OrderCreateParams) toRequest(brandName string) createOrderRequest {
	currency := strings.ToUpper(strings.TrimSpace(string(p.Currency)))
	if currency == "" {
		currency = string(enums.CurrencyUSD)
	}
	unit := purchaseUnit{
		Amount: amount{
			CurrencyCode: currency,
			Value:        centsToValue(p.AmountCents),
		},
	}
	if trimmed := strings.TrimSpace(p.Description); trimmed != "" {
		unit.Description = trimmed
	}
	if trimmed := strings.TrimSpace(p.CustomID); trimmed != "" {
		unit.CustomID = trimmed
	}
	req := createOrderRequest{
		Intent:        "CAPTURE",
		PurchaseUnits: []purchaseUnit{unit},
	}
	req.ApplicationContext = &applicationContext{
		BrandName:          strings.TrimSpace(brandName),
		ShippingPreference: "NO_SHIPPING",
		UserAction:         "PAY_NOW",
		ReturnURL:          strings.TrimSpace(p.ReturnURL),
		CancelURL:          strings.TrimSpace(p.CancelURL),
	}
	return req
}

// centsToValue renders a cent amount as the gateway's fixed two-decimal string.
func centsToValue(cents int) string {
	return decimal.NewFromInt(int64(cents)).Div(decimal.NewFromInt(100)).StringFixed(2)
}

type createOrderRequest struct {
	Intent             string              `json:"intent"`
	PurchaseUnits      []purchaseUnit      `json:"purchase_units"`
	ApplicationContext *applicationContext `json:"application_context,omitempty"`
}

type purchaseUnit struct {
	Amount      amount `json:"amount"`
	Description string `json:"description,omitempty"`
	CustomID    string `json:"custom_id,omitempty"`
}

type amount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type applicationContext struct {
	BrandName          string `json:"brand_name,omitempty"`
	ShippingPreference string `json:"shipping_preference,omitempty"`
	UserAction         string `json:"user_action,omitempty"`
	ReturnURL          string `json:"return_url,omitempty"`
	CancelURL          string `json:"cancel_url,omitempty"`
}

// Order is the trimmed create-order response.
type Order struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []Link `json:"links"`
}

// Link is a HATEOAS link from the gateway response.
type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

// ApprovalURL returns the buyer-facing approval link, empty when absent.
func (o *Order) ApprovalURL() string {
	if o == nil {
		return ""
	}
	for _, link := range o.Links {
		if link.Rel == "approve" || link.Rel == "payer-action" {
			return link.Href
		}
	}
	return ""
}

// OrderDetail is the trimmed get-order response.
type OrderDetail struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	CustomID string
	Payer    struct {
		EmailAddress string `json:"email_address"`
	} `json:"payer"`
}

// CaptureResult is the trimmed capture response.
type CaptureResult struct {
	OrderID    string
	CaptureID  string
	Status     string
	CustomID   string
	PayerEmail string
}

// Completed reports whether the gateway marked the capture done.
func (r *CaptureResult) Completed() bool {
	return r != nil && r.Status == "COMPLETED"
}

// Gateway issue codes that mean the money already moved on an earlier
// attempt. These are the only capture failures treated as recoverable; the
// set is closed on purpose so unknown failures stay fatal.
const (
	IssueOrderAlreadyCaptured = "ORDER_ALREADY_CAPTURED"
	IssueMaxAttemptsExceeded  = "MAX_NUMBER_OF_PAYMENT_ATTEMPTS_EXCEEDED"
)

var recoverableIssues = map[string]struct{}{
	IssueOrderAlreadyCaptured: {},
	IssueMaxAttemptsExceeded:  {},
}

// IsDecline reports whether the gateway definitively refused the capture.
// Transport failures, auth problems, rate limits, and 5xx responses are not
// declines: the payment may still go through on a retry.
func IsDecline(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		return false
	}
	return apiErr.StatusCode >= 400 && apiErr.StatusCode < 500
}

// IsAlreadyCaptured reports whether the error indicates the gateway order was
// captured by a previous attempt and the caller should recover instead of fail.
func IsAlreadyCaptured(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		for _, issue := range apiErr.Issues {
			if _, ok := recoverableIssues[issue]; ok {
				return true
			}
		}
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, IssueOrderAlreadyCaptured) || strings.Contains(msg, IssueMaxAttemptsExceeded)
}
