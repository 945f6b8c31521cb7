package monobank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/currency"
)

// ErrUnavailable wraps every failure to obtain an invoice: missing configuration,
// transport errors, timeouts, non-success responses and malformed bodies.
var ErrUnavailable = errors.New("monobank: invoice could not be issued")

const (
	DefaultBaseURL = "https://api.monobank.ua"
	invoicePath    = "/api/merchant/invoice/create"
)

// ISO 4217 numeric codes for the currencies the acquiring API accepts.
var numericCodes = map[currency.Unit]int{
	currency.MustParseISO("UAH"): 980,
	currency.USD:                 840,
	currency.EUR:                 978,
}

// Config holds the acquiring API connection details.
type Config struct {
	BaseURL     string
	Token       string
	Currency    string // ISO code, e.g. "UAH"
	RedirectURL string
	Timeout     time.Duration
}

// Client issues invoices through the Monobank acquiring API.
type Client struct {
	baseURL     string
	token       string
	ccy         int
	redirectURL string
	http        *http.Client
}

// NewClient validates the configuration and creates a Client.
// An empty token is allowed; every invoice request then fails with ErrUnavailable.
func NewClient(cfg Config, hc *http.Client) (*Client, error) {
	unit, err := currency.ParseISO(cfg.Currency)
	if err != nil {
		return nil, fmt.Errorf("currency[%s] is not valid: %w", cfg.Currency, err)
	}
	ccy, ok := numericCodes[unit]
	if !ok {
		return nil, fmt.Errorf("currency[%s] is not supported by the acquiring API", unit)
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:     baseURL,
		token:       strings.TrimSpace(cfg.Token),
		ccy:         ccy,
		redirectURL: cfg.RedirectURL,
		http:        hc,
	}, nil
}

// InvoiceRequest describes the invoice to issue. Amount is in minor currency units.
type InvoiceRequest struct {
	Amount      int64
	Reference   string
	Destination string
	WebhookURL  string
}

// Invoice is the gateway's answer: InvoiceID is the reconciliation key, PageURL is shown to the customer.
type Invoice struct {
	InvoiceID string `json:"invoiceId"`
	PageURL   string `json:"pageUrl"`
}

type merchantPaymInfo struct {
	Reference   string `json:"reference"`
	Destination string `json:"destination,omitempty"`
}

type createInvoiceReq struct {
	Amount           int64            `json:"amount"`
	Ccy              int              `json:"ccy"`
	MerchantPaymInfo merchantPaymInfo `json:"merchantPaymInfo"`
	RedirectURL      string           `json:"redirectUrl,omitempty"`
	WebHookURL       string           `json:"webHookUrl,omitempty"`
}

// CreateInvoice issues a payment invoice.
func (c *Client) CreateInvoice(ctx context.Context, in InvoiceRequest) (Invoice, error) {
	var out Invoice

	if c.token == "" {
		return out, fmt.Errorf("%w: api token is not configured", ErrUnavailable)
	}
	if in.Amount <= 0 {
		return out, fmt.Errorf("%w: amount must be positive, got %d", ErrUnavailable, in.Amount)
	}

	raw, err := json.Marshal(createInvoiceReq{
		Amount:           in.Amount,
		Ccy:              c.ccy,
		MerchantPaymInfo: merchantPaymInfo{Reference: in.Reference, Destination: in.Destination},
		RedirectURL:      c.redirectURL,
		WebHookURL:       in.WebhookURL,
	})
	if err != nil {
		return out, fmt.Errorf("%w: json.Marshal: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+invoicePath, bytes.NewReader(raw))
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Token", c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return out, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return out, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return Invoice{}, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if out.InvoiceID == "" || out.PageURL == "" {
		return Invoice{}, fmt.Errorf("%w: response is missing invoiceId or pageUrl", ErrUnavailable)
	}
	return out, nil
}
