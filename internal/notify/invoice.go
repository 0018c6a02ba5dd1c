package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	DefaultStripeURL = "https://api.stripe.com"
	maxInvoiceBytes  = 10 << 20
)

// ErrNoInvoice means the checkout session has no invoice attached.
var ErrNoInvoice = errors.New("no invoice for session")

// InvoiceFetcher downloads the invoice PDF for a checkout session from the
// payment provider API.
type InvoiceFetcher struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewInvoiceFetcher(baseURL, apiKey string) *InvoiceFetcher {
	if baseURL == "" {
		baseURL = DefaultStripeURL
	}
	return &InvoiceFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// Invoice is a downloaded invoice document.
type Invoice struct {
	Number string
	PDF    []byte
}

// FetchForSession resolves session → invoice → PDF. It returns ErrNoInvoice
// when the session never produced one.
func (f *InvoiceFetcher) FetchForSession(ctx context.Context, sessionID string) (Invoice, error) {
	if sessionID == "" {
		return Invoice{}, ErrNoInvoice
	}

	var session struct {
		Invoice json.RawMessage `json:"invoice"`
	}
	if err := f.getJSON(ctx, "/v1/checkout/sessions/"+url.PathEscape(sessionID), &session); err != nil {
		return Invoice{}, fmt.Errorf("get session: %w", err)
	}
	invoiceID := objectID(session.Invoice)
	if invoiceID == "" {
		return Invoice{}, ErrNoInvoice
	}

	var inv struct {
		Number     string `json:"number"`
		InvoicePDF string `json:"invoice_pdf"`
	}
	if err := f.getJSON(ctx, "/v1/invoices/"+url.PathEscape(invoiceID), &inv); err != nil {
		return Invoice{}, fmt.Errorf("get invoice: %w", err)
	}
	if inv.InvoicePDF == "" {
		return Invoice{}, ErrNoInvoice
	}

	pdf, err := f.download(ctx, inv.InvoicePDF)
	if err != nil {
		return Invoice{}, fmt.Errorf("download invoice: %w", err)
	}
	return Invoice{Number: inv.Number, PDF: pdf}, nil
}

func (f *InvoiceFetcher) getJSON(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+f.apiKey)

	resp, err := f.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

func (f *InvoiceFetcher) download(ctx context.Context, link string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxInvoiceBytes))
}

// objectID reads an expandable field that is either an id string, an object
// with an id, or null.
func objectID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.ID
	}
	return ""
}
