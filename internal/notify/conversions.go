package notify

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/vmomparler1/just5stars-nextjs/internal/clock"
	"github.com/vmomparler1/just5stars-nextjs/internal/domain"
)

const (
	DefaultGraphURL     = "https://graph.facebook.com"
	DefaultGraphVersion = "v19.0"
	purchaseEvent       = "Purchase"
)

// ConversionsClient reports purchases to the Meta Conversions API.
type ConversionsClient struct {
	baseURL   string
	version   string
	pixelID   string
	token     string
	currency  string
	sourceURL string
	http      *http.Client
	clock     clock.Clock
}

type ConversionsConfig struct {
	BaseURL   string
	PixelID   string
	Token     string
	Currency  string
	SourceURL string
}

func NewConversionsClient(cfg ConversionsConfig, clk clock.Clock) *ConversionsClient {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultGraphURL
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "EUR"
	}
	return &ConversionsClient{
		baseURL:   strings.TrimRight(base, "/"),
		version:   DefaultGraphVersion,
		pixelID:   cfg.PixelID,
		token:     cfg.Token,
		currency:  strings.ToUpper(currency),
		sourceURL: cfg.SourceURL,
		http:      &http.Client{Timeout: defaultHTTPTimeout},
		clock:     clk,
	}
}

type purchaseRequest struct {
	Data        []serverEvent `json:"data"`
	AccessToken string        `json:"access_token"`
}

type serverEvent struct {
	EventName      string     `json:"event_name"`
	EventTime      int64      `json:"event_time"`
	EventID        string     `json:"event_id"`
	ActionSource   string     `json:"action_source"`
	EventSourceURL string     `json:"event_source_url,omitempty"`
	UserData       userData   `json:"user_data"`
	CustomData     customData `json:"custom_data"`
}

type userData struct {
	Email   []string `json:"em,omitempty"`
	Phone   []string `json:"ph,omitempty"`
	Country []string `json:"country,omitempty"`
}

type customData struct {
	Value    json.Number `json:"value"`
	Currency string      `json:"currency"`
	OrderID  string      `json:"order_id"`
}

// hashIdentifier normalizes and hashes a customer identifier the way the
// Conversions API expects.
func hashIdentifier(v string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(v))))
	return hex.EncodeToString(sum[:])
}

func (c *ConversionsClient) purchase(o domain.Order) serverEvent {
	ev := serverEvent{
		EventName:      purchaseEvent,
		EventTime:      c.clock.Now().Unix(),
		EventID:        o.ID,
		ActionSource:   "website",
		EventSourceURL: c.sourceURL,
		CustomData: customData{
			Value:    json.Number(o.Total().StringFixed(2)),
			Currency: c.currency,
			OrderID:  o.ID,
		},
	}
	if o.CustomerEmail != "" {
		ev.UserData.Email = []string{hashIdentifier(o.CustomerEmail)}
	}
	if o.CustomerPhone != "" {
		ev.UserData.Phone = []string{hashIdentifier(o.CustomerPhone)}
	}
	if code := CountryCode(o.BusinessCountry); code != "" {
		ev.UserData.Country = []string{hashIdentifier(code)}
	}
	return ev
}

// TrackPurchase sends one Purchase event keyed by the order id, so the
// browser pixel and the server event deduplicate on Meta's side.
func (c *ConversionsClient) TrackPurchase(ctx context.Context, o domain.Order) error {
	// The token stays out of the URL; transport errors quote it verbatim.
	body, err := json.Marshal(purchaseRequest{Data: []serverEvent{c.purchase(o)}, AccessToken: c.token})
	if err != nil {
		return fmt.Errorf("marshal purchase: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/%s/events", c.baseURL, c.version, url.PathEscape(c.pixelID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send purchase: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("send purchase: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
