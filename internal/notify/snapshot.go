// Package notify holds the outbound clients behind the order side effects:
// conversion tracking, customer email, CRM automation and lifecycle events.
package notify

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/vmomparler1/just5stars-nextjs/internal/domain"
)

const defaultHTTPTimeout = 30 * time.Second

// Snapshot is the JSON view of an order sent to external systems.
type Snapshot struct {
	OrderID           string          `json:"order_id"`
	ProductID         string          `json:"product_id"`
	ProductName       string          `json:"product_name"`
	Quantity          int             `json:"quantity"`
	Price             json.Number     `json:"price"`
	DiscountAmount    json.Number     `json:"discount_amount"`
	Total             json.Number     `json:"total"`
	VoucherCode       string          `json:"voucher_code,omitempty"`
	CustomerEmail     string          `json:"customer_email"`
	CustomerPhone     string          `json:"customer_phone"`
	BusinessName      string          `json:"business_name"`
	BusinessPostcode  string          `json:"business_postcode"`
	BusinessCountry   string          `json:"business_country"`
	GoogleBusinessID  string          `json:"google_business_id,omitempty"`
	StandColors       json.RawMessage `json:"stand_colors"`
	UTMSource         string          `json:"utm_source,omitempty"`
	UTMMedium         string          `json:"utm_medium,omitempty"`
	UTMCampaign       string          `json:"utm_campaign,omitempty"`
	UTMTerm           string          `json:"utm_term,omitempty"`
	UTMContent        string          `json:"utm_content,omitempty"`
	PaymentIntentID   string          `json:"stripe_payment_intent_id,omitempty"`
	CheckoutSessionID string          `json:"stripe_session_id,omitempty"`
	Status            string          `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func NewSnapshot(o domain.Order) Snapshot {
	colors := o.DeviceColors
	if len(colors) == 0 {
		colors = json.RawMessage(`[]`)
	}
	return Snapshot{
		OrderID:           o.ID,
		ProductID:         o.ProductID,
		ProductName:       o.ProductName,
		Quantity:          o.Quantity,
		Price:             json.Number(o.Price.StringFixed(2)),
		DiscountAmount:    json.Number(o.DiscountAmount.StringFixed(2)),
		Total:             json.Number(o.Total().StringFixed(2)),
		VoucherCode:       o.VoucherCode,
		CustomerEmail:     o.CustomerEmail,
		CustomerPhone:     o.CustomerPhone,
		BusinessName:      o.BusinessName,
		BusinessPostcode:  o.BusinessPostcode,
		BusinessCountry:   o.BusinessCountry,
		GoogleBusinessID:  o.BusinessDirectoryID,
		StandColors:       colors,
		UTMSource:         o.Attribution.Source,
		UTMMedium:         o.Attribution.Medium,
		UTMCampaign:       o.Attribution.Campaign,
		UTMTerm:           o.Attribution.Term,
		UTMContent:        o.Attribution.Content,
		PaymentIntentID:   o.PaymentIntentID,
		CheckoutSessionID: o.CheckoutSessionID,
		Status:            string(o.Status),
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}

var countryCodes = map[string]string{
	"spain":    "ES",
	"españa":   "ES",
	"espana":   "ES",
	"france":   "FR",
	"francia":  "FR",
	"italy":    "IT",
	"italia":   "IT",
	"portugal": "PT",
	"germany":  "DE",
	"alemania": "DE",
}

// CountryCode maps a free-text country name to ISO 3166 alpha-2. Two-letter
// input is returned upper-cased; unknown names return "".
func CountryCode(country string) string {
	c := strings.ToLower(strings.TrimSpace(country))
	if code, ok := countryCodes[c]; ok {
		return code
	}
	if len(c) == 2 {
		return strings.ToUpper(c)
	}
	return ""
}
