package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vmomparler1/just5stars-nextjs/internal/app"
	"github.com/vmomparler1/just5stars-nextjs/internal/domain"
)

// OrderCreator is the minimal interface needed to create an order.
type OrderCreator interface {
	CreateOrder(ctx context.Context, in app.CreateOrderInput) (domain.Order, error)
}

// SessionOrderFinder is the minimal interface needed for the thank-you page.
type SessionOrderFinder interface {
	ConfirmedOrderBySession(ctx context.Context, sessionID string) (domain.Order, error)
}

// StatsProvider is the minimal interface needed for order stats.
type StatsProvider interface {
	Stats(ctx context.Context) (domain.OrderStats, error)
}

// HandleCreateOrder records the checkout intent as a pending order.
func HandleCreateOrder(svc OrderCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req createOrderRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		order, err := svc.CreateOrder(r.Context(), req.input())
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrMissingRequired):
				writeError(w, http.StatusBadRequest, codeMissingRequiredField, err.Error())
			case errors.Is(err, domain.ErrInvalidQuantity):
				writeError(w, http.StatusBadRequest, codeInvalidQuantity, err.Error())
			case errors.Is(err, domain.ErrInvalidPrice):
				writeError(w, http.StatusBadRequest, codeInvalidPrice, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		writeJSON(w, http.StatusCreated, createOrderResponse{Success: true, OrderID: order.ID})
	}
}

type createOrderRequest struct {
	ProductID       string          `json:"product_id"`
	ProductName     string          `json:"product_name"`
	Quantity        int             `json:"quantity"`
	Price           decimal.Decimal `json:"price"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	VoucherCode     string          `json:"voucher_code"`
	CustomerEmail   string          `json:"customer_email"`
	CustomerPhone   string          `json:"customer_phone"`
	BusinessName    string          `json:"business_name"`
	BusinessPost    string          `json:"business_postcode"`
	BusinessCountry string          `json:"business_country"`
	GoogleBusiness  string          `json:"google_business_id"`
	StandColors     json.RawMessage `json:"stand_colors"`
	UTMSource       string          `json:"utm_source"`
	UTMMedium       string          `json:"utm_medium"`
	UTMCampaign     string          `json:"utm_campaign"`
	UTMTerm         string          `json:"utm_term"`
	UTMContent      string          `json:"utm_content"`
	PaymentIntentID string          `json:"stripe_payment_intent_id"`
	SessionID       string          `json:"stripe_session_id"`
}

func (r createOrderRequest) input() app.CreateOrderInput {
	return app.CreateOrderInput{
		ProductID:           r.ProductID,
		ProductName:         r.ProductName,
		Quantity:            r.Quantity,
		Price:               r.Price,
		DiscountAmount:      r.DiscountAmount,
		VoucherCode:         r.VoucherCode,
		CustomerEmail:       r.CustomerEmail,
		CustomerPhone:       r.CustomerPhone,
		BusinessName:        r.BusinessName,
		BusinessPostcode:    r.BusinessPost,
		BusinessCountry:     r.BusinessCountry,
		BusinessDirectoryID: r.GoogleBusiness,
		DeviceColors:        r.StandColors,
		Attribution: domain.Attribution{
			Source:   r.UTMSource,
			Medium:   r.UTMMedium,
			Campaign: r.UTMCampaign,
			Term:     r.UTMTerm,
			Content:  r.UTMContent,
		},
		PaymentIntentID: r.PaymentIntentID,
		SessionID:       r.SessionID,
	}
}

type createOrderResponse struct {
	Success bool   `json:"success"`
	OrderID string `json:"order_id"`
}

// HandleOrderBySession returns the confirmed order behind a checkout session.
func HandleOrderBySession(svc SessionOrderFinder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		order, err := svc.ConfirmedOrderBySession(r.Context(), r.URL.Query().Get("session_id"))
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrMissingRequired):
				writeError(w, http.StatusBadRequest, codeMissingRequiredField, "session_id is required")
			case errors.Is(err, domain.ErrOrderNotFound):
				writeError(w, http.StatusNotFound, codeOrderNotFound, "order not found")
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		writeJSON(w, http.StatusOK, orderSummary{
			OrderID:         order.ID,
			ProductName:     order.ProductName,
			Quantity:        order.Quantity,
			Total:           json.Number(order.Total().StringFixed(2)),
			CustomerEmail:   order.CustomerEmail,
			BusinessName:    order.BusinessName,
			BusinessCountry: order.BusinessCountry,
			Status:          string(order.Status),
			CreatedAt:       order.CreatedAt,
		})
	}
}

type orderSummary struct {
	OrderID         string      `json:"order_id"`
	ProductName     string      `json:"product_name"`
	Quantity        int         `json:"quantity"`
	Total           json.Number `json:"total"`
	CustomerEmail   string      `json:"customer_email"`
	BusinessName    string      `json:"business_name"`
	BusinessCountry string      `json:"business_country"`
	Status          string      `json:"status"`
	CreatedAt       time.Time   `json:"created_at"`
}

// HandleOrderStats reports order counts and confirmed revenue.
func HandleOrderStats(svc StatsProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		st, err := svc.Stats(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, statsResponse{
			Total:     st.Total,
			Pending:   st.Pending,
			Confirmed: st.Confirmed,
			Cancelled: st.Cancelled,
			Revenue:   json.Number(st.Revenue.StringFixed(2)),
		})
	}
}

type statsResponse struct {
	Total     int         `json:"total"`
	Pending   int         `json:"pending"`
	Confirmed int         `json:"confirmed"`
	Cancelled int         `json:"cancelled"`
	Revenue   json.Number `json:"revenue"`
}
