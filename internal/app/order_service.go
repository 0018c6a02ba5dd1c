package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vmomparler1/just5stars-nextjs/internal/clock"
	"github.com/vmomparler1/just5stars-nextjs/internal/domain"
)

type OrderService struct {
	repo  OrderRepository
	clock clock.Clock
}

func NewOrderService(repo OrderRepository, clk clock.Clock) *OrderService {
	return &OrderService{
		repo:  repo,
		clock: clk,
	}
}

// CreateOrderInput is what the checkout flow knows before redirecting to the
// payment provider.
type CreateOrderInput struct {
	ProductID           string
	ProductName         string
	Quantity            int
	Price               decimal.Decimal
	DiscountAmount      decimal.Decimal
	VoucherCode         string
	CustomerEmail       string
	CustomerPhone       string
	BusinessName        string
	BusinessPostcode    string
	BusinessCountry     string
	BusinessDirectoryID string
	DeviceColors        json.RawMessage
	Attribution         domain.Attribution
	PaymentIntentID     string
	SessionID           string
}

func (in CreateOrderInput) validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"product_id", in.ProductID},
		{"product_name", in.ProductName},
		{"customer_email", in.CustomerEmail},
		{"customer_phone", in.CustomerPhone},
		{"business_name", in.BusinessName},
		{"business_postcode", in.BusinessPostcode},
		{"business_country", in.BusinessCountry},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: %s", domain.ErrMissingRequired, f.name)
		}
	}
	if len(in.DeviceColors) == 0 || !json.Valid(in.DeviceColors) {
		return fmt.Errorf("%w: stand_colors", domain.ErrMissingRequired)
	}
	if in.Quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	if !in.Price.IsPositive() || in.DiscountAmount.IsNegative() || in.DiscountAmount.GreaterThan(in.Price) {
		return domain.ErrInvalidPrice
	}
	return nil
}

// CreateOrder stores a new pending order. It runs once per checkout intent,
// before any payment event exists.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (domain.Order, error) {
	if err := in.validate(); err != nil {
		return domain.Order{}, err
	}

	now := s.clock.Now()
	order := domain.Order{
		ID:                  newOrderID(),
		ProductID:           in.ProductID,
		ProductName:         in.ProductName,
		Quantity:            in.Quantity,
		Price:               in.Price,
		DiscountAmount:      in.DiscountAmount,
		VoucherCode:         in.VoucherCode,
		CustomerEmail:       domain.NormalizeEmail(in.CustomerEmail),
		CustomerPhone:       in.CustomerPhone,
		BusinessName:        in.BusinessName,
		BusinessPostcode:    in.BusinessPostcode,
		BusinessCountry:     in.BusinessCountry,
		BusinessDirectoryID: in.BusinessDirectoryID,
		DeviceColors:        in.DeviceColors,
		Attribution:         in.Attribution,
		PaymentIntentID:     in.PaymentIntentID,
		CheckoutSessionID:   in.SessionID,
		Status:              domain.OrderStatusPending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	id, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		return domain.Order{}, err
	}
	order.ID = id
	return order, nil
}

// ConfirmedOrderBySession backs the post-checkout page; pending or cancelled
// orders are reported as not found.
func (s *OrderService) ConfirmedOrderBySession(ctx context.Context, sessionID string) (domain.Order, error) {
	if strings.TrimSpace(sessionID) == "" {
		return domain.Order{}, fmt.Errorf("%w: session_id", domain.ErrMissingRequired)
	}
	return s.repo.GetConfirmedOrderBySession(ctx, sessionID)
}

func (s *OrderService) Stats(ctx context.Context) (domain.OrderStats, error) {
	return s.repo.OrderStats(ctx)
}
