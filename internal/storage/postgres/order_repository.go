package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/vmomparler1/just5stars-nextjs/internal/domain"
)

type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

const orderColumns = `
id::text, product_id, product_name, quantity, price::text, discount_amount::text, voucher_code,
customer_email, customer_phone, business_name, business_postcode, business_country, business_directory_id,
device_colors::text, utm_source, utm_medium, utm_campaign, utm_term, utm_content,
payment_intent_id, checkout_session_id, status, created_at, updated_at`

func (r *OrderRepository) CreateOrder(ctx context.Context, o domain.Order) (string, error) {
	const stmt = `
INSERT INTO orders (
	id, product_id, product_name, quantity, price, discount_amount, voucher_code,
	customer_email, customer_phone, business_name, business_postcode, business_country, business_directory_id,
	device_colors, utm_source, utm_medium, utm_campaign, utm_term, utm_content,
	payment_intent_id, checkout_session_id, status, created_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5::numeric, $6::numeric, $7,
	$8, $9, $10, $11, $12, $13,
	$14::jsonb, $15, $16, $17, $18, $19,
	$20, $21, $22, $23, $24
)
RETURNING id::text`

	if !validID(o.ID) {
		return "", domain.ErrInvalidID
	}

	colors := string(o.DeviceColors)
	if colors == "" {
		colors = "[]"
	}

	var id string
	err := conn(ctx, r.pool).QueryRow(ctx, stmt,
		o.ID, o.ProductID, o.ProductName, o.Quantity, o.Price.String(), o.DiscountAmount.String(), nullIfEmpty(o.VoucherCode),
		o.CustomerEmail, o.CustomerPhone, o.BusinessName, o.BusinessPostcode, o.BusinessCountry, nullIfEmpty(o.BusinessDirectoryID),
		colors, nullIfEmpty(o.Attribution.Source), nullIfEmpty(o.Attribution.Medium), nullIfEmpty(o.Attribution.Campaign),
		nullIfEmpty(o.Attribution.Term), nullIfEmpty(o.Attribution.Content),
		nullIfEmpty(o.PaymentIntentID), nullIfEmpty(o.CheckoutSessionID), string(o.Status), o.CreatedAt, o.UpdatedAt,
	).Scan(&id)
	if err != nil {
		if isInvalidUUID(err) {
			return "", domain.ErrInvalidID
		}
		return "", fmt.Errorf("create order: %w", err)
	}
	return id, nil
}

func (r *OrderRepository) GetOrderByID(ctx context.Context, id string) (domain.Order, error) {
	if !validID(id) {
		return domain.Order{}, domain.ErrInvalidID
	}
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	o, err := scanOrder(conn(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Order{}, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

func (r *OrderRepository) ListOrdersByEmail(ctx context.Context, email string) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE lower(customer_email) = lower($1) ORDER BY created_at DESC, id DESC`

	rows, err := conn(ctx, r.pool).Query(ctx, query, email)
	if err != nil {
		return nil, fmt.Errorf("list orders by email: %w", err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders by email: %w", err)
	}
	return out, nil
}

func (r *OrderRepository) GetPendingOrderByPaymentIntent(ctx context.Context, paymentIntentID string) (domain.Order, error) {
	query := `SELECT ` + orderColumns + `
FROM orders
WHERE payment_intent_id = $1 AND status = 'pending'
ORDER BY created_at DESC
LIMIT 1`

	o, err := scanOrder(conn(ctx, r.pool).QueryRow(ctx, query, paymentIntentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("get order by payment intent: %w", err)
	}
	return o, nil
}

// UpdateOrderStatus is a compare-and-set on status = 'pending', so concurrent
// deliveries for the same order cannot both apply.
func (r *OrderRepository) UpdateOrderStatus(ctx context.Context, upd domain.StatusUpdate) (domain.Order, error) {
	if !validID(upd.OrderID) {
		return domain.Order{}, domain.ErrInvalidID
	}
	stmt := `
UPDATE orders
SET status = $2,
	payment_intent_id = COALESCE($3, payment_intent_id),
	checkout_session_id = COALESCE($4, checkout_session_id),
	updated_at = $5
WHERE id = $1 AND status = 'pending'
RETURNING ` + orderColumns

	o, err := scanOrder(conn(ctx, r.pool).QueryRow(ctx, stmt,
		upd.OrderID, string(upd.Status), nullIfEmpty(upd.PaymentIntentID), nullIfEmpty(upd.SessionID), upd.UpdatedAt,
	))
	if err == nil {
		return o, nil
	}
	if isInvalidUUID(err) {
		return domain.Order{}, domain.ErrInvalidID
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, fmt.Errorf("update order status: %w", err)
	}

	if _, err := r.GetOrderByID(ctx, upd.OrderID); err != nil {
		return domain.Order{}, err
	}
	return domain.Order{}, domain.ErrInvalidTransition
}

func (r *OrderRepository) GetConfirmedOrderBySession(ctx context.Context, sessionID string) (domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE checkout_session_id = $1 AND status = 'confirmed'`

	o, err := scanOrder(conn(ctx, r.pool).QueryRow(ctx, query, sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("get order by session: %w", err)
	}
	return o, nil
}

func (r *OrderRepository) OrderStats(ctx context.Context) (domain.OrderStats, error) {
	const query = `
SELECT
	COUNT(*),
	COUNT(*) FILTER (WHERE status = 'pending'),
	COUNT(*) FILTER (WHERE status = 'confirmed'),
	COUNT(*) FILTER (WHERE status = 'cancelled'),
	COALESCE(SUM(GREATEST(price - discount_amount, 0)) FILTER (WHERE status = 'confirmed'), 0)::text
FROM orders`

	var st domain.OrderStats
	var revenue string
	err := conn(ctx, r.pool).QueryRow(ctx, query).
		Scan(&st.Total, &st.Pending, &st.Confirmed, &st.Cancelled, &revenue)
	if err != nil {
		return domain.OrderStats{}, fmt.Errorf("order stats: %w", err)
	}
	st.Revenue, err = decimal.NewFromString(revenue)
	if err != nil {
		return domain.OrderStats{}, fmt.Errorf("parse revenue: %w", err)
	}
	return st, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var o domain.Order
	var price, discount, colors, status string
	var voucher, directoryID, paymentIntent, session *string
	var utmSource, utmMedium, utmCampaign, utmTerm, utmContent *string
	err := row.Scan(
		&o.ID, &o.ProductID, &o.ProductName, &o.Quantity, &price, &discount, &voucher,
		&o.CustomerEmail, &o.CustomerPhone, &o.BusinessName, &o.BusinessPostcode, &o.BusinessCountry, &directoryID,
		&colors, &utmSource, &utmMedium, &utmCampaign, &utmTerm, &utmContent,
		&paymentIntent, &session, &status, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}

	if o.Price, err = decimal.NewFromString(price); err != nil {
		return domain.Order{}, fmt.Errorf("parse price: %w", err)
	}
	if o.DiscountAmount, err = decimal.NewFromString(discount); err != nil {
		return domain.Order{}, fmt.Errorf("parse discount: %w", err)
	}
	o.VoucherCode = deref(voucher)
	o.BusinessDirectoryID = deref(directoryID)
	o.DeviceColors = json.RawMessage(colors)
	o.Attribution = domain.Attribution{
		Source:   deref(utmSource),
		Medium:   deref(utmMedium),
		Campaign: deref(utmCampaign),
		Term:     deref(utmTerm),
		Content:  deref(utmContent),
	}
	o.PaymentIntentID = deref(paymentIntent)
	o.CheckoutSessionID = deref(session)
	o.Status = domain.OrderStatus(status)
	return o, nil
}
