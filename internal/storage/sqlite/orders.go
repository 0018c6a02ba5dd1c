package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vmomparler1/just5stars-nextjs/internal/domain"
)

const orderColumns = `
id, product_id, product_name, quantity, price, discount_amount, voucher_code,
customer_email, customer_phone, business_name, business_postcode, business_country, business_directory_id,
device_colors, utm_source, utm_medium, utm_campaign, utm_term, utm_content,
payment_intent_id, checkout_session_id, status, created_at, updated_at`

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (s *Store) CreateOrder(ctx context.Context, o domain.Order) (string, error) {
	if !validID(o.ID) {
		return "", domain.ErrInvalidID
	}

	colors := string(o.DeviceColors)
	if colors == "" {
		colors = "[]"
	}

	const stmt = `
INSERT INTO orders (` + orderColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.conn(ctx).ExecContext(ctx, stmt,
		o.ID, o.ProductID, o.ProductName, o.Quantity, o.Price.String(), o.DiscountAmount.String(), nullString(o.VoucherCode),
		o.CustomerEmail, o.CustomerPhone, o.BusinessName, o.BusinessPostcode, o.BusinessCountry, nullString(o.BusinessDirectoryID),
		colors, nullString(o.Attribution.Source), nullString(o.Attribution.Medium), nullString(o.Attribution.Campaign),
		nullString(o.Attribution.Term), nullString(o.Attribution.Content),
		nullString(o.PaymentIntentID), nullString(o.CheckoutSessionID), string(o.Status),
		formatTime(o.CreatedAt), formatTime(o.UpdatedAt),
	)
	if err != nil {
		return "", fmt.Errorf("create order: %w", err)
	}
	return o.ID, nil
}

func (s *Store) GetOrderByID(ctx context.Context, id string) (domain.Order, error) {
	if !validID(id) {
		return domain.Order{}, domain.ErrInvalidID
	}
	return s.getOne(ctx, "get order", `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
}

func (s *Store) ListOrdersByEmail(ctx context.Context, email string) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE lower(customer_email) = lower(?) ORDER BY created_at DESC, id DESC`

	rows, err := s.conn(ctx).QueryContext(ctx, query, email)
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

func (s *Store) GetPendingOrderByPaymentIntent(ctx context.Context, paymentIntentID string) (domain.Order, error) {
	query := `SELECT ` + orderColumns + `
FROM orders
WHERE payment_intent_id = ? AND status = 'pending'
ORDER BY created_at DESC
LIMIT 1`
	return s.getOne(ctx, "get order by payment intent", query, paymentIntentID)
}

func (s *Store) UpdateOrderStatus(ctx context.Context, upd domain.StatusUpdate) (domain.Order, error) {
	if !validID(upd.OrderID) {
		return domain.Order{}, domain.ErrInvalidID
	}

	stmt := `
UPDATE orders
SET status = ?,
	payment_intent_id = COALESCE(?, payment_intent_id),
	checkout_session_id = COALESCE(?, checkout_session_id),
	updated_at = ?
WHERE id = ? AND status = 'pending'
RETURNING ` + orderColumns

	o, err := scanOrder(s.conn(ctx).QueryRowContext(ctx, stmt,
		string(upd.Status), nullString(upd.PaymentIntentID), nullString(upd.SessionID), formatTime(upd.UpdatedAt), upd.OrderID,
	))
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, fmt.Errorf("update order status: %w", err)
	}

	if _, err := s.GetOrderByID(ctx, upd.OrderID); err != nil {
		return domain.Order{}, err
	}
	return domain.Order{}, domain.ErrInvalidTransition
}

func (s *Store) GetConfirmedOrderBySession(ctx context.Context, sessionID string) (domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE checkout_session_id = ? AND status = 'confirmed' LIMIT 1`
	return s.getOne(ctx, "get order by session", query, sessionID)
}

// OrderStats sums revenue in Go; amounts are stored as decimal text.
func (s *Store) OrderStats(ctx context.Context) (domain.OrderStats, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `SELECT status, price, discount_amount FROM orders`)
	if err != nil {
		return domain.OrderStats{}, fmt.Errorf("order stats: %w", err)
	}
	defer rows.Close()

	st := domain.OrderStats{Revenue: decimal.Zero}
	for rows.Next() {
		var status, price, discount string
		if err := rows.Scan(&status, &price, &discount); err != nil {
			return domain.OrderStats{}, fmt.Errorf("scan stats: %w", err)
		}
		st.Total++
		switch domain.OrderStatus(status) {
		case domain.OrderStatusPending:
			st.Pending++
		case domain.OrderStatusCancelled:
			st.Cancelled++
		case domain.OrderStatusConfirmed:
			st.Confirmed++
			o := domain.Order{}
			if o.Price, err = decimal.NewFromString(price); err != nil {
				return domain.OrderStats{}, fmt.Errorf("parse price: %w", err)
			}
			if o.DiscountAmount, err = decimal.NewFromString(discount); err != nil {
				return domain.OrderStats{}, fmt.Errorf("parse discount: %w", err)
			}
			st.Revenue = st.Revenue.Add(o.Total())
		}
	}
	if err := rows.Err(); err != nil {
		return domain.OrderStats{}, fmt.Errorf("order stats: %w", err)
	}
	return st, nil
}

func (s *Store) getOne(ctx context.Context, op, query string, args ...any) (domain.Order, error) {
	o, err := scanOrder(s.conn(ctx).QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("%s: %w", op, err)
	}
	return o, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var o domain.Order
	var price, discount, colors, status, createdAt, updatedAt string
	var voucher, directoryID, paymentIntent, session sql.NullString
	var utmSource, utmMedium, utmCampaign, utmTerm, utmContent sql.NullString
	err := row.Scan(
		&o.ID, &o.ProductID, &o.ProductName, &o.Quantity, &price, &discount, &voucher,
		&o.CustomerEmail, &o.CustomerPhone, &o.BusinessName, &o.BusinessPostcode, &o.BusinessCountry, &directoryID,
		&colors, &utmSource, &utmMedium, &utmCampaign, &utmTerm, &utmContent,
		&paymentIntent, &session, &status, &createdAt, &updatedAt,
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
	if o.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.Order{}, fmt.Errorf("parse created_at: %w", err)
	}
	if o.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return domain.Order{}, fmt.Errorf("parse updated_at: %w", err)
	}
	o.VoucherCode = voucher.String
	o.BusinessDirectoryID = directoryID.String
	o.DeviceColors = json.RawMessage(colors)
	o.Attribution = domain.Attribution{
		Source:   utmSource.String,
		Medium:   utmMedium.String,
		Campaign: utmCampaign.String,
		Term:     utmTerm.String,
		Content:  utmContent.String,
	}
	o.PaymentIntentID = paymentIntent.String
	o.CheckoutSessionID = session.String
	o.Status = domain.OrderStatus(status)
	return o, nil
}
