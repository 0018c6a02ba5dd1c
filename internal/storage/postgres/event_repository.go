package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EventRepository is the ledger of provider event ids already handled.
type EventRepository struct {
	pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

func (r *EventRepository) ClaimEvent(ctx context.Context, eventID, eventType string, receivedAt time.Time) (bool, error) {
	const stmt = `
INSERT INTO webhook_events (event_id, event_type, received_at)
VALUES ($1, $2, $3)
ON CONFLICT (event_id) DO NOTHING`

	tag, err := conn(ctx, r.pool).Exec(ctx, stmt, eventID, eventType, receivedAt)
	if err != nil {
		return false, fmt.Errorf("claim event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *EventRepository) CompleteEvent(ctx context.Context, eventID, orderID, outcome string) error {
	const stmt = `
UPDATE webhook_events
SET order_id = $2, outcome = $3, completed_at = NOW()
WHERE event_id = $1`

	if _, err := conn(ctx, r.pool).Exec(ctx, stmt, eventID, nullIfEmpty(orderID), outcome); err != nil {
		return fmt.Errorf("complete event: %w", err)
	}
	return nil
}

func (r *EventRepository) ReleaseEvent(ctx context.Context, eventID string) error {
	const stmt = `DELETE FROM webhook_events WHERE event_id = $1 AND completed_at IS NULL`

	if _, err := conn(ctx, r.pool).Exec(ctx, stmt, eventID); err != nil {
		return fmt.Errorf("release event: %w", err)
	}
	return nil
}
