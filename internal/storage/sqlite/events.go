package sqlite

import (
	"context"
	"fmt"
	"time"
)

func (s *Store) ClaimEvent(ctx context.Context, eventID, eventType string, receivedAt time.Time) (bool, error) {
	const stmt = `
INSERT INTO webhook_events (event_id, event_type, received_at)
VALUES (?, ?, ?)
ON CONFLICT (event_id) DO NOTHING`

	res, err := s.conn(ctx).ExecContext(ctx, stmt, eventID, eventType, formatTime(receivedAt))
	if err != nil {
		return false, fmt.Errorf("claim event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim event: %w", err)
	}
	return n == 1, nil
}

func (s *Store) CompleteEvent(ctx context.Context, eventID, orderID, outcome string) error {
	const stmt = `
UPDATE webhook_events
SET order_id = ?, outcome = ?, completed_at = ?
WHERE event_id = ?`

	if _, err := s.conn(ctx).ExecContext(ctx, stmt, nullString(orderID), outcome, formatTime(time.Now()), eventID); err != nil {
		return fmt.Errorf("complete event: %w", err)
	}
	return nil
}

func (s *Store) ReleaseEvent(ctx context.Context, eventID string) error {
	const stmt = `DELETE FROM webhook_events WHERE event_id = ? AND completed_at IS NULL`

	if _, err := s.conn(ctx).ExecContext(ctx, stmt, eventID); err != nil {
		return fmt.Errorf("release event: %w", err)
	}
	return nil
}
