package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Processed(ctx context.Context, eventID string) (bool, error) {
	query := `
		SELECT EXISTS (SELECT 1 FROM processed_events WHERE event_id = $1)
	`

	var exists bool
	if err := s.pool.QueryRow(ctx, query, eventID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check processed event: %w", err)
	}

	return exists, nil
}

func (s *Store) Mark(ctx context.Context, eventID, orderID string) error {
	query := `
		INSERT INTO processed_events (event_id, order_id, processed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_id) DO NOTHING
	`

	_, err := s.pool.Exec(ctx, query, eventID, orderID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert processed event: %w", err)
	}

	return nil
}
