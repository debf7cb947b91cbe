package ports

import "context"

// ProcessedEvents is the ledger of webhook event ids that completed
// reconciliation. It makes reconciliation safe under duplicate delivery
// even across process restarts when backed by a durable store.
type ProcessedEvents interface {
	Processed(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID, orderID string) error
}
