package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// QuotationStore persists generated quotations.
type QuotationStore struct {
	repo *Repository
}

// Insert stores q. ID and Number must already be set.
func (s *QuotationStore) Insert(ctx context.Context, q *Quotation) error {
	defer s.repo.observe("quotation_insert", time.Now())

	lines, err := json.Marshal(q.Lines)
	if err != nil {
		return fmt.Errorf("encode quotation lines: %w", err)
	}
	var customerID *string
	if q.CustomerID != "" {
		customerID = &q.CustomerID
	}

	err = s.repo.pool.QueryRow(ctx, `
		INSERT INTO quotations (id, number, customer_id, customer_name, lines, subtotal, tax, total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		q.ID, q.Number, customerID, q.CustomerName, lines, q.Subtotal, q.Tax, q.Total,
	).Scan(&q.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert quotation: %w", err)
	}
	return nil
}
