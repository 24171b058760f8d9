package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CustomerStore is the Postgres-backed customer directory.
type CustomerStore struct {
	repo *Repository
}

const customerColumns = `id::text, name, phone, location, product, created_at`

// LookupByPhone returns the customer with the exact phone, or nil when none exists.
func (s *CustomerStore) LookupByPhone(ctx context.Context, phone string) (*Customer, error) {
	defer s.repo.observe("customer_lookup_phone", time.Now())

	row := s.repo.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE phone = $1`, phone)
	c, err := scanCustomer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup customer by phone: %w", err)
	}
	return c, nil
}

// SearchByName returns customers whose name contains name, exact matches first.
func (s *CustomerStore) SearchByName(ctx context.Context, name string) ([]Customer, error) {
	defer s.repo.observe("customer_search_name", time.Now())

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	rows, err := s.repo.pool.Query(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE name ILIKE '%' || $1 || '%'
		ORDER BY (lower(name) = lower($1)) DESC, name
		LIMIT 10`, name)
	if err != nil {
		return nil, fmt.Errorf("search customers: %w", err)
	}
	defer rows.Close()

	var res []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		res = append(res, *c)
	}
	return res, rows.Err()
}

// Create inserts a customer. When the phone already exists the existing
// record is returned together with ErrDuplicate.
func (s *CustomerStore) Create(ctx context.Context, in NewCustomer) (*Customer, error) {
	defer s.repo.observe("customer_create", time.Now())

	row := s.repo.pool.QueryRow(ctx, `
		INSERT INTO customers (id, name, phone, location, product)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (phone) DO NOTHING
		RETURNING `+customerColumns,
		uuid.NewString(), in.Name, in.Phone, in.Location, in.Product)
	c, err := scanCustomer(row)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("insert customer: %w", err)
	}

	existing, lookupErr := s.LookupByPhone(ctx, in.Phone)
	if lookupErr != nil {
		return nil, lookupErr
	}
	if existing == nil {
		return nil, fmt.Errorf("insert customer: conflict without existing row for %s", in.Phone)
	}
	return existing, ErrDuplicate
}

func scanCustomer(row pgx.Row) (*Customer, error) {
	var c Customer
	if err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Location, &c.Product, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}
