package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bot-crm/internal/cache"
)

// ItemStore queries the inventory catalog, caching results in Redis.
type ItemStore struct {
	repo  *Repository
	cache *cache.Redis
	ttl   time.Duration
}

// Query returns items matching every non-empty filter field. Model and brand
// match by substring, item type by prefix.
func (s *ItemStore) Query(ctx context.Context, filter ItemFilter) ([]Item, error) {
	filter = ItemFilter{
		Brand:    strings.TrimSpace(filter.Brand),
		Model:    strings.TrimSpace(filter.Model),
		ItemType: strings.ToLower(strings.TrimSpace(filter.ItemType)),
	}
	if filter.Empty() {
		return nil, nil
	}

	key := catalogKey(filter)
	if s.cache != nil && s.ttl > 0 {
		var cached []Item
		ok, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			s.repo.logger.Warn("catalog cache read failed", "error", err)
		} else if ok {
			return cached, nil
		}
	}

	items, err := s.queryDB(ctx, filter)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && s.ttl > 0 {
		if err := s.cache.SetJSON(ctx, key, items, s.ttl); err != nil {
			s.repo.logger.Warn("catalog cache write failed", "error", err)
		}
	}
	return items, nil
}

func (s *ItemStore) queryDB(ctx context.Context, filter ItemFilter) ([]Item, error) {
	defer s.repo.observe("catalog_query", time.Now())

	var (
		conds []string
		args  []any
	)
	if filter.Brand != "" {
		args = append(args, filter.Brand)
		conds = append(conds, fmt.Sprintf("brand ILIKE '%%' || $%d || '%%'", len(args)))
	}
	if filter.Model != "" {
		args = append(args, filter.Model)
		conds = append(conds, fmt.Sprintf("(model ILIKE '%%' || $%d || '%%' OR name ILIKE '%%' || $%d || '%%')", len(args), len(args)))
	}
	if filter.ItemType != "" {
		args = append(args, filter.ItemType)
		conds = append(conds, fmt.Sprintf("item_type ILIKE $%d || '%%'", len(args)))
	}

	query := `
		SELECT id::text, brand, model, item_type, name, quantity, min_threshold,
		       last_purchase_price::float8, last_vendor
		FROM inventory_items
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY brand, model, item_type
		LIMIT 50`

	rows, err := s.repo.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Brand, &it.Model, &it.ItemType, &it.Name, &it.Quantity,
			&it.MinThreshold, &it.LastPurchasePrice, &it.LastVendor); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func catalogKey(f ItemFilter) string {
	return "catalog:" + strings.ToLower(f.Brand) + "|" + strings.ToLower(f.Model) + "|" + f.ItemType
}
