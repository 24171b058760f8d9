package convo

import (
	"sort"
	"strconv"
	"strings"

	"bot-crm/internal/repo"
)

const maxSuggestions = 5

// rankSuggestions scores candidates against the original query and keeps the
// best few. Ties go to items with more stock.
func rankSuggestions(items []repo.Item, f repo.ItemFilter) []repo.Item {
	type scored struct {
		item  repo.Item
		score int
	}
	seen := make(map[string]bool, len(items))
	var res []scored
	for _, item := range items {
		key := item.ID
		if key == "" {
			key = strings.ToLower(item.Label())
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		if s := matchScore(item, f); s > 0 {
			res = append(res, scored{item, s})
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		if res[i].score != res[j].score {
			return res[i].score > res[j].score
		}
		return res[i].item.Quantity > res[j].item.Quantity
	})
	if len(res) > maxSuggestions {
		res = res[:maxSuggestions]
	}
	out := make([]repo.Item, len(res))
	for i, r := range res {
		out[i] = r.item
	}
	return out
}

func matchScore(item repo.Item, f repo.ItemFilter) int {
	model := strings.ToLower(item.Model)
	name := strings.ToLower(item.Name)

	score := 0
	if q := strings.ToLower(f.Model); q != "" {
		switch {
		case model == q:
			score += 5
		case model != "" && (strings.Contains(model, q) || strings.Contains(q, model)):
			score += 4
		case strings.Contains(name, q):
			score += 3
		}
	}
	if f.Brand != "" && strings.EqualFold(item.Brand, f.Brand) {
		score += 2
	}
	if f.ItemType != "" && strings.EqualFold(item.ItemType, f.ItemType) {
		score += 1
	}
	return score
}

// relaxedFilters lists the fallback queries tried when f matches nothing.
func relaxedFilters(f repo.ItemFilter) []repo.ItemFilter {
	var res []repo.ItemFilter
	add := func(c repo.ItemFilter) {
		if c.Empty() || c == f {
			return
		}
		for _, existing := range res {
			if existing == c {
				return
			}
		}
		res = append(res, c)
	}
	add(repo.ItemFilter{Model: f.Model})
	add(repo.ItemFilter{Brand: f.Brand, ItemType: f.ItemType})
	add(repo.ItemFilter{Brand: f.Brand})
	return res
}

func formatStockList(rows []StockRow) string {
	lines := make([]string, len(rows))
	for i, r := range rows {
		line := r.Item.Label() + ": " + strconv.Itoa(r.Item.Quantity) + " in stock"
		if r.LowStock {
			line += " (low, min " + strconv.Itoa(r.Item.MinThreshold) + ")"
		}
		if r.Item.LastVendor != "" {
			line += ", last from " + r.Item.LastVendor
		}
		lines[i] = line
	}
	return "- " + strings.Join(lines, "\n- ")
}
