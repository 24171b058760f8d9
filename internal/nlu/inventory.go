package nlu

import (
	"regexp"
	"strings"

	"bot-crm/internal/repo"
)

var (
	inventoryTriggerRegex = regexp.MustCompile(`(?i)\b(inventory|stock|stocks|toner|toners|drum|drums|developer|developers|available|availability|kitna|kitne|kitni|maal|bacha|bache|bachi)\b`)
	quotationTriggerRegex = regexp.MustCompile(`(?i)\b(quotation|quotations|quote|quotes|estimate)\b`)
)

// hindiStockWords are Devanagari stock-query triggers; regexp word boundaries
// only apply to ASCII so these are matched by substring.
var hindiStockWords = []string{"स्टॉक", "कितना", "कितने", "कितनी", "माल", "बचा"}

// ExtractInventory reads a stock query. Brand, model and item type are found
// independently so a message naming only a model still yields a query.
func ExtractInventory(text string) (InventoryQuery, bool) {
	if !inventoryTriggerRegex.MatchString(text) && !containsAny(text, hindiStockWords...) {
		return InventoryQuery{}, false
	}
	if quotationTriggerRegex.MatchString(text) {
		return InventoryQuery{}, false
	}

	f := ItemFilterFor(text)
	q := InventoryQuery{Brand: f.Brand, Model: f.Model, ItemType: f.ItemType}
	if !q.IsValid() {
		return InventoryQuery{}, false
	}
	return q, true
}

// ItemFilterFor tokenises text into brand, model and item type. The first
// occurrence of each wins.
func ItemFilterFor(text string) repo.ItemFilter {
	var f repo.ItemFilter
	tokens := tokenize(text)
	for i := 0; i < len(tokens); i++ {
		if b, n := matchBrand(tokens, i); n > 0 {
			if f.Brand == "" {
				f.Brand = b
			}
			i += n - 1
			continue
		}
		if t, n := matchItemType(tokens, i); n > 0 {
			if f.ItemType == "" && t != "machine" {
				f.ItemType = t
			}
			i += n - 1
			continue
		}
		if f.Model == "" && isModelToken(tokens[i].text) {
			f.Model = strings.ToUpper(tokens[i].text)
			if isAllDigits(tokens[i].text) {
				f.Model = tokens[i].text
			}
		}
	}
	return f
}
