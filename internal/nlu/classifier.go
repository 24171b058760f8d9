package nlu

import (
	"strings"
)

// Category is a free-text keyword bucket.
type Category string

const (
	CategoryQuotation Category = "quotation"
	CategoryTask      Category = "task"
	CategoryInventory Category = "inventory"
	CategoryInvoice   Category = "invoice"
	CategoryReport    Category = "report"
	CategoryHelp      Category = "help"
	CategoryCustomer  Category = "customer"
	CategoryUnknown   Category = "unknown"
)

// Core keywords weigh 2, supporting keywords 1. A bucket needs a score of at
// least 2 to win.
var categoryKeywords = []struct {
	category Category
	words    map[string]int
}{
	{CategoryHelp, map[string]int{
		"help": 2, "what can you do": 3, "how to use": 2, "commands": 2, "madad": 2, "options": 1,
	}},
	{CategoryQuotation, map[string]int{
		"quotation": 2, "quote": 2, "estimate": 2, "price for": 1, "rate": 1, "pricing": 1,
	}},
	{CategoryInvoice, map[string]int{
		"invoice": 2, "bill": 2, "billing": 2, "payment": 1, "gst": 1, "due amount": 1, "receipt": 1,
	}},
	{CategoryReport, map[string]int{
		"report": 2, "summary": 2, "sales": 1, "revenue": 1, "this month": 1, "monthly": 1, "analytics": 2,
	}},
	{CategoryTask, map[string]int{
		"task": 2, "todo": 2, "remind": 2, "follow up": 2, "follow-up": 2, "schedule": 1, "pending work": 1,
	}},
	{CategoryInventory, map[string]int{
		"inventory": 2, "stock": 2, "toner": 1, "drum": 1, "developer": 1, "kitna": 1, "maal": 1, "स्टॉक": 2,
	}},
	{CategoryCustomer, map[string]int{
		"customer": 2, "client": 2, "contact": 1, "mobile number": 1, "phone": 1,
	}},
}

// Classify assigns text to the keyword bucket with the highest score. Ties go
// to the bucket listed first.
func Classify(text string) Category {
	lower := strings.ToLower(text)
	best, bestScore := CategoryUnknown, 1
	for _, c := range categoryKeywords {
		score := 0
		for kw, w := range c.words {
			if strings.Contains(lower, kw) {
				score += w
			}
		}
		if score > bestScore {
			best, bestScore = c.category, score
		}
	}
	return best
}
