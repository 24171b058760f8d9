package nlu

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	quoteCustomerRegex = regexp.MustCompile(`\b(?i:for|to|customer|client)\s+(?:(?i:m/s)\.?\s+)?((?:[A-Z][\p{L}&.']*)(?:\s+[A-Z][\p{L}&.']*)*)`)
	seriesPrefixRegex  = regexp.MustCompile(`^[a-z]{1,4}$`)
	quantityMarker     = regexp.MustCompile(`(?i)^(?:x|\*|×)(\d{1,3})$|^(\d{1,3})(?:x|nos|pcs|units?)$`)
)

// quantityFillers may sit between a quantity and the model it counts.
var quantityFillers = map[string]bool{
	"x": true, "nos": true, "no": true, "pcs": true, "pieces": true, "unit": true,
	"units": true, "of": true, "qty": true, "quantity": true, "numbers": true, "new": true,
}

var seriesStopWords = map[string]bool{
	"for": true, "and": true, "with": true, "the": true, "to": true, "at": true, "in": true, "on": true, "a": true, "an": true,
}

// ExtractQuotation reads a quotation request. It supports several model and
// quantity pairs in one message; quantity defaults to 1 and repeated models
// are summed. A request without a customer name is matched but invalid.
func ExtractQuotation(text string) (QuotationRequest, bool) {
	if !quotationTriggerRegex.MatchString(text) {
		return QuotationRequest{}, false
	}
	var q QuotationRequest
	q.CustomerName = quoteCustomer(text)
	q.Models = ParseModels(text)
	if q.CustomerName == "" && len(q.Models) == 0 {
		return QuotationRequest{}, false
	}
	return q.Validate(), true
}

func quoteCustomer(text string) string {
	for _, s := range quoteCustomerRegex.FindAllStringSubmatchIndex(text, -1) {
		var words []string
		for _, w := range strings.Fields(text[s[2]:s[3]]) {
			w = strings.TrimRight(w, ".,;:")
			if _, isBrand := brandAliases[strings.ToLower(w)]; isBrand {
				break
			}
			if quotationTriggerRegex.MatchString(w) {
				break
			}
			words = append(words, w)
		}
		if len(words) > 0 {
			return strings.Join(words, " ")
		}
	}
	return ""
}

// ParseModels finds {model, quantity} pairs in text.
func ParseModels(text string) []ModelQty {
	tokens := tokenize(text)
	var (
		res        []ModelQty
		pendingQty int
	)
	add := func(model string, qty int) {
		if qty <= 0 {
			qty = 1
		}
		for i := range res {
			if strings.EqualFold(res[i].Model, model) {
				res[i].Quantity += qty
				return
			}
		}
		res = append(res, ModelQty{Model: model, Quantity: qty})
	}

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if m := quantityMarker.FindStringSubmatch(tok.lower); m != nil && pendingQty == 0 {
			pendingQty = atoiFirst(m[1], m[2])
			continue
		}
		if isAllDigits(tok.lower) && i+1 < len(tokens) &&
			((len(tok.lower) <= 3 && startsModel(tokens, i+1)) || (len(tok.lower) == 4 && brandAt(tokens, i+1))) {
			pendingQty, _ = strconv.Atoi(tok.lower)
			continue
		}
		if quantityFillers[tok.lower] {
			continue
		}

		brand, n := matchBrand(tokens, i)
		j := i + n
		model := ""
		switch {
		case n > 0 && j < len(tokens) && (isModelToken(tokens[j].text) || isAllDigits(tokens[j].lower)):
			model = brand + " " + tokens[j].text
			j++
		case n > 0 && j+1 < len(tokens) && isSeriesPrefix(tokens[j].lower) && isAllDigits(tokens[j+1].lower) && len(tokens[j+1].lower) >= 3:
			model = brand + " " + tokens[j].text + " " + tokens[j+1].text
			j += 2
		case n == 0 && isModelToken(tok.text):
			model = tok.text
			j = i + 1
		default:
			if n > 0 {
				i = j - 1
			}
			continue
		}
		if t, tn := matchItemType(tokens, j); tn > 0 && t != "machine" {
			model += " " + t
			j += tn
		}

		qty := pendingQty
		pendingQty = 0
		if j < len(tokens) {
			if m := quantityMarker.FindStringSubmatch(tokens[j].lower); m != nil && m[1] != "" {
				qty = atoiFirst(m[1])
				j++
			} else if (tokens[j].lower == "x" || tokens[j].lower == "qty") && j+1 < len(tokens) && isAllDigits(tokens[j+1].lower) && len(tokens[j+1].lower) <= 3 {
				qty, _ = strconv.Atoi(tokens[j+1].lower)
				j += 2
			}
		}
		add(model, qty)
		i = j - 1
	}
	return res
}

func startsModel(tokens []token, i int) bool {
	for i < len(tokens) && quantityFillers[tokens[i].lower] {
		i++
	}
	if i >= len(tokens) {
		return false
	}
	if _, n := matchBrand(tokens, i); n > 0 {
		return true
	}
	return isModelToken(tokens[i].text)
}

func brandAt(tokens []token, i int) bool {
	_, n := matchBrand(tokens, i)
	return n > 0
}

// isSeriesPrefix reports whether s is a short letter series name, such as the
// MP in "Ricoh MP 2014", that precedes a model number.
func isSeriesPrefix(s string) bool {
	if !seriesPrefixRegex.MatchString(s) || quantityFillers[s] || seriesStopWords[s] {
		return false
	}
	_, isType := itemTypeAliases[s]
	return !isType
}

func atoiFirst(vals ...string) int {
	for _, v := range vals {
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return 0
}
