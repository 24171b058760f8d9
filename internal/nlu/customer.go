package nlu

import (
	"regexp"
	"strings"
)

var (
	customerLeadRegex = regexp.MustCompile(`(?i)\b(?:customer|client)s?\b\s*(?:(?:named|name|called|is)\b\s*)?[:\-]?\s*`)
	locationLeadRegex = regexp.MustCompile(`(?i)\b(?:from|in|at|location|city|based in)\b\s*[:\-]?\s*`)
	productLeadRegex  = regexp.MustCompile(`(?i)\b(?:product|machine|uses|using|model)\b\s*[:\-]?\s*`)
)

// nameStopWords end a name or location run.
var nameStopWords = map[string]bool{
	"from": true, "in": true, "at": true, "with": true, "phone": true, "mobile": true,
	"number": true, "no": true, "ph": true, "contact": true, "location": true, "city": true,
	"product": true, "machine": true, "uses": true, "using": true, "and": true, "model": true,
	"whose": true, "having": true, "for": true, "based": true,
}

// ExtractCustomer reads a customer-creation request. ok is false when text has
// no creation directive.
func ExtractCustomer(text string) (CustomerCreate, bool) {
	if !hasCustomerDirective(text) {
		return CustomerCreate{}, false
	}
	var cmd CustomerCreate

	phone, span, hasPhone := findPhone(text)
	rest := text
	if hasPhone {
		cmd.Phone = phone
		rest = text[:span[0]] + " , " + text[span[1]:]
	}

	if loc := customerLeadRegex.FindStringIndex(rest); loc != nil {
		cmd.Name = takeNameRun(rest[loc[1]:])
	}
	if loc := locationLeadRegex.FindStringIndex(rest); loc != nil {
		cmd.Location = takeNameRun(rest[loc[1]:])
	}
	if loc := productLeadRegex.FindStringIndex(rest); loc != nil {
		cmd.Product = takePhrase(rest[loc[1]:])
	}
	return cmd.Validate(), true
}

// takeNameRun returns the leading words of s up to punctuation, a digit or a
// stop word, title-cased.
func takeNameRun(s string) string {
	var words []string
	for _, f := range strings.Fields(s) {
		end := strings.IndexAny(f, ",;.!?()")
		word := f
		if end >= 0 {
			word = f[:end]
		}
		lw := strings.ToLower(word)
		if word == "" || nameStopWords[lw] || strings.ContainsAny(word, "0123456789") {
			break
		}
		words = append(words, word)
		if end >= 0 || len(words) == 5 {
			break
		}
	}
	if len(words) == 0 {
		return ""
	}
	return titleCase(strings.Join(words, " "))
}

// takePhrase returns s up to the next comma, semicolon or sentence end.
func takePhrase(s string) string {
	if end := strings.IndexAny(s, ",;!?\n"); end >= 0 {
		s = s[:end]
	}
	return collapseSpaces(strings.TrimRight(strings.TrimSpace(s), "."))
}
