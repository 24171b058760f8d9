package nlu

import (
	"regexp"
	"strings"
)

var (
	mobileRegex       = regexp.MustCompile(`^[6-9]\d{9}$`)
	phoneCandidateRe  = regexp.MustCompile(`(?:\+?91[\s-]?|0)?[6-9](?:[\s-]?\d){9}`)
	nonDigitRegex     = regexp.MustCompile(`\D+`)
	customerDirective = regexp.MustCompile(`(?i)\b(?:(?:add|create|register|save)\s+(?:(?:a|an|the)\s+)?(?:new\s+)?|new\s+)(?:customer|client)s?\b|\b(?:customer|client)s?\s+(?:add|create|register|save)\b`)
)

// recordNouns following "new customer" or "new client" describe something
// other than the customer being added.
var recordNouns = map[string]bool{
	"enquiry": true, "enquiries": true, "inquiry": true, "inquiries": true, "request": true,
	"requests": true, "lead": true, "leads": true, "call": true, "calls": true, "visit": true,
	"visits": true, "complaint": true, "complaints": true, "meeting": true, "list": true,
	"details": true, "order": true, "orders": true, "query": true, "queries": true,
	"feedback": true, "report": true, "followup": true, "follow": true, "ticket": true,
}

// ExtractPhone strips every non-digit from text and reports a lookup when the
// remainder is a 10-digit mobile number starting with 6-9.
func ExtractPhone(text string) (PhoneLookup, bool) {
	digits := nonDigitRegex.ReplaceAllString(text, "")
	if !mobileRegex.MatchString(digits) {
		return PhoneLookup{}, false
	}
	return PhoneLookup{Phone: digits}, true
}

// findPhone locates a mobile number inside longer text, accepting +91 and 0
// prefixes and separators between digits. It returns the normalised 10 digits
// and the byte span of the match.
func findPhone(text string) (string, [2]int, bool) {
	for _, loc := range phoneCandidateRe.FindAllStringIndex(text, -1) {
		if loc[0] > 0 && isDigitByte(text[loc[0]-1]) {
			continue
		}
		if loc[1] < len(text) && isDigitByte(text[loc[1]]) {
			continue
		}
		digits := nonDigitRegex.ReplaceAllString(text[loc[0]:loc[1]], "")
		digits = normalisePhone(digits)
		if mobileRegex.MatchString(digits) {
			return digits, [2]int{loc[0], loc[1]}, true
		}
	}
	return "", [2]int{}, false
}

func normalisePhone(digits string) string {
	switch {
	case len(digits) == 12 && strings.HasPrefix(digits, "91"):
		return digits[2:]
	case len(digits) == 11 && strings.HasPrefix(digits, "0"):
		return digits[1:]
	}
	return digits
}

func isDigitByte(b byte) bool {
	return b >= '0' && b <= '9'
}

// hasCustomerDirective reports whether text explicitly asks to create a customer.
func hasCustomerDirective(text string) bool {
	for _, loc := range customerDirective.FindAllStringIndex(text, -1) {
		if !recordNouns[firstWord(text[loc[1]:])] {
			return true
		}
	}
	return false
}

func firstWord(s string) string {
	f := strings.Fields(s)
	if len(f) == 0 {
		return ""
	}
	return strings.ToLower(strings.Trim(f[0], ",;:.!?-"))
}
