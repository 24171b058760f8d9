package nlu

import (
	"regexp"
	"strings"
	"time"
)

var bareNameRegex = regexp.MustCompile(`^(?i:(?:name|customer|client|it'?s|it is|for)(?:\s+is)?(?:\s*[:\-]\s*|\s+))?([\p{L}][\p{L}.&' ]{0,60})$`)

// FillSlots reads a bare clarification answer for the missing slots of cmd,
// e.g. a reply that is only a customer name. It reports whether any slot was
// filled; the returned command is re-validated.
func FillSlots(cmd Command, text string, ref time.Time) (Command, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return cmd, false
	}
	missing := map[string]bool{}
	for _, f := range cmd.MissingFields() {
		missing[f] = true
	}

	switch c := cmd.(type) {
	case CustomerCreate:
		filled := false
		rest := text
		if missing[SlotPhone] {
			if phone, span, ok := findPhone(text); ok {
				c.Phone = phone
				rest = strings.TrimSpace(text[:span[0]] + " " + text[span[1]:])
				filled = true
			}
		}
		if missing[SlotName] {
			if name := bareName(strings.Trim(rest, " ,;")); name != "" {
				c.Name = name
				filled = true
			}
		}
		return c.Validate(), filled

	case TaskCreate:
		filled := false
		var spans [][2]int
		if missing[SlotDueDate] {
			if due, ok := ResolveDue(text, ref, c.FollowUp); ok {
				when := due.When
				c.DueDate = &when
				spans = due.Spans
				filled = true
			}
		}
		if missing[SlotTitle] {
			if title := taskTitle(text, spans); title != "" {
				c.Title = title
				filled = true
			}
		}
		return c.Validate(), filled

	case QuotationRequest:
		filled := false
		if missing[SlotModels] {
			if models := ParseModels(text); len(models) > 0 {
				c.Models = models
				filled = true
			}
		}
		if missing[SlotCustomerName] {
			if name := quoteCustomer(text); name != "" {
				c.CustomerName = name
				filled = true
			} else if !filled {
				if name := bareName(text); name != "" {
					c.CustomerName = name
					filled = true
				}
			}
		}
		return c.Validate(), filled
	}
	return cmd, false
}

// bareName accepts a short run of letters as a person or business name.
func bareName(text string) string {
	m := bareNameRegex.FindStringSubmatch(strings.TrimRight(text, ".!"))
	if m == nil {
		return ""
	}
	name := collapseSpaces(m[1])
	words := strings.Fields(name)
	if len(words) == 0 || len(words) > 6 {
		return ""
	}
	lower := strings.ToLower(name)
	if quotationTriggerRegex.MatchString(lower) || taskTriggerRegex.MatchString(lower) || hasCustomerDirective(lower) {
		return ""
	}
	switch lower {
	case "yes", "no", "ok", "okay", "cancel", "reset", "stop", "generate", "continue", "continue anyway", "add customer first":
		return ""
	}
	return titleCase(name)
}
