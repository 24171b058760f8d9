package nlu

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

var (
	taskTriggerRegex     = regexp.MustCompile(`(?i)\b(task|todo|to-do|remind|reminder|follow[\s-]?up|followup|call\s?back)\b`)
	followUpTriggerRegex = regexp.MustCompile(`(?i)\b(remind|reminder|follow[\s-]?up|followup|call\s?back)\b`)
	taskPrefixRegex      = regexp.MustCompile(`(?i)^\s*(?:please\s+)?(?:(?:create|add|new|set|make|schedule)\s+)?(?:an?\s+)?(?:new\s+)?(?:task|todo|to-do|reminder)\b\s*(?:to\b|for\b|:|-)?\s*`)
	remindPrefixRegex    = regexp.MustCompile(`(?i)^\s*(?:please\s+)?(?:set\s+)?remind(?:er)?\s+(?:me|us)?\s*(?:to\b|about\b|:)?\s*`)
	assigneeRegex        = regexp.MustCompile(`\b(?i:assign(?:ed)?\s+to|for)\s+@?([A-Z][a-z]+)\b|@([A-Za-z]+)\b`)
	dueConnectorRegex    = regexp.MustCompile(`(?i)\s+(?:on|by|at|due|before)\s*$`)
)

// ExtractTask reads a task or follow-up request relative to ref. Follow-up
// phrasing (remind, reminder, follow up, call back) uses the permissive date
// grammar.
func ExtractTask(text string, ref time.Time) (TaskCreate, bool) {
	if !taskTriggerRegex.MatchString(text) {
		return TaskCreate{}, false
	}
	cmd := TaskCreate{FollowUp: followUpTriggerRegex.MatchString(text)}

	var spans [][2]int
	if due, ok := ResolveDue(text, ref, cmd.FollowUp); ok {
		when := due.When
		cmd.DueDate = &when
		spans = append(spans, due.Spans...)
	}

	if s := assigneeRegex.FindStringSubmatchIndex(text); s != nil {
		switch {
		case s[2] >= 0:
			cmd.Assignee = text[s[2]:s[3]]
		case s[4] >= 0:
			cmd.Assignee = titleCase(text[s[4]:s[5]])
		}
		if cmd.Assignee != "" && isCalendarWord(cmd.Assignee) {
			cmd.Assignee = ""
		} else if cmd.Assignee != "" {
			spans = append(spans, [2]int{s[0], s[1]})
		}
	}

	cmd.Title = taskTitle(text, spans)
	return cmd.Validate(), true
}

// taskTitle removes the command prefix and the date and assignee phrases.
func taskTitle(text string, spans [][2]int) string {
	sort.Slice(spans, func(i, j int) bool { return spans[i][0] > spans[j][0] })
	out := text
	for _, sp := range spans {
		if sp[0] < 0 || sp[1] > len(out) || sp[0] >= sp[1] {
			continue
		}
		out = out[:sp[0]] + " " + out[sp[1]:]
	}
	if loc := taskPrefixRegex.FindStringIndex(out); loc != nil {
		out = out[loc[1]:]
	} else if loc := remindPrefixRegex.FindStringIndex(out); loc != nil {
		out = out[loc[1]:]
	}
	out = collapseSpaces(out)
	for {
		trimmed := strings.TrimSpace(dueConnectorRegex.ReplaceAllString(out, ""))
		trimmed = strings.Trim(trimmed, " ,.;:-")
		if trimmed == out {
			break
		}
		out = trimmed
	}
	if isTriggerOnly(out) {
		return ""
	}
	return out
}

func isTriggerOnly(s string) bool {
	rest := strings.TrimSpace(taskTriggerRegex.ReplaceAllString(s, ""))
	rest = strings.Trim(rest, " ,.;:-")
	switch strings.ToLower(rest) {
	case "", "me", "a", "an", "the", "new", "create", "add", "set", "please":
		return true
	}
	return false
}

func isCalendarWord(s string) bool {
	lw := strings.ToLower(s)
	if _, ok := weekdayNames[lw]; ok {
		return true
	}
	if _, ok := monthNames[lw]; ok {
		return true
	}
	switch lw {
	case "today", "tomorrow", "tonight", "next":
		return true
	}
	return false
}
