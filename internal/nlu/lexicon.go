package nlu

import (
	"regexp"
	"strings"
)

// brandAliases maps lower-case spellings to the canonical brand name.
var brandAliases = map[string]string{
	"kyocera":        "Kyocera",
	"ricoh":          "Ricoh",
	"canon":          "Canon",
	"konica minolta": "Konica Minolta",
	"konica":         "Konica Minolta",
	"minolta":        "Konica Minolta",
	"sharp":          "Sharp",
	"xerox":          "Xerox",
	"fuji xerox":     "Xerox",
	"hp":             "HP",
	"toshiba":        "Toshiba",
	"samsung":        "Samsung",
	"brother":        "Brother",
	"epson":          "Epson",
	"panasonic":      "Panasonic",
	"lexmark":        "Lexmark",
}

// itemTypeAliases maps lower-case spellings to the canonical item type.
var itemTypeAliases = map[string]string{
	"toner":       "toner",
	"toners":      "toner",
	"drum":        "drum",
	"drums":       "drum",
	"drum unit":   "drum",
	"developer":   "developer",
	"developers":  "developer",
	"cartridge":   "cartridge",
	"cartridges":  "cartridge",
	"ink":         "ink",
	"fuser":       "fuser",
	"fuser unit":  "fuser",
	"waste toner": "waste toner",
	"blade":       "blade",
	"roller":      "roller",
	"rollers":     "roller",
	"spares":      "spare",
	"spare":       "spare",
	"machine":     "machine",
	"machines":    "machine",
	"copier":      "machine",
	"printer":     "machine",
}

var (
	modelTokenRegex = regexp.MustCompile(`^[a-z]{0,5}-?\d{3,5}[a-z]{0,4}$|^[a-z]{1,5}-?\d{2,5}[a-z]{0,4}$`)
	wordRegex       = regexp.MustCompile(`[\p{L}\p{N}][\p{L}\p{N}\-/.&']*`)
)

type token struct {
	text  string
	lower string
	start int
	end   int
}

func tokenize(text string) []token {
	idx := wordRegex.FindAllStringIndex(text, -1)
	res := make([]token, 0, len(idx))
	for _, loc := range idx {
		raw := strings.TrimRight(text[loc[0]:loc[1]], ".'")
		if raw == "" {
			continue
		}
		res = append(res, token{text: raw, lower: strings.ToLower(raw), start: loc[0], end: loc[0] + len(raw)})
	}
	return res
}

// matchBrand reports the canonical brand starting at tokens[i] and how many
// tokens it spans.
func matchBrand(tokens []token, i int) (string, int) {
	if i >= len(tokens) {
		return "", 0
	}
	if i+1 < len(tokens) {
		if b, ok := brandAliases[tokens[i].lower+" "+tokens[i+1].lower]; ok {
			return b, 2
		}
	}
	if b, ok := brandAliases[tokens[i].lower]; ok {
		return b, 1
	}
	return "", 0
}

func matchItemType(tokens []token, i int) (string, int) {
	if i >= len(tokens) {
		return "", 0
	}
	if i+1 < len(tokens) {
		if t, ok := itemTypeAliases[tokens[i].lower+" "+tokens[i+1].lower]; ok {
			return t, 2
		}
	}
	if t, ok := itemTypeAliases[tokens[i].lower]; ok {
		return t, 1
	}
	return "", 0
}

// isModelToken reports whether s looks like a product model such as 2554ci,
// MP2014, TK-8345 or M2040dn.
func isModelToken(s string) bool {
	s = strings.ToLower(s)
	if len(s) < 3 || len(s) > 12 {
		return false
	}
	if isAllDigits(s) && len(s) >= 10 {
		return false
	}
	return modelTokenRegex.MatchString(s)
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func containsAny(text string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// titleCase capitalises every word of s.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = []rune(strings.ToUpper(string(r[0])))[0]
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
