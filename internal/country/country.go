package country

import "strings"

// Entry describes one resolvable country: its canonical 2-letter code, the
// canonical English name, and the aliases accepted on input.
type Entry struct {
	Code    string
	Name    string
	Aliases []string
}

// table is ordered; the substring fallback scans it top to bottom and the
// first hit wins.
var table = []Entry{
	{Code: "us", Name: "united states", Aliases: []string{"usa", "america", "united states of america"}},
	{Code: "gb", Name: "united kingdom", Aliases: []string{"uk", "great britain", "britain", "england"}},
	{Code: "de", Name: "germany", Aliases: []string{"deutschland"}},
	{Code: "fr", Name: "france", Aliases: nil},
	{Code: "nl", Name: "netherlands", Aliases: []string{"holland"}},
	{Code: "es", Name: "spain", Aliases: nil},
	{Code: "it", Name: "italy", Aliases: nil},
	{Code: "pt", Name: "portugal", Aliases: nil},
	{Code: "pl", Name: "poland", Aliases: nil},
	{Code: "cz", Name: "czech republic", Aliases: []string{"czechia"}},
	{Code: "at", Name: "austria", Aliases: nil},
	{Code: "ch", Name: "switzerland", Aliases: nil},
	{Code: "be", Name: "belgium", Aliases: nil},
	{Code: "se", Name: "sweden", Aliases: nil},
	{Code: "no", Name: "norway", Aliases: nil},
	{Code: "dk", Name: "denmark", Aliases: nil},
	{Code: "fi", Name: "finland", Aliases: nil},
	{Code: "ie", Name: "ireland", Aliases: nil},
	{Code: "is", Name: "iceland", Aliases: nil},
	{Code: "gr", Name: "greece", Aliases: nil},
	{Code: "ro", Name: "romania", Aliases: nil},
	{Code: "bg", Name: "bulgaria", Aliases: nil},
	{Code: "hu", Name: "hungary", Aliases: nil},
	{Code: "sk", Name: "slovakia", Aliases: nil},
	{Code: "ua", Name: "ukraine", Aliases: nil},
	{Code: "tr", Name: "turkey", Aliases: []string{"turkiye"}},
	{Code: "ru", Name: "russia", Aliases: []string{"russian federation"}},
	{Code: "lv", Name: "latvia", Aliases: nil},
	{Code: "lt", Name: "lithuania", Aliases: nil},
	{Code: "ee", Name: "estonia", Aliases: nil},
	{Code: "ca", Name: "canada", Aliases: nil},
	{Code: "mx", Name: "mexico", Aliases: nil},
	{Code: "br", Name: "brazil", Aliases: []string{"brasil"}},
	{Code: "ar", Name: "argentina", Aliases: nil},
	{Code: "cl", Name: "chile", Aliases: nil},
	{Code: "co", Name: "colombia", Aliases: nil},
	{Code: "pe", Name: "peru", Aliases: nil},
	{Code: "au", Name: "australia", Aliases: nil},
	{Code: "nz", Name: "new zealand", Aliases: nil},
	{Code: "jp", Name: "japan", Aliases: nil},
	{Code: "kr", Name: "south korea", Aliases: []string{"korea", "republic of korea"}},
	{Code: "cn", Name: "china", Aliases: nil},
	{Code: "hk", Name: "hong kong", Aliases: nil},
	{Code: "tw", Name: "taiwan", Aliases: nil},
	{Code: "sg", Name: "singapore", Aliases: nil},
	{Code: "my", Name: "malaysia", Aliases: nil},
	{Code: "th", Name: "thailand", Aliases: nil},
	{Code: "vn", Name: "vietnam", Aliases: []string{"viet nam"}},
	{Code: "ph", Name: "philippines", Aliases: nil},
	{Code: "id", Name: "indonesia", Aliases: nil},
	{Code: "in", Name: "india", Aliases: nil},
	{Code: "pk", Name: "pakistan", Aliases: nil},
	{Code: "bd", Name: "bangladesh", Aliases: nil},
	{Code: "ae", Name: "united arab emirates", Aliases: []string{"uae", "emirates"}},
	{Code: "sa", Name: "saudi arabia", Aliases: nil},
	{Code: "il", Name: "israel", Aliases: nil},
	{Code: "eg", Name: "egypt", Aliases: nil},
	{Code: "za", Name: "south africa", Aliases: nil},
	{Code: "ng", Name: "nigeria", Aliases: nil},
	{Code: "ke", Name: "kenya", Aliases: nil},
	{Code: "ma", Name: "morocco", Aliases: nil},
}

// byCode maps every code and every 2-letter alias to its canonical code.
var byCode = func() map[string]string {
	m := make(map[string]string, len(table)*2)
	for _, e := range table {
		m[e.Code] = e.Code
		for _, alias := range e.Aliases {
			if len(alias) == 2 {
				m[alias] = e.Code
			}
		}
	}
	return m
}()

// Resolve maps a free-form country token to its canonical 2-letter code.
// Inputs may be codes ("gb"), names ("United Kingdom"), aliases ("uk",
// "Britain"), or tokens embedded in pasted credential fragments
// ("gb_residential", "lv_us"). Matching is ordered and the first hit wins.
func Resolve(input string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return "", false
	}

	// Positional 2-letter tokens pulled out of compound inputs.
	for _, token := range extractTokens(s) {
		if code, ok := byCode[token]; ok {
			return code, true
		}
	}

	if code, ok := byCode[s]; ok {
		return code, true
	}

	for _, e := range table {
		if s == e.Name {
			return e.Code, true
		}
		for _, alias := range e.Aliases {
			if s == alias {
				return e.Code, true
			}
		}
	}

	// Partial match, table order. Candidates shorter than three characters
	// are skipped so stray letter pairs inside unrelated words do not hit.
	for _, e := range table {
		if matchesPartial(s, e.Name) {
			return e.Code, true
		}
		for _, alias := range e.Aliases {
			if matchesPartial(s, alias) {
				return e.Code, true
			}
		}
	}

	return "", false
}

// extractTokens collects candidate 2-letter tokens from a compound input:
// the suffix after the last underscore, a bare 2-letter suffix following a
// non-letter, the prefix before the first underscore, and any token flanked
// by underscores or dashes.
func extractTokens(s string) []string {
	var tokens []string
	if idx := strings.LastIndex(s, "_"); idx >= 0 {
		if tail := s[idx+1:]; len(tail) == 2 {
			tokens = append(tokens, tail)
		}
	}
	if n := len(s); n > 2 && !isLetter(s[n-3]) {
		tokens = append(tokens, s[n-2:])
	}
	if idx := strings.Index(s, "_"); idx == 2 {
		tokens = append(tokens, s[:2])
	}
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == '-' }) {
		if len(part) == 2 {
			tokens = append(tokens, part)
		}
	}
	return tokens
}

func matchesPartial(input, candidate string) bool {
	if len(candidate) < 3 || len(input) < 3 {
		return false
	}
	return strings.Contains(candidate, input) || strings.Contains(input, candidate)
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
