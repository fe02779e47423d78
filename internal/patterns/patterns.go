// Package patterns holds the locale-tagged recognizers used to pull business
// fields out of recognized document text. Rules are pure and safe for
// concurrent use.
package patterns

import (
	"regexp"
	"strings"

	"github.com/NomadCrew/nomad-crew-ocr/pkg/valueobjects"
	"github.com/NomadCrew/nomad-crew-ocr/types"
)

// TagGeneric marks a rule that applies everywhere. It never counts as a
// locale match during tie-breaking.
const TagGeneric = "*"

// Normalizer validates a matched value and returns its canonical form.
// Returning false drops the candidate.
type Normalizer func(value string) (string, bool)

// Rule is one recognizer for one field.
type Rule struct {
	Name  string
	Field string
	// Locales are language ("fr"), region ("CH"), group ("EU") or full
	// ("fr-CH") tags.
	Locales []string
	Pattern *regexp.Regexp
	// Group is the submatch holding the value; 0 means the whole match.
	Group int
	// CurrencyGroup, when non-zero, is the submatch holding a currency marker
	// and marks the rule as an amount printed in AmountStyle.
	CurrencyGroup int
	AmountStyle   valueobjects.NumberStyle
	Normalize     Normalizer
}

// Match is one occurrence of a rule in a text.
type Match struct {
	Value      string
	Normalized string
	Currency   string
	Start      int
	End        int
}

// FindAll returns every valid occurrence of r in text, in document order.
func (r Rule) FindAll(text string) []Match {
	var matches []Match
	for _, loc := range r.Pattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[2*r.Group], loc[2*r.Group+1]
		if start < 0 {
			continue
		}
		value := strings.TrimSpace(text[start:end])
		m := Match{Value: value, Normalized: value, Start: start, End: end}

		if r.Normalize != nil {
			normalized, ok := r.Normalize(value)
			if !ok {
				continue
			}
			m.Normalized = normalized
		}

		if r.CurrencyGroup > 0 {
			cs, ce := loc[2*r.CurrencyGroup], loc[2*r.CurrencyGroup+1]
			if cs < 0 {
				continue
			}
			currency, ok := valueobjects.CurrencyFromSymbol(text[cs:ce])
			if !ok {
				continue
			}
			money, err := valueobjects.NewMoneyFromString(value, r.AmountStyle, currency)
			if err != nil {
				continue
			}
			m.Normalized = money.Normalized()
			m.Currency = string(money.Currency())
			if cs < m.Start {
				m.Start = cs
			}
			if ce > m.End {
				m.End = ce
			}
		}
		matches = append(matches, m)
	}
	return matches
}

// Library is an ordered rule collection. Rule order is the last tie-break.
type Library struct {
	rules  []Rule
	fields map[types.DocumentType][]string
}

// NewLibrary builds a library from rules and the fields each document type
// extracts.
func NewLibrary(rules []Rule, fields map[types.DocumentType][]string) *Library {
	return &Library{rules: rules, fields: fields}
}

// DefaultLibrary returns the built-in rules for Swiss, EU and US documents.
func DefaultLibrary() *Library {
	return NewLibrary(defaultRules(), defaultFieldSets())
}

// RulesFor returns the rules of the document type's ruleset, keeping library
// order.
func (l *Library) RulesFor(docType types.DocumentType) []Rule {
	wanted := make(map[string]bool)
	for _, f := range l.fields[docType] {
		wanted[f] = true
	}
	var out []Rule
	for _, r := range l.rules {
		if wanted[r.Field] {
			out = append(out, r)
		}
	}
	return out
}

// Fields lists the fields a document type can produce.
func (l *Library) Fields(docType types.DocumentType) []string {
	return append([]string(nil), l.fields[docType]...)
}

var euRegions = map[string]bool{
	"AT": true, "BE": true, "DE": true, "ES": true, "FI": true, "FR": true,
	"IE": true, "IT": true, "LU": true, "NL": true, "PT": true,
}

// MatchLocale reports which of tags applies to locale. A locale such as
// "fr-CH" matches the tags "fr-CH", "fr" and "CH"; EU member regions also
// match "EU".
func MatchLocale(tags []string, locale string) (string, bool) {
	accepted := localeTags(locale)
	for _, tag := range tags {
		if tag == TagGeneric {
			continue
		}
		if accepted[strings.ToLower(tag)] {
			return tag, true
		}
	}
	return "", false
}

func localeTags(locale string) map[string]bool {
	accepted := make(map[string]bool)
	locale = strings.TrimSpace(strings.ReplaceAll(locale, "_", "-"))
	if locale == "" {
		return accepted
	}
	accepted[strings.ToLower(locale)] = true

	lang, region, found := strings.Cut(locale, "-")
	if !found {
		// A lone tag is a region when upper case ("CH", "EU"), a language otherwise.
		if strings.ToUpper(lang) == lang {
			region, lang = lang, ""
		}
	}
	if lang != "" {
		accepted[strings.ToLower(lang)] = true
	}
	if region != "" {
		region = strings.ToUpper(region)
		accepted[strings.ToLower(region)] = true
		if euRegions[region] {
			accepted["eu"] = true
		}
	}
	return accepted
}
