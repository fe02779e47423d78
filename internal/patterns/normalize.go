package patterns

import (
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/NomadCrew/nomad-crew-ocr/pkg/valueobjects"
	"github.com/shopspring/decimal"
)

var maxRate = decimal.NewFromInt(100)

var ibanLengths = map[string]int{
	"AT": 20, "CH": 21, "DE": 22, "FR": 27, "GB": 22, "IT": 27, "LI": 21,
}

func normalizeEmail(v string) (string, bool) {
	return strings.ToLower(strings.TrimRight(v, ".")), true
}

func digitsOnly(v string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, v)
}

// phoneNormalizer formats national and international numbers as E.164.
func phoneNormalizer(countryCode string, nationalDigits int) Normalizer {
	return func(v string) (string, bool) {
		d := digitsOnly(v)
		switch {
		case strings.HasPrefix(d, "00"+countryCode):
			d = d[2+len(countryCode):]
		case strings.HasPrefix(v, "+"+countryCode):
			d = d[len(countryCode):]
		case strings.HasPrefix(d, "0"):
			d = d[1:]
		}
		if len(d) != nationalDigits {
			return "", false
		}
		return "+" + countryCode + d, true
	}
}

func normalizeSwissVAT(v string) (string, bool) {
	upper := strings.ToUpper(v)
	d := digitsOnly(upper)
	if len(d) != 9 {
		return "", false
	}
	out := "CHE-" + d[0:3] + "." + d[3:6] + "." + d[6:9]
	for _, suffix := range []string{"TVA", "MWST", "IVA", "VAT"} {
		if strings.HasSuffix(upper, suffix) {
			return out + " " + suffix, true
		}
	}
	return out, true
}

func normalizeCompact(v string) (string, bool) {
	return strings.ToUpper(strings.Join(strings.Fields(v), "")), true
}

// normalizeIBAN strips spaces and keeps only values with the right length
// for their country and a valid mod-97 checksum.
func normalizeIBAN(v string) (string, bool) {
	compact, _ := normalizeCompact(v)
	if len(compact) < 5 {
		return "", false
	}
	if want, ok := ibanLengths[compact[:2]]; !ok || len(compact) != want {
		return "", false
	}
	if !ValidIBAN(compact) {
		return "", false
	}
	return compact, true
}

// ValidIBAN checks the ISO 13616 mod-97 checksum of a compact IBAN.
func ValidIBAN(iban string) bool {
	if len(iban) < 5 {
		return false
	}
	rearranged := iban[4:] + iban[:4]

	var numeric strings.Builder
	for _, r := range rearranged {
		switch {
		case r >= '0' && r <= '9':
			numeric.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			numeric.WriteString(strconv.Itoa(int(r-'A') + 10))
		default:
			return false
		}
	}

	n, ok := new(big.Int).SetString(numeric.String(), 10)
	if !ok {
		return false
	}
	return new(big.Int).Mod(n, big.NewInt(97)).Int64() == 1
}

func normalizeInvoiceNumber(v string) (string, bool) {
	v = strings.TrimRight(v, ".-/")
	if len(v) < 3 || !strings.ContainsFunc(v, unicode.IsDigit) {
		return "", false
	}
	// dates following a "Facture" keyword are not numbers
	for _, p := range []*regexp.Regexp{dmyDotPattern, dmyDashPattern, slashPattern, isoDatePattern} {
		if p.MatchString(v) {
			return "", false
		}
	}
	return v, true
}

func normalizeCurrency(v string) (string, bool) {
	c, ok := valueobjects.CurrencyFromSymbol(v)
	return string(c), ok
}

// dateNormalizer parses with layout and returns an ISO date. Impossible
// dates such as 31.02.2024 are rejected by time.Parse.
func dateNormalizer(layout string) Normalizer {
	return func(v string) (string, bool) {
		t, err := time.Parse(layout, v)
		if err != nil {
			return "", false
		}
		if t.Year() < 1900 || t.Year() > 2100 {
			return "", false
		}
		return t.Format("2006-01-02"), true
	}
}

func normalizeRate(v string) (string, bool) {
	v = strings.Replace(v, ",", ".", 1)
	rate, err := valueobjects.ParseAmount(v, valueobjects.StyleUS)
	if err != nil || rate.IsNegative() || rate.GreaterThanOrEqual(maxRate) {
		return "", false
	}
	return rate.String(), true
}

func normalizeVATStatus(v string) (string, bool) {
	lower := strings.ToLower(strings.Join(strings.Fields(v), " "))
	switch {
	case lower == "ht" || strings.HasPrefix(lower, "hors") || strings.HasPrefix(lower, "exkl"):
		return "hors_tva", true
	case lower == "ttc" || strings.HasPrefix(lower, "tva incluse") || strings.HasPrefix(lower, "inkl"):
		return "ttc", true
	case strings.HasPrefix(lower, "autoliquidation") || strings.HasPrefix(lower, "reverse"):
		return "autoliquidation", true
	case strings.HasPrefix(lower, "non soumis") || strings.HasPrefix(lower, "exon") || strings.HasPrefix(lower, "vat exempt"):
		return "non_applicable", true
	}
	return "", false
}
