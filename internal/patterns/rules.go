package patterns

import (
	"regexp"

	"github.com/NomadCrew/nomad-crew-ocr/pkg/valueobjects"
	"github.com/NomadCrew/nomad-crew-ocr/types"
)

const (
	currencyMarker = `(CHF|SFr\.|Fr\.|EUR|USD|GBP|€|\$|£)`

	// A total keyword at a line start or not glued to a preceding letter,
	// digit or hyphen, so "Subtotal" and "Sous-total" do not count. The amount
	// may sit on the next line.
	totalKeyword = `(?:(?m:^)|[^\pL\d-])(?i:total(?:\s+ttc)?|montant(?:\s+total)?(?:\s+ttc)?|net\s+[àa]\s+payer|[àa]\s+payer|gesamtbetrag|betrag|summe|amount\s+due)[^\d\n]{0,20}?(?:\n[^\d\n]{0,20}?)?`

	swissNumber = `(\d{1,3}(?:['’ \x{00A0}]\d{3})+(?:\.\d{2}|\.[-–])?|\d+(?:\.\d{2}|\.[-–])?)`
	euNumber    = `(\d{1,3}(?:[. \x{00A0}]\d{3})+(?:,\d{2})?|\d+(?:,\d{2})?)`
	usNumber    = `(\d{1,3}(?:,\d{3})+(?:\.\d{2})?|\d+(?:\.\d{2})?)`

	// numberEnd refuses to stop inside a longer number: a separator may only
	// follow the amount when no digit comes after it.
	numberEnd = `(?:$|[^\d.,'’ \x{00A0}]|[.,'’ \x{00A0}](?:$|\D))`
)

var (
	dmyDotPattern   = regexp.MustCompile(`\b\d{1,2}\.\d{1,2}\.\d{4}\b`)
	dmyDashPattern  = regexp.MustCompile(`\b\d{1,2}-\d{1,2}-\d{4}\b`)
	slashPattern    = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b`)
	isoDatePattern  = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	emailPattern    = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	swissPhone      = regexp.MustCompile(`(?:\+41|0041|\b0)[\s.]?\d{2}[\s.]?\d{3}[\s.]?\d{2}[\s.]?\d{2}\b`)
	frenchPhone     = regexp.MustCompile(`(?:\+33|0033|\b0)[\s.]?[1-9](?:[\s.]?\d{2}){4}\b`)
	swissVAT        = regexp.MustCompile(`\bCHE[-\s]?\d{3}[.\s]?\d{3}[.\s]?\d{3}\b(?:\s*(?:TVA|MWST|IVA|VAT)\b)?`)
	frenchVAT       = regexp.MustCompile(`\bFR\s?[0-9A-Z]{2}\s?\d{9}\b`)
	germanVAT       = regexp.MustCompile(`\bDE\s?\d{9}\b`)
	swissIBAN       = regexp.MustCompile(`\b(?:CH|LI)\d{2}(?:\s?[A-Z0-9]{4}){4}\s?[A-Z0-9]{1}\b`)
	euIBAN          = regexp.MustCompile(`\b(?:FR|DE|IT|AT)\d{2}(?:\s?[A-Z0-9]{4}){3,6}(?:\s?[A-Z0-9]{1,3})?\b`)
	ukIBAN          = regexp.MustCompile(`\bGB\d{2}(?:\s?[A-Z0-9]{4}){4}\s?[A-Z0-9]{2}\b`)
	frenchInvoiceNo = regexp.MustCompile(`(?i:\b(?:facture|devis|offre|avoir))[ \t]*(?i:n[°o]\.?|num[ée]ro)?[ \t]*[:#]?[ \t]*([A-Z0-9][A-Z0-9\-/.]{2,})`)
	germanInvoiceNo = regexp.MustCompile(`(?i:\b(?:rechnung|angebot|gutschrift))[ \t]*(?i:nr\.?|nummer)?[ \t]*[:#]?[ \t]*([A-Z0-9][A-Z0-9\-/.]{2,})`)
	englishInvoice  = regexp.MustCompile(`(?i:\b(?:invoice|offer|quote|credit\s+note))[ \t]*(?i:no\.?|number|#)?[ \t]*[:#]?[ \t]*([A-Z0-9][A-Z0-9\-/.]{2,})`)
	invoiceShape    = regexp.MustCompile(`\b([A-Z]{2,3}-\d{4}(?:-\d{1,6})?)\b`)
	vatRatePattern  = regexp.MustCompile(`(?i:\b(?:TVA|MwSt\.?|MWST|VAT|IVA|USt\.?))\s*(?:de\s*)?(\d{1,2}(?:[.,]\d{1,2})?)\s*%`)
	vatStatusPhrase = regexp.MustCompile(`(?i:\b(?:hors\s+tva|tva\s+incluse|ttc|autoliquidation|reverse\s+charge|non\s+soumis\s+[àa]\s+la\s+tva|exon[ée]r[ée]e?\s+de\s+tva|vat\s+exempt|inkl\.?\s+mwst|exkl\.?\s+mwst))|\bHT\b`)
)

func amountRule(name string, locales []string, number string, style valueobjects.NumberStyle, currencyFirst bool) Rule {
	var pattern string
	group, currencyGroup := 1, 2
	if currencyFirst {
		pattern = totalKeyword + currencyMarker + `\s*` + number + numberEnd
		group, currencyGroup = 2, 1
	} else {
		pattern = totalKeyword + number + `\s*` + currencyMarker
	}
	return Rule{
		Name:          name,
		Field:         types.FieldTotalAmount,
		Locales:       locales,
		Pattern:       regexp.MustCompile(pattern),
		Group:         group,
		CurrencyGroup: currencyGroup,
		AmountStyle:   style,
	}
}

func currencyRule(name, pattern string, locales []string) Rule {
	return Rule{
		Name:      name,
		Field:     types.FieldCurrency,
		Locales:   locales,
		Pattern:   regexp.MustCompile(pattern),
		Normalize: normalizeCurrency,
	}
}

// defaultRules is ordered by concern. Within a field, earlier rules win
// otherwise exact ties.
func defaultRules() []Rule {
	return []Rule{
		// contact
		{Name: "email", Field: types.FieldEmail, Locales: []string{TagGeneric}, Pattern: emailPattern, Normalize: normalizeEmail},

		// phone
		{Name: "phone-ch", Field: types.FieldPhone, Locales: []string{"CH"}, Pattern: swissPhone, Normalize: phoneNormalizer("41", 9)},
		{Name: "phone-fr", Field: types.FieldPhone, Locales: []string{"FR"}, Pattern: frenchPhone, Normalize: phoneNormalizer("33", 9)},

		// tax identifiers
		{Name: "vat-ch-uid", Field: types.FieldVATID, Locales: []string{"CH"}, Pattern: swissVAT, Normalize: normalizeSwissVAT},
		{Name: "vat-fr", Field: types.FieldVATID, Locales: []string{"FR", "EU"}, Pattern: frenchVAT, Normalize: normalizeCompact},
		{Name: "vat-de", Field: types.FieldVATID, Locales: []string{"DE", "EU"}, Pattern: germanVAT, Normalize: normalizeCompact},

		// bank identifiers
		{Name: "iban-ch", Field: types.FieldIBAN, Locales: []string{"CH", "LI"}, Pattern: swissIBAN, Normalize: normalizeIBAN},
		{Name: "iban-eu", Field: types.FieldIBAN, Locales: []string{"EU"}, Pattern: euIBAN, Normalize: normalizeIBAN},
		{Name: "iban-gb", Field: types.FieldIBAN, Locales: []string{"GB"}, Pattern: ukIBAN, Normalize: normalizeIBAN},

		// invoice numbers
		{Name: "invoice-number-fr", Field: types.FieldInvoiceNumber, Locales: []string{"fr"}, Pattern: frenchInvoiceNo, Group: 1, Normalize: normalizeInvoiceNumber},
		{Name: "invoice-number-de", Field: types.FieldInvoiceNumber, Locales: []string{"de"}, Pattern: germanInvoiceNo, Group: 1, Normalize: normalizeInvoiceNumber},
		{Name: "invoice-number-en", Field: types.FieldInvoiceNumber, Locales: []string{"en"}, Pattern: englishInvoice, Group: 1, Normalize: normalizeInvoiceNumber},
		{Name: "invoice-number-shape", Field: types.FieldInvoiceNumber, Locales: []string{TagGeneric}, Pattern: invoiceShape, Group: 1},

		// amounts
		amountRule("total-ch-prefix", []string{"CH"}, swissNumber, valueobjects.StyleSwiss, true),
		amountRule("total-ch-suffix", []string{"CH"}, swissNumber, valueobjects.StyleSwiss, false),
		amountRule("total-eu-prefix", []string{"EU"}, euNumber, valueobjects.StyleEU, true),
		amountRule("total-eu-suffix", []string{"EU"}, euNumber, valueobjects.StyleEU, false),
		amountRule("total-us-prefix", []string{"US", "GB"}, usNumber, valueobjects.StyleUS, true),
		amountRule("total-us-suffix", []string{"US", "GB"}, usNumber, valueobjects.StyleUS, false),
		currencyRule("currency-chf", `\bCHF\b|\bS?Fr\.`, []string{"CH", "LI"}),
		currencyRule("currency-eur", `\bEUR\b|€`, []string{"EU"}),
		currencyRule("currency-usd", `\bUSD\b|\$`, []string{"US"}),
		currencyRule("currency-gbp", `\bGBP\b|£`, []string{"GB"}),

		// dates
		{Name: "date-dmy-dot", Field: types.FieldIssueDate, Locales: []string{"CH", "de", "EU"}, Pattern: dmyDotPattern, Normalize: dateNormalizer("2.1.2006")},
		{Name: "date-dmy-dash", Field: types.FieldIssueDate, Locales: []string{"CH", "EU"}, Pattern: dmyDashPattern, Normalize: dateNormalizer("2-1-2006")},
		{Name: "date-dmy-slash", Field: types.FieldIssueDate, Locales: []string{"CH", "EU", "GB"}, Pattern: slashPattern, Normalize: dateNormalizer("2/1/2006")},
		{Name: "date-mdy-slash", Field: types.FieldIssueDate, Locales: []string{"US"}, Pattern: slashPattern, Normalize: dateNormalizer("1/2/2006")},
		{Name: "date-iso", Field: types.FieldIssueDate, Locales: []string{TagGeneric}, Pattern: isoDatePattern, Normalize: dateNormalizer("2006-01-02")},

		// vat
		{Name: "vat-rate", Field: types.FieldVATRate, Locales: []string{TagGeneric}, Pattern: vatRatePattern, Group: 1, Normalize: normalizeRate},
		{Name: "vat-status", Field: types.FieldVATStatus, Locales: []string{TagGeneric}, Pattern: vatStatusPhrase, Normalize: normalizeVATStatus},
	}
}

func defaultFieldSets() map[types.DocumentType][]string {
	return map[types.DocumentType][]string{
		types.DocumentTypeInvoice: {
			types.FieldInvoiceNumber, types.FieldIssueDate, types.FieldTotalAmount, types.FieldCurrency,
			types.FieldVATID, types.FieldVATRate, types.FieldVATStatus, types.FieldIBAN,
			types.FieldEmail, types.FieldPhone,
		},
		types.DocumentTypeReceipt: {
			types.FieldIssueDate, types.FieldTotalAmount, types.FieldCurrency,
			types.FieldVATID, types.FieldVATRate, types.FieldPhone, types.FieldEmail,
		},
		types.DocumentTypeGeneric: {
			types.FieldEmail, types.FieldPhone, types.FieldIBAN, types.FieldIssueDate,
			types.FieldTotalAmount, types.FieldCurrency,
		},
	}
}
