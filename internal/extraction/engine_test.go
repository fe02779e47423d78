package extraction

import (
	"regexp"
	"strings"
	"testing"

	"github.com/NomadCrew/nomad-crew-ocr/internal/patterns"
	"github.com/NomadCrew/nomad-crew-ocr/logger"
	"github.com/NomadCrew/nomad-crew-ocr/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.IsTest = true
}

// recognition builds a result whose words are the whitespace separated
// tokens of text, each at 90 unless overridden.
func recognition(text string, confidence map[string]float64) *types.RecognitionResult {
	rec := &types.RecognitionResult{RawText: text, Confidence: 90}
	for _, tok := range strings.Fields(text) {
		c := 90.0
		if v, ok := confidence[tok]; ok {
			c = v
		}
		rec.Words = append(rec.Words, types.Word{Text: tok, Confidence: c})
	}
	return rec
}

func discardedFor(ex *types.StructuredExtraction, field string) []types.DiscardedCandidate {
	var out []types.DiscardedCandidate
	for _, d := range ex.Discarded {
		if d.Field == field {
			out = append(out, d)
		}
	}
	return out
}

func TestExtractSwissInvoice(t *testing.T) {
	engine := NewEngine(patterns.DefaultLibrary())
	rec := recognition("Facture No FA-2024-001 ... Total CHF 1'250.50 ... CHE-123.456.789 TVA",
		map[string]float64{"CHF": 91, "1'250.50": 87})

	ex := engine.Extract(rec, types.DocumentTypeInvoice, "fr-CH")

	require.Contains(t, ex.Fields, types.FieldInvoiceNumber)
	assert.Equal(t, "FA-2024-001", ex.Fields[types.FieldInvoiceNumber].Value)
	assert.Equal(t, "fr", ex.Fields[types.FieldInvoiceNumber].SourceLocale)

	require.Contains(t, ex.Fields, types.FieldTotalAmount)
	total := ex.Fields[types.FieldTotalAmount]
	assert.Equal(t, "1250.50", total.Normalized)
	assert.Equal(t, "CHF", total.Currency)
	assert.Equal(t, "CH", total.SourceLocale)
	assert.Equal(t, 89.0, total.Confidence)

	assert.Equal(t, "CHF", ex.Fields[types.FieldCurrency].Value)

	require.Contains(t, ex.Fields, types.FieldVATID)
	assert.Regexp(t, regexp.MustCompile(`^CHE-\d{3}\.\d{3}\.\d{3}`), ex.Fields[types.FieldVATID].Value)

	assert.Empty(t, ex.Discarded)
	assert.Equal(t, types.DocumentTypeInvoice, ex.DocumentType)
	assert.Equal(t, "fr-CH", ex.Locale)
}

func TestExtractTieBreakByLocale(t *testing.T) {
	engine := NewEngine(patterns.DefaultLibrary())
	rec := recognition("Total CHF 1'250.50\nTotal EUR 1.180,00", nil)

	swiss := engine.Extract(rec, types.DocumentTypeInvoice, "fr-CH")
	assert.Equal(t, "1250.50", swiss.Fields[types.FieldTotalAmount].Normalized)
	assert.Equal(t, "CHF", swiss.Fields[types.FieldCurrency].Value)

	lost := discardedFor(swiss, types.FieldTotalAmount)
	require.Len(t, lost, 1)
	assert.Equal(t, "1.180,00", lost[0].Value)
	assert.Equal(t, "EU", lost[0].SourceLocale)
	assert.Equal(t, ReasonLocale, lost[0].Reason)

	german := engine.Extract(rec, types.DocumentTypeInvoice, "de-DE")
	assert.Equal(t, "1180.00", german.Fields[types.FieldTotalAmount].Normalized)
	assert.Equal(t, "EUR", german.Fields[types.FieldCurrency].Value)

	lost = discardedFor(german, types.FieldTotalAmount)
	require.Len(t, lost, 1)
	assert.Equal(t, "1'250.50", lost[0].Value)
	assert.Equal(t, ReasonLocale, lost[0].Reason)
}

func TestExtractTieBreakByConfidence(t *testing.T) {
	engine := NewEngine(patterns.DefaultLibrary())
	rec := recognition("Ref INV-0001 replaced by INV-0002",
		map[string]float64{"INV-0001": 60, "INV-0002": 95})

	ex := engine.Extract(rec, types.DocumentTypeInvoice, "fr-CH")
	assert.Equal(t, "INV-0002", ex.Fields[types.FieldInvoiceNumber].Value)
	assert.Equal(t, 95.0, ex.Fields[types.FieldInvoiceNumber].Confidence)

	lost := discardedFor(ex, types.FieldInvoiceNumber)
	require.Len(t, lost, 1)
	assert.Equal(t, "INV-0001", lost[0].Value)
	assert.Equal(t, 60.0, lost[0].Confidence)
	assert.Equal(t, ReasonConfidence, lost[0].Reason)
}

func TestExtractTieBreakByDocumentOrder(t *testing.T) {
	engine := NewEngine(patterns.DefaultLibrary())
	rec := recognition("Ref INV-0001 replaced by INV-0002", nil)

	ex := engine.Extract(rec, types.DocumentTypeInvoice, "fr-CH")
	assert.Equal(t, "INV-0001", ex.Fields[types.FieldInvoiceNumber].Value)

	lost := discardedFor(ex, types.FieldInvoiceNumber)
	require.Len(t, lost, 1)
	assert.Equal(t, "INV-0002", lost[0].Value)
	assert.Equal(t, ReasonDocumentOrder, lost[0].Reason)
}

func TestExtractLocaleBeatsConfidence(t *testing.T) {
	engine := NewEngine(patterns.DefaultLibrary())
	rec := recognition("Invoice INV-0001 replaced by INV-0002",
		map[string]float64{"INV-0001": 60, "INV-0002": 95})

	ex := engine.Extract(rec, types.DocumentTypeInvoice, "en-US")
	field := ex.Fields[types.FieldInvoiceNumber]
	assert.Equal(t, "INV-0001", field.Value)
	assert.Equal(t, "en", field.SourceLocale)
	assert.Equal(t, "invoice-number-en", field.Rule)
}

func TestExtractOmitsMissingFields(t *testing.T) {
	engine := NewEngine(patterns.DefaultLibrary())
	ex := engine.Extract(recognition("Total CHF 100.00", nil), types.DocumentTypeInvoice, "fr-CH")

	_, found := ex.Fields[types.FieldVATID]
	assert.False(t, found)
	_, found = ex.Fields[types.FieldIBAN]
	assert.False(t, found)
	assert.Contains(t, ex.Fields, types.FieldTotalAmount)
}

func TestExtractTotalAmountLayouts(t *testing.T) {
	engine := NewEngine(patterns.DefaultLibrary())

	tests := []struct {
		name         string
		text         string
		locale       string
		wantAmount   string
		wantCurrency string
	}{
		{name: "whole francs prefixed", text: "Total CHF 1250", locale: "fr-CH", wantAmount: "1250.00", wantCurrency: "CHF"},
		{name: "whole francs suffixed", text: "Total: 120 CHF", locale: "fr-CH", wantAmount: "120.00", wantCurrency: "CHF"},
		{name: "whole euros", text: "Montant total EUR 980", locale: "fr-CH", wantAmount: "980.00", wantCurrency: "EUR"},
		{name: "space grouping with decimals", text: "Total CHF 1 250.50", locale: "fr-CH", wantAmount: "1250.50", wantCurrency: "CHF"},
		{name: "space grouping outside the swiss locale", text: "Total CHF 1 250.50", locale: "en-US", wantAmount: "1250.50", wantCurrency: "CHF"},
		{name: "keyword on the line above", text: "Total\nCHF 1'250.50", locale: "de-CH", wantAmount: "1250.50", wantCurrency: "CHF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := engine.Extract(recognition(tt.text, nil), types.DocumentTypeInvoice, tt.locale)
			require.Contains(t, ex.Fields, types.FieldTotalAmount)
			total := ex.Fields[types.FieldTotalAmount]
			assert.Equal(t, tt.wantAmount, total.Normalized)
			assert.Equal(t, tt.wantCurrency, total.Currency)
			for _, d := range discardedFor(ex, types.FieldTotalAmount) {
				assert.NotEqual(t, "1", d.Value)
			}
		})
	}
}

func TestExtractEmptyText(t *testing.T) {
	engine := NewEngine(patterns.DefaultLibrary())

	for _, rec := range []*types.RecognitionResult{nil, {RawText: ""}, {RawText: "  \n\t "}} {
		ex := engine.Extract(rec, types.DocumentTypeReceipt, "fr-CH")
		require.NotNil(t, ex)
		assert.Empty(t, ex.Fields)
		assert.Empty(t, ex.Discarded)
		assert.Equal(t, types.DocumentTypeReceipt, ex.DocumentType)
	}
}

func TestExtractReceiptIgnoresInvoiceOnlyFields(t *testing.T) {
	engine := NewEngine(patterns.DefaultLibrary())
	rec := recognition("Facture No FA-2024-001 IBAN CH93 0076 2011 6238 5295 7 Total CHF 12.50", nil)

	ex := engine.Extract(rec, types.DocumentTypeReceipt, "fr-CH")
	assert.NotContains(t, ex.Fields, types.FieldInvoiceNumber)
	assert.NotContains(t, ex.Fields, types.FieldIBAN)
	assert.Equal(t, "12.50", ex.Fields[types.FieldTotalAmount].Normalized)
}

func TestExtractSurvivesPanickingRule(t *testing.T) {
	lib := patterns.NewLibrary([]patterns.Rule{
		{
			Name:    "broken",
			Field:   types.FieldInvoiceNumber,
			Locales: []string{patterns.TagGeneric},
			Pattern: regexp.MustCompile(`\d+`),
			Normalize: func(string) (string, bool) {
				panic("boom")
			},
		},
		{
			Name:    "email",
			Field:   types.FieldEmail,
			Locales: []string{patterns.TagGeneric},
			Pattern: regexp.MustCompile(`\S+@\S+`),
		},
	}, map[types.DocumentType][]string{
		types.DocumentTypeGeneric: {types.FieldInvoiceNumber, types.FieldEmail},
	})
	engine := NewEngine(lib)

	var ex *types.StructuredExtraction
	require.NotPanics(t, func() {
		ex = engine.Extract(recognition("No 42 contact a@b.ch", nil), types.DocumentTypeGeneric, "fr-CH")
	})
	assert.NotContains(t, ex.Fields, types.FieldInvoiceNumber)
	assert.Equal(t, "a@b.ch", ex.Fields[types.FieldEmail].Value)
}

func TestExtractIsDeterministic(t *testing.T) {
	engine := NewEngine(patterns.DefaultLibrary())
	rec := recognition("Rechnung Nr. RE-2024-17 vom 03/04/2024\nTotal EUR 1.180,00\nTotal CHF 1'250.50\nIBAN DE89 3704 0044 0532 0130 00", nil)

	first := engine.Extract(rec, types.DocumentTypeInvoice, "de-CH")
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, engine.Extract(rec, types.DocumentTypeInvoice, "de-CH"))
	}
	assert.Equal(t, "2024-04-03", first.Fields[types.FieldIssueDate].Normalized)
	assert.Equal(t, "1250.50", first.Fields[types.FieldTotalAmount].Normalized)
	assert.Equal(t, "DE89370400440532013000", first.Fields[types.FieldIBAN].Normalized)
}

func TestSpanConfidenceFallsBackToDocument(t *testing.T) {
	rec := &types.RecognitionResult{RawText: "Total CHF 10.00", Confidence: 77.123}
	assert.Equal(t, 77.12, spanConfidence(wordSpans(rec), 0, 5, rec.Confidence))
}
