package patterns

import (
	"regexp"

	"github.com/NomadCrew/nomad-crew-ocr/types"
)

// typeSignal is one keyword family that votes for a document type.
type typeSignal struct {
	docType types.DocumentType
	pattern *regexp.Regexp
	weight  float64
}

var typeSignals = []typeSignal{
	{types.DocumentTypeInvoice, regexp.MustCompile(`(?i)\b(?:facture|invoice|rechnung|fattura|bill)\b`), 1},
	{types.DocumentTypeInvoice, regexp.MustCompile(`(?i)\b(?:devis|offre|quote|quotation|offer|angebot|offerta)\b`), 1},
	{types.DocumentTypeInvoice, regexp.MustCompile(`(?i)\b(?:avoir|gutschrift|credit\s+note)\b`), 1},
	{types.DocumentTypeInvoice, regexp.MustCompile(`(?i)\b(?:fournisseur|supplier|lieferant)\b`), 1},
	{types.DocumentTypeInvoice, regexp.MustCompile(`\b(?:IBAN|RIB|QR-IBAN)\b`), 0.5},
	{types.DocumentTypeReceipt, regexp.MustCompile(`(?i)\b(?:ticket|quittung|kassenbon|ricevuta|receipt)\b`), 1},
	{types.DocumentTypeReceipt, regexp.MustCompile(`(?i)(?:^|[^\pL])re[çc]u(?:[^\pL]|$)`), 1},
	{types.DocumentTypeReceipt, regexp.MustCompile(`(?i)\b(?:carte|card|karte|cb|twint|esp[èe]ces|cash|bar)\b`), 1},
	{types.DocumentTypeReceipt, regexp.MustCompile(`(?i)\b(?:merci\s+de\s+votre\s+visite|thank\s+you|vielen\s+dank)\b`), 0.5},
}

// DetectDocumentType scores text against the keyword families of each
// document type. Ties go to invoice; text with no signal at all is generic.
func DetectDocumentType(text string) types.DocumentType {
	scores := make(map[types.DocumentType]float64)
	for _, s := range typeSignals {
		if s.pattern.MatchString(text) {
			scores[s.docType] += s.weight
		}
	}

	best, bestScore := types.DocumentTypeGeneric, 0.0
	for _, dt := range types.DocumentTypes() {
		if scores[dt] > bestScore {
			best, bestScore = dt, scores[dt]
		}
	}
	return best
}
