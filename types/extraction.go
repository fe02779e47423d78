package types

import "time"

// Field names produced by the extraction engine.
const (
	FieldEmail         = "email"
	FieldPhone         = "phone"
	FieldVATID         = "vatId"
	FieldIBAN          = "iban"
	FieldInvoiceNumber = "invoiceNumber"
	FieldTotalAmount   = "totalAmount"
	FieldCurrency      = "currency"
	FieldIssueDate     = "issueDate"
	FieldVATRate       = "vatRate"
	FieldVATStatus     = "vatStatus"
)

// ExtractedField is the winning value for one field.
type ExtractedField struct {
	Value        string  `json:"value"`
	Confidence   float64 `json:"confidence"`
	SourceLocale string  `json:"sourceLocale"`
	Rule         string  `json:"rule"`
	Currency     string  `json:"currency,omitempty"`
	Normalized   string  `json:"normalized,omitempty"`
}

// DiscardedCandidate is a match that lost the tie-break, kept for audit.
type DiscardedCandidate struct {
	Field        string  `json:"field"`
	Value        string  `json:"value"`
	Confidence   float64 `json:"confidence"`
	SourceLocale string  `json:"sourceLocale"`
	Rule         string  `json:"rule"`
	Offset       int     `json:"offset"`
	Reason       string  `json:"reason"`
}

// StructuredExtraction holds the business fields found in a document. Fields
// that were not found are absent from the map.
type StructuredExtraction struct {
	DocumentType DocumentType              `json:"documentType"`
	Locale       string                    `json:"locale"`
	Fields       map[string]ExtractedField `json:"fields"`
	Discarded    []DiscardedCandidate      `json:"discarded,omitempty"`
}

// CacheEntry is the serialized pipeline result stored under a content hash.
type CacheEntry struct {
	Recognition      RecognitionResult    `json:"recognition"`
	Extraction       StructuredExtraction `json:"extraction"`
	ProcessingTimeMs int64                `json:"processingTimeMs"`
	CachedAt         time.Time            `json:"cachedAt"`
}
