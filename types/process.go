package types

// ProcessResponse is the body of POST /process. On failure only the common
// fields and Error are set; on success ProcessResult is inlined.
type ProcessResponse struct {
	JobID          string `json:"jobId"`
	Success        bool   `json:"success"`
	Filename       string `json:"filename"`
	ProcessingTime int64  `json:"processingTime"`
	Error          string `json:"error,omitempty"`
	ErrorType      string `json:"errorType,omitempty"`
	*ProcessResult
}

type ProcessResult struct {
	DocumentType   DocumentType         `json:"documentType"`
	Confidence     float64              `json:"confidence"`
	RawText        string               `json:"rawText"`
	StructuredData StructuredExtraction `json:"structuredData"`
	Statistics     ProcessingStatistics `json:"statistics"`
}

type ProcessingStatistics struct {
	WordCount      int    `json:"wordCount"`
	LineCount      int    `json:"lineCount"`
	FieldCount     int    `json:"fieldCount"`
	DiscardedCount int    `json:"discardedCount"`
	CacheHit       bool   `json:"cacheHit"`
	Coalesced      bool   `json:"coalesced"`
	ContentHash    string `json:"contentHash"`
}

// SupportedLanguage describes one recognition language model.
type SupportedLanguage struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type DocumentTypeInfo struct {
	Type        DocumentType `json:"type"`
	Description string       `json:"description"`
	Fields      []string     `json:"fields"`
}
