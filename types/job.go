package types

import (
	"fmt"
	"time"
)

// DocumentType selects the extraction ruleset applied to a document.
type DocumentType string

const (
	DocumentTypeInvoice DocumentType = "invoice"
	DocumentTypeReceipt DocumentType = "receipt"
	DocumentTypeGeneric DocumentType = "generic"

	// DocumentTypeAuto asks for the type to be picked from the recognized
	// text. It is never stored on a finished extraction.
	DocumentTypeAuto DocumentType = "auto"
)

// DocumentTypes lists every supported document type in display order.
func DocumentTypes() []DocumentType {
	return []DocumentType{DocumentTypeInvoice, DocumentTypeReceipt, DocumentTypeGeneric}
}

// IsValid checks if the document type is supported
func (d DocumentType) IsValid() bool {
	switch d {
	case DocumentTypeInvoice, DocumentTypeReceipt, DocumentTypeGeneric:
		return true
	default:
		return false
	}
}

type JobStatus string

const (
	JobStatusPending     JobStatus = "pending"
	JobStatusRecognizing JobStatus = "recognizing"
	JobStatusExtracting  JobStatus = "extracting"
	JobStatusDone        JobStatus = "done"
	JobStatusFailed      JobStatus = "failed"
)

// A cache hit goes straight from pending to done.
var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusPending:     {JobStatusRecognizing, JobStatusDone, JobStatusFailed},
	JobStatusRecognizing: {JobStatusExtracting, JobStatusFailed},
	JobStatusExtracting:  {JobStatusDone, JobStatusFailed},
	JobStatusDone:        {},
	JobStatusFailed:      {},
}

// IsValidTransition checks if a status transition is allowed
func (s JobStatus) IsValidTransition(next JobStatus) bool {
	for _, allowed := range jobTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s JobStatus) IsTerminal() bool {
	return s == JobStatusDone || s == JobStatusFailed
}

func (s JobStatus) String() string {
	return string(s)
}

// ProcessingJob is one document submission. It lives only for the duration
// of the request; its result is what gets cached.
type ProcessingJob struct {
	ID           string       `json:"id"`
	Filename     string       `json:"filename"`
	DocumentType DocumentType `json:"documentType"`
	Locale       string       `json:"locale"`
	ContentHash  string       `json:"contentHash"`
	Status       JobStatus    `json:"status"`
	CreatedAt    time.Time    `json:"createdAt"`
	CompletedAt  *time.Time   `json:"completedAt,omitempty"`
}

func NewProcessingJob(id, filename string, docType DocumentType, locale string, now time.Time) *ProcessingJob {
	return &ProcessingJob{
		ID:           id,
		Filename:     filename,
		DocumentType: docType,
		Locale:       locale,
		Status:       JobStatusPending,
		CreatedAt:    now,
	}
}

// Transition moves the job to next, stamping CompletedAt on terminal states.
func (j *ProcessingJob) Transition(next JobStatus, now time.Time) error {
	if !j.Status.IsValidTransition(next) {
		return fmt.Errorf("invalid job status transition %s -> %s", j.Status, next)
	}
	j.Status = next
	if next.IsTerminal() {
		j.CompletedAt = &now
	}
	return nil
}
