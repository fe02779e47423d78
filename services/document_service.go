package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	apperrors "github.com/NomadCrew/nomad-crew-ocr/errors"
	"github.com/NomadCrew/nomad-crew-ocr/internal/cache"
	"github.com/NomadCrew/nomad-crew-ocr/internal/extraction"
	"github.com/NomadCrew/nomad-crew-ocr/internal/metrics"
	"github.com/NomadCrew/nomad-crew-ocr/internal/ocr"
	"github.com/NomadCrew/nomad-crew-ocr/internal/patterns"
	"github.com/NomadCrew/nomad-crew-ocr/logger"
	"github.com/NomadCrew/nomad-crew-ocr/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	defaultFilename   = "document"
	defaultCacheTTL   = 6 * time.Hour
	defaultJobLocale  = "fr-CH"
	archiveTimeout    = 10 * time.Second
	maxFilenameLength = 255
)

var localePattern = regexp.MustCompile(`^[a-z]{2}(-[A-Z]{2})?$`)

var languageNames = map[string]string{
	"fra":      "French",
	"eng":      "English",
	"deu":      "German",
	"ita":      "Italian",
	"spa":      "Spanish",
	"por":      "Portuguese",
	"nld":      "Dutch",
	"roh":      "Romansh",
	"deu_frak": "German (Fraktur)",
}

var documentTypeDescriptions = map[types.DocumentType]string{
	types.DocumentTypeInvoice: "Supplier invoices, quotes and credit notes",
	types.DocumentTypeReceipt: "Till receipts and payment confirmations",
	types.DocumentTypeGeneric: "Any other document; contact, bank, date and amount fields only",
}

// Recognizer runs OCR on raw document bytes. *ocr.Scheduler implements it.
type Recognizer interface {
	Recognize(ctx context.Context, data []byte, opts ocr.RecognizeOptions) (*types.RecognitionResult, error)
	Status() ocr.SchedulerStatus
	Languages() []string
}

// ProcessRequest is one document submission.
type ProcessRequest struct {
	Filename     string
	Data         []byte
	DocumentType types.DocumentType
	Locale       string
	// Languages optionally narrows recognition to a subset of the pool's
	// languages.
	Languages []string
}

// DocumentServiceOption configures optional collaborators.
type DocumentServiceOption func(*DocumentService)

func WithArchive(a DocumentArchive) DocumentServiceOption {
	return func(s *DocumentService) {
		s.archive = a
	}
}

func WithMetrics(m *metrics.Collector) DocumentServiceOption {
	return func(s *DocumentService) {
		s.metrics = m
	}
}

func WithCacheTTL(ttl time.Duration) DocumentServiceOption {
	return func(s *DocumentService) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

func WithDefaultLocale(locale string) DocumentServiceOption {
	return func(s *DocumentService) {
		if locale != "" {
			s.defaultLocale = locale
		}
	}
}

// DocumentService runs the ingestion pipeline: cache lookup, recognition,
// extraction, cache write and archiving.
type DocumentService struct {
	recognizer    Recognizer
	extractor     *extraction.Engine
	cache         cache.Cache
	archive       DocumentArchive
	metrics       *metrics.Collector
	inflight      singleflight.Group
	cacheTTL      time.Duration
	defaultLocale string
	now           func() time.Time
	newID         func() string
	log           *zap.SugaredLogger
}

func NewDocumentService(recognizer Recognizer, extractor *extraction.Engine, c cache.Cache, opts ...DocumentServiceOption) *DocumentService {
	if c == nil {
		c = cache.NoopCache{}
	}
	s := &DocumentService{
		recognizer:    recognizer,
		extractor:     extractor,
		cache:         c,
		cacheTTL:      defaultCacheTTL,
		defaultLocale: defaultJobLocale,
		now:           time.Now,
		newID:         func() string { return uuid.New().String() },
		log:           logger.GetLogger().Named("document-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// pipelineResult is what one recognition run produces. Coalesced callers
// share it.
type pipelineResult struct {
	jobID       string
	recognition *types.RecognitionResult
	extraction  *types.StructuredExtraction
}

// Process runs one document through the pipeline. Invalid requests return a
// nil response and a ValidationFailure. Pipeline failures return a response
// with Success false together with the AppError describing them.
func (s *DocumentService) Process(ctx context.Context, req ProcessRequest) (*types.ProcessResponse, error) {
	docType, locale, err := s.validate(&req)
	if err != nil {
		return nil, err
	}

	start := s.now()
	job := types.NewProcessingJob(s.newID(), req.Filename, docType, locale, start)
	job.ContentHash = cache.Key(req.Data)
	resp := &types.ProcessResponse{JobID: job.ID, Filename: job.Filename}
	log := s.log.With("jobId", job.ID, "contentHash", job.ContentHash, "documentType", docType)

	if len(req.Data) > 0 {
		if entry, ok := s.cache.Get(ctx, job.ContentHash); ok {
			docType = resolveDocumentType(docType, &entry.Recognition)
			job.DocumentType = docType
			extracted := &entry.Extraction
			if extracted.DocumentType != docType || extracted.Locale != locale {
				extracted = s.extractor.Extract(&entry.Recognition, docType, locale)
			}
			s.transition(job, types.JobStatusDone)
			log.Debugw("Served from cache", "cachedAt", entry.CachedAt)
			return s.succeed(resp, job, &entry.Recognition, extracted, true, false), nil
		}
	}

	s.transition(job, types.JobStatusRecognizing)

	// The shared run outlives callers that give up; its result is still cached.
	ch := s.inflight.DoChan(job.ContentHash, func() (interface{}, error) {
		return s.run(context.WithoutCancel(ctx), job, req.Data, req.Languages)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		appErr := apperrors.RecognitionFailure("recognition cancelled", ctx.Err())
		return s.fail(resp, job, appErr), appErr
	}
	if res.Err != nil {
		appErr := asAppError(res.Err)
		return s.fail(resp, job, appErr), appErr
	}

	result := res.Val.(*pipelineResult)
	leader := result.jobID == job.ID
	docType = resolveDocumentType(docType, result.recognition)
	job.DocumentType = docType
	s.transition(job, types.JobStatusExtracting)
	extracted := result.extraction
	if !leader && (extracted.DocumentType != docType || extracted.Locale != locale) {
		extracted = s.extractor.Extract(result.recognition, docType, locale)
	}
	s.transition(job, types.JobStatusDone)

	coalesced := !leader
	if coalesced {
		log.Debugw("Joined in-flight recognition")
	}
	return s.succeed(resp, job, result.recognition, extracted, false, coalesced), nil
}

// run performs the uncached part of the pipeline once per content hash.
func (s *DocumentService) run(ctx context.Context, job *types.ProcessingJob, data []byte, languages []string) (*pipelineResult, error) {
	recStart := s.now()
	rec, err := s.recognizer.Recognize(ctx, data, ocr.RecognizeOptions{JobID: job.ID, Languages: languages})
	if err != nil {
		return nil, err
	}
	recElapsed := s.now().Sub(recStart)
	docType := resolveDocumentType(job.DocumentType, rec)
	s.metrics.RecordRecognition(string(docType), recElapsed)

	extracted := s.extractor.Extract(rec, docType, job.Locale)

	stored := s.cache.Put(ctx, job.ContentHash, &types.CacheEntry{
		Recognition:      *rec,
		Extraction:       *extracted,
		ProcessingTimeMs: s.now().Sub(job.CreatedAt).Milliseconds(),
		CachedAt:         s.now().UTC(),
	}, s.cacheTTL)

	if s.archive != nil {
		actx, cancel := context.WithTimeout(ctx, archiveTimeout)
		if err := s.archive.Store(actx, job.ContentHash, job.Filename, data); err != nil {
			s.log.Warnw("Failed to archive document", "jobId", job.ID, "contentHash", job.ContentHash, "error", err)
		}
		cancel()
	}

	s.log.Infow("Document recognized",
		"jobId", job.ID,
		"contentHash", job.ContentHash,
		"documentType", docType,
		"words", len(rec.Words),
		"confidence", rec.Confidence,
		"fields", len(extracted.Fields),
		"cached", stored,
		"recognitionMs", recElapsed.Milliseconds())
	if iban, ok := extracted.Fields[types.FieldIBAN]; ok {
		s.log.Debugw("IBAN extracted", "jobId", job.ID, "iban", logger.MaskIBAN(iban.Value))
	}

	return &pipelineResult{jobID: job.ID, recognition: rec, extraction: extracted}, nil
}

func (s *DocumentService) validate(req *ProcessRequest) (types.DocumentType, string, error) {
	docType := req.DocumentType
	if docType == "" {
		docType = types.DocumentTypeInvoice
	}
	if docType != types.DocumentTypeAuto && !docType.IsValid() {
		return "", "", apperrors.ValidationFailed("unsupported document type", fmt.Sprintf("documentType %q is not one of invoice, receipt, generic, auto", docType))
	}

	locale := req.Locale
	if locale == "" {
		locale = s.defaultLocale
	}
	if !localePattern.MatchString(locale) {
		return "", "", apperrors.ValidationFailed("invalid locale", fmt.Sprintf("locale %q must look like fr or fr-CH", locale))
	}

	if len(req.Languages) > 0 {
		available := make(map[string]bool)
		for _, l := range s.recognizer.Languages() {
			available[l] = true
		}
		for _, l := range req.Languages {
			if !available[l] {
				return "", "", apperrors.ValidationFailed("unsupported language", fmt.Sprintf("language %q is not loaded; available: %s", l, strings.Join(s.recognizer.Languages(), ", ")))
			}
		}
	}

	req.Filename = strings.TrimSpace(req.Filename)
	if req.Filename == "" {
		req.Filename = defaultFilename
	}
	if len(req.Filename) > maxFilenameLength {
		req.Filename = req.Filename[:maxFilenameLength]
	}
	return docType, locale, nil
}

// resolveDocumentType replaces an auto request with the type detected from
// the recognized text.
func resolveDocumentType(requested types.DocumentType, rec *types.RecognitionResult) types.DocumentType {
	if requested != types.DocumentTypeAuto {
		return requested
	}
	return patterns.DetectDocumentType(rec.RawText)
}

func (s *DocumentService) succeed(resp *types.ProcessResponse, job *types.ProcessingJob, rec *types.RecognitionResult, extracted *types.StructuredExtraction, cacheHit, coalesced bool) *types.ProcessResponse {
	elapsed := s.now().Sub(job.CreatedAt)
	status := metrics.StatusSuccess
	if cacheHit {
		status = metrics.StatusCached
	}
	s.metrics.RecordDocument(string(job.DocumentType), status, elapsed, rec.Confidence)

	resp.Success = true
	resp.ProcessingTime = elapsed.Milliseconds()
	resp.ProcessResult = &types.ProcessResult{
		DocumentType:   job.DocumentType,
		Confidence:     rec.Confidence,
		RawText:        rec.RawText,
		StructuredData: *extracted,
		Statistics: types.ProcessingStatistics{
			WordCount:      len(rec.Words),
			LineCount:      len(rec.Lines),
			FieldCount:     len(extracted.Fields),
			DiscardedCount: len(extracted.Discarded),
			CacheHit:       cacheHit,
			Coalesced:      coalesced,
			ContentHash:    job.ContentHash,
		},
	}
	return resp
}

func (s *DocumentService) fail(resp *types.ProcessResponse, job *types.ProcessingJob, appErr *apperrors.AppError) *types.ProcessResponse {
	s.transition(job, types.JobStatusFailed)
	elapsed := s.now().Sub(job.CreatedAt)
	s.metrics.RecordDocument(string(job.DocumentType), metrics.StatusFailed, elapsed, 0)

	s.log.Warnw("Document processing failed", "jobId", job.ID, "contentHash", job.ContentHash, "errorType", appErr.Type, "error", appErr)

	resp.Success = false
	resp.Error = appErr.Message
	resp.ErrorType = string(appErr.Type)
	resp.ProcessingTime = elapsed.Milliseconds()
	return resp
}

// asAppError treats anything the recognizer did not classify as a
// recognition failure.
func asAppError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return apperrors.RecognitionFailure("recognition failed", err)
}

func (s *DocumentService) transition(job *types.ProcessingJob, next types.JobStatus) {
	if err := job.Transition(next, s.now()); err != nil {
		s.log.Errorw("Invalid job transition", "jobId", job.ID, "error", err)
	}
}

// SupportedLanguages lists the language models loaded in the pool.
func (s *DocumentService) SupportedLanguages() []types.SupportedLanguage {
	codes := s.recognizer.Languages()
	out := make([]types.SupportedLanguage, 0, len(codes))
	for _, code := range codes {
		name, ok := languageNames[code]
		if !ok {
			name = code
		}
		out = append(out, types.SupportedLanguage{Code: code, Name: name})
	}
	return out
}

// DocumentTypes describes each document type and the fields it can produce.
func (s *DocumentService) DocumentTypes() []types.DocumentTypeInfo {
	lib := s.extractor.Library()
	out := make([]types.DocumentTypeInfo, 0, len(types.DocumentTypes()))
	for _, dt := range types.DocumentTypes() {
		out = append(out, types.DocumentTypeInfo{
			Type:        dt,
			Description: documentTypeDescriptions[dt],
			Fields:      lib.Fields(dt),
		})
	}
	return out
}
