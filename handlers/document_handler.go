package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	apperrors "github.com/NomadCrew/nomad-crew-ocr/errors"
	"github.com/NomadCrew/nomad-crew-ocr/services"
	"github.com/NomadCrew/nomad-crew-ocr/types"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
)

// Image formats the recognition engine can decode.
var documentAllowedMimes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/tiff": true,
	"image/bmp":  true,
	"image/webp": true,
	"image/gif":  true,
}

// DefaultMaxUploadSize is used when no limit is configured.
const DefaultMaxUploadSize = 50 * 1024 * 1024

// multipartOverhead is the room left for form boundaries and text fields.
const multipartOverhead = 1024 * 1024

type DocumentHandler struct {
	processor     DocumentProcessor
	maxUploadSize int64
}

func NewDocumentHandler(processor DocumentProcessor, maxUploadSize int64) *DocumentHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = DefaultMaxUploadSize
	}
	return &DocumentHandler{
		processor:     processor,
		maxUploadSize: maxUploadSize,
	}
}

// ProcessDocumentHandler godoc
// @Summary Process a document
// @Description Runs OCR and field extraction on an uploaded image. Identical uploads are answered from the result cache.
// @Tags documents
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Document image (png, jpeg, tiff, bmp, webp, gif)"
// @Param documentType formData string false "invoice, receipt, generic or auto (detected from the text)" default(invoice)
// @Param locale formData string false "Locale used to prefer matching patterns, e.g. fr-CH"
// @Param languages formData string false "Subset of the loaded recognition languages, e.g. fra+eng"
// @Success 200 {object} types.ProcessResponse "Extraction result"
// @Failure 400 {object} middleware.ErrorResponse "Invalid upload"
// @Failure 401 {object} middleware.ErrorResponse "Missing or invalid API key"
// @Failure 422 {object} types.ProcessResponse "Recognition failed"
// @Failure 429 {object} middleware.ErrorResponse "Rate limit exceeded"
// @Failure 503 {object} types.ProcessResponse "Recognition pool not running"
// @Router /process [post]
// @Security ApiKeyAuth
func (h *DocumentHandler) ProcessDocumentHandler(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize+multipartOverhead)

	if err := c.Request.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			_ = c.Error(apperrors.ValidationFailed("file too large",
				fmt.Sprintf("uploads are limited to %d bytes", h.maxUploadSize)))
			return
		}
		_ = c.Error(apperrors.ValidationFailed("invalid multipart form", err.Error()))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		_ = c.Error(apperrors.ValidationFailed("file is required", "multipart field \"file\" is missing"))
		return
	}
	if fileHeader.Size > h.maxUploadSize {
		_ = c.Error(apperrors.ValidationFailed("file too large",
			fmt.Sprintf("file size %d exceeds maximum of %d bytes", fileHeader.Size, h.maxUploadSize)))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		_ = c.Error(apperrors.ValidationFailed("invalid file", "failed to open uploaded file"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadSize+1))
	if err != nil {
		_ = c.Error(fmt.Errorf("failed to read upload: %w", err))
		return
	}
	if int64(len(data)) > h.maxUploadSize {
		_ = c.Error(apperrors.ValidationFailed("file too large",
			fmt.Sprintf("file exceeds maximum of %d bytes", h.maxUploadSize)))
		return
	}

	// Empty uploads go through so the recognition step reports them.
	if len(data) > 0 {
		detected := mimetype.Detect(data).String()
		if !documentAllowedMimes[detected] {
			_ = c.Error(apperrors.ValidationFailed("unsupported file type",
				fmt.Sprintf("detected %s; allowed: %s", detected, allowedMimeList())))
			return
		}
	}

	resp, err := h.processor.Process(c.Request.Context(), services.ProcessRequest{
		Filename:     fileHeader.Filename,
		Data:         data,
		DocumentType: types.DocumentType(strings.ToLower(strings.TrimSpace(c.PostForm("documentType")))),
		Locale:       strings.TrimSpace(c.PostForm("locale")),
		Languages:    parseLanguages(c.PostForm("languages")),
	})
	if resp == nil {
		if err == nil {
			err = apperrors.InternalServerError("document processing returned no result")
		}
		_ = c.Error(err)
		return
	}
	if err != nil {
		status := http.StatusUnprocessableEntity
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			status = appErr.GetHTTPStatus()
		}
		c.JSON(status, resp)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// SupportedLanguagesHandler godoc
// @Summary List recognition languages
// @Tags discovery
// @Produce json
// @Success 200 {array} types.SupportedLanguage
// @Router /supported-languages [get]
func (h *DocumentHandler) SupportedLanguagesHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.processor.SupportedLanguages())
}

// DocumentTypesHandler godoc
// @Summary List document types
// @Description Document types and the fields each one can produce
// @Tags discovery
// @Produce json
// @Success 200 {array} types.DocumentTypeInfo
// @Router /document-types [get]
func (h *DocumentHandler) DocumentTypesHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.processor.DocumentTypes())
}

// parseLanguages accepts "fra+eng", "fra,eng" or "fra eng".
func parseLanguages(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '+' || r == ',' || r == ' '
	})
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func allowedMimeList() string {
	mimes := make([]string, 0, len(documentAllowedMimes))
	for m := range documentAllowedMimes {
		mimes = append(mimes, m)
	}
	sort.Strings(mimes)
	return strings.Join(mimes, ", ")
}
