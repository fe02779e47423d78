package logger

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/NomadCrew/nomad-crew-ocr/errors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorLog contains structured information about an error occurrence
type ErrorLog struct {
	Timestamp  time.Time              `json:"timestamp"`
	Message    string                 `json:"message"`
	ErrorType  string                 `json:"error_type,omitempty"`
	StatusCode int                    `json:"status_code,omitempty"`
	RequestID  string                 `json:"request_id,omitempty"`
	JobID      string                 `json:"job_id,omitempty"`
	Path       string                 `json:"path,omitempty"`
	Method     string                 `json:"method,omitempty"`
	IPAddress  string                 `json:"ip_address,omitempty"`
	StackTrace string                 `json:"stack_trace,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// LogError logs err with whatever request context ctx carries.
func LogError(ctx context.Context, err error, message string, metadata map[string]interface{}) {
	entry := buildErrorLog(ctx, err, message, metadata)

	fields := []zap.Field{
		zap.Error(err),
		zap.String("error_type", entry.ErrorType),
	}
	if entry.RequestID != "" {
		fields = append(fields, zap.String("request_id", entry.RequestID))
	}
	if entry.JobID != "" {
		fields = append(fields, zap.String("job_id", entry.JobID))
	}
	if entry.Path != "" {
		fields = append(fields, zap.String("path", entry.Path), zap.String("method", entry.Method))
	}
	if entry.IPAddress != "" {
		fields = append(fields, zap.String("ip_address", entry.IPAddress))
	}
	if entry.StatusCode != 0 {
		fields = append(fields, zap.Int("status_code", entry.StatusCode))
	}
	if entry.StackTrace != "" {
		fields = append(fields, zap.String("stack_trace", entry.StackTrace))
	}
	for k, v := range metadata {
		fields = append(fields, zap.Any(k, v))
	}

	GetLogger().Desugar().Error(message, fields...)
}

func buildErrorLog(ctx context.Context, err error, message string, metadata map[string]interface{}) ErrorLog {
	entry := ErrorLog{
		Timestamp: time.Now().UTC(),
		Message:   message,
		Metadata:  metadata,
		ErrorType: string(apperrors.KindOf(err)),
	}

	if os.Getenv("ENVIRONMENT") != "production" {
		entry.StackTrace = getStackTrace(3)
	}

	if ginCtx, ok := ctx.(*gin.Context); ok && ginCtx.Request != nil {
		entry.RequestID = ginCtx.GetString("request_id")
		entry.JobID = ginCtx.GetString("job_id")
		entry.Path = ginCtx.Request.URL.Path
		entry.Method = ginCtx.Request.Method
		entry.IPAddress = ginCtx.ClientIP()
		if ginCtx.Writer.Status() != 0 {
			entry.StatusCode = ginCtx.Writer.Status()
		}
	}
	return entry
}

// LogHTTPError logs a request error with the filtered request headers.
func LogHTTPError(c *gin.Context, err error, statusCode int, message string) {
	metadata := map[string]interface{}{
		"status_code": statusCode,
		"client_ip":   c.ClientIP(),
		"headers":     filterSensitiveHeaders(c.Request.Header),
	}
	LogError(c, err, message, metadata)
}

func getStackTrace(skip int) string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(skip, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var builder strings.Builder
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.Function, "runtime.") {
			builder.WriteString(frame.Function)
			builder.WriteString("\n\t")
			builder.WriteString(frame.File)
			builder.WriteString(":")
			builder.WriteString(strconv.Itoa(frame.Line))
			builder.WriteString("\n")
		}
		if !more {
			break
		}
	}

	return builder.String()
}

func filterSensitiveHeaders(headers http.Header) map[string]string {
	filtered := make(map[string]string)

	for name, values := range headers {
		lower := strings.ToLower(name)
		if strings.EqualFold(name, "Authorization") ||
			strings.EqualFold(name, "Cookie") ||
			strings.Contains(lower, "token") ||
			strings.Contains(lower, "key") ||
			strings.Contains(lower, "secret") {
			filtered[name] = "[REDACTED]"
			continue
		}
		if len(values) > 0 {
			filtered[name] = values[0]
		}
	}

	return filtered
}
