package handlers

import (
	"context"

	"github.com/NomadCrew/nomad-crew-ocr/services"
	"github.com/NomadCrew/nomad-crew-ocr/types"
)

// DocumentProcessor defines the document service methods needed by handlers
type DocumentProcessor interface {
	Process(ctx context.Context, req services.ProcessRequest) (*types.ProcessResponse, error)
	SupportedLanguages() []types.SupportedLanguage
	DocumentTypes() []types.DocumentTypeInfo
}

// HealthChecker reports the state of the service dependencies
type HealthChecker interface {
	CheckHealth(ctx context.Context) types.HealthCheck
}
