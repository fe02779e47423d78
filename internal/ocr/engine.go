// Package ocr runs document recognition on a fixed pool of long-lived
// engines.
package ocr

import (
	"context"

	"github.com/NomadCrew/nomad-crew-ocr/types"
)

// DefaultWhitelist restricts recognition to characters found on invoices and
// receipts: digits, Latin letters including accented ones, punctuation and
// currency symbols.
const DefaultWhitelist = "0123456789" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz" +
	"ÀÂÄÇÉÈÊËÎÏÔÖÙÛÜŸàâäçéèêëîïôöùûüÿß" +
	" .,:;'’\"-_/\\()[]#%&@+*=?!°" +
	"€$£"

// EngineConfig is the fixed profile every engine is loaded with.
type EngineConfig struct {
	Languages     []string
	DPI           int
	CharWhitelist string
}

// RecognizeOptions carries per-job settings.
type RecognizeOptions struct {
	JobID string
	// Languages overrides the engine languages when set. Must be a subset of
	// the configured languages.
	Languages []string
}

// Engine is one recognition instance. An Engine is used by one job at a
// time and is never shared between workers.
type Engine interface {
	Recognize(ctx context.Context, data []byte, opts RecognizeOptions) (*types.RecognitionResult, error)
	Close() error
}

// EngineFactory loads a new engine. It is called once per worker at startup
// and again whenever a worker's engine has to be replaced.
type EngineFactory func(cfg EngineConfig) (Engine, error)
