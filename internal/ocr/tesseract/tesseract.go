// Package tesseract implements ocr.Engine on top of the Tesseract library
// through gosseract.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"math"
	"strings"

	"github.com/NomadCrew/nomad-crew-ocr/internal/ocr"
	"github.com/NomadCrew/nomad-crew-ocr/types"
	"github.com/otiai10/gosseract/v2"
)

// Engine wraps one long-lived gosseract client. Language models are loaded
// once when the engine is built.
type Engine struct {
	client    *gosseract.Client
	languages []string
}

// New is an ocr.EngineFactory.
func New(cfg ocr.EngineConfig) (ocr.Engine, error) {
	c := gosseract.NewClient()

	if err := c.SetLanguage(cfg.Languages...); err != nil {
		c.Close()
		return nil, fmt.Errorf("set languages %v: %w", cfg.Languages, err)
	}
	if err := c.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		c.Close()
		return nil, fmt.Errorf("set page segmentation: %w", err)
	}
	if cfg.DPI > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(cfg.DPI)); err != nil {
			c.Close()
			return nil, fmt.Errorf("set dpi: %w", err)
		}
	}
	if cfg.CharWhitelist != "" {
		if err := c.SetWhitelist(cfg.CharWhitelist); err != nil {
			c.Close()
			return nil, fmt.Errorf("set whitelist: %w", err)
		}
	}

	// Tesseract loads traineddata lazily; a blank page forces it now so a
	// missing model fails at startup.
	if err := warmUp(c); err != nil {
		c.Close()
		return nil, fmt.Errorf("load language models %v: %w", cfg.Languages, err)
	}

	return &Engine{client: c, languages: cfg.Languages}, nil
}

func (e *Engine) Recognize(ctx context.Context, data []byte, opts ocr.RecognizeOptions) (result *types.RecognitionResult, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(opts.Languages) > 0 && !sameLanguages(opts.Languages, e.languages) {
		if err := e.client.SetLanguage(opts.Languages...); err != nil {
			return nil, fmt.Errorf("set languages: %w", err)
		}
		defer restoreLanguages(e.client.SetLanguage, e.languages, &result, &err)
	}

	if err := e.client.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	text, err := e.client.Text()
	if err != nil {
		return nil, fmt.Errorf("recognize text: %w", err)
	}

	words, confidence := e.words()
	return &types.RecognitionResult{
		RawText:    strings.TrimSpace(text),
		Confidence: confidence,
		Words:      words,
		Lines:      e.lines(),
	}, nil
}

// restoreLanguages puts the engine's own language set back after a job that
// narrowed it. When that fails the job fails too and the scheduler replaces
// the engine.
func restoreLanguages(set func(...string) error, languages []string, result **types.RecognitionResult, err *error) {
	rerr := set(languages...)
	if rerr == nil || *err != nil {
		return
	}
	*result = nil
	*err = fmt.Errorf("restore languages %v: %w", languages, rerr)
}

func warmUp(c *gosseract.Client) error {
	img := image.NewGray(image.Rect(0, 0, 32, 32))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return err
	}
	if err := c.SetImageFromBytes(buf.Bytes()); err != nil {
		return err
	}
	_, err := c.Text()
	return err
}

func (e *Engine) Close() error {
	return e.client.Close()
}

func (e *Engine) words() ([]types.Word, float64) {
	boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, 0
	}
	return wordsFromBoxes(boxes)
}

func (e *Engine) lines() []types.Line {
	boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil
	}
	lines := make([]types.Line, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		lines = append(lines, types.Line{Text: text, Confidence: round2(b.Confidence), Bounds: toBounds(b.Box)})
	}
	return lines
}

// wordsFromBoxes converts word boxes and returns their mean confidence.
func wordsFromBoxes(boxes []gosseract.BoundingBox) ([]types.Word, float64) {
	words := make([]types.Word, 0, len(boxes))
	var sum float64
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		sum += b.Confidence
		words = append(words, types.Word{Text: text, Confidence: round2(b.Confidence), Bounds: toBounds(b.Box)})
	}
	if len(words) == 0 {
		return words, 0
	}
	return words, round2(sum / float64(len(words)))
}

func toBounds(r image.Rectangle) types.Bounds {
	return types.Bounds{X0: r.Min.X, Y0: r.Min.Y, X1: r.Max.X, Y1: r.Max.Y}
}

func sameLanguages(a, b []string) bool {
	return strings.Join(a, "+") == strings.Join(b, "+")
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
