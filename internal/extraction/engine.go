// Package extraction turns recognized text into locale-aware business fields
// using the pattern library.
package extraction

import (
	"fmt"
	"math"
	"sort"
	"strings"

	apperrors "github.com/NomadCrew/nomad-crew-ocr/errors"
	"github.com/NomadCrew/nomad-crew-ocr/internal/patterns"
	"github.com/NomadCrew/nomad-crew-ocr/logger"
	"github.com/NomadCrew/nomad-crew-ocr/types"
	"go.uber.org/zap"
)

// Reasons recorded on discarded candidates.
const (
	ReasonLocale        = "locale"
	ReasonConfidence    = "confidence"
	ReasonDocumentOrder = "document_order"
	ReasonRuleOrder     = "rule_order"
	ReasonTotalCurrency = "total_currency"
)

// Engine applies a pattern library to recognition results. It holds no
// per-call state and is safe for concurrent use.
type Engine struct {
	library *patterns.Library
	log     *zap.SugaredLogger
}

func NewEngine(library *patterns.Library) *Engine {
	return &Engine{
		library: library,
		log:     logger.GetLogger().Named("extraction"),
	}
}

// Library returns the pattern library the engine runs.
func (e *Engine) Library() *patterns.Library {
	return e.library
}

type candidate struct {
	rule       patterns.Rule
	ruleIndex  int
	match      patterns.Match
	localeTag  string
	localeHit  bool
	confidence float64
}

type wordSpan struct {
	start, end int
	confidence float64
}

// Extract runs the document type's ruleset against rec and resolves one value
// per field. Empty text yields an extraction with no fields.
func (e *Engine) Extract(rec *types.RecognitionResult, docType types.DocumentType, locale string) *types.StructuredExtraction {
	result := &types.StructuredExtraction{
		DocumentType: docType,
		Locale:       locale,
		Fields:       make(map[string]types.ExtractedField),
	}
	if rec == nil || strings.TrimSpace(rec.RawText) == "" {
		return result
	}

	spans := wordSpans(rec)
	byField := make(map[string][]candidate)
	for i, rule := range e.library.RulesFor(docType) {
		for _, m := range e.findAll(rule, rec.RawText) {
			tag, hit := patterns.MatchLocale(rule.Locales, locale)
			if !hit {
				tag = patterns.TagGeneric
				if len(rule.Locales) > 0 {
					tag = rule.Locales[0]
				}
			}
			byField[rule.Field] = append(byField[rule.Field], candidate{
				rule:       rule,
				ruleIndex:  i,
				match:      m,
				localeTag:  tag,
				localeHit:  hit,
				confidence: spanConfidence(spans, m.Start, m.End, rec.Confidence),
			})
		}
	}

	fields := make([]string, 0, len(byField))
	for f := range byField {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for _, field := range fields {
		winner, discarded := resolve(byField[field])
		result.Fields[field] = toField(winner)
		result.Discarded = append(result.Discarded, discarded...)
	}

	reconcileCurrency(result)
	return result
}

// findAll runs one rule, treating a panicking matcher or normalizer as "no
// match".
func (e *Engine) findAll(rule patterns.Rule, text string) (matches []patterns.Match) {
	defer func() {
		if r := recover(); r != nil {
			err := apperrors.ExtractionFailure(rule.Field, fmt.Errorf("rule %s panicked: %v", rule.Name, r))
			e.log.Warnw("Pattern rule failed, treating field as not found", "rule", rule.Name, "error", err)
			matches = nil
		}
	}()
	return rule.FindAll(text)
}

// resolve orders candidates by locale match, span confidence, document
// position and finally rule order. Candidates whose normalized value equals
// the winner's are not conflicts and are dropped; the best-ranked candidate
// of every other value is kept for audit.
func resolve(cands []candidate) (candidate, []types.DiscardedCandidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.localeHit != b.localeHit {
			return a.localeHit
		}
		if a.confidence != b.confidence {
			return a.confidence > b.confidence
		}
		if a.match.Start != b.match.Start {
			return a.match.Start < b.match.Start
		}
		return a.ruleIndex < b.ruleIndex
	})

	winner := cands[0]
	seen := map[string]bool{winner.match.Normalized: true}
	var discarded []types.DiscardedCandidate
	for _, c := range cands[1:] {
		if seen[c.match.Normalized] {
			continue
		}
		seen[c.match.Normalized] = true
		discarded = append(discarded, types.DiscardedCandidate{
			Field:        c.rule.Field,
			Value:        c.match.Value,
			Confidence:   c.confidence,
			SourceLocale: c.localeTag,
			Rule:         c.rule.Name,
			Offset:       c.match.Start,
			Reason:       discardReason(winner, c),
		})
	}
	return winner, discarded
}

func discardReason(winner, c candidate) string {
	switch {
	case winner.localeHit && !c.localeHit:
		return ReasonLocale
	case winner.confidence > c.confidence:
		return ReasonConfidence
	case winner.match.Start < c.match.Start:
		return ReasonDocumentOrder
	default:
		return ReasonRuleOrder
	}
}

func toField(c candidate) types.ExtractedField {
	return types.ExtractedField{
		Value:        c.match.Value,
		Confidence:   c.confidence,
		SourceLocale: c.localeTag,
		Rule:         c.rule.Name,
		Currency:     c.match.Currency,
		Normalized:   c.match.Normalized,
	}
}

// reconcileCurrency makes the currency field agree with the currency printed
// next to the resolved total.
func reconcileCurrency(result *types.StructuredExtraction) {
	total, ok := result.Fields[types.FieldTotalAmount]
	if !ok || total.Currency == "" {
		return
	}
	if standalone, ok := result.Fields[types.FieldCurrency]; ok && standalone.Normalized != total.Currency {
		result.Discarded = append(result.Discarded, types.DiscardedCandidate{
			Field:        types.FieldCurrency,
			Value:        standalone.Value,
			Confidence:   standalone.Confidence,
			SourceLocale: standalone.SourceLocale,
			Rule:         standalone.Rule,
			Reason:       ReasonTotalCurrency,
		})
	}
	result.Fields[types.FieldCurrency] = types.ExtractedField{
		Value:        total.Currency,
		Confidence:   total.Confidence,
		SourceLocale: total.SourceLocale,
		Rule:         total.Rule,
		Normalized:   total.Currency,
	}
}

// wordSpans locates each recognized word in the raw text, in order. Words
// that cannot be found are skipped.
func wordSpans(rec *types.RecognitionResult) []wordSpan {
	spans := make([]wordSpan, 0, len(rec.Words))
	cursor := 0
	for _, w := range rec.Words {
		if w.Text == "" {
			continue
		}
		idx := strings.Index(rec.RawText[cursor:], w.Text)
		if idx < 0 {
			continue
		}
		start := cursor + idx
		end := start + len(w.Text)
		spans = append(spans, wordSpan{start: start, end: end, confidence: w.Confidence})
		cursor = end
	}
	return spans
}

// spanConfidence averages the confidence of the words overlapping
// [start, end). Without word data the document confidence is used.
func spanConfidence(spans []wordSpan, start, end int, fallback float64) float64 {
	var sum float64
	var n int
	for _, s := range spans {
		if s.start < end && s.end > start {
			sum += s.confidence
			n++
		}
	}
	if n == 0 {
		return round2(fallback)
	}
	return round2(sum / float64(n))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
