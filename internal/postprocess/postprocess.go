// Package postprocess deduplicates, validates and scores the raw output of
// a file's symbol producers.
package postprocess

import (
	"fmt"
	"sort"
	"strings"

	"github.com/DeusData/module-sentinel/internal/model"
)

// Validation limits and replacement margins.
const (
	maxQualifiedNameLen   = 200
	rawCodeNameLen        = 50
	minSymbolConfidence   = 0.3
	minRelationConfidence = 0.2

	confidenceMargin   = 0.1
	featureCountMargin = 2
)

// Quality score weights.
const (
	errorPenalty        = 10.0
	warningPenalty      = 2.0
	maxDuplicatePenalty = 20.0
	confidenceCenter    = 0.7
	confidenceWeight    = 10.0
)

// Process folds duplicate symbol observations together, validates symbols
// and relationships and computes the quality score. Validation findings are
// recorded, never used to drop records. raw is not modified.
func Process(raw *model.RawResult, filePath string) *model.ProcessedResult {
	out := &model.ProcessedResult{
		FilePath: filePath,
		Processing: model.ProcessingInfo{
			ValidationWarnings: []string{},
			ValidationErrors:   []string{},
		},
	}
	if raw == nil {
		out.Processing.QualityScore = 100
		return out
	}

	symbols, removed := Dedup(raw.Symbols)
	out.Symbols = symbols
	out.Relationships = dedupRelationships(raw.Relationships)
	out.Patterns = append([]model.Pattern(nil), raw.Patterns...)
	out.Processing.DuplicatesRemoved = removed
	out.Processing.AnalysisWarnings = append([]string(nil), raw.Warnings...)

	for i := range out.Symbols {
		errs, warns := validateSymbol(&out.Symbols[i])
		out.Processing.ValidationErrors = append(out.Processing.ValidationErrors, errs...)
		out.Processing.ValidationWarnings = append(out.Processing.ValidationWarnings, warns...)
	}
	for i := range out.Relationships {
		errs, warns := validateRelationship(&out.Relationships[i])
		out.Processing.ValidationErrors = append(out.Processing.ValidationErrors, errs...)
		out.Processing.ValidationWarnings = append(out.Processing.ValidationWarnings, warns...)
	}
	out.Processing.QualityScore = QualityScore(
		len(out.Processing.ValidationErrors),
		len(out.Processing.ValidationWarnings),
		removed,
		out.Symbols,
	)
	return out
}

// DedupKey identifies a symbol observation. Functions whose qualified name is
// their bare name collapse to kind:name so the same lambda seen through a
// variable declaration and a function node folds into one record.
func DedupKey(s *model.Symbol) string {
	if s.Kind == model.KindFunction && s.QualifiedName == s.Name {
		return string(s.Kind) + ":" + s.Name
	}
	return fmt.Sprintf("%s:%s:%d:%d", s.Kind, s.Name, s.Line, s.Column)
}

// Dedup returns the surviving symbols in their original order and the number
// of key collisions. Observations are considered highest confidence first,
// then richest feature set first.
func Dedup(symbols []model.Symbol) ([]model.Symbol, int) {
	order := make([]int, len(symbols))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		sa, sb := &symbols[order[a]], &symbols[order[b]]
		if sa.Confidence != sb.Confidence {
			return sa.Confidence > sb.Confidence
		}
		return len(sa.LanguageFeatures) > len(sb.LanguageFeatures)
	})

	type slot struct {
		src int // index into symbols of the current winner
		pos int // original position of the first observation with this key
	}
	byKey := make(map[string]*slot, len(symbols))
	var keys []string
	removed := 0
	for _, idx := range order {
		cand := &symbols[idx]
		key := DedupKey(cand)
		cur, ok := byKey[key]
		if !ok {
			byKey[key] = &slot{src: idx, pos: idx}
			keys = append(keys, key)
			continue
		}
		removed++
		if replaces(cand, &symbols[cur.src]) {
			cur.src = idx
		}
		if idx < cur.pos {
			cur.pos = idx
		}
	}

	sort.SliceStable(keys, func(a, b int) bool { return byKey[keys[a]].pos < byKey[keys[b]].pos })
	out := make([]model.Symbol, 0, len(keys))
	for _, k := range keys {
		out = append(out, symbols[byKey[k].src])
	}
	return out, removed
}

// replaces reports whether cand should take the place of existing.
func replaces(cand, existing *model.Symbol) bool {
	switch {
	case cand.Origin == model.OriginVariableHandler && existing.Origin != model.OriginVariableHandler:
		return true
	case cand.Confidence > existing.Confidence+confidenceMargin:
		return true
	case cand.Signature != "" && existing.Signature == "":
		return true
	case len(cand.LanguageFeatures) > len(existing.LanguageFeatures)+featureCountMargin:
		return true
	}
	return false
}

// dedupRelationships drops exact repeats of an edge, keeping the most
// confident observation. Producers merged for one file (compiler and
// structural) commonly report the same inheritance edge.
func dedupRelationships(rels []model.Relationship) []model.Relationship {
	type key struct {
		from, to string
		typ      model.RelationshipType
		line     int
	}
	index := make(map[key]int, len(rels))
	out := make([]model.Relationship, 0, len(rels))
	for _, r := range rels {
		k := key{r.FromName, r.ToName, r.Type, r.LineNumber}
		if i, ok := index[k]; ok {
			if r.Confidence > out[i].Confidence {
				out[i] = r
			}
			continue
		}
		index[k] = len(out)
		out = append(out, r)
	}
	return out
}

func validateSymbol(s *model.Symbol) (errs, warns []string) {
	where := fmt.Sprintf("%s %q at line %d", s.Kind, s.QualifiedName, s.Line)
	if s.Name == "" {
		errs = append(errs, fmt.Sprintf("symbol at line %d has an empty name", s.Line))
	}
	// An EndLine of zero means the producer did not record one.
	if s.EndLine != 0 && s.EndLine < s.Line {
		errs = append(errs, fmt.Sprintf("%s ends before it starts (endLine %d)", where, s.EndLine))
	}
	if len(s.QualifiedName) > maxQualifiedNameLen {
		warns = append(warns, fmt.Sprintf("%s line %d: qualified name is %d characters long", s.Kind, s.Line, len(s.QualifiedName)))
	}
	if looksLikeRawCode(s.QualifiedName) {
		warns = append(warns, fmt.Sprintf("%s line %d: qualified name looks like captured source text", s.Kind, s.Line))
	}
	if s.Confidence < minSymbolConfidence {
		warns = append(warns, fmt.Sprintf("%s has low confidence %.2f", where, s.Confidence))
	}
	return errs, warns
}

// looksLikeRawCode flags names that span lines, or long names carrying
// braces or statement terminators.
func looksLikeRawCode(qn string) bool {
	if strings.ContainsAny(qn, "\r\n") {
		return true
	}
	if len(qn) <= rawCodeNameLen {
		return false
	}
	return strings.ContainsAny(qn, "{};") || strings.Count(qn, "(") != strings.Count(qn, ")")
}

func validateRelationship(r *model.Relationship) (errs, warns []string) {
	if r.FromName == "" || r.ToName == "" {
		errs = append(errs, fmt.Sprintf("%s relationship at line %d is missing an endpoint (%q -> %q)", r.Type, r.LineNumber, r.FromName, r.ToName))
	}
	if r.Confidence < minRelationConfidence {
		warns = append(warns, fmt.Sprintf("%s relationship %q -> %q has low confidence %.2f", r.Type, r.FromName, r.ToName, r.Confidence))
	}
	return errs, warns
}

// QualityScore rates a processed file from 0 to 100.
func QualityScore(errors, warnings, removed int, kept []model.Symbol) float64 {
	score := 100.0
	score -= errorPenalty * float64(errors)
	score -= warningPenalty * float64(warnings)
	if total := len(kept) + removed; total > 0 {
		score -= maxDuplicatePenalty * float64(removed) / float64(total)
	}
	if len(kept) > 0 {
		sum := 0.0
		for i := range kept {
			sum += kept[i].Confidence
		}
		score += (sum/float64(len(kept)) - confidenceCenter) * confidenceWeight
	}
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
