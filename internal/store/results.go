package store

import (
	"encoding/json"
	"fmt"

	"github.com/DeusData/module-sentinel/internal/model"
)

// File statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// FileRecord is the per-file summary row.
type FileRecord struct {
	Project           string
	FilePath          string
	Language          string
	Strategy          string
	Status            string
	Reason            string
	QualityScore      float64
	DuplicatesRemoved int
	ProcessingMs      int64
	RunID             string
}

// SaveResult replaces everything stored for res.FilePath with res.
func (s *Store) SaveResult(project, runID string, res *model.ProcessedResult) error {
	if err := s.DeleteFile(project, res.FilePath); err != nil {
		return err
	}

	module := ""
	if res.Module != nil {
		b, err := json.Marshal(res.Module)
		if err != nil {
			return fmt.Errorf("marshal module: %w", err)
		}
		module = string(b)
	}
	_, err := s.q.Exec(`
		INSERT INTO files (project, file_path, language, strategy, status, quality_score,
			duplicates_removed, processing_ms, processing, module, run_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		project, res.FilePath, res.Language, res.Strategy, StatusOK, res.Processing.QualityScore,
		res.Processing.DuplicatesRemoved, res.Processing.ProcessingTimeMs, marshalProps(res.Processing), module, runID)
	if err != nil {
		return fmt.Errorf("insert file: %w", err)
	}

	for i := range res.Symbols {
		sym := &res.Symbols[i]
		// Repeated (qualified name, position) pairs can survive dedup when kinds
		// differ; the first one wins.
		_, err := s.q.Exec(`
			INSERT INTO symbols (project, file_path, name, qualified_name, kind, line, col, end_line,
				signature, return_type, namespace, parent_class, confidence, origin, features)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(project, file_path, qualified_name, line, col) DO NOTHING`,
			project, res.FilePath, sym.Name, sym.QualifiedName, string(sym.Kind), sym.Line, sym.Column, sym.EndLine,
			sym.Signature, sym.ReturnType, sym.Namespace, sym.ParentClass, sym.Confidence, sym.Origin,
			marshalProps(sym.LanguageFeatures))
		if err != nil {
			return fmt.Errorf("insert symbol %s: %w", sym.QualifiedName, err)
		}
	}

	for i := range res.Relationships {
		r := &res.Relationships[i]
		_, err := s.q.Exec(`
			INSERT INTO relationships (project, file_path, from_name, to_name, type, confidence, line, cross_language, metadata)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			project, res.FilePath, r.FromName, r.ToName, string(r.Type), r.Confidence, r.LineNumber,
			boolToInt(r.CrossLanguage), marshalProps(r.Metadata))
		if err != nil {
			return fmt.Errorf("insert relationship: %w", err)
		}
	}

	for i := range res.Patterns {
		p := &res.Patterns[i]
		_, err := s.q.Exec(`
			INSERT INTO patterns (project, file_path, type, name, confidence, details) VALUES (?, ?, ?, ?, ?, ?)`,
			project, res.FilePath, p.Type, p.Name, p.Confidence, marshalProps(p.Details))
		if err != nil {
			return fmt.Errorf("insert pattern: %w", err)
		}
	}

	for i := range res.Metrics {
		m := &res.Metrics[i]
		_, err := s.q.Exec(`
			INSERT INTO function_metrics (project, file_path, qualified_name, symbol_name, line, cyclomatic, cognitive,
				nesting_depth, lines_of_code, call_sites, maintainability, halstead)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(project, file_path, qualified_name, line) DO UPDATE SET
				cyclomatic=excluded.cyclomatic, cognitive=excluded.cognitive, nesting_depth=excluded.nesting_depth,
				lines_of_code=excluded.lines_of_code, call_sites=excluded.call_sites,
				maintainability=excluded.maintainability, halstead=excluded.halstead`,
			project, res.FilePath, m.QualifiedName, m.SymbolName, m.Line, m.Cyclomatic, m.Cognitive, m.NestingDepth,
			m.LinesOfCode, m.CallSites, m.MaintainabilityIndex, marshalProps(m.Halstead))
		if err != nil {
			return fmt.Errorf("insert metrics %s: %w", m.QualifiedName, err)
		}
	}
	return nil
}

// SaveFailure records that filePath could not be processed and drops any
// earlier results for it.
func (s *Store) SaveFailure(project, runID, filePath, language, reason string) error {
	if err := s.DeleteFile(project, filePath); err != nil {
		return err
	}
	_, err := s.q.Exec(`
		INSERT INTO files (project, file_path, language, status, reason, run_id) VALUES (?, ?, ?, ?, ?, ?)`,
		project, filePath, language, StatusFailed, reason, runID)
	if err != nil {
		return fmt.Errorf("insert failure: %w", err)
	}
	return nil
}

// DeleteFile removes all rows stored for filePath.
func (s *Store) DeleteFile(project, filePath string) error {
	for _, table := range []string{"symbols", "relationships", "patterns", "function_metrics", "files"} {
		if _, err := s.q.Exec("DELETE FROM "+table+" WHERE project=? AND file_path=?", project, filePath); err != nil {
			return fmt.Errorf("delete %s for %s: %w", table, filePath, err)
		}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
