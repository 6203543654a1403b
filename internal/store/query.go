package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/DeusData/module-sentinel/internal/model"
)

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const symbolColumns = `file_path, name, qualified_name, kind, line, col, end_line, signature,
	return_type, namespace, parent_class, confidence, origin, features`

func scanSymbol(row scanner) (model.Symbol, error) {
	var s model.Symbol
	var kind, features string
	err := row.Scan(&s.FilePath, &s.Name, &s.QualifiedName, &kind, &s.Line, &s.Column, &s.EndLine, &s.Signature,
		&s.ReturnType, &s.Namespace, &s.ParentClass, &s.Confidence, &s.Origin, &features)
	if err != nil {
		return s, err
	}
	s.Kind = model.SymbolKind(kind)
	if f := unmarshalProps(features); len(f) > 0 {
		s.LanguageFeatures = f
	}
	return s, nil
}

func scanSymbols(rows *sql.Rows) ([]model.Symbol, error) {
	var result []model.Symbol
	for rows.Next() {
		s, err := scanSymbol(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

const relationshipColumns = `from_name, to_name, type, confidence, line, cross_language, metadata`

func scanRelationships(rows *sql.Rows) ([]model.Relationship, error) {
	var result []model.Relationship
	for rows.Next() {
		var r model.Relationship
		var typ, meta string
		var cross int
		if err := rows.Scan(&r.FromName, &r.ToName, &typ, &r.Confidence, &r.LineNumber, &cross, &meta); err != nil {
			return nil, err
		}
		r.Type = model.RelationshipType(typ)
		r.CrossLanguage = cross != 0
		if m := unmarshalProps(meta); len(m) > 0 {
			r.Metadata = m
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// Symbols returns every symbol of project ordered by file and position.
func (s *Store) Symbols(project string) ([]model.Symbol, error) {
	rows, err := s.q.Query(`SELECT `+symbolColumns+` FROM symbols WHERE project=? ORDER BY file_path, line, col, id`, project)
	if err != nil {
		return nil, fmt.Errorf("symbols: %w", err)
	}
	defer rows.Close()
	return scanSymbols(rows)
}

// Relationships returns every relationship of project.
func (s *Store) Relationships(project string) ([]model.Relationship, error) {
	rows, err := s.q.Query(`SELECT `+relationshipColumns+` FROM relationships WHERE project=? ORDER BY file_path, id`, project)
	if err != nil {
		return nil, fmt.Errorf("relationships: %w", err)
	}
	defer rows.Close()
	return scanRelationships(rows)
}

// SearchParams filters a symbol search.
type SearchParams struct {
	Project string
	// NamePattern is a glob matched against the name or qualified name.
	NamePattern string
	Kind        string
	FilePattern string
	Limit       int
}

// SearchSymbols returns symbols matching params, most confident first.
func (s *Store) SearchSymbols(params SearchParams) ([]model.Symbol, error) {
	if params.Limit <= 0 {
		params.Limit = 100
	}
	conditions := []string{"project = ?"}
	args := []any{params.Project}
	if params.NamePattern != "" {
		like := globToLike(params.NamePattern)
		conditions = append(conditions, "(name LIKE ? OR qualified_name LIKE ?)")
		args = append(args, like, like)
	}
	if params.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, params.Kind)
	}
	if params.FilePattern != "" {
		conditions = append(conditions, "file_path LIKE ?")
		args = append(args, globToLike(params.FilePattern))
	}
	args = append(args, params.Limit)

	query := `SELECT ` + symbolColumns + ` FROM symbols WHERE ` + strings.Join(conditions, " AND ") +
		` ORDER BY confidence DESC, qualified_name, line LIMIT ?`
	rows, err := s.q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search symbols: %w", err)
	}
	defer rows.Close()
	return scanSymbols(rows)
}

// globToLike converts a glob to a SQL LIKE pattern.
func globToLike(pattern string) string {
	result := strings.ReplaceAll(pattern, "**", "%")
	result = strings.ReplaceAll(result, "*", "%")
	result = strings.ReplaceAll(result, "?", "_")
	return result
}

const fileColumns = `project, file_path, language, strategy, status, reason, quality_score,
	duplicates_removed, processing_ms, run_id`

func scanFile(row scanner) (*FileRecord, error) {
	var f FileRecord
	err := row.Scan(&f.Project, &f.FilePath, &f.Language, &f.Strategy, &f.Status, &f.Reason, &f.QualityScore,
		&f.DuplicatesRemoved, &f.ProcessingMs, &f.RunID)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// Files returns the per-file summaries of project, lowest quality first.
func (s *Store) Files(project string) ([]*FileRecord, error) {
	rows, err := s.q.Query(`SELECT `+fileColumns+` FROM files WHERE project=? ORDER BY status DESC, quality_score, file_path`, project)
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	defer rows.Close()
	var result []*FileRecord
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

// LoadResult rebuilds the stored result of filePath. It returns nil, nil
// when the file was never stored.
func (s *Store) LoadResult(project, filePath string) (*model.ProcessedResult, *FileRecord, error) {
	var processing, module string
	row := s.q.QueryRow(`SELECT `+fileColumns+`, processing, module FROM files WHERE project=? AND file_path=?`, project, filePath)
	var f FileRecord
	err := row.Scan(&f.Project, &f.FilePath, &f.Language, &f.Strategy, &f.Status, &f.Reason, &f.QualityScore,
		&f.DuplicatesRemoved, &f.ProcessingMs, &f.RunID, &processing, &module)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load file %s: %w", filePath, err)
	}

	res := &model.ProcessedResult{FilePath: f.FilePath, Language: f.Language, Strategy: f.Strategy}
	if processing != "" {
		_ = json.Unmarshal([]byte(processing), &res.Processing)
	}
	if module != "" {
		res.Module = &model.ModuleAnalysis{}
		if err := json.Unmarshal([]byte(module), res.Module); err != nil {
			res.Module = nil
		}
	}

	rows, err := s.q.Query(`SELECT `+symbolColumns+` FROM symbols WHERE project=? AND file_path=? ORDER BY id`, project, filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("load symbols: %w", err)
	}
	res.Symbols, err = scanSymbols(rows)
	rows.Close()
	if err != nil {
		return nil, nil, err
	}

	rows, err = s.q.Query(`SELECT `+relationshipColumns+` FROM relationships WHERE project=? AND file_path=? ORDER BY id`, project, filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("load relationships: %w", err)
	}
	res.Relationships, err = scanRelationships(rows)
	rows.Close()
	if err != nil {
		return nil, nil, err
	}

	if res.Patterns, err = s.patterns(project, filePath); err != nil {
		return nil, nil, err
	}
	if res.Metrics, err = s.Metrics(project, filePath); err != nil {
		return nil, nil, err
	}
	return res, &f, nil
}

func (s *Store) patterns(project, filePath string) ([]model.Pattern, error) {
	rows, err := s.q.Query(`SELECT type, name, confidence, details FROM patterns WHERE project=? AND file_path=? ORDER BY id`, project, filePath)
	if err != nil {
		return nil, fmt.Errorf("load patterns: %w", err)
	}
	defer rows.Close()
	var result []model.Pattern
	for rows.Next() {
		var p model.Pattern
		var details string
		if err := rows.Scan(&p.Type, &p.Name, &p.Confidence, &details); err != nil {
			return nil, err
		}
		if d := unmarshalProps(details); len(d) > 0 {
			p.Details = d
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// Metrics returns function metrics stored for filePath, or for the whole
// project when filePath is empty.
func (s *Store) Metrics(project, filePath string) ([]model.FunctionMetrics, error) {
	query := `SELECT qualified_name, symbol_name, line, cyclomatic, cognitive, nesting_depth, lines_of_code, call_sites,
		maintainability, halstead FROM function_metrics WHERE project=?`
	args := []any{project}
	if filePath != "" {
		query += " AND file_path=?"
		args = append(args, filePath)
	}
	rows, err := s.q.Query(query+" ORDER BY file_path, line", args...)
	if err != nil {
		return nil, fmt.Errorf("load metrics: %w", err)
	}
	defer rows.Close()
	var result []model.FunctionMetrics
	for rows.Next() {
		var m model.FunctionMetrics
		var halstead string
		if err := rows.Scan(&m.QualifiedName, &m.SymbolName, &m.Line, &m.Cyclomatic, &m.Cognitive, &m.NestingDepth, &m.LinesOfCode,
			&m.CallSites, &m.MaintainabilityIndex, &halstead); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(halstead), &m.Halstead)
		result = append(result, m)
	}
	return result, rows.Err()
}

// Counts summarizes project contents.
type Counts struct {
	Files         int
	FailedFiles   int
	Symbols       int
	Relationships int
	Patterns      int
}

// CountAll returns row counts for project.
func (s *Store) CountAll(project string) (Counts, error) {
	var c Counts
	err := s.q.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM files WHERE project=?1),
			(SELECT COUNT(*) FROM files WHERE project=?1 AND status='failed'),
			(SELECT COUNT(*) FROM symbols WHERE project=?1),
			(SELECT COUNT(*) FROM relationships WHERE project=?1),
			(SELECT COUNT(*) FROM patterns WHERE project=?1)`, project).
		Scan(&c.Files, &c.FailedFiles, &c.Symbols, &c.Relationships, &c.Patterns)
	if err != nil {
		return c, fmt.Errorf("count: %w", err)
	}
	return c, nil
}

// FileModules maps each file of project that declares a C++ module to the
// module's name.
func (s *Store) FileModules(project string) (map[string]string, error) {
	rows, err := s.q.Query(`SELECT file_path, module FROM files WHERE project=? AND module != ''`, project)
	if err != nil {
		return nil, fmt.Errorf("file modules: %w", err)
	}
	defer rows.Close()
	result := make(map[string]string)
	for rows.Next() {
		var path, module string
		if err := rows.Scan(&path, &module); err != nil {
			return nil, err
		}
		var m model.ModuleAnalysis
		if err := json.Unmarshal([]byte(module), &m); err != nil || m.ModuleName == "" {
			continue
		}
		result[path] = m.ModuleName
	}
	return result, rows.Err()
}
