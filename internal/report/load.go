package report

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/DeusData/module-sentinel/internal/store"
)

// LoadSummary reads the per-file records, counts and latest run of project
// and summarizes them.
func LoadSummary(s *store.Store, project string, limit int) (*Summary, error) {
	files, err := s.Files(project)
	if err != nil {
		return nil, err
	}
	counts, err := s.CountAll(project)
	if err != nil {
		return nil, err
	}
	run, err := s.LatestRun(project)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	return Summarize(project, files, counts, run, limit), nil
}

// LoadFileReport reads the stored result of filePath. It returns nil, nil
// when the file was never indexed.
func LoadFileReport(s *store.Store, project, filePath string) (*FileReport, error) {
	res, rec, err := s.LoadResult(project, filePath)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	return NewFileReport(rec, res), nil
}
