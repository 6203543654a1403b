// Package report renders human-readable processing reports for operators.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/DeusData/module-sentinel/internal/model"
	"github.com/DeusData/module-sentinel/internal/store"
)

// Format selects the report encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatText, "":
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown format %q (want text or json)", s)
}

// DefaultIssueLimit caps how many warnings or errors a report lists.
const DefaultIssueLimit = 10

// Summary is the project-level view of the latest indexing state.
type Summary struct {
	Project           string              `json:"project"`
	Run               *store.Run          `json:"run,omitempty"`
	Counts            store.Counts        `json:"counts"`
	AverageQuality    float64             `json:"averageQuality"`
	DuplicatesRemoved int                 `json:"duplicatesRemoved"`
	Failed            []*store.FileRecord `json:"failed,omitempty"`
	Lowest            []*store.FileRecord `json:"lowest,omitempty"`
}

// Summarize aggregates per-file records. limit caps the lowest-quality list.
func Summarize(project string, files []*store.FileRecord, counts store.Counts, run *store.Run, limit int) *Summary {
	if limit <= 0 {
		limit = DefaultIssueLimit
	}
	s := &Summary{Project: project, Run: run, Counts: counts}
	var ok []*store.FileRecord
	var total float64
	for _, f := range files {
		if f.Status == store.StatusFailed {
			s.Failed = append(s.Failed, f)
			continue
		}
		ok = append(ok, f)
		total += f.QualityScore
		s.DuplicatesRemoved += f.DuplicatesRemoved
	}
	if len(ok) > 0 {
		s.AverageQuality = total / float64(len(ok))
	}
	sort.SliceStable(ok, func(i, j int) bool {
		if ok[i].QualityScore != ok[j].QualityScore {
			return ok[i].QualityScore < ok[j].QualityScore
		}
		return ok[i].FilePath < ok[j].FilePath
	})
	if len(ok) > limit {
		ok = ok[:limit]
	}
	s.Lowest = ok
	return s
}

// WriteSummary renders s in the requested format.
func WriteSummary(w io.Writer, s *Summary, format Format) error {
	if format == FormatJSON {
		return writeJSON(w, s)
	}

	fmt.Fprintf(w, "Project: %s\n", s.Project)
	if s.Run != nil {
		fmt.Fprintf(w, "Run:     %s (started %s)\n", s.Run.ID, s.Run.StartedAt)
		fmt.Fprintf(w, "Files:   %d total, %d indexed, %d unchanged, %d failed\n",
			s.Run.FilesTotal, s.Run.FilesIndexed, s.Run.FilesSkipped, s.Run.FilesFailed)
	}
	fmt.Fprintf(w, "Stored:  %d files, %d symbols, %d relationships, %d patterns\n",
		s.Counts.Files, s.Counts.Symbols, s.Counts.Relationships, s.Counts.Patterns)
	fmt.Fprintf(w, "Quality: %.1f average, %d duplicates removed\n", s.AverageQuality, s.DuplicatesRemoved)

	if len(s.Failed) > 0 {
		fmt.Fprintf(w, "\nFailed files (%d):\n", len(s.Failed))
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "FILE\tLANGUAGE\tREASON")
		fmt.Fprintln(tw, "----\t--------\t------")
		for _, f := range s.Failed {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", f.FilePath, f.Language, truncate(f.Reason, 80))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(s.Lowest) > 0 {
		fmt.Fprintf(w, "\nLowest quality files:\n")
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SCORE\tDUPES\tSTRATEGY\tFILE")
		fmt.Fprintln(tw, "-----\t-----\t--------\t----")
		for _, f := range s.Lowest {
			fmt.Fprintf(tw, "%.1f\t%d\t%s\t%s\n", f.QualityScore, f.DuplicatesRemoved, f.Strategy, f.FilePath)
		}
		return tw.Flush()
	}
	return nil
}

// FileReport is the detailed view of one processed file.
type FileReport struct {
	File          *store.FileRecord    `json:"file"`
	Symbols       int                  `json:"symbols"`
	Relationships int                  `json:"relationships"`
	Patterns      int                  `json:"patterns"`
	Kinds         map[string]int       `json:"kinds"`
	Processing    model.ProcessingInfo `json:"processing"`
}

// NewFileReport builds a FileReport from stored records.
func NewFileReport(rec *store.FileRecord, res *model.ProcessedResult) *FileReport {
	r := &FileReport{File: rec, Kinds: map[string]int{}}
	if res == nil {
		return r
	}
	r.Symbols = len(res.Symbols)
	r.Relationships = len(res.Relationships)
	r.Patterns = len(res.Patterns)
	r.Processing = res.Processing
	for _, s := range res.Symbols {
		r.Kinds[string(s.Kind)]++
	}
	return r
}

// WriteFileReport renders r. limit caps each issue list.
func WriteFileReport(w io.Writer, r *FileReport, format Format, limit int) error {
	if format == FormatJSON {
		return writeJSON(w, r)
	}
	if limit <= 0 {
		limit = DefaultIssueLimit
	}
	f := r.File
	fmt.Fprintf(w, "File:     %s\n", f.FilePath)
	fmt.Fprintf(w, "Language: %s\n", f.Language)
	if f.Status == store.StatusFailed {
		fmt.Fprintf(w, "Status:   failed: %s\n", f.Reason)
		return nil
	}
	fmt.Fprintf(w, "Strategy: %s\n", f.Strategy)
	fmt.Fprintf(w, "Quality:  %.1f (%d duplicates removed, %d ms)\n", f.QualityScore, f.DuplicatesRemoved, f.ProcessingMs)
	fmt.Fprintf(w, "Symbols:  %d", r.Symbols)
	if len(r.Kinds) > 0 {
		kinds := make([]string, 0, len(r.Kinds))
		for k := range r.Kinds {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		parts := make([]string, len(kinds))
		for i, k := range kinds {
			parts[i] = fmt.Sprintf("%s=%d", k, r.Kinds[k])
		}
		fmt.Fprintf(w, " (%s)", strings.Join(parts, ", "))
	}
	fmt.Fprintf(w, "\nRelationships: %d, patterns: %d\n", r.Relationships, r.Patterns)

	writeIssues(w, "Errors", r.Processing.ValidationErrors, limit)
	writeIssues(w, "Warnings", r.Processing.ValidationWarnings, limit)
	writeIssues(w, "Analysis", r.Processing.AnalysisWarnings, limit)
	return nil
}

func writeIssues(w io.Writer, title string, issues []string, limit int) {
	if len(issues) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s (%d):\n", title, len(issues))
	for i, msg := range issues {
		if i == limit {
			fmt.Fprintf(w, "  ... and %d more\n", len(issues)-limit)
			break
		}
		fmt.Fprintf(w, "  - %s\n", msg)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
