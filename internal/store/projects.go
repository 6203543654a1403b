package store

import (
	"fmt"
)

// Project represents an indexed project.
type Project struct {
	Name      string
	IndexedAt string
	RootPath  string
}

// UpsertProject creates or updates a project record.
func (s *Store) UpsertProject(name, rootPath string) error {
	_, err := s.q.Exec(`
		INSERT INTO projects (name, indexed_at, root_path) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET indexed_at=excluded.indexed_at, root_path=excluded.root_path`,
		name, Now(), rootPath)
	return err
}

// GetProject returns a project by name.
func (s *Store) GetProject(name string) (*Project, error) {
	var p Project
	err := s.q.QueryRow("SELECT name, indexed_at, root_path FROM projects WHERE name=?", name).
		Scan(&p.Name, &p.IndexedAt, &p.RootPath)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProjects returns all indexed projects.
func (s *Store) ListProjects() ([]*Project, error) {
	rows, err := s.q.Query("SELECT name, indexed_at, root_path FROM projects ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []*Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.Name, &p.IndexedAt, &p.RootPath); err != nil {
			return nil, err
		}
		result = append(result, &p)
	}
	return result, rows.Err()
}

// DeleteProject deletes a project and all associated data (CASCADE).
func (s *Store) DeleteProject(name string) error {
	_, err := s.q.Exec("DELETE FROM projects WHERE name=?", name)
	return err
}

// UpsertFileHash stores a file's content hash.
func (s *Store) UpsertFileHash(project, relPath, hash string) error {
	_, err := s.q.Exec(`
		INSERT INTO file_hashes (project, rel_path, hash) VALUES (?, ?, ?)
		ON CONFLICT(project, rel_path) DO UPDATE SET hash=excluded.hash`,
		project, relPath, hash)
	return err
}

// GetFileHashes returns all file hashes for a project.
func (s *Store) GetFileHashes(project string) (map[string]string, error) {
	rows, err := s.q.Query("SELECT rel_path, hash FROM file_hashes WHERE project=?", project)
	if err != nil {
		return nil, fmt.Errorf("get file hashes: %w", err)
	}
	defer rows.Close()
	result := make(map[string]string)
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, err
		}
		result[path] = hash
	}
	return result, rows.Err()
}

// DeleteFileHash deletes a single file hash entry.
func (s *Store) DeleteFileHash(project, relPath string) error {
	_, err := s.q.Exec("DELETE FROM file_hashes WHERE project=? AND rel_path=?", project, relPath)
	return err
}

// Run is one indexing pass over a project.
type Run struct {
	ID           string
	Project      string
	StartedAt    string
	FinishedAt   string
	FilesTotal   int
	FilesIndexed int
	FilesSkipped int
	FilesFailed  int
}

// InsertRun records the start of a run.
func (s *Store) InsertRun(r *Run) error {
	if r.StartedAt == "" {
		r.StartedAt = Now()
	}
	_, err := s.q.Exec(`INSERT INTO runs (id, project, started_at) VALUES (?, ?, ?)`,
		r.ID, r.Project, r.StartedAt)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun stores a run's counters and completion time.
func (s *Store) FinishRun(r *Run) error {
	if r.FinishedAt == "" {
		r.FinishedAt = Now()
	}
	_, err := s.q.Exec(`
		UPDATE runs SET finished_at=?, files_total=?, files_indexed=?, files_skipped=?, files_failed=?
		WHERE id=?`,
		r.FinishedAt, r.FilesTotal, r.FilesIndexed, r.FilesSkipped, r.FilesFailed, r.ID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// LatestRun returns the most recently started run of project.
func (s *Store) LatestRun(project string) (*Run, error) {
	var r Run
	err := s.q.QueryRow(`
		SELECT id, project, started_at, finished_at, files_total, files_indexed, files_skipped, files_failed
		FROM runs WHERE project=? ORDER BY started_at DESC, rowid DESC LIMIT 1`, project).
		Scan(&r.ID, &r.Project, &r.StartedAt, &r.FinishedAt, &r.FilesTotal, &r.FilesIndexed, &r.FilesSkipped, &r.FilesFailed)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
