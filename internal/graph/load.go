package graph

import (
	"fmt"

	"github.com/DeusData/module-sentinel/internal/store"
)

// Load builds the view of everything stored for project.
func Load(s *store.Store, project string) (*View, error) {
	symbols, err := s.Symbols(project)
	if err != nil {
		return nil, fmt.Errorf("graph symbols: %w", err)
	}
	rels, err := s.Relationships(project)
	if err != nil {
		return nil, fmt.Errorf("graph relationships: %w", err)
	}
	metrics, err := s.Metrics(project, "")
	if err != nil {
		return nil, fmt.Errorf("graph metrics: %w", err)
	}
	modules, err := s.FileModules(project)
	if err != nil {
		return nil, fmt.Errorf("graph modules: %w", err)
	}
	return Build(Input{
		Symbols:       symbols,
		Relationships: rels,
		Metrics:       metrics,
		FileModules:   modules,
	}), nil
}
