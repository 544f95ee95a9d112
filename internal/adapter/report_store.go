package adapter

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	m "irmut.dev/pkg/irmut/internal/model"
)

// ReportStore persists run reports.
type ReportStore interface {
	SaveReports(dir m.Path, reports []m.RunReport) error
	LoadReports(dir m.Path) ([]m.RunReport, error)
	// Merge combines report sets, later sets overriding earlier ones per
	// source file.
	Merge(sets ...[]m.RunReport) []m.RunReport
}

// YAMLReportStore stores one yaml file per run under a reports directory.
type YAMLReportStore struct{}

// NewReportStore constructs the default yaml-backed store.
func NewReportStore() *YAMLReportStore {
	return &YAMLReportStore{}
}

const reportsFile = "reports.yaml"

// SaveReports writes the report set to dir/reports.yaml.
func (s *YAMLReportStore) SaveReports(dir m.Path, reports []m.RunReport) error {
	if err := os.MkdirAll(string(dir), 0o755); err != nil {
		return fmt.Errorf("report store: %w", err)
	}

	data, err := yaml.Marshal(reports)
	if err != nil {
		return fmt.Errorf("report store: marshal: %w", err)
	}

	path := filepath.Join(string(dir), reportsFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("report store: %w", err)
	}

	return nil
}

// LoadReports reads dir/reports.yaml; a missing file is an empty set.
func (s *YAMLReportStore) LoadReports(dir m.Path) ([]m.RunReport, error) {
	data, err := os.ReadFile(filepath.Join(string(dir), reportsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("report store: %w", err)
	}

	var reports []m.RunReport
	if err := yaml.Unmarshal(data, &reports); err != nil {
		return nil, fmt.Errorf("report store: unmarshal: %w", err)
	}

	return reports, nil
}

// Merge combines report sets; the last report per source path wins.
func (s *YAMLReportStore) Merge(sets ...[]m.RunReport) []m.RunReport {
	byPath := make(map[m.Path]m.RunReport)

	for _, set := range sets {
		for _, r := range set {
			if r.Source.Origin == nil {
				continue
			}

			byPath[r.Source.Origin.Path] = r
		}
	}

	merged := make([]m.RunReport, 0, len(byPath))
	for _, r := range byPath {
		merged = append(merged, r)
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Source.Origin.Path < merged[j].Source.Origin.Path
	})

	return merged
}
