package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "irmut.dev/pkg/irmut/internal/model"
)

func sampleReport(path m.Path, testID int) m.RunReport {
	return m.RunReport{
		Source:     m.Source{Origin: &m.File{Path: path, Hash: "h"}, Module: "mod"},
		TestID:     testID,
		Mutations:  3,
		RootOutput: "8\n",
		Mutants: []m.MutantReport{
			{MutationID: 1, MutationIDs: []int{1}, Output: "4\n", Status: m.Killed},
			{MutationID: 2, MutationIDs: []int{2, 3}, Output: "8\n", Status: m.Survived},
		},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := m.Path(t.TempDir())
	store := NewReportStore()

	reports := []m.RunReport{sampleReport("a.ir", 1), sampleReport("b.ir", 1)}
	require.NoError(t, store.SaveReports(dir, reports))

	got, err := store.LoadReports(dir)
	require.NoError(t, err)
	assert.Equal(t, reports, got)
}

func TestLoadMissingReportsIsEmpty(t *testing.T) {
	store := NewReportStore()

	got, err := store.LoadReports(m.Path(t.TempDir()))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMerge(t *testing.T) {
	store := NewReportStore()

	old := []m.RunReport{sampleReport("a.ir", 1), sampleReport("b.ir", 1)}
	updated := []m.RunReport{sampleReport("b.ir", 2), sampleReport("c.ir", 2)}

	merged := store.Merge(old, updated)
	require.Len(t, merged, 3)

	byPath := map[m.Path]m.RunReport{}
	for _, r := range merged {
		byPath[r.Source.Origin.Path] = r
	}

	assert.Equal(t, 1, byPath["a.ir"].TestID)
	assert.Equal(t, 2, byPath["b.ir"].TestID, "later set wins per file")
	assert.Equal(t, 2, byPath["c.ir"].TestID)

	// Deterministic order by path.
	assert.Equal(t, m.Path("a.ir"), merged[0].Source.Origin.Path)
	assert.Equal(t, m.Path("c.ir"), merged[2].Source.Origin.Path)
}
