package domain

import m "irmut.dev/pkg/irmut/internal/model"

// mutationScoreFromReports returns the killed fraction across all reports,
// in [0, 1]. An empty run scores 1: there was nothing to miss.
func mutationScoreFromReports(reports []m.RunReport) float64 {
	killed := 0
	total := 0

	for _, r := range reports {
		k, t := r.Score()
		killed += k
		total += t
	}

	if total == 0 {
		return 1.0
	}

	return float64(killed) / float64(total)
}
