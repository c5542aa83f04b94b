package visualize

import (
	"sort"
)

// Rank returns the topN results by descending AvgConfidence. Equal scores keep
// their aggregation order. The input slice is not modified.
func Rank(results []DetectionResult, topN int) []DetectionResult {
	ranked := make([]DetectionResult, len(results))
	copy(ranked, results)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].AvgConfidence > ranked[j].AvgConfidence
	})
	if topN >= 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}

// Partition splits sel into consecutive groups of at most perGrid results,
// producing at most maxGrids groups.
func Partition(sel []DetectionResult, perGrid, maxGrids int) [][]DetectionResult {
	if perGrid <= 0 {
		return nil
	}
	var groups [][]DetectionResult
	for start := 0; start < len(sel) && len(groups) < maxGrids; start += perGrid {
		end := min(start+perGrid, len(sel))
		groups = append(groups, sel[start:end])
	}
	return groups
}
