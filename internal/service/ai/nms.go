package ai

import (
	"sort"

	"potholytics/internal/model"
)

// NMS keeps the highest-confidence detection of every cluster whose pairwise
// IoU exceeds threshold. With perClass set, only boxes of the same class
// suppress each other. The result is ordered by descending confidence.
func NMS(dets []model.Detection, threshold float64, perClass bool) []model.Detection {
	sorted := make([]model.Detection, len(dets))
	copy(sorted, dets)
	sortByConfidence(sorted)

	suppressed := make([]bool, len(sorted))
	keep := make([]model.Detection, 0, len(sorted))
	for i := range sorted {
		if suppressed[i] {
			continue
		}
		keep = append(keep, sorted[i])
		for j := i + 1; j < len(sorted); j++ {
			if suppressed[j] {
				continue
			}
			if perClass && sorted[i].ClassID != sorted[j].ClassID {
				continue
			}
			if sorted[i].Box.IoU(sorted[j].Box) > threshold {
				suppressed[j] = true
			}
		}
	}
	return keep
}

func sortByConfidence(dets []model.Detection) {
	sort.SliceStable(dets, func(i, j int) bool {
		return dets[i].Confidence > dets[j].Confidence
	})
}
