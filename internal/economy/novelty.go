package economy

import "llmpagerank/internal/types"

// noveltyLocked scores how dissimilar an insight's brand set is from
// prior insights in the same (category, domain): the average Jaccard
// distance 1 - |A∩B|/|A∪B|. Novelty is 1.0 when no comparable prior
// insight exists, and 0.0 for an insight that names no category,
// domain, or brands (an insight that names nothing cannot be novel).
func (e *Economy) noveltyLocked(insight types.InsightData) float64 {
	if insight.Category == "" || insight.Domain == "" || len(insight.Brands) == 0 {
		return 0.0
	}

	brands := make(map[string]struct{}, len(insight.Brands))
	for _, b := range insight.Brands {
		brands[b] = struct{}{}
	}

	var overlaps []float64
	for _, past := range e.insights {
		if past.Category != insight.Category || past.Domain != insight.Domain {
			continue
		}
		if len(past.Brands) == 0 {
			continue
		}

		intersection := 0
		union := len(brands)
		seen := make(map[string]struct{}, len(past.Brands))
		for _, b := range past.Brands {
			if _, dup := seen[b]; dup {
				continue
			}
			seen[b] = struct{}{}
			if _, ok := brands[b]; ok {
				intersection++
			} else {
				union++
			}
		}
		if union == 0 {
			continue
		}
		overlaps = append(overlaps, float64(intersection)/float64(union))
	}

	if len(overlaps) == 0 {
		return 1.0
	}

	sum := 0.0
	for _, o := range overlaps {
		sum += o
	}
	return 1.0 - sum/float64(len(overlaps))
}
