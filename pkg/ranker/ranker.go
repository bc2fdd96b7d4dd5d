package ranker

import (
	"sort"

	"github.com/menta2k/vision-overlay/pkg/types"
)

// Ranking is an ordered, immutable list of classification results.
type Ranking struct {
	items []types.Detection
}

// Rank drops entries with neither a label nor a confidence and orders the
// rest by confidence, highest first. Ties keep their input order.
func Rank(detections []types.Detection) Ranking {
	items := make([]types.Detection, 0, len(detections))
	for _, d := range detections {
		if !d.HasLabel() && !d.HasConfidence() {
			continue
		}
		items = append(items, d)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score() > items[j].Score()
	})

	return Ranking{items: items}
}

// Items returns a copy of the ordered results.
func (r Ranking) Items() []types.Detection {
	out := make([]types.Detection, len(r.items))
	copy(out, r.items)
	return out
}

// Len returns the number of ranked results.
func (r Ranking) Len() int { return len(r.items) }

// TopLabel returns the label of the highest ranked result. It reports
// false when there are no results or the top one carries no label.
func (r Ranking) TopLabel() (string, bool) {
	if len(r.items) == 0 || !r.items[0].HasLabel() {
		return "", false
	}
	return r.items[0].Label, true
}
