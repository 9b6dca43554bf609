package retrieve

import "sort"

// DefaultRRFK0 is the reciprocal-rank-fusion constant used when none is
// configured.
const DefaultRRFK0 = 60

// RankedList is one ranked source list going into fusion: a dense search
// over one query variant, or the single lexical search. Order matters —
// index 0 is rank 1.
type RankedList []string

// FusedResult is one chunk id's fused score across every ranked list.
type FusedResult struct {
	ID    string
	Score float64
}

// FuseRRF computes reciprocal rank fusion across n ranked lists:
// score(id) = Σ 1/(k0 + rank(id_in_list)), 1-based rank, missing entries
// contributing 0. Results are ordered by fused score descending, with a
// stable tie-break on id for determinism.
func FuseRRF(lists []RankedList, k0 int) []FusedResult {
	if k0 <= 0 {
		k0 = DefaultRRFK0
	}
	scores := map[string]float64{}
	order := []string{}
	for _, list := range lists {
		for i, id := range list {
			if _, seen := scores[id]; !seen {
				order = append(order, id)
			}
			scores[id] += 1.0 / float64(k0+i+1)
		}
	}
	out := make([]FusedResult, 0, len(order))
	for _, id := range order {
		out = append(out, FusedResult{ID: id, Score: scores[id]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}
